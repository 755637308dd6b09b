// Package reply enforces the delivery contract between the worker and
// the chat front end.
package reply

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/relay"
)

// Validate checks the one-of contract: a reply carries exactly one of
// text, a single file, or an image batch. Anything else is a caller
// error and must not be sent.
func Validate(r relay.Reply) error {
	kinds := 0
	if r.Text != "" {
		kinds++
	}
	if r.File != "" {
		kinds++
	}
	if len(r.Images) > 0 {
		kinds++
	}
	if kinds != 1 {
		return fmt.Errorf("%w: got %d content kinds, want exactly one", relay.ErrInvalidReply, kinds)
	}
	return nil
}

// LogReplier records outcomes in the log instead of sending them
// anywhere, for local runs without a front end attached.
type LogReplier struct {
	logger *zap.Logger
}

// NewLogReplier builds a LogReplier.
func NewLogReplier(logger *zap.Logger) *LogReplier {
	return &LogReplier{logger: logger}
}

// Reply implements relay.Replier.
func (l *LogReplier) Reply(_ context.Context, r relay.Reply) error {
	if err := Validate(r); err != nil {
		return err
	}
	l.logger.Info("reply",
		zap.Int64("chat_id", r.ChatID),
		zap.Int64("message_id", r.MessageID),
		zap.String("text", r.Text),
		zap.String("file", r.File),
		zap.Strings("images", r.Images))
	return nil
}

// Chunk splits an image set into batches the front end can deliver in
// one message each.
func Chunk(images []string, size int) [][]string {
	if size <= 0 {
		size = relay.ImageBatchSize
	}
	var batches [][]string
	for len(images) > 0 {
		n := size
		if len(images) < n {
			n = len(images)
		}
		batches = append(batches, images[:n])
		images = images[n:]
	}
	return batches
}
