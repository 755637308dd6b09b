// Package dispatcher orchestrates the relay pipeline: it consumes
// requests from the bus, resolves them to artifacts and delivers the
// outcome back to the front end.
package dispatcher

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/downloader"
	"github.com/mediarelay/mediarelay/internal/metrics"
	"github.com/mediarelay/mediarelay/internal/relay"
)

// Config controls Dispatcher behavior.
type Config struct {
	Channel     string
	Concurrency int
}

// Router selects a site processor for a URL. A nil processor means the
// generic downloader applies.
type Router interface {
	Route(rawURL, resourceID string) relay.Processor
}

// Dispatcher runs a bounded pool of workers over the request bus.
type Dispatcher struct {
	bus       relay.Bus
	allowed   relay.AllowList
	registry  Router
	generic   *downloader.YtDlp
	retriever *downloader.Retriever
	replier   relay.Replier
	delivery  relay.RetryPolicy
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Dispatcher.
func New(
	bus relay.Bus,
	allowed relay.AllowList,
	registry Router,
	generic *downloader.YtDlp,
	retriever *downloader.Retriever,
	replier relay.Replier,
	delivery relay.RetryPolicy,
	cfg Config,
	logger *zap.Logger,
) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Dispatcher{
		bus:       bus,
		allowed:   allowed,
		registry:  registry,
		generic:   generic,
		retriever: retriever,
		replier:   replier,
		delivery:  delivery,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, fanning bus requests out to the worker pool until the
// context finishes or the bus closes.
func (d *Dispatcher) Run(ctx context.Context) error {
	requests, err := d.bus.Subscribe(ctx, d.cfg.Channel)
	if err != nil {
		return fmt.Errorf("subscribing to request bus: %w", err)
	}
	d.logger.Info("dispatcher started",
		zap.String("channel", d.cfg.Channel),
		zap.Int("concurrency", d.cfg.Concurrency))

	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case req, ok := <-requests:
					if !ok {
						return
					}
					d.handleGuarded(ctx, req)
				}
			}
		}()
	}
	wg.Wait()
	d.logger.Info("dispatcher stopped")
	return nil
}

// handleGuarded isolates a panic to the request that caused it, so one
// malformed resource cannot take the pool down.
func (d *Dispatcher) handleGuarded(ctx context.Context, req relay.Request) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("request handler panicked",
				zap.String("correlation_id", req.CorrelationID),
				zap.String("url", req.URL),
				zap.Any("panic", r))
			metrics.ObserveRequest("panic")
		}
	}()

	result := d.Handle(ctx, req)
	d.deliver(ctx, req, result)
}

// Handle runs one request through classification, validation, site
// routing and download. Every failure comes back inside the Result, a
// request never errors out of the pipeline.
func (d *Dispatcher) Handle(ctx context.Context, req relay.Request) relay.Result {
	logger := d.logger.With(
		zap.String("correlation_id", req.CorrelationID),
		zap.String("url", req.URL))

	classified := relay.Classify(req.URL)
	if !classified.Valid() {
		logger.Warn("rejecting unclassifiable url")
		return relay.ErrorResult(relay.ErrInvalidURL)
	}
	if !d.allowed.IsSupported(classified.Domain) {
		logger.Warn("rejecting unsupported domain", zap.String("domain", classified.Domain))
		return relay.ErrorResult(relay.ErrUnsupportedDomain)
	}
	id := relay.ResourceID(req.URL)
	if id == "" {
		logger.Warn("url has no resource id")
		return relay.ErrorResult(relay.ErrInvalidURL)
	}

	if p := d.registry.Route(req.URL, id); p != nil {
		artifact, err := p.Process(ctx)
		if err != nil {
			logger.Error("site processor failed", zap.Error(err))
			return relay.ErrorResult(err)
		}
		if artifact != nil {
			d.observeArtifact(req.URL, artifact)
			return relay.ContentResult(artifact)
		}
		// A processor that found nothing to fetch hands the request to
		// the generic downloader before the relay gives up on it.
		logger.Info("site processor produced no content, trying generic download")
	}

	if err := d.generic.Download(ctx, req.URL, id); err != nil {
		logger.Error("generic download failed", zap.Error(err))
		return relay.ErrorResult(fmt.Errorf("%w: %v", relay.ErrDownload, err))
	}
	artifact, err := d.retriever.RetrieveVideo(ctx, id)
	if err != nil {
		logger.Error("artifact retrieval failed", zap.Error(err))
		return relay.ErrorResult(err)
	}
	d.observeArtifact(req.URL, artifact)
	return relay.ContentResult(artifact)
}

func (d *Dispatcher) observeArtifact(rawURL string, artifact *relay.Artifact) {
	var size int64
	paths := artifact.Paths
	if artifact.Kind == relay.ArtifactVideo {
		paths = []string{artifact.Path}
	}
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			size += info.Size()
		}
	}
	kind := "video"
	if artifact.Kind == relay.ArtifactImageSet {
		kind = "images"
	}
	metrics.ObserveDownload(rawURL, kind, size)
}

// deliver pushes the outcome to the reply channel under the bounded
// delivery policy. Exhausted retries drop the request with a log entry,
// there is no dead letter queue.
func (d *Dispatcher) deliver(ctx context.Context, req relay.Request, result relay.Result) {
	rep, outcome, ok := buildReply(req, result)
	metrics.ObserveRequest(outcome)
	if !ok {
		d.logger.Info("nothing to deliver",
			zap.String("correlation_id", req.CorrelationID))
		return
	}

	err := relay.Retry(ctx, d.delivery, func() error {
		if err := d.replier.Reply(ctx, rep); err != nil {
			metrics.ObserveReplyAttempt("error")
			return err
		}
		metrics.ObserveReplyAttempt("success")
		return nil
	})
	if err != nil {
		d.logger.Error("reply delivery exhausted retries, dropping request",
			zap.String("correlation_id", req.CorrelationID),
			zap.Int64("chat_id", req.ChatID),
			zap.Error(err))
		return
	}
	d.logger.Info("request completed",
		zap.String("correlation_id", req.CorrelationID),
		zap.String("outcome", outcome))
}

// buildReply maps a Result to the one-of reply contract. The third
// return is false when there is nothing to send.
func buildReply(req relay.Request, result relay.Result) (relay.Reply, string, bool) {
	rep := relay.Reply{ChatID: req.ChatID, MessageID: req.MessageID}
	switch {
	case result.Err != nil:
		rep.Text = relay.UserMessage(result.Err)
		return rep, "error", true
	case result.Artifact == nil:
		return rep, "no_content", false
	case result.Artifact.Kind == relay.ArtifactImageSet:
		rep.Images = result.Artifact.Paths
		return rep, "success", true
	default:
		rep.File = result.Artifact.Path
		return rep, "success", true
	}
}
