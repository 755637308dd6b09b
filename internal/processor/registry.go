// Package processor contains site-specific resolution strategies that
// turn a validated URL into a downloadable artifact.
package processor

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/downloader"
	"github.com/mediarelay/mediarelay/internal/relay"
)

// Deps carries the collaborators every processor needs. The registry
// holds one copy and threads it into each processor it builds.
type Deps struct {
	Marker      *downloader.Marker
	Streamer    *downloader.Streamer
	Retriever   *downloader.Retriever
	Aweme       *AwemeClient // nil when the lookup API is not configured
	HTTPTimeout time.Duration
	Logger      *zap.Logger
}

// Registry maps a URL to zero or one specialized processor.
type Registry struct {
	deps Deps
}

// NewRegistry builds a Registry.
func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps}
}

// Route returns the processor for the URL, or nil when no platform
// matches and the generic downloader should take over. Short-link URLs
// configure the processor for the mobile experience, which changes
// redirect canonicalization later on.
func (r *Registry) Route(rawURL, resourceID string) relay.Processor {
	if !strings.Contains(rawURL, relay.TikTokGeneralDomain) {
		return nil
	}
	p := newTikTok(resourceID, rawURL, r.deps)
	p.mobile = strings.Contains(rawURL, relay.TikTokMobileDomain)
	r.deps.Logger.Debug("routing to tiktok processor",
		zap.String("id", resourceID), zap.Bool("mobile", p.mobile))
	return p
}
