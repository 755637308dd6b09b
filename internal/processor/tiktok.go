package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/relay"
)

type resourceShape int

const (
	shapeVideo resourceShape = iota
	shapeSlideshow
)

func (s resourceShape) String() string {
	if s == shapeSlideshow {
		return "slideshow"
	}
	return "video"
}

// TikTok resolves one resource end to end: fetch the landing page,
// canonicalize the URL, classify the shape, then obtain play addresses
// from the embedded page state or the lookup API and stream the media
// to disk.
type TikTok struct {
	deps    Deps
	id      string
	url     string
	mobile  bool
	shape   resourceShape
	cookies []string
}

func newTikTok(id, rawURL string, deps Deps) *TikTok {
	return &TikTok{deps: deps, id: id, url: rawURL}
}

// Process implements relay.Processor.
func (t *TikTok) Process(ctx context.Context) (*relay.Artifact, error) {
	page, err := fetchPage(t.url, t.deps.HTTPTimeout)
	if err != nil {
		return nil, err
	}
	t.cookies = page.cookies
	t.canonicalize(page)
	t.shape = shapeVideo
	if !strings.Contains(page.url.Path, "video") {
		t.shape = shapeSlideshow
	}
	t.deps.Logger.Debug("resolved resource",
		zap.String("id", t.id),
		zap.String("url", t.url),
		zap.Stringer("shape", t.shape))

	// Slideshow pages do not embed usable image addresses, so those go
	// straight to the lookup API.
	if t.shape == shapeVideo {
		if artifact, err := t.processEmbedded(ctx, page.body); err == nil {
			return artifact, nil
		} else if !isFallthrough(err) {
			return nil, err
		} else {
			t.deps.Logger.Info("embedded state unusable, falling back to lookup api",
				zap.String("id", t.id), zap.Error(err))
		}
	}
	return t.processLookup(ctx)
}

// Media paths carry the resource id as /video/<id> or /photo/<id>.
var (
	videoPathPattern = regexp.MustCompile(`/video/(\d+)`)
	photoPathPattern = regexp.MustCompile(`/photo/(\d+)`)
)

// resourceIDFromPath extracts the numeric resource id from a canonical
// page path.
func resourceIDFromPath(path string) (string, bool) {
	if m := videoPathPattern.FindStringSubmatch(path); m != nil {
		return m[1], true
	}
	if m := photoPathPattern.FindStringSubmatch(path); m != nil {
		return m[1], true
	}
	return "", false
}

// canonicalize replaces the requested URL with the one the server
// redirected to. Mobile short links land on a share URL whose query
// string tracks the referral, which is dropped. The resource id is
// re-derived from the final path; a path without a media id keeps the
// prior id so dedup keys stay stable across odd redirects.
func (t *TikTok) canonicalize(page pageResult) {
	final := *page.url
	if t.mobile {
		final.RawQuery = ""
		final.Fragment = ""
	}
	t.url = strings.TrimSuffix(final.String(), "?")
	if id, ok := resourceIDFromPath(final.Path); ok {
		t.id = id
	} else {
		t.deps.Logger.Warn("keeping prior resource id, canonical path has no media id",
			zap.String("id", t.id), zap.String("url", t.url))
	}
}

func (t *TikTok) processEmbedded(ctx context.Context, body []byte) (*relay.Artifact, error) {
	urls, err := embeddedVideoURLs(extractEmbeddedScript(body))
	if err != nil {
		return nil, err
	}
	mediaURL, err := pickCandidateURL(urls)
	if err != nil {
		return nil, err
	}
	return t.fetchVideo(ctx, mediaURL)
}

func (t *TikTok) processLookup(ctx context.Context) (*relay.Artifact, error) {
	if t.deps.Aweme == nil {
		return nil, fmt.Errorf("%w: resource %s needs the lookup api but it is not configured",
			relay.ErrDownload, t.id)
	}
	record, err := t.deps.Aweme.Lookup(ctx, t.id)
	if err != nil {
		return nil, err
	}
	if t.shape == shapeSlideshow {
		images, err := awemeImageURLs(record)
		if err != nil {
			return nil, err
		}
		return t.fetchImages(ctx, images)
	}
	mediaURL, err := awemeVideoURL(record)
	if err != nil {
		return nil, err
	}
	return t.fetchVideo(ctx, mediaURL)
}

func (t *TikTok) fetchVideo(ctx context.Context, mediaURL string) (*relay.Artifact, error) {
	dest := t.deps.Retriever.VideoPath(t.id)
	if !t.deps.Marker.AlreadyDownloaded(ctx, t.id, dest) {
		if err := t.deps.Streamer.Download(ctx, mediaURL, dest, t.mediaHeader()); err != nil {
			return nil, err
		}
	}
	return t.deps.Retriever.RetrieveVideo(ctx, t.id)
}

func (t *TikTok) fetchImages(ctx context.Context, images map[int]string) (*relay.Artifact, error) {
	header := t.mediaHeader()
	for i := 0; i < len(images); i++ {
		mediaURL, ok := images[i]
		if !ok {
			continue
		}
		key := fmt.Sprintf("%s_%d", t.id, i)
		dest := t.deps.Retriever.ImagePath(t.id, i)
		if t.deps.Marker.AlreadyDownloaded(ctx, key, dest) {
			continue
		}
		if err := t.deps.Streamer.Download(ctx, mediaURL, dest, header); err != nil {
			// A single failed image is recovered at retrieval time, the
			// set is delivered without it.
			t.deps.Logger.Warn("image download failed",
				zap.String("key", key), zap.Error(err))
		}
	}
	return t.deps.Retriever.RetrieveImages(ctx, t.id, len(images))
}

// mediaHeader builds the headers the CDN expects: the canonical page as
// referer plus the session cookies collected from the landing page.
func (t *TikTok) mediaHeader() http.Header {
	h := http.Header{}
	h.Set("User-Agent", mediaUserAgent)
	h.Set("Accept", acceptHeader)
	h.Set("Accept-Language", acceptLanguage)
	h.Set("Referer", t.url)
	if len(t.cookies) > 0 {
		h.Set("Cookie", strings.Join(t.cookies, "; "))
	}
	return h
}

// isFallthrough reports whether the embedded-state path failed in a way
// the lookup API can recover from.
func isFallthrough(err error) bool {
	return errors.Is(err, relay.ErrParsing)
}
