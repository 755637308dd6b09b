package processor

import (
	"fmt"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/mediarelay/mediarelay/internal/relay"
)

const (
	pageUserAgent  = "Mozilla/5.0"
	mediaUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/92.0.4515.115 Safari/537.36"
	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguage = "en-US,en;q=0.5"
)

// pageResult captures the landing page after redirects: the canonical
// URL the server settled on, the body with the embedded state script,
// and any session cookies needed to fetch media from the CDN.
type pageResult struct {
	url        *url.URL
	statusCode int
	body       []byte
	cookies    []string
}

// fetchPage loads the page and follows redirects to the canonical URL.
func fetchPage(rawURL string, timeout time.Duration) (pageResult, error) {
	c := colly.NewCollector(
		colly.UserAgent(pageUserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", acceptHeader)
		r.Headers.Set("Accept-Language", acceptLanguage)
	})

	var (
		page     pageResult
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		page.url = r.Request.URL
		page.statusCode = r.StatusCode
		page.body = r.Body
		if r.Headers != nil {
			page.cookies = r.Headers.Values("Set-Cookie")
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			page.statusCode = r.StatusCode
		}
		fetchErr = err
	})

	if err := c.Visit(rawURL); err != nil {
		fetchErr = err
	}
	c.Wait()

	if fetchErr != nil {
		return pageResult{}, fmt.Errorf("%w: fetching %q (status %d): %v",
			relay.ErrUnreachableResource, rawURL, page.statusCode, fetchErr)
	}
	if page.url == nil {
		return pageResult{}, fmt.Errorf("%w: no response for %q", relay.ErrUnreachableResource, rawURL)
	}
	return page, nil
}
