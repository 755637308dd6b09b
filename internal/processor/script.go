package processor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mediarelay/mediarelay/internal/relay"
)

const (
	scriptIDPrimary   = "SIGI_STATE"
	scriptIDSecondary = "__UNIVERSAL_DATA_FOR_REHYDRATION__"
)

// extractEmbeddedScript pulls the hydration state script out of the
// page. Newer page builds moved the state to a second element id, so
// both are tried in order. Returns "" when neither is present.
func extractEmbeddedScript(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	if sel := doc.Find("script#" + scriptIDPrimary); sel.Length() > 0 {
		return sel.First().Text()
	}
	if sel := doc.Find("script#" + scriptIDSecondary); sel.Length() > 0 {
		return sel.First().Text()
	}
	return ""
}

// embeddedVideoURLs decodes the hydration state and returns the play
// address candidates of the highest bitrate rendition.
func embeddedVideoURLs(script string) ([]string, error) {
	if script == "" {
		return nil, fmt.Errorf("%w: no embedded state script in page", relay.ErrParsing)
	}
	var state struct {
		DefaultScope struct {
			VideoDetail struct {
				ItemInfo struct {
					ItemStruct struct {
						Video struct {
							BitrateInfo []struct {
								PlayAddr struct {
									URLList []string `json:"UrlList"`
								} `json:"PlayAddr"`
							} `json:"bitrateInfo"`
						} `json:"video"`
					} `json:"itemStruct"`
				} `json:"itemInfo"`
			} `json:"webapp.video-detail"`
		} `json:"__DEFAULT_SCOPE__"`
	}
	if err := json.Unmarshal([]byte(script), &state); err != nil {
		return nil, fmt.Errorf("%w: decoding embedded state: %v", relay.ErrParsing, err)
	}
	info := state.DefaultScope.VideoDetail.ItemInfo.ItemStruct.Video.BitrateInfo
	if len(info) == 0 || len(info[0].PlayAddr.URLList) == 0 {
		return nil, fmt.Errorf("%w: embedded state has no play addresses", relay.ErrParsing)
	}
	return info[0].PlayAddr.URLList, nil
}

// pickCandidateURL selects one of the first two candidates at random
// and strips the double-escaped ampersand entities the state embeds.
func pickCandidateURL(urls []string) (string, error) {
	limit := 2
	if len(urls) < limit {
		limit = len(urls)
	}
	raw := strings.ReplaceAll(urls[rand.IntN(limit)], "amp;", "")
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return "", fmt.Errorf("%w: play address %q is not a valid URL", relay.ErrParsing, raw)
	}
	return u.String(), nil
}
