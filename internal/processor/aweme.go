package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/relay"
)

// cdnHostFragment identifies play addresses served from the public CDN,
// which are reachable without the app's session state.
const cdnHostFragment = "byteicdn.com"

const (
	odinCookieLength      = 160
	alphanumeric          = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	installAgeMinSeconds  = 86400
	installAgeSpanSeconds = 1036800
)

// AwemeConfig is the device identity presented to the lookup API. Every
// field lands in the query string verbatim except the handful derived
// at request time (timestamps, device id, install time, cdid).
type AwemeConfig struct {
	URL     string       `mapstructure:"url"`
	UA      string       `mapstructure:"ua"`
	Headers AwemeHeaders `mapstructure:"headers"`
	Params  AwemeParams  `mapstructure:"params"`
}

type AwemeHeaders struct {
	Accept         string `mapstructure:"accept"`
	AcceptLanguage string `mapstructure:"accept_language"`
}

type AwemeParams struct {
	IID                []string `mapstructure:"iid"`
	AppName            string   `mapstructure:"app_name"`
	AID                string   `mapstructure:"aid"`
	AppVersion         string   `mapstructure:"app_version"`
	ManifestAppVersion string   `mapstructure:"manifest_app_version"`
	VersionCode        string   `mapstructure:"version_code"`
	DeviceIDLower      uint64   `mapstructure:"device_id_lower"`
	DeviceIDUpper      uint64   `mapstructure:"device_id_upper"`
	DeviceBrand        string   `mapstructure:"device_brand"`
	DeviceType         string   `mapstructure:"device_type"`
	Resolution         string   `mapstructure:"resolution"`
	DPI                string   `mapstructure:"dpi"`
	OSVersion          string   `mapstructure:"os_version"`
	OSAPI              string   `mapstructure:"os_api"`
	SysRegion          string   `mapstructure:"sys_region"`
	Region             string   `mapstructure:"region"`
	AppLanguage        string   `mapstructure:"app_language"`
	Language           string   `mapstructure:"language"`
	TimezoneName       string   `mapstructure:"timezone_name"`
	TimezoneOffset     string   `mapstructure:"timezone_offset"`
	AC                 string   `mapstructure:"ac"`
	AC2                string   `mapstructure:"ac2"`
	SSMix              string   `mapstructure:"ss_mix"`
	OS                 string   `mapstructure:"os"`
	AppType            string   `mapstructure:"app_type"`
	Residence          string   `mapstructure:"residence"`
	HostABI            string   `mapstructure:"host_abi"`
	Locale             string   `mapstructure:"locale"`
	UOO                string   `mapstructure:"uoo"`
	OpRegion           string   `mapstructure:"op_region"`
	Channel            string   `mapstructure:"channel"`
	IsPad              string   `mapstructure:"is_pad"`
}

// AwemeClient calls the lookup API used when the embedded page state
// cannot be parsed or the resource is a slideshow.
type AwemeClient struct {
	cfg    AwemeConfig
	client *http.Client
	policy relay.RetryPolicy
	clock  relay.Clock
	ids    relay.IDGenerator
	logger *zap.Logger
}

// NewAwemeClient builds a lookup client. The policy governs retries of
// transport failures only; HTTP error statuses are reported as-is.
func NewAwemeClient(cfg AwemeConfig, timeout time.Duration, policy relay.RetryPolicy, clock relay.Clock, ids relay.IDGenerator, logger *zap.Logger) *AwemeClient {
	return &AwemeClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		policy: policy,
		clock:  clock,
		ids:    ids,
		logger: logger,
	}
}

// Lookup fetches the resource record for the given id and returns the
// raw response body for shape-specific parsing.
func (c *AwemeClient) Lookup(ctx context.Context, resourceID string) (json.RawMessage, error) {
	var (
		status int
		body   json.RawMessage
	)
	err := relay.Retry(ctx, c.policy, func() error {
		s, b, err := c.call(ctx, resourceID)
		if err != nil {
			c.logger.Warn("lookup api call failed", zap.String("id", resourceID), zap.Error(err))
			return err
		}
		status, body = s, b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: lookup api: %v", relay.ErrUnreachableResource, err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: lookup api returned status %d", relay.ErrUnreachableResource, status)
	}
	if len(body) == 0 || string(body) == "null" {
		return nil, fmt.Errorf("%w: lookup api returned an empty record", relay.ErrParsing)
	}
	return body, nil
}

func (c *AwemeClient) call(ctx context.Context, resourceID string) (int, json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return 0, nil, err
	}
	req.URL.RawQuery = c.query(resourceID).Encode()
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept", c.cfg.Headers.Accept)
	req.Header.Set("Accept-Language", c.cfg.Headers.AcceptLanguage)
	req.Header.Set("Cookie", "odin_tt="+randomAlphanumeric(odinCookieLength))

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	// A body that is not valid JSON is reported as an empty record, not
	// a transport failure, so it does not burn retry attempts.
	if !json.Valid(raw) {
		return resp.StatusCode, json.RawMessage("null"), nil
	}
	return resp.StatusCode, json.RawMessage(raw), nil
}

// query assembles the device identity parameters. Randomized fields get
// fresh values per request so repeated lookups do not present an
// identical fingerprint.
func (c *AwemeClient) query(resourceID string) url.Values {
	p := c.cfg.Params
	now := c.clock.Now()
	cdid, err := c.ids.NewID()
	if err != nil {
		cdid = strconv.FormatUint(rand.Uint64(), 10)
	}
	installedAt := now.Unix() - int64(installAgeMinSeconds+rand.Int64N(installAgeSpanSeconds))

	v := url.Values{}
	v.Set("aweme_id", resourceID)
	if len(p.IID) > 0 {
		v.Set("iid", p.IID[rand.IntN(len(p.IID))])
	}
	v.Set("device_id", strconv.FormatUint(p.DeviceIDLower+rand.Uint64N(p.DeviceIDUpper-p.DeviceIDLower+1), 10))
	v.Set("last_install_time", strconv.FormatInt(installedAt, 10))
	v.Set("cdid", cdid)
	v.Set("_rticket", strconv.FormatInt(now.UnixMilli(), 10))
	v.Set("ts", strconv.FormatInt(now.Unix(), 10))
	v.Set("app_name", p.AppName)
	v.Set("aid", p.AID)
	v.Set("version_name", p.AppVersion)
	v.Set("version_code", expandAppVersion(p.AppVersion))
	v.Set("build_number", p.AppVersion)
	v.Set("manifest_version_code", p.ManifestAppVersion)
	v.Set("update_version_code", p.VersionCode)
	v.Set("ab_version", p.AppVersion)
	v.Set("device_brand", p.DeviceBrand)
	v.Set("device_type", p.DeviceType)
	v.Set("resolution", p.Resolution)
	v.Set("dpi", p.DPI)
	v.Set("os_version", p.OSVersion)
	v.Set("os_api", p.OSAPI)
	v.Set("sys_region", p.SysRegion)
	v.Set("region", p.Region)
	v.Set("current_region", p.Region)
	v.Set("app_language", p.AppLanguage)
	v.Set("language", p.Language)
	v.Set("timezone_name", p.TimezoneName)
	v.Set("timezone_offset", p.TimezoneOffset)
	v.Set("ac", p.AC)
	v.Set("ac2", p.AC2)
	v.Set("ssmix", p.SSMix)
	v.Set("os", p.OS)
	v.Set("app_type", p.AppType)
	v.Set("residence", p.Residence)
	v.Set("host_abi", p.HostABI)
	v.Set("locale", p.Locale)
	v.Set("uoo", p.UOO)
	v.Set("op_region", p.OpRegion)
	v.Set("channel", p.Channel)
	v.Set("is_pad", p.IsPad)
	return v
}

func (c *AwemeClient) userAgent() string {
	pkg := "com.ss.android.ugc." + c.cfg.Params.AppName
	if c.cfg.Params.AppName == "musical_ly" {
		pkg = "com.zhiliaoapp.musically"
	}
	return fmt.Sprintf("%s/%s %s", pkg, c.cfg.Params.VersionCode, c.cfg.UA)
}

// expandAppVersion turns a dotted version like 31.5.2 into the numeric
// form 310502 the API expects. Every component is zero-padded to two
// digits, so 9.5.2 becomes 090502.
func expandAppVersion(version string) string {
	var b strings.Builder
	for _, part := range strings.Split(version, ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			b.WriteString(part)
			continue
		}
		fmt.Fprintf(&b, "%02d", n)
	}
	return b.String()
}

func randomAlphanumeric(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanumeric[rand.IntN(len(alphanumeric))]
	}
	return string(b)
}

// awemeVideoURL scans the record's bitrate renditions for a play
// address on the public CDN.
func awemeVideoURL(body json.RawMessage) (string, error) {
	var record struct {
		AwemeList []struct {
			Video struct {
				BitRate []struct {
					PlayAddr struct {
						URLList []string `json:"url_list"`
					} `json:"play_addr"`
				} `json:"bit_rate"`
			} `json:"video"`
		} `json:"aweme_list"`
	}
	if err := json.Unmarshal(body, &record); err != nil {
		return "", fmt.Errorf("%w: decoding lookup record: %v", relay.ErrParsing, err)
	}
	if len(record.AwemeList) == 0 {
		return "", fmt.Errorf("%w: lookup record has no entries", relay.ErrParsing)
	}
	for _, rate := range record.AwemeList[0].Video.BitRate {
		for _, candidate := range rate.PlayAddr.URLList {
			if strings.Contains(candidate, cdnHostFragment) {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("%w: lookup record has no public play address", relay.ErrParsing)
}

// awemeImageURLs extracts the slideshow image addresses keyed by their
// position. Only plain jpeg renditions are kept.
func awemeImageURLs(body json.RawMessage) (map[int]string, error) {
	var record struct {
		AwemeList []struct {
			ImagePostInfo struct {
				Images []struct {
					DisplayImage struct {
						URLList []string `json:"url_list"`
					} `json:"display_image"`
				} `json:"images"`
			} `json:"image_post_info"`
		} `json:"aweme_list"`
	}
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("%w: decoding lookup record: %v", relay.ErrParsing, err)
	}
	if len(record.AwemeList) == 0 {
		return nil, fmt.Errorf("%w: lookup record has no entries", relay.ErrParsing)
	}
	images := make(map[int]string)
	for i, img := range record.AwemeList[0].ImagePostInfo.Images {
		for _, candidate := range img.DisplayImage.URLList {
			if strings.Contains(candidate, "."+relay.ImageExtension) {
				images[i] = candidate
				break
			}
		}
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: lookup record has no image addresses", relay.ErrParsing)
	}
	return images, nil
}
