// Package resolver calls the third-party Terabox extraction API and maps its
// response to one of three outcomes: a direct link, file details, or an
// unrecognized payload.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	logx "teraboxbot/pkg/logx"
)

// ErrUnavailable marks a transport-level failure: resolver unreachable,
// non-2xx status or a non-JSON body. Distinct from an Unrecognized result
// and never retried here.
var ErrUnavailable = errors.New("resolver unavailable")

type Kind int

const (
	KindUnrecognized Kind = iota
	KindDirectLink
	KindFileDetails
)

// Result is the tagged outcome of one resolution call.
type Result struct {
	Kind Kind

	// KindDirectLink
	URL     string
	VideoID string

	// KindFileDetails
	FileName     string
	FileSize     string
	DownloadLink string

	// KindUnrecognized
	Raw []byte
}

type Config struct {
	Endpoint string
	APIKey   string
	APIHost  string

	// MaxInFlight bounds concurrent calls system-wide; callers beyond the
	// bound block on ctx until a slot frees. This is the admission control
	// protecting the downstream API.
	MaxInFlight int
	Timeout     time.Duration
}

type Client struct {
	cfg   Config
	http  *http.Client
	slots chan struct{}
	log   logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 500
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: timeout},
		slots: make(chan struct{}, cfg.MaxInFlight),
		log:   log,
	}
}

func (c *Client) Resolve(ctx context.Context, link string) (Result, error) {
	select {
	case c.slots <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-c.slots }()

	body, err := c.fetch(ctx, link)
	if err != nil {
		return Result{}, err
	}
	return mapResponse(body)
}

func (c *Client) fetch(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	q := url.Values{}
	q.Set("link", link)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("x-rapidapi-key", c.cfg.APIKey)
	req.Header.Set("x-rapidapi-host", c.cfg.APIHost)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("resolver request failed", logx.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		c.log.Warn("resolver returned error status", logx.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return b, nil
}

func mapResponse(raw []byte) (Result, error) {
	var body struct {
		URL  string `json:"url"`
		Data *struct {
			FileName     string `json:"file_name"`
			FileSize     string `json:"file_size"`
			DownloadLink string `json:"download_link"`
		} `json:"data"`
	}
	// A non-JSON body is a transport failure, not an Unrecognized result.
	if err := json.Unmarshal(raw, &body); err != nil {
		return Result{}, fmt.Errorf("%w: non-json body: %v", ErrUnavailable, err)
	}

	if body.URL != "" {
		// Some payloads arrive double-escaped; the literal `\/` survives
		// one decode pass.
		u := strings.ReplaceAll(body.URL, `\/`, "/")
		return Result{Kind: KindDirectLink, URL: u, VideoID: extractVideoID(u)}, nil
	}

	if body.Data != nil {
		r := Result{
			Kind:         KindFileDetails,
			FileName:     body.Data.FileName,
			FileSize:     body.Data.FileSize,
			DownloadLink: body.Data.DownloadLink,
		}
		if r.FileName == "" {
			r.FileName = "Unknown"
		}
		if r.FileSize == "" {
			r.FileSize = "Unknown"
		}
		if r.DownloadLink == "" {
			r.DownloadLink = "Unavailable"
		}
		return r, nil
	}

	return Result{Kind: KindUnrecognized, Raw: raw}, nil
}

// extractVideoID returns the text after the last "id=" marker; without a
// marker the whole URL is the id (matches the upstream player's contract).
func extractVideoID(u string) string {
	if i := strings.LastIndex(u, "id="); i >= 0 {
		return u[i+len("id="):]
	}
	return u
}
