// Package transport issues HTTP requests against the court sites with
// per-host politeness limits, bounded retry on transient failures, and WAF
// block detection. Parsing of response bodies lives elsewhere; this package
// only returns decoded bytes.
package transport

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"github.com/ngm-data/causelist/internal/resilience"
)

// Request describes one fetch. When Form is non-nil the request is an
// application/x-www-form-urlencoded POST regardless of Method.
type Request struct {
	Method  string
	URL     string
	Query   url.Values
	Form    url.Values
	Referer string
}

// Response carries the decoded body of a completed fetch.
type Response struct {
	StatusCode int
	Body       []byte
	URL        string
}

// Fetcher is implemented by the HTTP transport and by test fakes.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// Options configures the HTTP fetcher.
type Options struct {
	UserAgent   string
	Timeout     time.Duration
	MaxAttempts int        // total attempts per request, including the first
	PerHostRate rate.Limit // requests per second toward one host
	Burst       int
	MaxBodySize int64

	// RetryBackoff overrides the initial retry delay; zero keeps the default.
	RetryBackoff time.Duration
}

// HTTPFetcher implements Fetcher over net/http.
type HTTPFetcher struct {
	client *http.Client
	opts   Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 4
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "causelist/1.0"
	}
	if opts.PerHostRate == 0 {
		opts.PerHostRate = 2
	}
	if opts.Burst == 0 {
		opts.Burst = 2
	}
	if opts.MaxBodySize == 0 {
		opts.MaxBodySize = 8 << 20
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				MaxConnsPerHost:     8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(f.opts.PerHostRate, f.opts.Burst)
		f.limiters[host] = lim
	}
	return lim
}

// Fetch performs the request with politeness limiting and retry. Transient
// statuses (408, 429, 5xx) are retried with backoff up to MaxAttempts; a
// WAF block returns a BlockedError immediately.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = f.opts.MaxAttempts
	if f.opts.RetryBackoff > 0 {
		cfg.InitialBackoff = f.opts.RetryBackoff
	}
	cfg.OnRetry = func(attempt int, err error) {
		zap.L().Warn("fetch retrying",
			zap.String("url", req.URL),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	var resp *Response
	err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		lim := f.limiterFor(req.URL)
		if err := lim.Wait(ctx); err != nil {
			return eris.Wrap(err, "transport: rate limiter wait")
		}
		r, err := f.doOnce(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (f *HTTPFetcher) doOnce(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", f.opts.UserAgent)
	if req.Referer != "" {
		httpReq.Header.Set("Referer", req.Referer)
	}

	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, eris.Wrapf(err, "transport: %s %s", httpReq.Method, req.URL)
	}
	defer httpResp.Body.Close()

	body, err := decodeBody(httpResp, f.opts.MaxBodySize)
	if err != nil {
		return nil, eris.Wrapf(err, "transport: read body from %s", req.URL)
	}

	if Blocked(body) {
		return nil, &resilience.BlockedError{URL: req.URL}
	}

	if resilience.IsTransientHTTPStatus(httpResp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("transport: http %d from %s", httpResp.StatusCode, req.URL),
			httpResp.StatusCode,
		)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		URL:        httpResp.Request.URL.String(),
	}, nil
}

func buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	if req.Form != nil {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(req.Form.Encode()))
		if err != nil {
			return nil, eris.Wrapf(err, "transport: build POST %s", req.URL)
		}
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return httpReq, nil
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "transport: build %s %s", method, req.URL)
	}
	return httpReq, nil
}

// decodeBody reads the response body, converting to UTF-8 when the
// Content-Type declares a different charset. Court sites occasionally serve
// legacy encodings on older pages.
func decodeBody(resp *http.Response, maxSize int64) ([]byte, error) {
	reader := io.Reader(io.LimitReader(resp.Body, maxSize))

	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		if cs, ok := params["charset"]; ok && !strings.EqualFold(cs, "utf-8") {
			if enc, err := htmlindex.Get(cs); err == nil {
				reader = transform.NewReader(reader, enc.NewDecoder())
			}
		}
	}

	return io.ReadAll(reader)
}

// Blocked reports whether a response body is the WAF rejection page the
// supreme court site serves when it decides a client is abusive.
func Blocked(body []byte) bool {
	s := string(body)
	return strings.Contains(s, "The requested URL was rejected") ||
		strings.Contains(s, "support ID is:")
}
