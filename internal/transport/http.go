// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// DefaultUserAgent mimics a desktop browser; the community pages serve
// degraded markup to unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// maxBodySize caps how much of a response body is read into memory.
const maxBodySize = 32 << 20

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(t *HTTPTransport) {
		if ua != "" {
			t.userAgent = ua
		}
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(t *HTTPTransport) {
		t.timeout = d
	}
}

// WithProxy routes every request through the given proxy URL.
func WithProxy(proxy *url.URL) Option {
	return func(t *HTTPTransport) {
		t.proxy = proxy
	}
}

// WithRateLimit paces outgoing requests. A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(t *HTTPTransport) {
		if rps <= 0 {
			t.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRoundTripper replaces the base round tripper. Tests use it to point
// the transport at an in-process server.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(t *HTTPTransport) {
		t.base = rt
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTPTransport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// HTTPTransport implements Transport on net/http.
type HTTPTransport struct {
	jar       *Jar
	client    *http.Client
	follower  *http.Client
	base      http.RoundTripper
	proxy     *url.URL
	limiter   *rate.Limiter
	userAgent string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewHTTPTransport creates an HTTPTransport with an empty cookie jar.
func NewHTTPTransport(opts ...Option) (*HTTPTransport, error) {
	jar, err := NewJar()
	if err != nil {
		return nil, err
	}

	t := &HTTPTransport{
		jar:       jar,
		userAgent: DefaultUserAgent,
		timeout:   30 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}

	base := t.base
	if base == nil {
		std, ok := http.DefaultTransport.(*http.Transport)
		if !ok {
			return nil, oops.Code("TRANSPORT_INIT_FAILED").Errorf("default transport is not *http.Transport")
		}
		clone := std.Clone()
		if t.proxy != nil {
			clone.Proxy = http.ProxyURL(t.proxy)
		}
		base = clone
	}
	rt := otelhttp.NewTransport(base)

	t.client = &http.Client{
		Transport: rt,
		Jar:       jar,
		Timeout:   t.timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	t.follower = &http.Client{
		Transport: rt,
		Jar:       jar,
		Timeout:   t.timeout,
	}
	return t, nil
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := t.build(ctx, req)
	if err != nil {
		return nil, err
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, oops.Code("TRANSPORT_REQUEST_FAILED").
				With("method", httpReq.Method).
				With("url", httpReq.URL.Redacted()).
				Wrap(err)
		}
	}

	client := t.client
	if req.FollowRedirects {
		client = t.follower
	}

	start := time.Now()
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, oops.Code("TRANSPORT_REQUEST_FAILED").
			With("method", httpReq.Method).
			With("url", httpReq.URL.Redacted()).
			Wrap(err)
	}
	defer httpResp.Body.Close() //nolint:errcheck // body fully read below

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, oops.Code("TRANSPORT_READ_FAILED").
			With("method", httpReq.Method).
			With("url", httpReq.URL.Redacted()).
			With("status", httpResp.StatusCode).
			Wrap(err)
	}

	t.logger.DebugContext(ctx, "http request",
		"method", httpReq.Method,
		"host", httpReq.URL.Host,
		"path", httpReq.URL.Path,
		"status", httpResp.StatusCode,
		"duration", time.Since(start))

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		URL:        httpResp.Request.URL,
		Cookies:    httpResp.Cookies(),
	}, nil
}

func (t *HTTPTransport) build(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, oops.Code("TRANSPORT_BAD_URL").With("url", req.URL).Wrap(err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if req.Form != nil {
		body = strings.NewReader(req.Form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, oops.Code("TRANSPORT_BAD_URL").With("url", req.URL).Wrap(err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Form != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}
	return httpReq, nil
}

// Cookie implements Transport.
func (t *HTTPTransport) Cookie(u *url.URL, name string) (string, bool) {
	for _, c := range t.jar.Cookies(u) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Cookies implements Transport.
func (t *HTTPTransport) Cookies(u *url.URL) []*http.Cookie {
	return t.jar.Cookies(u)
}

// SetCookies implements Transport.
func (t *HTTPTransport) SetCookies(u *url.URL, cookies []*http.Cookie) {
	t.jar.SetCookies(u, cookies)
}

// RemoveCookie implements Transport.
func (t *HTTPTransport) RemoveCookie(u *url.URL, name string) {
	t.jar.Remove(u, name)
}

// UserAgent implements Transport.
func (t *HTTPTransport) UserAgent() string {
	return t.userAgent
}

// Export returns every stored cookie.
func (t *HTTPTransport) Export() []CookieRecord {
	return t.jar.Export()
}

// Import loads previously exported cookies into the jar.
func (t *HTTPTransport) Import(records []CookieRecord) {
	t.jar.Import(records)
}
