// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

// Package transport provides the HTTP session the rest of steamfront talks
// through: GET/POST with header, query and form injection, cookies persisted
// per domain across calls, and JSON/text body decoding.
//
// Status codes are never turned into errors here. Callers decide what a 403
// or a 429 means for the resource they asked for.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/samber/oops"
)

// Request describes one HTTP call.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Form   url.Values
	Header http.Header

	// FollowRedirects makes the transport follow 3xx answers. Off by
	// default: most login endpoints answer with redirects whose cookies
	// matter more than their targets.
	FollowRedirects bool
}

// Get builds a GET request.
func Get(rawURL string, query url.Values) Request {
	return Request{Method: http.MethodGet, URL: rawURL, Query: query}
}

// Post builds a form POST request.
func Post(rawURL string, form url.Values) Request {
	return Request{Method: http.MethodPost, URL: rawURL, Form: form}
}

// WithHeader returns a copy of r with the header key set to value.
func (r Request) WithHeader(key, value string) Request {
	h := r.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(key, value)
	r.Header = h
	return r
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// URL is the final URL after redirects.
	URL *url.URL

	// Cookies are the cookies set by the final response.
	Cookies []*http.Cookie
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return oops.Code("TRANSPORT_DECODE_FAILED").
			With("status", r.StatusCode).
			With("url", r.URL.String()).
			Wrap(err)
	}
	return nil
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Cookie returns the cookie named name set by this response.
func (r *Response) Cookie(name string) (*http.Cookie, bool) {
	for _, c := range r.Cookies {
		if c.Name == name && c.Value != "" {
			return c, true
		}
	}
	return nil, false
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// EResult returns the platform result code from the X-eresult header.
func (r *Response) EResult() (int, bool) {
	raw := r.Header.Get("X-eresult")
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Transport is the session capability the authenticator and the community
// client depend on.
type Transport interface {
	// Do executes req and reads the whole response.
	Do(ctx context.Context, req Request) (*Response, error)

	// Cookie returns the value of the cookie name visible to u.
	Cookie(u *url.URL, name string) (string, bool)

	// Cookies returns every cookie visible to u.
	Cookies(u *url.URL) []*http.Cookie

	// SetCookies stores cookies as if u had set them.
	SetCookies(u *url.URL, cookies []*http.Cookie)

	// RemoveCookie drops the cookie name visible to u.
	RemoveCookie(u *url.URL, name string)

	// UserAgent returns the User-Agent sent with every request.
	UserAgent() string
}
