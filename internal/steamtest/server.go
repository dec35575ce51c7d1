// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

// Package steamtest runs an in-process fake of the platform's web domains
// for tests.
//
// Requests keep their production URLs: the round tripper returned by
// Server.RoundTripper sends every request to one httptest server, with the
// original host in the Host header, and the router dispatches on it. Cookies
// therefore land in the client jar under the real domain names.
package steamtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/steamfront/steamfront/internal/transport"
)

// Hosts of the cooperating domains.
const (
	CommunityHost = "steamcommunity.com"
	StoreHost     = "store.steampowered.com"
	HelpHost      = "help.steampowered.com"
	LoginHost     = "login.steampowered.com"
	APIHost       = "api.steampowered.com"
)

// Recorded is one request seen by the server.
type Recorded struct {
	Method  string
	Host    string
	Path    string
	Query   url.Values
	Form    url.Values
	Header  http.Header
	Cookies map[string]string
}

// Server is a host-routed fake.
type Server struct {
	t      testing.TB
	router *mux.Router
	srv    *httptest.Server

	mu       sync.Mutex
	requests []Recorded
}

// New starts a Server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{t: t, router: mux.NewRouter()}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Logf("steamtest: unrouted %s %s%s", r.Method, r.Host, r.URL.Path)
		http.NotFound(w, r)
	})
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cookies := make(map[string]string)
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}

	s.mu.Lock()
	s.requests = append(s.requests, Recorded{
		Method:  r.Method,
		Host:    r.Host,
		Path:    r.URL.Path,
		Query:   r.URL.Query(),
		Form:    r.PostForm,
		Header:  r.Header.Clone(),
		Cookies: cookies,
	})
	s.mu.Unlock()

	s.router.ServeHTTP(w, r)
}

// Handle routes method requests for host and path to h.
func (s *Server) Handle(host, method, path string, h http.HandlerFunc) {
	s.router.Host(host).Methods(method).Path(path).HandlerFunc(h)
}

// Requests returns every recorded request in arrival order.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Recorded(nil), s.requests...)
}

// RequestsTo returns the recorded requests for host and path.
func (s *Server) RequestsTo(host, path string) []Recorded {
	var out []Recorded
	for _, r := range s.Requests() {
		if r.Host == host && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// RoundTripper returns a round tripper that delivers every request to the
// server.
func (s *Server) RoundTripper() http.RoundTripper {
	target, err := url.Parse(s.srv.URL)
	require.NoError(s.t, err)
	return &rewriter{target: target, base: s.srv.Client().Transport}
}

// Transport returns an HTTPTransport wired to the server.
func (s *Server) Transport(opts ...transport.Option) *transport.HTTPTransport {
	s.t.Helper()
	opts = append([]transport.Option{transport.WithRoundTripper(s.RoundTripper())}, opts...)
	tr, err := transport.NewHTTPTransport(opts...)
	require.NoError(s.t, err)
	return tr
}

type rewriter struct {
	target *url.URL
	base   http.RoundTripper
}

func (rw *rewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Host = req.URL.Host
	out.URL.Scheme = rw.target.Scheme
	out.URL.Host = rw.target.Host

	resp, err := rw.base.RoundTrip(out)
	if resp != nil {
		resp.Request = req
	}
	return resp, err
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test response
}
