// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package transport_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steamfront/steamfront/internal/transport"
	"github.com/steamfront/steamfront/pkg/errutil"
)

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *url.URL) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return srv, u
}

func TestHTTPTransport_DoGetWithQuery(t *testing.T) {
	var gotQuery url.Values
	var gotUA string
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotUA = r.UserAgent()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":1}`)
	})

	tr, err := transport.NewHTTPTransport(transport.WithUserAgent("steamfront-test"))
	require.NoError(t, err)

	resp, err := tr.Do(context.Background(), transport.Get(srv.URL+"/inventory?l=english", url.Values{"count": {"10"}}))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.OK())
	assert.Equal(t, "english", gotQuery.Get("l"))
	assert.Equal(t, "10", gotQuery.Get("count"))
	assert.Equal(t, "steamfront-test", gotUA)
	assert.Equal(t, "steamfront-test", tr.UserAgent())

	var payload struct {
		Success int `json:"success"`
	}
	require.NoError(t, resp.JSON(&payload))
	assert.Equal(t, 1, payload.Success)
}

func TestHTTPTransport_DoPostForm(t *testing.T) {
	var gotForm url.Values
	var gotContentType string
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		_, _ = io.WriteString(w, "ok")
	})

	tr, err := transport.NewHTTPTransport()
	require.NoError(t, err)

	req := transport.Post(srv.URL, url.Values{"account_name": {"gaben"}}).WithHeader("Referer", "https://example.com/")
	resp, err := tr.Do(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "gaben", gotForm.Get("account_name"))
}

func TestHTTPTransport_StatusIsNotAnError(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-eresult", "15")
		w.WriteHeader(http.StatusForbidden)
	})

	tr, err := transport.NewHTTPTransport()
	require.NoError(t, err)

	resp, err := tr.Do(context.Background(), transport.Get(srv.URL, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, resp.OK())

	eresult, ok := resp.EResult()
	assert.True(t, ok)
	assert.Equal(t, 15, eresult)
}

func TestHTTPTransport_Redirects(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.SetCookie(w, &http.Cookie{Name: "hop", Value: "1", Path: "/"})
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		_, _ = io.WriteString(w, "landed")
	})

	tr, err := transport.NewHTTPTransport()
	require.NoError(t, err)

	t.Run("not followed by default", func(t *testing.T) {
		resp, err := tr.Do(context.Background(), transport.Get(srv.URL+"/start", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		c, ok := resp.Cookie("hop")
		require.True(t, ok)
		assert.Equal(t, "1", c.Value)
	})

	t.Run("followed on request", func(t *testing.T) {
		req := transport.Get(srv.URL+"/start", nil)
		req.FollowRedirects = true
		resp, err := tr.Do(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "landed", resp.Text())
		assert.Equal(t, "/end", resp.URL.Path)
	})
}

func TestHTTPTransport_CookiesPersistAcrossCalls(t *testing.T) {
	var seen string
	srv, u := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/set" {
			http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "abc", Path: "/"})
			return
		}
		if c, err := r.Cookie("sessionid"); err == nil {
			seen = c.Value
		}
	})

	tr, err := transport.NewHTTPTransport()
	require.NoError(t, err)

	_, err = tr.Do(context.Background(), transport.Get(srv.URL+"/set", nil))
	require.NoError(t, err)
	_, err = tr.Do(context.Background(), transport.Get(srv.URL+"/check", nil))
	require.NoError(t, err)
	assert.Equal(t, "abc", seen)

	value, ok := tr.Cookie(u, "sessionid")
	assert.True(t, ok)
	assert.Equal(t, "abc", value)

	tr.RemoveCookie(u, "sessionid")
	_, ok = tr.Cookie(u, "sessionid")
	assert.False(t, ok)
	assert.Empty(t, tr.Export())
}

func TestHTTPTransport_ExportImport(t *testing.T) {
	src, err := transport.NewHTTPTransport()
	require.NoError(t, err)

	community := &url.URL{Scheme: "https", Host: "steamcommunity.com", Path: "/"}
	src.SetCookies(community, []*http.Cookie{
		{Name: "steamLoginSecure", Value: "7656||token", Path: "/", Secure: true, HttpOnly: true, SameSite: http.SameSiteNoneMode},
		{Name: "sessionid", Value: "deadbeef", Path: "/"},
	})

	records := src.Export()
	require.Len(t, records, 2)
	assert.Equal(t, "sessionid", records[0].Name)
	assert.Equal(t, "steamcommunity.com", records[1].Domain)
	assert.True(t, records[1].HostOnly)
	assert.Equal(t, "none", records[1].SameSite)

	dst, err := transport.NewHTTPTransport()
	require.NoError(t, err)
	dst.Import(records)

	value, ok := dst.Cookie(community, "steamLoginSecure")
	require.True(t, ok)
	assert.Equal(t, "7656||token", value)
	assert.Equal(t, records, dst.Export())
}

func TestHTTPTransport_ContextCancelled(t *testing.T) {
	srv, _ := newServer(t, func(_ http.ResponseWriter, _ *http.Request) {
		time.Sleep(50 * time.Millisecond)
	})

	tr, err := transport.NewHTTPTransport(transport.WithRateLimit(100, 1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Do(ctx, transport.Get(srv.URL, nil))
	require.Error(t, err)
}

func TestHTTPTransport_RateLimitPacesRequests(t *testing.T) {
	var hits atomic.Int32
	srv, _ := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	tr, err := transport.NewHTTPTransport(transport.WithRateLimit(0.5, 1))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err = tr.Do(ctx, transport.Get(srv.URL, nil))
	require.NoError(t, err)

	_, err = tr.Do(ctx, transport.Get(srv.URL, nil))
	errutil.AssertErrorCode(t, err, "TRANSPORT_REQUEST_FAILED")
	assert.Equal(t, int32(1), hits.Load(), "second request waits for a token past the deadline")
}
