// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package session_test

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/steamfront/steamfront/internal/session"
	"github.com/steamfront/steamfront/internal/steamerr"
	"github.com/steamfront/steamfront/internal/transport"
)

// memTransport answers transfers in memory. Hosts in missing answer
// immediately without the secure cookie; every other host waits for delay.
type memTransport struct {
	jar     *transport.Jar
	delay   time.Duration
	missing map[string]bool

	mu       sync.Mutex
	forms    map[string]url.Values
	started  atomic.Int32
	finished atomic.Int32
}

func newMemTransport(t *testing.T, delay time.Duration, missing ...string) *memTransport {
	t.Helper()
	jar, err := transport.NewJar()
	require.NoError(t, err)
	m := &memTransport{jar: jar, delay: delay, missing: map[string]bool{}, forms: map[string]url.Values{}}
	for _, h := range missing {
		m.missing[h] = true
	}
	return m
}

func (m *memTransport) Do(_ context.Context, req transport.Request) (*transport.Response, error) {
	m.started.Add(1)
	defer m.finished.Add(1)

	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.forms[u.Hostname()] = req.Form
	m.mu.Unlock()

	resp := &transport.Response{StatusCode: http.StatusOK, Header: http.Header{}, URL: u, Body: []byte(`{"result":1}`)}
	if m.missing[u.Hostname()] {
		return resp, nil
	}
	time.Sleep(m.delay)
	resp.Cookies = []*http.Cookie{
		{Name: session.SecureCookie, Value: "76561197960287930%7C%7Ctoken-" + u.Hostname(), Path: "/", Secure: true},
		{Name: "steamCountry", Value: "US", Path: "/"},
	}
	m.jar.SetCookies(u, resp.Cookies)
	return resp, nil
}

func (m *memTransport) Cookie(u *url.URL, name string) (string, bool) {
	for _, c := range m.jar.Cookies(u) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func (m *memTransport) Cookies(u *url.URL) []*http.Cookie { return m.jar.Cookies(u) }

func (m *memTransport) SetCookies(u *url.URL, cookies []*http.Cookie) { m.jar.SetCookies(u, cookies) }

func (m *memTransport) RemoveCookie(u *url.URL, name string) { m.jar.Remove(u, name) }

func (m *memTransport) UserAgent() string { return "test" }

func instructions(hosts ...string) []session.TransferInstruction {
	out := make([]session.TransferInstruction, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, session.TransferInstruction{
			URL:     "https://" + h + "/login/settoken",
			Params:  map[string]string{"nonce": "nonce-" + h},
			SteamID: "76561197960287930",
		})
	}
	return out
}

func TestPropagate_MergesCookiesAcrossDomains(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := newMemTransport(t, 0)
	endpoints := session.DefaultEndpoints()
	p := session.NewDomainPropagator(tr, endpoints, nil)

	err := p.Propagate(context.Background(), instructions("steamcommunity.com", "store.steampowered.com", "help.steampowered.com"))
	require.NoError(t, err)

	assert.Equal(t, "76561197960287930", tr.forms["store.steampowered.com"].Get("steamID"))
	assert.Equal(t, "nonce-store.steampowered.com", tr.forms["store.steampowered.com"].Get("nonce"))

	s := session.New("gaben", tr)
	for _, base := range []string{endpoints.Community, endpoints.Store, endpoints.Help} {
		token, ok := s.AccessToken(base)
		require.True(t, ok, base)
		assert.Equal(t, "token-"+mustHost(t, base), token)

		sid, ok := s.SessionID(base)
		require.True(t, ok, base)
		assert.Len(t, sid, 24)
	}

	community, _ := s.SessionID(endpoints.Community)
	store, _ := s.SessionID(endpoints.Store)
	assert.Equal(t, community, store, "one sessionid is shared")
}

func TestPropagate_ExtraTransferHostReceivesCookies(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := newMemTransport(t, 0)
	p := session.NewDomainPropagator(tr, session.DefaultEndpoints(), nil)

	require.NoError(t, p.Propagate(context.Background(), instructions("steamcommunity.com", "checkout.steampowered.com")))

	u, err := url.Parse("https://help.steampowered.com")
	require.NoError(t, err)
	v, ok := tr.Cookie(u, session.SecureCookie)
	require.True(t, ok)
	assert.Equal(t, "76561197960287930%7C%7Ctoken-steamcommunity.com", v, "domains without a transfer get the first token")
}

func TestPropagate_ReusesJarSessionID(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := newMemTransport(t, 0)
	community, err := url.Parse("https://steamcommunity.com")
	require.NoError(t, err)
	tr.SetCookies(community, []*http.Cookie{{Name: session.SessionIDCookie, Value: "abc123", Path: "/"}})

	p := session.NewDomainPropagator(tr, session.DefaultEndpoints(), nil)
	require.NoError(t, p.Propagate(context.Background(), instructions("steamcommunity.com")))

	store, err := url.Parse("https://store.steampowered.com")
	require.NoError(t, err)
	sid, ok := tr.Cookie(store, session.SessionIDCookie)
	require.True(t, ok)
	assert.Equal(t, "abc123", sid)
}

func TestPropagate_WaitsForAllTransfersBeforeFailing(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := newMemTransport(t, 30*time.Millisecond, "store.steampowered.com")
	p := session.NewDomainPropagator(tr, session.DefaultEndpoints(), nil)

	err := p.Propagate(context.Background(), instructions("steamcommunity.com", "store.steampowered.com", "help.steampowered.com"))
	require.Error(t, err)

	assert.True(t, steamerr.IsAPI(err))
	assert.Equal(t, steamerr.TagMissingCookie, steamerr.Tag(err))
	assert.Equal(t, int32(3), tr.started.Load())
	assert.Equal(t, int32(3), tr.finished.Load(), "error surfaces only after every transfer settled")

	help, err := url.Parse("https://help.steampowered.com")
	require.NoError(t, err)
	_, ok := tr.Cookie(help, session.SessionIDCookie)
	assert.False(t, ok, "nothing is merged after a failure")
}

func TestPropagate_RejectsEmptyInstructions(t *testing.T) {
	tr := newMemTransport(t, 0)
	p := session.NewDomainPropagator(tr, session.DefaultEndpoints(), nil)

	err := p.Propagate(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, steamerr.IsAPI(err))
	assert.Zero(t, tr.started.Load())
}

func TestTransferInstruction_Host(t *testing.T) {
	assert.Equal(t, "store.steampowered.com", session.TransferInstruction{URL: "https://store.steampowered.com/login/settoken"}.Host())
	assert.Empty(t, session.TransferInstruction{URL: "://bad"}.Host())
}

func TestGenerateSessionID(t *testing.T) {
	sid, err := session.GenerateSessionID(bytes.NewReader([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 255}))
	require.NoError(t, err)
	assert.Equal(t, "000102030405060708090aff", sid)

	_, err = session.GenerateSessionID(bytes.NewReader([]byte{1, 2}))
	assert.Error(t, err)
}

func mustHost(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Hostname()
}
