// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package session

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steamfront/steamfront/internal/transport"
)

func TestSplitSecureCookie(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		token string
		ok    bool
	}{
		{"encoded", "7656%7C%7Ceyj.abc", "eyj.abc", true},
		{"lowercase encoded", "7656%7c%7ceyj.abc", "eyj.abc", true},
		{"plain", "7656||eyj.abc", "eyj.abc", true},
		{"no separator", "eyj.abc", "", false},
		{"empty token", "7656%7C%7C", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, ok := splitSecureCookie(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "logged_in", StateLoggedIn.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(99).String())
}

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	tr, err := transport.NewHTTPTransport()
	require.NoError(t, err)
	return New("gaben", tr, opts...)
}

func TestNew_Defaults(t *testing.T) {
	s := newTestSession(t, WithSteamID(42), WithRefreshToken("r"))

	assert.Equal(t, StateIdle, s.State())
	assert.False(t, s.IsLoggedIn())
	assert.Equal(t, uint64(42), s.SteamID())
	assert.Equal(t, "r", s.RefreshToken())
	assert.NotZero(t, s.ID)
	assert.Equal(t, DefaultEndpoints(), s.Endpoints())
}

func TestSession_SetAccessTokenWritesCommunityCookie(t *testing.T) {
	s := newTestSession(t, WithSteamID(76561197960287930))

	s.SetAccessToken("eyj.token")

	raw, ok := s.Transport().Cookie(mustURL(DefaultEndpoints().Community), SecureCookie)
	require.True(t, ok)
	assert.Equal(t, "76561197960287930%7C%7Ceyj.token", raw)

	token, ok := s.CommunityAccessToken()
	require.True(t, ok)
	assert.Equal(t, "eyj.token", token)

	_, ok = s.AccessToken(DefaultEndpoints().Store)
	assert.False(t, ok)
}

func TestSession_StateTransitions(t *testing.T) {
	s := newTestSession(t)

	s.setTokens(7, "refresh", "access")
	assert.Equal(t, StateTokensIssued, s.State())
	assert.Equal(t, uint64(7), s.SteamID())
	assert.Equal(t, "access", s.IssuedAccessToken())

	s.markLoggedIn()
	assert.True(t, s.IsLoggedIn())

	s.fail(assert.AnError)
	assert.False(t, s.IsLoggedIn())
	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, assert.AnError, s.FailureReason())

	s.markLoggedIn()
	assert.NoError(t, s.FailureReason())

	s.markLoggedOut()
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, "refresh", s.RefreshToken())
}

func TestEndpoints_AuthService(t *testing.T) {
	assert.Equal(t, "https://api.steampowered.com/IAuthenticationService/PollAuthSessionStatus/v1",
		DefaultEndpoints().authService("PollAuthSessionStatus"))
}

func TestRecordTransfer(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterMetrics(reg)

	before := testutil.ToFloat64(DomainTransfers.WithLabelValues("example.test", ResultFailure))
	RecordTransfer("example.test", ResultFailure)
	assert.InDelta(t, before+1, testutil.ToFloat64(DomainTransfers.WithLabelValues("example.test", ResultFailure)), 0)
}
