// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

// Package session implements the web login protocol and the session state it
// produces.
//
// A Session is created idle and moves through the login states driven by an
// Authenticator:
//
//	Idle -> ChallengeRequested -> CredentialsSubmitted -> GuardCodeSubmitted
//	     -> PollingStatus -> TokensIssued -> PropagatingDomains -> LoggedIn
//
// Any step can end in Failed, which keeps the reason. Once tokens are issued
// the remaining steps ignore cancellation of the caller's context, so a login
// never stops halfway through domain propagation.
//
// A Session must not be logged in concurrently; callers serialize logins.
package session

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/steamfront/steamfront/internal/transport"
)

// Cookie names used by the web login.
const (
	SecureCookie    = "steamLoginSecure"
	SessionIDCookie = "sessionid"
)

// State is a login state.
type State int

// Login states.
const (
	StateIdle State = iota
	StateChallengeRequested
	StateCredentialsSubmitted
	StateGuardCodeSubmitted
	StatePollingStatus
	StateTokensIssued
	StatePropagatingDomains
	StateLoggedIn
	StateFailed
)

var stateNames = [...]string{
	StateIdle:                 "idle",
	StateChallengeRequested:   "challenge_requested",
	StateCredentialsSubmitted: "credentials_submitted",
	StateGuardCodeSubmitted:   "guard_code_submitted",
	StatePollingStatus:        "polling_status",
	StateTokensIssued:         "tokens_issued",
	StatePropagatingDomains:   "propagating_domains",
	StateLoggedIn:             "logged_in",
	StateFailed:               "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Endpoints are the base URLs of the cooperating domains.
type Endpoints struct {
	Community string
	Store     string
	Help      string
	Login     string
	API       string
}

// DefaultEndpoints returns the production endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Community: "https://steamcommunity.com",
		Store:     "https://store.steampowered.com",
		Help:      "https://help.steampowered.com",
		Login:     "https://login.steampowered.com",
		API:       "https://api.steampowered.com",
	}
}

// Domains returns the cooperating web domains that share session cookies.
func (e Endpoints) Domains() []string {
	return []string{e.Community, e.Store, e.Help}
}

func (e Endpoints) authService(method string) string {
	return e.API + "/IAuthenticationService/" + method + "/v1"
}

func mustURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{Scheme: "https", Host: raw, Path: "/"}
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u
}

// Session is the authenticated state for one account.
type Session struct {
	ID        ulid.ULID
	Username  string
	transport transport.Transport
	endpoints Endpoints

	mu           sync.RWMutex
	steamID      uint64
	refreshToken string
	accessToken  string
	loggedIn     bool
	state        State
	failure      error
}

// Option configures a Session.
type Option func(*Session)

// WithSteamID sets the account's 64-bit id when it is already known.
func WithSteamID(id uint64) Option {
	return func(s *Session) {
		s.steamID = id
	}
}

// WithRefreshToken seeds a refresh token from earlier storage.
func WithRefreshToken(token string) Option {
	return func(s *Session) {
		s.refreshToken = token
	}
}

// WithEndpoints overrides the domain base URLs.
func WithEndpoints(e Endpoints) Option {
	return func(s *Session) {
		s.endpoints = e
	}
}

// New creates an idle Session talking through t.
func New(username string, t transport.Transport, opts ...Option) *Session {
	s := &Session{
		ID:        ulid.Make(),
		Username:  username,
		transport: t,
		endpoints: DefaultEndpoints(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transport returns the transport the session talks through.
func (s *Session) Transport() transport.Transport {
	return s.transport
}

// Endpoints returns the domain base URLs.
func (s *Session) Endpoints() Endpoints {
	return s.endpoints
}

// State returns the current login state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsLoggedIn reports whether the last login completed and no logout
// followed.
func (s *Session) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggedIn
}

// FailureReason returns the error that moved the session to Failed.
func (s *Session) FailureReason() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failure
}

// SteamID returns the account's 64-bit id, zero until known.
func (s *Session) SteamID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steamID
}

// RefreshToken returns the refresh token, empty when absent.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// SetRefreshToken replaces the refresh token.
func (s *Session) SetRefreshToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshToken = token
}

// IssuedAccessToken returns the access token handed out by the status poll.
// Domain specific tokens live in cookies; see AccessToken.
func (s *Session) IssuedAccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// SessionID returns the sessionid cookie for domain.
func (s *Session) SessionID(domain string) (string, bool) {
	return s.transport.Cookie(mustURL(domain), SessionIDCookie)
}

// AccessToken returns the JWT access token stored in the secure cookie of
// domain. The cookie holds "steamid||token", usually url-encoded.
func (s *Session) AccessToken(domain string) (string, bool) {
	raw, ok := s.transport.Cookie(mustURL(domain), SecureCookie)
	if !ok {
		return "", false
	}
	return splitSecureCookie(raw)
}

// CommunityAccessToken returns the access token of the community domain.
func (s *Session) CommunityAccessToken() (string, bool) {
	return s.AccessToken(s.endpoints.Community)
}

// SetAccessToken writes token into the community secure cookie.
func (s *Session) SetAccessToken(token string) {
	value := strconv.FormatUint(s.SteamID(), 10) + "%7C%7C" + token
	s.transport.SetCookies(mustURL(s.endpoints.Community), []*http.Cookie{{
		Name:     SecureCookie,
		Value:    value,
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	}})
}

func splitSecureCookie(raw string) (string, bool) {
	for _, sep := range []string{"%7C%7C", "%7c%7c", "||"} {
		if _, token, found := strings.Cut(raw, sep); found && token != "" {
			return token, true
		}
	}
	return "", false
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateFailed
	s.failure = err
	s.loggedIn = false
}

func (s *Session) markLoggedIn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateLoggedIn
	s.failure = nil
	s.loggedIn = true
}

func (s *Session) markLoggedOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.loggedIn = false
}

func (s *Session) setTokens(steamID uint64, refresh, access string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if steamID != 0 {
		s.steamID = steamID
	}
	s.refreshToken = refresh
	s.accessToken = access
	s.state = StateTokensIssued
}

func (s *Session) setSteamID(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steamID = id
}
