// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package session

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"

	"github.com/steamfront/steamfront/internal/steamerr"
	"github.com/steamfront/steamfront/internal/transport"
)

// TokenClaims are the claims of an access or refresh token that matter to
// a client.
type TokenClaims struct {
	Subject   string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token is expired at now. Tokens without an
// expiry never expire.
func (c TokenClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// DecodeToken reads the claims of a JWT without verifying its signature.
// The client cannot verify platform tokens; it only needs their lifetimes.
func DecodeToken(raw string) (TokenClaims, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return TokenClaims{}, oops.Code("TOKEN_MALFORMED").Wrap(err)
	}

	out := TokenClaims{
		Subject:  claims.Subject,
		Audience: []string(claims.Audience),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// IsAccessTokenExpired reports whether the community access token is
// missing, malformed or expired at now.
func (s *Session) IsAccessTokenExpired(now time.Time) bool {
	token, ok := s.CommunityAccessToken()
	if !ok {
		return true
	}
	claims, err := DecodeToken(token)
	return err != nil || claims.Expired(now)
}

// IsRefreshTokenExpired reports whether the refresh token is missing,
// malformed or expired at now.
func (s *Session) IsRefreshTokenExpired(now time.Time) bool {
	token := s.RefreshToken()
	if token == "" {
		return true
	}
	claims, err := DecodeToken(token)
	return err != nil || claims.Expired(now)
}

// IsSessionAlive reports whether domain still treats the session as logged
// in. It is a heuristic: the landing page of a logged in session mentions
// the account name.
func (a *Authenticator) IsSessionAlive(ctx context.Context, domain string) (bool, error) {
	if a.session.Username == "" {
		return false, nil
	}
	req := transport.Get(domain, nil)
	req.FollowRedirects = true
	resp, err := a.session.transport.Do(ctx, req)
	if err != nil {
		return false, steamerr.WrapAPI("session alive check", err)
	}
	return strings.Contains(resp.Text(), a.session.Username), nil
}

// RefreshAccessToken asks the login domain for a fresh community access
// token and returns it.
func (a *Authenticator) RefreshAccessToken(ctx context.Context) (string, error) {
	req := transport.Get(a.session.endpoints.Login+"/jwt/refresh",
		url.Values{"redir": {a.session.endpoints.Community}})
	req.FollowRedirects = true
	if _, err := a.session.transport.Do(ctx, req); err != nil {
		return "", steamerr.WrapAPI("refresh access token", err)
	}

	token, ok := a.session.CommunityAccessToken()
	if !ok {
		return "", steamerr.API(nil, "no access token after refresh")
	}
	return token, nil
}

// Logout ends the web session. Tokens are kept.
func (a *Authenticator) Logout(ctx context.Context) error {
	sessionID, _ := a.session.SessionID(a.session.endpoints.Community)
	req := transport.Post(a.session.endpoints.Community+"/login/logout/",
		url.Values{"sessionid": {sessionID}}).
		WithHeader("Referer", a.session.endpoints.Community+"/")
	if _, err := a.session.transport.Do(ctx, req); err != nil {
		return steamerr.WrapAPI("logout", err)
	}
	a.session.markLoggedOut()
	a.logger.InfoContext(ctx, "logged out", "username", a.session.Username)
	return nil
}

// WebAPIToken fetches the web API token the community pages use for
// service calls.
func (a *Authenticator) WebAPIToken(ctx context.Context) (string, error) {
	req := transport.Get(a.session.endpoints.Community+"/pointssummary/ajaxgetasyncconfig", nil)
	resp, err := a.session.transport.Do(ctx, req)
	if err != nil {
		return "", steamerr.WrapAPI("web api token", err)
	}
	if resp.StatusCode == http.StatusForbidden || !strings.Contains(resp.Header.Get("Content-Type"), "json") {
		return "", steamerr.Forbidden("web_api_token", "web api token refused with status %d", resp.StatusCode)
	}

	var payload struct {
		Success int `json:"success"`
		Data    struct {
			Token string `json:"webapi_token"`
		} `json:"data"`
	}
	if err := resp.JSON(&payload); err != nil {
		return "", steamerr.WrapAPI("decode web api token", err)
	}
	if payload.Success != 1 || payload.Data.Token == "" {
		return "", steamerr.API(resp.Text(), "web api token not issued")
	}
	return payload.Data.Token, nil
}

// CookieStore is implemented by transports whose cookies can be exported
// and imported.
type CookieStore interface {
	Export() []transport.CookieRecord
	Import(records []transport.CookieRecord)
}

// Restore loads saved cookies and checks whether the session they describe
// is still alive. A dead session triggers a fresh login. The returned bool
// is true when the restored cookies were alive.
func (a *Authenticator) Restore(ctx context.Context, records []transport.CookieRecord) (bool, error) {
	store, ok := a.session.transport.(CookieStore)
	if !ok {
		return false, oops.Code("SESSION_RESTORE_UNSUPPORTED").
			Errorf("transport %T cannot import cookies", a.session.transport)
	}
	store.Import(records)

	alive, err := a.IsSessionAlive(ctx, a.session.endpoints.Community)
	if err != nil {
		return false, err
	}
	if alive {
		a.session.markLoggedIn()
		a.logger.InfoContext(ctx, "session restored", "username", a.session.Username)
		return true, nil
	}

	a.logger.InfoContext(ctx, "restored session is dead, logging in", "username", a.session.Username)
	return false, a.Login(ctx)
}
