// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

// Package community reads inventories, market listings and trades through an
// authenticated session. Every operation runs one catalog pass: descriptions
// are cached per call and shared by the entries that reference them.
package community

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/steamfront/steamfront/internal/session"
	"github.com/steamfront/steamfront/internal/steamerr"
	"github.com/steamfront/steamfront/internal/transport"
)

// Identity is what the client needs to know about the logged in account.
// *session.Session implements it.
type Identity interface {
	SteamID() uint64
	CommunityAccessToken() (string, bool)
	IsAccessTokenExpired(now time.Time) bool
}

// Config holds locale and market settings sent with requests.
type Config struct {
	Language string
	Currency int
	Country  string
	// APIKey is used for web API calls when no access token is available.
	APIKey string
}

// DefaultConfig returns english, USD, US.
func DefaultConfig() Config {
	return Config{Language: "english", Currency: 1, Country: "US"}
}

// Option configures a Client.
type Option func(*Client)

// WithConfig replaces the locale and market settings.
func WithConfig(cfg Config) Option {
	return func(c *Client) {
		c.cfg = cfg
	}
}

// WithEndpoints overrides the domain base URLs.
func WithEndpoints(e session.Endpoints) Option {
	return func(c *Client) {
		c.endpoints = e
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock sets the clock used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// Client reads community data through a transport that carries the
// session's cookies.
type Client struct {
	transport transport.Transport
	identity  Identity
	endpoints session.Endpoints
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Client.
func New(t transport.Transport, id Identity, opts ...Option) *Client {
	c := &Client{
		transport: t,
		identity:  id,
		endpoints: session.DefaultEndpoints(),
		cfg:       DefaultConfig(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromSession creates a Client for a logged in session.
func FromSession(s *session.Session, opts ...Option) *Client {
	opts = append([]Option{WithEndpoints(s.Endpoints())}, opts...)
	return New(s.Transport(), s, opts...)
}

// AppContext addresses one inventory container: an app and one of its
// contexts.
type AppContext struct {
	AppID     uint32
	ContextID uint64
}

// Well known containers.
var (
	CS2   = AppContext{AppID: 730, ContextID: 2}
	Dota2 = AppContext{AppID: 570, ContextID: 2}
	TF2   = AppContext{AppID: 440, ContextID: 2}
	Steam = AppContext{AppID: 753, ContextID: 6}
)

func (ac AppContext) String() string {
	return fmt.Sprintf("%d/%d", ac.AppID, ac.ContextID)
}

// ParseAppContext parses "app/context".
func ParseAppContext(s string) (AppContext, error) {
	appRaw, ctxRaw, ok := strings.Cut(s, "/")
	if !ok {
		return AppContext{}, oops.Code("APP_CONTEXT_INVALID").With("value", s).
			Errorf("expected app/context, got %q", s)
	}
	app, err := strconv.ParseUint(appRaw, 10, 32)
	if err != nil {
		return AppContext{}, oops.Code("APP_CONTEXT_INVALID").With("value", s).Wrap(err)
	}
	ctxID, err := strconv.ParseUint(ctxRaw, 10, 64)
	if err != nil {
		return AppContext{}, oops.Code("APP_CONTEXT_INVALID").With("value", s).Wrap(err)
	}
	return AppContext{AppID: uint32(app), ContextID: ctxID}, nil
}

func (c *Client) do(ctx context.Context, req transport.Request) (*transport.Response, error) {
	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		return nil, steamerr.WrapAPI(req.Method+" "+req.URL, err)
	}
	return resp, nil
}

// checkStatus maps the status codes every community page shares.
func checkStatus(resp *transport.Response, rawURL string) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return steamerr.RateLimited(rawURL)
	case resp.StatusCode == http.StatusNotModified:
		return steamerr.NotModified(rawURL)
	case !resp.OK():
		return steamerr.API(resp.Text(), "%s answered with status %d", rawURL, resp.StatusCode)
	}
	return nil
}

// webAPI calls a web API method authorized with the community access token,
// or the API key when no token is present.
func (c *Client) webAPI(ctx context.Context, method string, params url.Values, out any) error {
	rawURL := c.endpoints.API + "/" + method + "/v1"
	params.Set("language", c.cfg.Language)
	usingKey := false
	if token, ok := c.identity.CommunityAccessToken(); ok {
		params.Set("access_token", token)
	} else if c.cfg.APIKey != "" {
		params.Set("key", c.cfg.APIKey)
		usingKey = true
	}

	resp, err := c.do(ctx, transport.Get(rawURL, params))
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusForbidden {
		if !usingKey && c.identity.IsAccessTokenExpired(c.now()) {
			return steamerr.SessionExpired("access token expired")
		}
		credential := "access token"
		if usingKey {
			credential = "web api key"
		}
		return steamerr.Forbidden(method, "%s is invalid", credential)
	}
	if err := checkStatus(resp, rawURL); err != nil {
		return err
	}

	if !hasPayload(resp.Body) {
		if eresult, ok := resp.EResult(); ok && eresult != 1 {
			return steamerr.API(resp.Text(), "%s failed (eresult %d)", method, eresult)
		}
		return steamerr.API(resp.Text(), "%s returned no data", method)
	}
	if err := resp.JSON(out); err != nil {
		return steamerr.WrapAPI("decode "+method, err)
	}
	return nil
}

// hasPayload reports whether a web API body carries data: more than one top
// level field, or a non-empty "response" object.
func hasPayload(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return false
	}
	if len(top) > 1 {
		return true
	}
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(top["response"], &inner); err != nil {
		return false
	}
	return len(inner) > 0
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
