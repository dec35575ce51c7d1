// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/steamfront/steamfront/internal/cipher"
	"github.com/steamfront/steamfront/internal/guard"
	"github.com/steamfront/steamfront/internal/steamerr"
	"github.com/steamfront/steamfront/internal/transport"
	"github.com/steamfront/steamfront/pkg/errutil"
)

var tracer = otel.Tracer("github.com/steamfront/steamfront/internal/session")

// Login step names, reported on auth errors and spans.
const (
	StepInitSession = "init_session"
	StepRSAKey      = "rsa_key"
	StepBeginAuth   = "begin_auth"
	StepGuardCode   = "guard_code"
	StepPollStatus  = "poll_status"
	StepFinalize    = "finalize"
	StepPropagate   = "propagate"
)

// eresultOK is the platform's success result code.
const eresultOK = 1

// AuthChallenge is the server state of one login attempt.
type AuthChallenge struct {
	ClientID  string
	RequestID string
	SteamID   string
	PublicKey cipher.PublicKey
}

// AuthOption configures an Authenticator.
type AuthOption func(*Authenticator)

// WithCipher replaces the credential cipher.
func WithCipher(c cipher.Cipher) AuthOption {
	return func(a *Authenticator) {
		a.cipher = c
	}
}

// WithPropagator replaces the cross-domain propagator.
func WithPropagator(p Propagator) AuthOption {
	return func(a *Authenticator) {
		a.propagator = p
	}
}

// WithInitSession controls the warm-up request to the community landing
// page that obtains a sessionid before the login starts. On by default.
func WithInitSession(enabled bool) AuthOption {
	return func(a *Authenticator) {
		a.initSession = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) AuthOption {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Authenticator drives the web login protocol for one Session.
type Authenticator struct {
	session     *Session
	password    string
	codes       guard.CodeSource
	cipher      cipher.Cipher
	propagator  Propagator
	initSession bool
	logger      *slog.Logger
}

// NewAuthenticator creates an Authenticator for s. codes supplies the guard
// code during login.
func NewAuthenticator(s *Session, password string, codes guard.CodeSource, opts ...AuthOption) *Authenticator {
	a := &Authenticator{
		session:     s,
		password:    password,
		codes:       codes,
		cipher:      cipher.NewRSACipher(),
		initSession: true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.propagator == nil {
		a.propagator = NewDomainPropagator(s.transport, s.endpoints, a.logger)
	}
	return a
}

// Session returns the session being authenticated.
func (a *Authenticator) Session() *Session {
	return a.session
}

// Login performs the full login sequence. On success the session is
// LoggedIn; on failure it is Failed and the error is returned. Cancelling ctx
// aborts the login only until tokens are issued.
func (a *Authenticator) Login(ctx context.Context) (err error) {
	attempt := ulid.Make()
	start := time.Now()
	logger := a.logger.With("username", a.session.Username, "session", a.session.ID.String(), "attempt", attempt.String())

	ctx, span := tracer.Start(ctx, "session.login",
		trace.WithAttributes(attribute.String("login.attempt", attempt.String())))
	defer span.End()

	defer func() {
		if err != nil {
			a.session.fail(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			RecordLogin(ResultFailure, time.Since(start))
			errutil.LogError(logger, "login failed", err)
			return
		}
		RecordLogin(ResultSuccess, time.Since(start))
		logger.InfoContext(ctx, "login complete", "duration", time.Since(start))
	}()

	logger.InfoContext(ctx, "login started")

	if a.initSession {
		if err := a.step(ctx, StepInitSession, func(ctx context.Context) error {
			_, err := a.session.transport.Do(ctx, transport.Get(a.session.endpoints.Community, nil))
			return err
		}); err != nil {
			return steamerr.WrapAuth(StepInitSession, err)
		}
	}

	a.transition(ctx, logger, StateChallengeRequested)
	var key cipher.PublicKey
	if err := a.step(ctx, StepRSAKey, func(ctx context.Context) (err error) {
		key, err = a.fetchPublicKey(ctx)
		return err
	}); err != nil {
		return err
	}

	var challenge AuthChallenge
	if err := a.step(ctx, StepBeginAuth, func(ctx context.Context) (err error) {
		challenge, err = a.beginAuth(ctx, key)
		return err
	}); err != nil {
		return err
	}
	a.transition(ctx, logger, StateCredentialsSubmitted)

	if err := a.step(ctx, StepGuardCode, func(ctx context.Context) error {
		return a.submitGuardCode(ctx, challenge)
	}); err != nil {
		return err
	}
	a.transition(ctx, logger, StateGuardCodeSubmitted)

	a.transition(ctx, logger, StatePollingStatus)
	if err := a.step(ctx, StepPollStatus, func(ctx context.Context) error {
		return a.pollStatus(ctx, challenge)
	}); err != nil {
		return err
	}
	logger.InfoContext(ctx, "login state changed", "state", StateTokensIssued.String())

	// Tokens are issued: finish even if the caller gives up.
	ctx = context.WithoutCancel(ctx)

	var transfers []TransferInstruction
	if err := a.step(ctx, StepFinalize, func(ctx context.Context) (err error) {
		transfers, err = a.finalize(ctx, challenge)
		return err
	}); err != nil {
		return err
	}

	a.transition(ctx, logger, StatePropagatingDomains)
	if err := a.step(ctx, StepPropagate, func(ctx context.Context) error {
		return a.propagator.Propagate(ctx, transfers)
	}); err != nil {
		return err
	}

	a.session.markLoggedIn()
	logger.InfoContext(ctx, "login state changed", "state", StateLoggedIn.String())
	return nil
}

func (a *Authenticator) transition(ctx context.Context, logger *slog.Logger, state State) {
	a.session.setState(state)
	logger.InfoContext(ctx, "login state changed", "state", state.String())
}

func (a *Authenticator) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "session.login."+name)
	defer span.End()

	a.logger.DebugContext(ctx, "login step", "step", name)
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (a *Authenticator) apiHeaders(req transport.Request) transport.Request {
	return req.WithHeader("Referer", a.session.endpoints.Community+"/").
		WithHeader("Origin", a.session.endpoints.Community)
}

func (a *Authenticator) fetchPublicKey(ctx context.Context) (cipher.PublicKey, error) {
	req := transport.Get(a.session.endpoints.authService("GetPasswordRSAPublicKey"),
		url.Values{"account_name": {a.session.Username}})
	resp, err := a.session.transport.Do(ctx, a.apiHeaders(req))
	if err != nil {
		return cipher.PublicKey{}, steamerr.WrapAuth(StepRSAKey, err)
	}

	var payload struct {
		Response struct {
			Modulus   string      `json:"publickey_mod"`
			Exponent  string      `json:"publickey_exp"`
			Timestamp json.Number `json:"timestamp"`
		} `json:"response"`
	}
	if err := resp.JSON(&payload); err != nil {
		return cipher.PublicKey{}, steamerr.Auth(StepRSAKey, resp.Text(), "could not decode rsa key response")
	}

	key, err := cipher.ParsePublicKey(payload.Response.Modulus, payload.Response.Exponent, payload.Response.Timestamp.String())
	if err != nil {
		return cipher.PublicKey{}, steamerr.Auth(StepRSAKey, resp.Text(), "could not obtain rsa key: %v", err)
	}
	return key, nil
}

func (a *Authenticator) beginAuth(ctx context.Context, key cipher.PublicKey) (AuthChallenge, error) {
	encrypted, err := a.cipher.Encrypt(a.password, key)
	if err != nil {
		return AuthChallenge{}, steamerr.WrapAuth(StepBeginAuth, err)
	}

	form := url.Values{
		"account_name":         {a.session.Username},
		"encrypted_password":   {encrypted},
		"encryption_timestamp": {key.Timestamp},
		"remember_login":       {"true"},
		"persistence":          {"1"},
		"website_id":           {"Community"},
		"device_friendly_name": {a.session.transport.UserAgent()},
		"platform_type":        {"2"},
	}
	req := transport.Post(a.session.endpoints.authService("BeginAuthSessionViaCredentials"), form)
	resp, err := a.session.transport.Do(ctx, a.apiHeaders(req))
	if err != nil {
		return AuthChallenge{}, steamerr.WrapAuth(StepBeginAuth, err)
	}

	var payload struct {
		Response struct {
			ClientID  json.Number `json:"client_id"`
			RequestID string      `json:"request_id"`
			SteamID   json.Number `json:"steamid"`
		} `json:"response"`
	}
	if err := resp.JSON(&payload); err != nil {
		return AuthChallenge{}, steamerr.Auth(StepBeginAuth, resp.Text(), "could not decode auth session response")
	}
	r := payload.Response
	if r.ClientID == "" || r.RequestID == "" || r.SteamID == "" {
		eresult, _ := resp.EResult()
		return AuthChallenge{}, steamerr.Auth(StepBeginAuth, resp.Text(),
			"credentials rejected (eresult %d)", eresult)
	}

	steamID, err := strconv.ParseUint(r.SteamID.String(), 10, 64)
	if err != nil {
		return AuthChallenge{}, steamerr.Auth(StepBeginAuth, resp.Text(), "malformed steamid %q", r.SteamID)
	}
	a.session.setSteamID(steamID)

	return AuthChallenge{
		ClientID:  r.ClientID.String(),
		RequestID: r.RequestID,
		SteamID:   r.SteamID.String(),
		PublicKey: key,
	}, nil
}

func (a *Authenticator) submitGuardCode(ctx context.Context, challenge AuthChallenge) error {
	if a.codes == nil {
		return steamerr.Auth(StepGuardCode, nil, "no guard code source configured")
	}
	code, err := a.codes.Code(ctx)
	if err != nil {
		return steamerr.WrapAuth(StepGuardCode, err)
	}

	form := url.Values{
		"client_id": {challenge.ClientID},
		"steamid":   {challenge.SteamID},
		"code_type": {strconv.Itoa(int(guard.TypeOf(a.codes)))},
		"code":      {code},
	}
	req := transport.Post(a.session.endpoints.authService("UpdateAuthSessionWithSteamGuardCode"), form)
	resp, err := a.session.transport.Do(ctx, a.apiHeaders(req))
	if err != nil {
		return steamerr.WrapAuth(StepGuardCode, err)
	}
	if !resp.OK() {
		return steamerr.Auth(StepGuardCode, resp.Text(), "guard code rejected with status %d", resp.StatusCode)
	}
	if eresult, ok := resp.EResult(); ok && eresult != eresultOK {
		return steamerr.Auth(StepGuardCode, resp.Text(), "guard code rejected (eresult %d)", eresult)
	}
	return nil
}

func (a *Authenticator) pollStatus(ctx context.Context, challenge AuthChallenge) error {
	form := url.Values{
		"client_id":  {challenge.ClientID},
		"request_id": {challenge.RequestID},
	}
	req := transport.Post(a.session.endpoints.authService("PollAuthSessionStatus"), form)
	resp, err := a.session.transport.Do(ctx, a.apiHeaders(req))
	if err != nil {
		return steamerr.WrapAuth(StepPollStatus, err)
	}

	var payload struct {
		Response *struct {
			RefreshToken         string `json:"refresh_token"`
			AccessToken          string `json:"access_token"`
			HadRemoteInteraction bool   `json:"had_remote_interaction"`
		} `json:"response"`
	}
	if err := resp.JSON(&payload); err != nil {
		return steamerr.Auth(StepPollStatus, resp.Text(), "could not decode poll response")
	}
	if payload.Response == nil {
		return steamerr.Auth(StepPollStatus, resp.Text(), "poll response is empty")
	}
	if payload.Response.HadRemoteInteraction {
		return steamerr.Auth(StepPollStatus, resp.Text(), "login was interacted with remotely")
	}
	if payload.Response.RefreshToken == "" {
		return steamerr.Auth(StepPollStatus, resp.Text(), "no refresh token issued")
	}

	steamID, _ := strconv.ParseUint(challenge.SteamID, 10, 64) //nolint:errcheck // validated in beginAuth
	a.session.setTokens(steamID, payload.Response.RefreshToken, payload.Response.AccessToken)
	return nil
}

func (a *Authenticator) finalize(ctx context.Context, challenge AuthChallenge) ([]TransferInstruction, error) {
	sessionID, _ := a.session.SessionID(a.session.endpoints.Community)
	form := url.Values{
		"nonce":     {a.session.RefreshToken()},
		"sessionid": {sessionID},
		"redir":     {a.session.endpoints.Community + "/login/home/?goto="},
	}
	req := transport.Post(a.session.endpoints.Login+"/jwt/finalizelogin", form).
		WithHeader("Accept", "application/json, text/plain, */*").
		WithHeader("Sec-Fetch-Site", "cross-site").
		WithHeader("Sec-Fetch-Mode", "cors").
		WithHeader("Sec-Fetch-Dest", "empty")
	resp, err := a.session.transport.Do(ctx, a.apiHeaders(req))
	if err != nil {
		return nil, steamerr.WrapAuth(StepFinalize, err)
	}

	var payload struct {
		Error        json.RawMessage `json:"error"`
		SteamID      json.Number     `json:"steamID"`
		TransferInfo []struct {
			URL    string                     `json:"url"`
			Params map[string]json.RawMessage `json:"params"`
		} `json:"transfer_info"`
	}
	if err := resp.JSON(&payload); err != nil {
		return nil, steamerr.Auth(StepFinalize, resp.Text(), "malformed finalize response")
	}
	if hasError(payload.Error) {
		return nil, steamerr.Auth(StepFinalize, resp.Text(), "finalize rejected: %s", string(payload.Error))
	}
	if len(payload.TransferInfo) == 0 {
		return nil, steamerr.Auth(StepFinalize, resp.Text(), "finalize response has no transfer info")
	}

	steamID := payload.SteamID.String()
	if steamID == "" {
		steamID = challenge.SteamID
	}

	out := make([]TransferInstruction, 0, len(payload.TransferInfo))
	for _, ti := range payload.TransferInfo {
		params := make(map[string]string, len(ti.Params))
		for k, raw := range ti.Params {
			params[k] = paramString(raw)
		}
		out = append(out, TransferInstruction{URL: ti.URL, Params: params, SteamID: steamID})
	}
	return out, nil
}

func hasError(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "0", `""`, "false":
		return false
	default:
		return true
	}
}

func paramString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
