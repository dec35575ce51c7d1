// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package guard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/steamfront/steamfront/internal/transport"
)

// QueryTimeURL is the endpoint reporting the authentication server clock.
const QueryTimeURL = "https://api.steampowered.com/ITwoFactorService/QueryTime/v0001/"

// TimeQuerier reports the remote server time.
type TimeQuerier interface {
	ServerTime(ctx context.Context) (time.Time, error)
}

// APITimeQuerier asks the two factor service for its clock.
type APITimeQuerier struct {
	Transport transport.Transport
	URL       string
}

// ServerTime implements TimeQuerier.
func (q APITimeQuerier) ServerTime(ctx context.Context) (time.Time, error) {
	endpoint := q.URL
	if endpoint == "" {
		endpoint = QueryTimeURL
	}

	resp, err := q.Transport.Do(ctx, transport.Post(endpoint, url.Values{"steamid": {"0"}}))
	if err != nil {
		return time.Time{}, err
	}
	if !resp.OK() {
		return time.Time{}, oops.Code("GUARD_TIME_QUERY_FAILED").
			With("status", resp.StatusCode).
			Errorf("query time answered %d", resp.StatusCode)
	}

	var payload struct {
		Response struct {
			ServerTime json.Number `json:"server_time"`
		} `json:"response"`
	}
	if err := resp.JSON(&payload); err != nil {
		return time.Time{}, err
	}
	secs, err := strconv.ParseInt(string(payload.Response.ServerTime), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, oops.Code("GUARD_TIME_QUERY_FAILED").
			With("server_time", string(payload.Response.ServerTime)).
			Errorf("query time response has no usable server_time")
	}
	return time.Unix(secs, 0), nil
}

// TimeAligner tracks the offset between the local clock and the server
// clock. TOTP codes are only accepted inside a narrow window, so codes are
// computed from aligned time.
type TimeAligner struct {
	querier TimeQuerier
	clock   func() time.Time
	logger  *slog.Logger

	mu      sync.Mutex
	offset  time.Duration
	aligned bool
}

// AlignerOption configures a TimeAligner.
type AlignerOption func(*TimeAligner)

// WithClock replaces the local clock.
func WithClock(clock func() time.Time) AlignerOption {
	return func(a *TimeAligner) {
		a.clock = clock
	}
}

// WithAlignerLogger sets the logger used to report alignment failures.
func WithAlignerLogger(logger *slog.Logger) AlignerOption {
	return func(a *TimeAligner) {
		a.logger = logger
	}
}

// NewTimeAligner creates a TimeAligner backed by querier.
func NewTimeAligner(querier TimeQuerier, opts ...AlignerOption) *TimeAligner {
	a := &TimeAligner{
		querier: querier,
		clock:   time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Align queries the server and stores the clock offset. On failure the
// previous offset is kept.
func (a *TimeAligner) Align(ctx context.Context) error {
	local := a.clock()
	remote, err := a.querier.ServerTime(ctx)
	if err != nil {
		return oops.Code("GUARD_TIME_ALIGN_FAILED").Wrap(err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.offset = remote.Sub(local.Truncate(time.Second))
	a.aligned = true
	return nil
}

// Offset returns the current server minus local offset.
func (a *TimeAligner) Offset() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.offset
}

// Now returns server-aligned time, aligning once on first use. An alignment
// failure is logged and local time is used.
func (a *TimeAligner) Now(ctx context.Context) time.Time {
	a.mu.Lock()
	aligned := a.aligned
	a.mu.Unlock()

	if !aligned {
		if err := a.Align(ctx); err != nil {
			a.logger.WarnContext(ctx, "time alignment failed, using local clock", "error", err)
		}
	}
	return a.clock().Add(a.Offset())
}
