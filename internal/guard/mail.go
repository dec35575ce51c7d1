// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package guard

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Inbox reads the most recent guard code delivered by mail. An empty code
// with a nil error means nothing has arrived yet.
type Inbox interface {
	LatestCode(ctx context.Context) (string, error)
}

// MailSource waits for a fresh email guard code to show up in an Inbox.
// A code equal to the one handed out last time is treated as stale.
type MailSource struct {
	inbox    Inbox
	interval time.Duration
	maxWait  time.Duration

	last string
}

// MailOption configures a MailSource.
type MailOption func(*MailSource)

// WithPollInterval sets the first delay between inbox checks. Later delays
// grow exponentially.
func WithPollInterval(d time.Duration) MailOption {
	return func(s *MailSource) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithMaxWait bounds how long Code waits for a code.
func WithMaxWait(d time.Duration) MailOption {
	return func(s *MailSource) {
		if d > 0 {
			s.maxWait = d
		}
	}
}

// NewMailSource creates a MailSource reading from inbox.
func NewMailSource(inbox Inbox, opts ...MailOption) *MailSource {
	s := &MailSource{
		inbox:    inbox,
		interval: 2 * time.Second,
		maxWait:  2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Code implements CodeSource.
func (s *MailSource) Code(ctx context.Context) (string, error) {
	backoff := retry.NewExponential(s.interval)
	backoff = retry.WithCappedDuration(15*time.Second, backoff)
	backoff = retry.WithMaxDuration(s.maxWait, backoff)

	var code string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		latest, err := s.inbox.LatestCode(ctx)
		if err != nil {
			return err
		}
		if latest == "" || latest == s.last {
			return retry.RetryableError(errNoFreshCode)
		}
		code = latest
		return nil
	})
	if err != nil {
		return "", oops.Code("GUARD_CODE_UNAVAILABLE").
			With("max_wait", s.maxWait.String()).
			Wrap(err)
	}

	s.last = code
	return code, nil
}

// CodeType implements Typed.
func (s *MailSource) CodeType() CodeType {
	return CodeTypeEmail
}

var errNoFreshCode = errors.New("no fresh guard code in inbox")
