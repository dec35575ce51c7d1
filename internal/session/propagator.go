// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/steamfront/steamfront/internal/steamerr"
	"github.com/steamfront/steamfront/internal/transport"
)

// TransferInstruction tells the client to hand its login nonce to one
// cooperating domain.
type TransferInstruction struct {
	URL     string
	Params  map[string]string
	SteamID string
}

// Host returns the instruction's target host.
func (ti TransferInstruction) Host() string {
	u, err := url.Parse(ti.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Propagator carries an issued login to every cooperating domain.
type Propagator interface {
	Propagate(ctx context.Context, instructions []TransferInstruction) error
}

// DomainPropagator performs all transfers concurrently and waits for every
// one of them to settle before deciding the outcome. A failing transfer does
// not cancel its siblings.
type DomainPropagator struct {
	transport transport.Transport
	endpoints Endpoints
	logger    *slog.Logger
	random    io.Reader
}

// NewDomainPropagator creates a DomainPropagator.
func NewDomainPropagator(t transport.Transport, endpoints Endpoints, logger *slog.Logger) *DomainPropagator {
	if logger == nil {
		logger = slog.Default()
	}
	return &DomainPropagator{
		transport: t,
		endpoints: endpoints,
		logger:    logger,
		random:    rand.Reader,
	}
}

// Propagate implements Propagator. It returns the first transfer error once
// all transfers have finished; cookies are merged across domains only when
// every transfer succeeded.
func (p *DomainPropagator) Propagate(ctx context.Context, instructions []TransferInstruction) error {
	if len(instructions) == 0 {
		return steamerr.API(nil, "no transfer instructions to propagate")
	}

	responses := make([][]*http.Cookie, len(instructions))
	var g errgroup.Group
	for i, ins := range instructions {
		g.Go(func() error {
			cookies, err := p.transfer(ctx, ins)
			responses[i] = cookies
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return p.merge(instructions, responses)
}

func (p *DomainPropagator) transfer(ctx context.Context, ins TransferInstruction) ([]*http.Cookie, error) {
	host := ins.Host()
	ctx, span := tracer.Start(ctx, "session.transfer",
		trace.WithAttributes(attribute.String("transfer.domain", host)))
	defer span.End()

	form := url.Values{}
	for k, v := range ins.Params {
		form.Set(k, v)
	}
	form.Set("steamID", ins.SteamID)

	resp, err := p.transport.Do(ctx, transport.Post(ins.URL, form))
	if err != nil {
		err = steamerr.WrapAPI("domain transfer", oops.With("domain", host).Wrap(err))
		p.recordFailure(ctx, span, host, err)
		return nil, err
	}

	if _, ok := resp.Cookie(SecureCookie); !ok {
		err := steamerr.MissingCookie(host, SecureCookie, resp.Text())
		p.recordFailure(ctx, span, host, err)
		return nil, err
	}

	RecordTransfer(host, ResultSuccess)
	p.logger.DebugContext(ctx, "domain transfer complete", "domain", host)
	return resp.Cookies, nil
}

func (p *DomainPropagator) recordFailure(ctx context.Context, span trace.Span, host string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	RecordTransfer(host, ResultFailure)
	p.logger.WarnContext(ctx, "domain transfer failed", "domain", host, "error", err)
}

// merge stores every response cookie for every cooperating domain. A domain
// keeps the cookie its own transfer returned; other domains receive the
// first value seen. When no response set a sessionid, one is taken from the
// jar or generated.
func (p *DomainPropagator) merge(instructions []TransferInstruction, responses [][]*http.Cookie) error {
	domains := p.domains(instructions)

	var order []string
	first := make(map[string]*http.Cookie)
	own := make(map[string]map[string]*http.Cookie)
	for i, cookies := range responses {
		host := instructions[i].Host()
		for _, c := range cookies {
			if c.Value == "" {
				continue
			}
			if _, seen := first[c.Name]; !seen {
				first[c.Name] = c
				order = append(order, c.Name)
			}
			if own[host] == nil {
				own[host] = make(map[string]*http.Cookie)
			}
			if _, seen := own[host][c.Name]; !seen {
				own[host][c.Name] = c
			}
		}
	}

	if _, ok := first[SessionIDCookie]; !ok {
		sid, err := p.sessionID()
		if err != nil {
			return err
		}
		first[SessionIDCookie] = &http.Cookie{Name: SessionIDCookie, Value: sid, Path: "/", Secure: true, SameSite: http.SameSiteNoneMode}
		order = append(order, SessionIDCookie)
	}

	for _, d := range domains {
		u := mustURL(d)
		host := u.Hostname()
		copies := make([]*http.Cookie, 0, len(order))
		for _, name := range order {
			c := first[name]
			if mine, ok := own[host][name]; ok {
				c = mine
			}
			copies = append(copies, hostCookie(c))
		}
		p.transport.SetCookies(u, copies)
	}
	return nil
}

func (p *DomainPropagator) domains(instructions []TransferInstruction) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(base string) {
		host := mustURL(base).Hostname()
		if host == "" {
			return
		}
		if _, dup := seen[host]; dup {
			return
		}
		seen[host] = struct{}{}
		out = append(out, base)
	}
	for _, d := range p.endpoints.Domains() {
		add(d)
	}
	for _, ins := range instructions {
		u, err := url.Parse(ins.URL)
		if err != nil || u.Host == "" {
			continue
		}
		add(u.Scheme + "://" + u.Host)
	}
	return out
}

func (p *DomainPropagator) sessionID() (string, error) {
	if sid, ok := p.transport.Cookie(mustURL(p.endpoints.Community), SessionIDCookie); ok && sid != "" {
		return sid, nil
	}
	return GenerateSessionID(p.random)
}

// GenerateSessionID returns 12 random bytes as lowercase hex.
func GenerateSessionID(random io.Reader) (string, error) {
	buf := make([]byte, 12)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", oops.Code("SESSION_ID_FAILED").Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}

// hostCookie copies c without its domain attribute so it is stored for the
// exact host it is set on.
func hostCookie(c *http.Cookie) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Expires:  c.Expires,
		MaxAge:   c.MaxAge,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
		SameSite: c.SameSite,
	}
}
