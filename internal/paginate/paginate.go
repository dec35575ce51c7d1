// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

// Package paginate drives cursor-based page fetching.
//
// A Driver pairs a fetch function with a next-cursor function and exposes the
// resulting pages as a lazy, finite sequence. Completion is decided only by
// the next function or by a repeated cursor, never by page size.
package paginate

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/steamfront/steamfront/internal/paginate")

// ErrExhausted is yielded when a driver is iterated a second time.
var ErrExhausted = errors.New("paginate: pages already consumed")

// FetchFunc fetches the page addressed by cursor.
type FetchFunc[C comparable, P any] func(ctx context.Context, cursor C) (P, error)

// NextFunc inspects a fetched page and returns the cursor of the following
// page and whether one exists.
type NextFunc[C comparable, P any] func(page P, cursor C) (next C, more bool)

// Option configures a Driver.
type Option func(*options)

type options struct {
	source string
	logger *slog.Logger
}

// WithSource labels fetched pages in metrics and spans.
func WithSource(name string) Option {
	return func(o *options) {
		o.source = name
	}
}

// WithLogger sets the logger used for page diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Driver walks the pages of one paginated resource. It is single use.
type Driver[C comparable, P any] struct {
	initial C
	fetch   FetchFunc[C, P]
	next    NextFunc[C, P]
	opts    options
	used    atomic.Bool
}

// New creates a Driver starting at initial.
func New[C comparable, P any](initial C, fetch FetchFunc[C, P], next NextFunc[C, P], opts ...Option) *Driver[C, P] {
	o := options{source: "unknown", logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Driver[C, P]{initial: initial, fetch: fetch, next: next, opts: o}
}

// Pages returns the page sequence. The sequence stops after the first
// error, when the next function reports no more pages, when a later cursor
// is the zero value, or when a cursor repeats. Iterating a second time
// yields ErrExhausted.
func (d *Driver[C, P]) Pages(ctx context.Context) iter.Seq2[P, error] {
	return func(yield func(P, error) bool) {
		var zeroPage P
		if !d.used.CompareAndSwap(false, true) {
			yield(zeroPage, ErrExhausted)
			return
		}

		var zeroCursor C
		seen := make(map[C]struct{})
		cursor := d.initial
		for index := 0; ; index++ {
			if index > 0 && cursor == zeroCursor {
				return
			}
			if _, dup := seen[cursor]; dup {
				d.opts.logger.DebugContext(ctx, "cursor repeated, stopping",
					"source", d.opts.source, "pages", index)
				return
			}
			seen[cursor] = struct{}{}

			if err := ctx.Err(); err != nil {
				yield(zeroPage, err)
				return
			}

			page, err := d.fetchPage(ctx, cursor, index)
			if err != nil {
				yield(zeroPage, err)
				return
			}
			if !yield(page, nil) {
				return
			}

			next, more := d.next(page, cursor)
			if !more {
				return
			}
			cursor = next
		}
	}
}

func (d *Driver[C, P]) fetchPage(ctx context.Context, cursor C, index int) (P, error) {
	ctx, span := tracer.Start(ctx, "paginate.fetch",
		trace.WithAttributes(
			attribute.String("page.source", d.opts.source),
			attribute.Int("page.index", index),
		))
	defer span.End()

	page, err := d.fetch(ctx, cursor)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return page, err
	}
	RecordPageFetched(d.opts.source)
	return page, nil
}

// Collect drains the driver and returns every page. On error the pages
// fetched so far are returned alongside it.
func (d *Driver[C, P]) Collect(ctx context.Context) ([]P, error) {
	var pages []P
	for page, err := range d.Pages(ctx) {
		if err != nil {
			return pages, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}
