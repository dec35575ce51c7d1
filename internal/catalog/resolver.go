// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

// Package catalog joins raw asset and description fragments into catalog
// entries.
//
// A Resolver covers one resolution pass, for example one walk through an
// inventory. Descriptions are cached by identity key in first-seen order, so
// an asset on a later page resolves against a description seen on an earlier
// one, and every entry of the same class shares one Description.
package catalog

import (
	"log/slog"

	"github.com/steamfront/steamfront/internal/steamerr"
)

// Page is one fetched page of fragments.
type Page struct {
	Descriptions []RawDescription
	Assets       []RawAsset
	OwnerID      uint64
}

// Predicate decides whether an entry is returned.
type Predicate func(Entry) bool

// Option configures a Resolver.
type Option func(*Resolver)

// WithPredicate filters the entries ResolvePage returns. Filtered entries
// still populate the cache.
func WithPredicate(p Predicate) Option {
	return func(r *Resolver) {
		r.predicate = p
	}
}

// WithSource labels cache metrics.
func WithSource(name string) Option {
	return func(r *Resolver) {
		r.source = name
	}
}

// WithStrictApp makes a description whose app cannot be determined an
// error instead of a zero app.
func WithStrictApp(strict bool) Option {
	return func(r *Resolver) {
		r.strictApp = strict
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Resolver caches descriptions for one pass. It is not safe for concurrent
// use; pages are resolved in cursor order by a single caller.
type Resolver struct {
	cache     map[Key]*Description
	order     []Key
	predicate Predicate
	source    string
	strictApp bool
	logger    *slog.Logger
}

// NewResolver creates an empty Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		cache:  make(map[Key]*Description),
		source: "unknown",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolvePage caches the page's unseen descriptions, then joins every asset
// in page order. An asset whose key matches no description seen so far in
// this pass is an API error tagged unresolved_identity_key.
func (r *Resolver) ResolvePage(page Page) ([]Entry, error) {
	for _, raw := range page.Descriptions {
		if _, err := r.Describe(raw, page.Assets); err != nil {
			return nil, err
		}
	}

	entries := make([]Entry, 0, len(page.Assets))
	for _, asset := range page.Assets {
		entry, err := r.Join(asset, page.OwnerID)
		if err != nil {
			return nil, err
		}
		if r.predicate != nil && !r.predicate(entry) {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Describe returns the cached description for raw, creating it on first
// sight. The app of a description that does not name one is taken from the
// first companion asset of the same class.
func (r *Resolver) Describe(raw RawDescription, companions []RawAsset) (*Description, error) {
	appID, contextID, err := r.container(raw, companions)
	if err != nil {
		return nil, err
	}

	key, err := parseKey(appID, raw.ClassID, raw.InstanceID)
	if err != nil {
		return nil, steamerr.WrapAPI("parse description key", err)
	}
	if d, ok := r.cache[key]; ok {
		return d, nil
	}

	ctxID, err := contextID.Uint()
	if err != nil {
		return nil, steamerr.WrapAPI("parse description context", err)
	}

	d := newDescription(raw, key, ctxID)
	r.cache[key] = d
	r.order = append(r.order, key)
	RecordDescriptionCached(r.source)
	return d, nil
}

func (r *Resolver) container(raw RawDescription, companions []RawAsset) (ID, ID, error) {
	if raw.AppID != "" {
		contextID := raw.ContextID
		if contextID == "" {
			contextID = companionContext(raw, companions)
		}
		return raw.AppID, contextID, nil
	}

	for _, a := range companions {
		if a.ClassID == raw.ClassID && a.AppID != "" {
			return a.AppID, a.ContextID, nil
		}
	}

	if r.strictApp {
		return "", "", steamerr.APITagged(steamerr.TagUnresolvedApp, raw,
			"cannot determine app for class %s", raw.ClassID)
	}
	r.logger.Debug("description app unresolved, using zero app",
		"source", r.source, "classid", string(raw.ClassID))
	return "", "", nil
}

func companionContext(raw RawDescription, companions []RawAsset) ID {
	for _, a := range companions {
		if a.ClassID == raw.ClassID && a.AppID == raw.AppID {
			return a.ContextID
		}
	}
	return ""
}

// Join resolves a single asset against the cache. An asset falls back to a
// description of the same class cached under the zero app.
func (r *Resolver) Join(asset RawAsset, ownerID uint64) (Entry, error) {
	key, err := KeyOf(asset)
	if err != nil {
		return Entry{}, steamerr.WrapAPI("parse asset key", err)
	}
	d, ok := r.cache[key]
	if !ok {
		d, ok = r.cache[Key{ClassID: key.ClassID, InstanceID: key.InstanceID}]
	}
	if !ok {
		return Entry{}, steamerr.APITagged(steamerr.TagUnresolvedKey, asset,
			"asset %s references unknown description %s", asset.Asset(), key)
	}

	assetID, err := asset.Asset().Uint()
	if err != nil {
		return Entry{}, steamerr.WrapAPI("parse asset id", err)
	}
	contextID, err := asset.ContextID.Uint()
	if err != nil {
		return Entry{}, steamerr.WrapAPI("parse asset context", err)
	}
	if contextID == 0 {
		contextID = d.ContextID
	}
	amount := int64(1)
	if asset.Amount != "" {
		n, err := asset.Amount.Uint()
		if err != nil {
			return Entry{}, steamerr.WrapAPI("parse asset amount", err)
		}
		amount = int64(n) //nolint:gosec // stack sizes are small
	}

	return Entry{
		AssetID:     assetID,
		OwnerID:     ownerID,
		Amount:      amount,
		AppID:       key.AppID,
		ContextID:   contextID,
		Description: d,
	}, nil
}

// Lookup returns the cached description for key.
func (r *Resolver) Lookup(key Key) (*Description, bool) {
	d, ok := r.cache[key]
	return d, ok
}

// Len returns the number of cached descriptions.
func (r *Resolver) Len() int {
	return len(r.cache)
}

// Keys returns the cached keys in first-seen order.
func (r *Resolver) Keys() []Key {
	return append([]Key(nil), r.order...)
}
