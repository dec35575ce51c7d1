// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package community

import (
	"bytes"
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/steamfront/steamfront/internal/catalog"
	"github.com/steamfront/steamfront/internal/paginate"
	"github.com/steamfront/steamfront/internal/steamerr"
	"github.com/steamfront/steamfront/internal/transport"
)

// DefaultListingsPageSize is the page size of the market listings page.
const DefaultListingsPageSize = 10

// currencyOffset is added to wallet currency ids in market payloads.
const currencyOffset = 2000

// ItemRef names a market item. It is either ByHandle or ByNameAndContainer.
type ItemRef interface {
	marketItem() (appID uint32, hashName string)
}

// ByHandle refers to the item of an already resolved description.
type ByHandle struct {
	Description *catalog.Description
}

func (r ByHandle) marketItem() (uint32, string) {
	if r.Description == nil {
		return 0, ""
	}
	return r.Description.Key.AppID, r.Description.MarketHashName
}

// ByNameAndContainer refers to an item by market hash name within an app.
type ByNameAndContainer struct {
	MarketHashName string
	AppID          uint32
}

func (r ByNameAndContainer) marketItem() (uint32, string) {
	return r.AppID, r.MarketHashName
}

// ListingsOptions tune a market listings request.
type ListingsOptions struct {
	Query string
	Start int
	// Count is the page size. Zero means DefaultListingsPageSize.
	Count int
	// MaxPages bounds MarketListingsPages. Zero means one page.
	MaxPages int
	// IfModifiedSince makes the request conditional. An unchanged resource
	// fails with a NotModified error.
	IfModifiedSince time.Time
}

// MarketListing is one sell listing of an item.
type MarketListing struct {
	ListingID uint64
	Entry     catalog.Entry

	Currency int
	Price    int64
	Fee      int64

	ConvertedCurrency int
	ConvertedPrice    int64
	ConvertedFee      int64
}

// ListingsPage is one page of market listings.
type ListingsPage struct {
	Listings     []MarketListing
	Total        int
	LastModified time.Time
}

type listingInfo struct {
	ListingID           catalog.ID `json:"listingid"`
	Price               int64      `json:"price"`
	Fee                 int64      `json:"fee"`
	CurrencyID          catalog.ID `json:"currencyid"`
	ConvertedPrice      int64      `json:"converted_price"`
	ConvertedFee        int64      `json:"converted_fee"`
	ConvertedCurrencyID catalog.ID `json:"converted_currencyid"`
	Asset               struct {
		ID        catalog.ID `json:"id"`
		AppID     catalog.ID `json:"appid"`
		ContextID catalog.ID `json:"contextid"`
		Amount    catalog.ID `json:"amount"`
	} `json:"asset"`
}

// orderedListings keeps listinginfo in the order it was served, which is
// price order.
type orderedListings []listingInfo

func (o *orderedListings) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		// An empty result is served as [].
		var empty []json.RawMessage
		return json.Unmarshal(data, &empty)
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return err
		}
		var info listingInfo
		if err := dec.Decode(&info); err != nil {
			return err
		}
		*o = append(*o, info)
	}
	_, err = dec.Token()
	return err
}

// marketAssets is the app -> context -> asset id tree of combined asset and
// description fragments served by market pages.
type marketAssets map[string]map[string]map[string]json.RawMessage

func (m *marketAssets) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, (*map[string]map[string]map[string]json.RawMessage)(m))
}

// page flattens the tree into catalog fragments in a stable order.
func (m marketAssets) page(ownerID uint64) (catalog.Page, error) {
	page := catalog.Page{OwnerID: ownerID}
	for _, app := range sortedKeys(m) {
		for _, ctxID := range sortedKeys(m[app]) {
			for _, assetID := range sortedKeys(m[app][ctxID]) {
				raw := m[app][ctxID][assetID]
				var desc catalog.RawDescription
				if err := json.Unmarshal(raw, &desc); err != nil {
					return catalog.Page{}, steamerr.WrapAPI("decode market description", err)
				}
				var asset catalog.RawAsset
				if err := json.Unmarshal(raw, &asset); err != nil {
					return catalog.Page{}, steamerr.WrapAPI("decode market asset", err)
				}
				if desc.AppID == "" {
					desc.AppID = catalog.ID(app)
				}
				if asset.AppID == "" {
					asset.AppID = catalog.ID(app)
				}
				if asset.ContextID == "" {
					asset.ContextID = catalog.ID(ctxID)
				}
				page.Descriptions = append(page.Descriptions, desc)
				page.Assets = append(page.Assets, asset)
			}
		}
	}
	return page, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

type listingsPayload struct {
	Success     int             `json:"success"`
	Message     string          `json:"message"`
	Start       int             `json:"start"`
	PageSize    int             `json:"pagesize"`
	TotalCount  int             `json:"total_count"`
	Assets      marketAssets    `json:"assets"`
	ListingInfo orderedListings `json:"listinginfo"`
}

// MarketListings fetches the one page of sell listings of ref addressed by
// opts.Start and opts.Count. Page.Total is the listing count the market
// reports, so callers advance Start themselves.
func (c *Client) MarketListings(ctx context.Context, ref ItemRef, opts ListingsOptions) (ListingsPage, error) {
	resolver := catalog.NewResolver(catalog.WithSource("market"), catalog.WithLogger(c.logger))
	return c.fetchListings(ctx, resolver, ref, opts, listingsOffset(opts))
}

// MarketListingsPages walks at most opts.MaxPages pages of listings starting
// at opts.Start. Pages are fetched only as the caller asks for them, and the
// walk ends early once Total is reached.
func (c *Client) MarketListingsPages(ctx context.Context, ref ItemRef, opts ListingsOptions) iter.Seq2[ListingsPage, error] {
	maxPages := max(opts.MaxPages, 1)
	resolver := catalog.NewResolver(catalog.WithSource("market"), catalog.WithLogger(c.logger))
	initial := listingsOffset(opts)

	fetch := func(ctx context.Context, cursor paginate.Offset) (ListingsPage, error) {
		return c.fetchListings(ctx, resolver, ref, opts, cursor)
	}
	next := func(page ListingsPage, cursor paginate.Offset) (paginate.Offset, bool) {
		if (cursor.Start-initial.Start)/initial.Count+1 >= maxPages {
			return cursor, false
		}
		return cursor.NextOffset(page.Total)
	}
	driver := paginate.New(initial, fetch, next,
		paginate.WithSource("market"), paginate.WithLogger(c.logger))
	return driver.Pages(ctx)
}

func listingsOffset(opts ListingsOptions) paginate.Offset {
	count := opts.Count
	if count <= 0 {
		count = DefaultListingsPageSize
	}
	return paginate.Offset{Start: max(opts.Start, 0), Count: count}
}

func (c *Client) fetchListings(ctx context.Context, resolver *catalog.Resolver, ref ItemRef, opts ListingsOptions, cursor paginate.Offset) (ListingsPage, error) {
	appID, hashName := ref.marketItem()
	if hashName == "" {
		return ListingsPage{}, oops.Code("MARKET_ITEM_INVALID").Errorf("market item has no hash name")
	}
	base := c.endpoints.Community + "/market/listings/" + strconv.FormatUint(uint64(appID), 10) + "/" + url.PathEscape(hashName)
	rawURL := base + "/render/"
	query := url.Values{
		"filter":   {opts.Query},
		"country":  {c.cfg.Country},
		"currency": {strconv.Itoa(c.cfg.Currency)},
		"start":    {strconv.Itoa(cursor.Start)},
		"count":    {strconv.Itoa(cursor.Count)},
		"language": {c.cfg.Language},
	}
	req := transport.Get(rawURL, query).WithHeader("Referer", base)
	if !opts.IfModifiedSince.IsZero() {
		req = req.WithHeader("If-Modified-Since", opts.IfModifiedSince.UTC().Format(http.TimeFormat))
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return ListingsPage{}, err
	}
	if err := checkStatus(resp, rawURL); err != nil {
		return ListingsPage{}, err
	}

	var payload listingsPayload
	if err := resp.JSON(&payload); err != nil {
		return ListingsPage{}, steamerr.WrapAPI("decode market listings", err)
	}
	if payload.Success != 1 {
		return ListingsPage{}, steamerr.API(resp.Text(), "failed to fetch item listings (success %d)", payload.Success)
	}

	out := ListingsPage{Total: payload.TotalCount}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			out.LastModified = t
		}
	}
	if payload.TotalCount == 0 || len(payload.Assets) == 0 {
		return out, nil
	}

	entries, err := resolvedAssets(resolver, payload.Assets, 0)
	if err != nil {
		return ListingsPage{}, err
	}

	for _, info := range payload.ListingInfo {
		entry, ok := entries[assetRef(info.Asset.AppID, info.Asset.ContextID, info.Asset.ID)]
		if !ok {
			return ListingsPage{}, steamerr.APITagged(steamerr.TagUnresolvedKey, info,
				"listing %s references unknown asset %s", info.ListingID, info.Asset.ID)
		}
		listingID, err := info.ListingID.Uint()
		if err != nil {
			return ListingsPage{}, steamerr.WrapAPI("parse listing id", err)
		}
		out.Listings = append(out.Listings, MarketListing{
			ListingID:         listingID,
			Entry:             entry,
			Currency:          walletCurrency(info.CurrencyID),
			Price:             info.Price,
			Fee:               info.Fee,
			ConvertedCurrency: walletCurrency(info.ConvertedCurrencyID),
			ConvertedPrice:    info.ConvertedPrice,
			ConvertedFee:      info.ConvertedFee,
		})
	}
	return out, nil
}

// resolvedAssets caches the descriptions of a market asset tree and returns
// its entries keyed by app, context and asset id.
func resolvedAssets(resolver *catalog.Resolver, assets marketAssets, ownerID uint64) (map[string]catalog.Entry, error) {
	page, err := assets.page(ownerID)
	if err != nil {
		return nil, err
	}
	entries, err := resolver.ResolvePage(page)
	if err != nil {
		return nil, err
	}
	byRef := make(map[string]catalog.Entry, len(entries))
	for i, e := range entries {
		a := page.Assets[i]
		byRef[assetRef(a.AppID, a.ContextID, a.Asset())] = e
	}
	return byRef, nil
}

func assetRef(appID, contextID, assetID catalog.ID) string {
	return string(appID) + "/" + string(contextID) + "/" + string(assetID)
}

func walletCurrency(id catalog.ID) int {
	v, err := id.Uint()
	if err != nil || v < currencyOffset {
		return 0
	}
	return int(v - currencyOffset) //nolint:gosec // currency ids are small
}
