// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package community_test

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steamfront/steamfront/internal/catalog"
	"github.com/steamfront/steamfront/internal/community"
	"github.com/steamfront/steamfront/internal/steamerr"
	"github.com/steamfront/steamfront/internal/steamtest"
)

const listingsPath = "/market/listings/730/Clutch-Case/render/"

const listingsBody = `{
  "success": 1,
  "start": 0,
  "pagesize": 10,
  "total_count": 3,
  "assets": {"730": {"2": {
    "501": {"id": "501", "appid": 730, "contextid": "2", "classid": "9", "instanceid": "0", "amount": "1", "market_hash_name": "Clutch-Case", "name": "Clutch Case"},
    "502": {"id": "502", "appid": 730, "contextid": "2", "classid": "9", "instanceid": "0", "amount": "1", "market_hash_name": "Clutch-Case", "name": "Clutch Case"},
    "503": {"id": "503", "appid": 730, "contextid": "2", "classid": "9", "instanceid": "0", "amount": "0", "market_hash_name": "Clutch-Case", "name": "Clutch Case"}
  }}},
  "listinginfo": {
    "9002": {"listingid": "9002", "price": 100, "fee": 15, "currencyid": "2001", "converted_price": 90, "converted_fee": 13, "converted_currencyid": "2003",
             "asset": {"id": "502", "appid": 730, "contextid": "2", "amount": "1"}},
    "9001": {"listingid": "9001", "price": 120, "fee": 18, "currencyid": "2001", "converted_price": 110, "converted_fee": 16, "converted_currencyid": "2003",
             "asset": {"id": "501", "appid": 730, "contextid": "2", "amount": "1"}},
    "9003": {"listingid": "9003", "price": 0, "fee": 0, "currencyid": "2001", "converted_price": 0, "converted_fee": 0, "converted_currencyid": "2003",
             "asset": {"id": "503", "appid": 730, "contextid": "2", "amount": "0"}}
  }
}`

func TestMarketListings_KeepsServedOrder(t *testing.T) {
	srv, c := newClient(t, fakeIdentity{})
	modified := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv.Handle(steamtest.CommunityHost, http.MethodGet, listingsPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Last-Modified", modified.Format(http.TimeFormat))
		_, _ = fmt.Fprint(w, listingsBody)
	})

	page, err := c.MarketListings(context.Background(),
		community.ByNameAndContainer{MarketHashName: "Clutch-Case", AppID: 730}, community.ListingsOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.True(t, modified.Equal(page.LastModified))

	require.Len(t, page.Listings, 3)
	first, second, sold := page.Listings[0], page.Listings[1], page.Listings[2]
	assert.Equal(t, uint64(9003), sold.ListingID)
	assert.Equal(t, int64(0), sold.Entry.Amount, "zero amount listings are kept")
	assert.Equal(t, uint64(9002), first.ListingID)
	assert.Equal(t, uint64(9001), second.ListingID)
	assert.Equal(t, uint64(502), first.Entry.AssetID)
	assert.Equal(t, 1, first.Currency)
	assert.Equal(t, 3, first.ConvertedCurrency)
	assert.Equal(t, int64(100), first.Price)
	assert.Equal(t, int64(15), first.Fee)
	assert.Same(t, first.Entry.Description, second.Entry.Description)

	reqs := srv.RequestsTo(steamtest.CommunityHost, listingsPath)
	require.Len(t, reqs, 1)
	assert.Equal(t, "0", reqs[0].Query.Get("start"))
	assert.Equal(t, "10", reqs[0].Query.Get("count"))
	assert.Equal(t, "1", reqs[0].Query.Get("currency"))
	assert.Equal(t, "US", reqs[0].Query.Get("country"))
}

func TestMarketListings_ByHandle(t *testing.T) {
	srv, c := newClient(t, fakeIdentity{})
	srv.Handle(steamtest.CommunityHost, http.MethodGet, listingsPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, listingsBody)
	})

	handle := &catalog.Description{Key: catalog.Key{AppID: 730, ClassID: 9}, MarketHashName: "Clutch-Case"}
	page, err := c.MarketListings(context.Background(), community.ByHandle{Description: handle}, community.ListingsOptions{})
	require.NoError(t, err)
	assert.Len(t, page.Listings, 3)
}

func emptyListings(total int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		steamtest.WriteJSON(w, http.StatusOK, map[string]any{
			"success":     1,
			"start":       start,
			"total_count": total,
			"assets":      []any{},
			"listinginfo": []any{},
		})
	}
}

func TestMarketListings_FetchesOnePage(t *testing.T) {
	srv, c := newClient(t, fakeIdentity{})
	srv.Handle(steamtest.CommunityHost, http.MethodGet, listingsPath, emptyListings(5000))

	page, err := c.MarketListings(context.Background(),
		community.ByNameAndContainer{MarketHashName: "Clutch-Case", AppID: 730},
		community.ListingsOptions{Start: 40, Count: 5})
	require.NoError(t, err)
	assert.Equal(t, 5000, page.Total)

	reqs := srv.RequestsTo(steamtest.CommunityHost, listingsPath)
	require.Len(t, reqs, 1)
	assert.Equal(t, "40", reqs[0].Query.Get("start"))
	assert.Equal(t, "5", reqs[0].Query.Get("count"))
}

func TestMarketListingsPages_OffsetPagination(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		maxPages int
		starts   []string
	}{
		{"defaults to one page", 5000, 0, []string{"0"}},
		{"bounded by max pages", 5000, 3, []string{"0", "10", "20"}},
		{"stops at total", 15, 10, []string{"0", "10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, c := newClient(t, fakeIdentity{})
			srv.Handle(steamtest.CommunityHost, http.MethodGet, listingsPath, emptyListings(tt.total))

			for _, err := range c.MarketListingsPages(context.Background(),
				community.ByNameAndContainer{MarketHashName: "Clutch-Case", AppID: 730},
				community.ListingsOptions{MaxPages: tt.maxPages}) {
				require.NoError(t, err)
			}

			reqs := srv.RequestsTo(steamtest.CommunityHost, listingsPath)
			require.Len(t, reqs, len(tt.starts))
			for i, want := range tt.starts {
				assert.Equal(t, want, reqs[i].Query.Get("start"))
			}
		})
	}
}

func TestMarketListings_NotModified(t *testing.T) {
	srv, c := newClient(t, fakeIdentity{})
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv.Handle(steamtest.CommunityHost, http.MethodGet, listingsPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-Modified-Since") == since.Format(http.TimeFormat) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.MarketListings(context.Background(),
		community.ByNameAndContainer{MarketHashName: "Clutch-Case", AppID: 730},
		community.ListingsOptions{IfModifiedSince: since})
	require.Error(t, err)
	assert.True(t, steamerr.IsNotModified(err))
}

func TestMarketListings_RequiresHashName(t *testing.T) {
	_, c := newClient(t, fakeIdentity{})

	_, err := c.MarketListings(context.Background(), community.ByHandle{}, community.ListingsOptions{})
	assert.Error(t, err)
}

func TestMyListings(t *testing.T) {
	srv, c := newClient(t, fakeIdentity{})
	srv.Handle(steamtest.CommunityHost, http.MethodGet, "/market/mylistings", func(w http.ResponseWriter, r *http.Request) {
		start := r.URL.Query().Get("start")
		assetID := "700" + start
		steamtest.WriteJSON(w, http.StatusOK, map[string]any{
			"success":             true,
			"pagesize":            2,
			"total_count":         3,
			"num_active_listings": 3,
			"assets": map[string]any{"730": map[string]any{"2": map[string]any{
				assetID: map[string]any{"id": assetID, "appid": 730, "contextid": "2", "classid": "9", "instanceid": "0", "amount": "1", "market_hash_name": "Clutch-Case"},
			}}},
			"listings": []map[string]any{{
				"listingid": "80" + start, "price": 250, "time_created": 1700000000, "status": 2, "active": 1,
				"asset": map[string]any{"id": assetID, "appid": 730, "contextid": "2", "classid": "9", "instanceid": "0", "amount": "1"},
			}},
			"listings_to_confirm": []any{},
			"buy_orders": []map[string]any{{
				"buy_orderid": "5" + start, "price": "300", "quantity": "2", "quantity_remaining": "1",
				"description": map[string]any{"appid": 730, "classid": "9", "instanceid": "0", "market_hash_name": "Clutch-Case"},
			}},
		})
	})

	got, err := c.MyListings(context.Background(), 2)
	require.NoError(t, err)

	reqs := srv.RequestsTo(steamtest.CommunityHost, "/market/mylistings")
	require.Len(t, reqs, 2)
	assert.Equal(t, "0", reqs[0].Query.Get("start"))
	assert.Equal(t, "2", reqs[1].Query.Get("start"))
	assert.Equal(t, "1", reqs[0].Query.Get("norender"))

	require.Len(t, got.Active, 2)
	assert.Equal(t, uint64(800), got.Active[0].ListingID)
	assert.Equal(t, owner, got.Active[0].Entry.OwnerID)
	assert.True(t, got.Active[0].Active)
	assert.Equal(t, time.Unix(1700000000, 0), got.Active[0].TimeCreated)
	assert.Empty(t, got.ToConfirm)

	require.Len(t, got.BuyOrders, 2)
	assert.Equal(t, int64(300), got.BuyOrders[0].Price)
	assert.Equal(t, 1, got.BuyOrders[0].QuantityRemaining)
	assert.Same(t, got.Active[0].Entry.Description, got.BuyOrders[1].Description)
}

func TestMyListings_SessionExpired(t *testing.T) {
	srv, c := newClient(t, fakeIdentity{})
	srv.Handle(steamtest.CommunityHost, http.MethodGet, "/market/mylistings", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.MyListings(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, steamerr.IsSessionExpired(err))
}
