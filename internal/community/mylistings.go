// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package community

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/steamfront/steamfront/internal/catalog"
	"github.com/steamfront/steamfront/internal/paginate"
	"github.com/steamfront/steamfront/internal/steamerr"
	"github.com/steamfront/steamfront/internal/transport"
)

// MaxMyListingsPageSize is the largest page the market accepts.
const MaxMyListingsPageSize = 100

// MyListing is a sell listing of the logged in account.
type MyListing struct {
	ListingID   uint64
	Price       int64
	TimeCreated time.Time
	Status      int
	Active      bool
	Entry       catalog.Entry
}

// BuyOrder is a standing buy order of the logged in account.
type BuyOrder struct {
	OrderID           uint64
	Price             int64
	Quantity          int
	QuantityRemaining int
	Description       *catalog.Description
}

// MyListings groups the account's market activity.
type MyListings struct {
	Active    []MyListing
	ToConfirm []MyListing
	BuyOrders []BuyOrder
}

type myListingRaw struct {
	ListingID   catalog.ID       `json:"listingid"`
	Price       int64            `json:"price"`
	TimeCreated int64            `json:"time_created"`
	Status      int              `json:"status"`
	Active      catalog.Flag     `json:"active"`
	Asset       catalog.RawAsset `json:"asset"`
}

type buyOrderRaw struct {
	OrderID           catalog.ID             `json:"buy_orderid"`
	Price             catalog.ID             `json:"price"`
	Quantity          catalog.ID             `json:"quantity"`
	QuantityRemaining catalog.ID             `json:"quantity_remaining"`
	Description       catalog.RawDescription `json:"description"`
}

type myListingsPayload struct {
	Success           catalog.Flag   `json:"success"`
	PageSize          int            `json:"pagesize"`
	TotalCount        int            `json:"total_count"`
	NumActiveListings int            `json:"num_active_listings"`
	Assets            marketAssets   `json:"assets"`
	Listings          []myListingRaw `json:"listings"`
	ListingsToConfirm []myListingRaw `json:"listings_to_confirm"`
	BuyOrders         []buyOrderRaw  `json:"buy_orders"`
}

// MyListings returns the account's listings and buy orders. Only active
// listings paginate; the other groups arrive with every page.
func (c *Client) MyListings(ctx context.Context, pageSize int) (MyListings, error) {
	if pageSize <= 0 || pageSize > MaxMyListingsPageSize {
		pageSize = MaxMyListingsPageSize
	}
	owner := c.identity.SteamID()
	resolver := catalog.NewResolver(catalog.WithSource("my_listings"), catalog.WithLogger(c.logger))

	fetch := func(ctx context.Context, cursor paginate.Offset) (myListingsPayload, error) {
		return c.fetchMyListings(ctx, cursor)
	}
	next := func(page myListingsPayload, cursor paginate.Offset) (paginate.Offset, bool) {
		if page.NumActiveListings <= page.PageSize {
			return cursor, false
		}
		if page.PageSize > 0 {
			cursor.Count = page.PageSize
		}
		return cursor.NextOffset(page.NumActiveListings)
	}
	driver := paginate.New(paginate.Offset{Count: pageSize}, fetch, next,
		paginate.WithSource("my_listings"), paginate.WithLogger(c.logger))

	var out MyListings
	for page, err := range driver.Pages(ctx) {
		if err != nil {
			return out, err
		}
		entries, err := resolvedAssets(resolver, page.Assets, owner)
		if err != nil {
			return out, err
		}

		active, err := convertMyListings(page.Listings, entries, owner)
		if err != nil {
			return out, err
		}
		toConfirm, err := convertMyListings(page.ListingsToConfirm, entries, owner)
		if err != nil {
			return out, err
		}
		out.Active = append(out.Active, active...)
		out.ToConfirm = append(out.ToConfirm, toConfirm...)

		for _, raw := range page.BuyOrders {
			order, err := convertBuyOrder(resolver, raw)
			if err != nil {
				return out, err
			}
			out.BuyOrders = append(out.BuyOrders, order)
		}
	}
	return out, nil
}

func (c *Client) fetchMyListings(ctx context.Context, cursor paginate.Offset) (myListingsPayload, error) {
	rawURL := c.endpoints.Community + "/market/mylistings"
	query := url.Values{
		"norender": {"1"},
		"start":    {strconv.Itoa(cursor.Start)},
		"count":    {strconv.Itoa(cursor.Count)},
	}
	resp, err := c.do(ctx, transport.Get(rawURL, query))
	if err != nil {
		return myListingsPayload{}, err
	}
	if resp.StatusCode == http.StatusBadRequest {
		return myListingsPayload{}, steamerr.SessionExpired("market listings need a fresh login")
	}
	if err := checkStatus(resp, rawURL); err != nil {
		return myListingsPayload{}, err
	}

	var payload myListingsPayload
	if err := resp.JSON(&payload); err != nil {
		return myListingsPayload{}, steamerr.WrapAPI("decode my listings", err)
	}
	if !payload.Success {
		return myListingsPayload{}, steamerr.API(resp.Text(), "failed to fetch user listings")
	}
	return payload, nil
}

func convertMyListings(raw []myListingRaw, entries map[string]catalog.Entry, owner uint64) ([]MyListing, error) {
	out := make([]MyListing, 0, len(raw))
	for _, l := range raw {
		entry, ok := entries[assetRef(l.Asset.AppID, l.Asset.ContextID, l.Asset.Asset())]
		if !ok {
			return nil, steamerr.APITagged(steamerr.TagUnresolvedKey, l,
				"listing %s references unknown asset %s", l.ListingID, l.Asset.Asset())
		}
		entry.OwnerID = owner
		if amount, err := l.Asset.Amount.Uint(); err == nil && l.Asset.Amount != "" {
			entry.Amount = int64(amount) //nolint:gosec // stack sizes are small
		}
		id, err := l.ListingID.Uint()
		if err != nil {
			return nil, steamerr.WrapAPI("parse listing id", err)
		}
		out = append(out, MyListing{
			ListingID:   id,
			Price:       l.Price,
			TimeCreated: unixTime(l.TimeCreated),
			Status:      l.Status,
			Active:      bool(l.Active),
			Entry:       entry,
		})
	}
	return out, nil
}

func convertBuyOrder(resolver *catalog.Resolver, raw buyOrderRaw) (BuyOrder, error) {
	d, err := resolver.Describe(raw.Description, nil)
	if err != nil {
		return BuyOrder{}, err
	}
	id, err := raw.OrderID.Uint()
	if err != nil {
		return BuyOrder{}, steamerr.WrapAPI("parse buy order id", err)
	}
	price, err := raw.Price.Uint()
	if err != nil {
		return BuyOrder{}, steamerr.WrapAPI("parse buy order price", err)
	}
	quantity, err := raw.Quantity.Uint()
	if err != nil {
		return BuyOrder{}, steamerr.WrapAPI("parse buy order quantity", err)
	}
	remaining, err := raw.QuantityRemaining.Uint()
	if err != nil {
		return BuyOrder{}, steamerr.WrapAPI("parse buy order quantity", err)
	}
	return BuyOrder{
		OrderID:           id,
		Price:             int64(price),   //nolint:gosec // prices fit
		Quantity:          int(quantity),  //nolint:gosec // quantities fit
		QuantityRemaining: int(remaining), //nolint:gosec // quantities fit
		Description:       d,
	}, nil
}
