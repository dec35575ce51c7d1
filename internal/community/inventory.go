// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package community

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"

	"github.com/steamfront/steamfront/internal/catalog"
	"github.com/steamfront/steamfront/internal/paginate"
	"github.com/steamfront/steamfront/internal/steamerr"
	"github.com/steamfront/steamfront/internal/transport"
)

// DefaultInventoryPageSize is the page size the community web page uses.
const DefaultInventoryPageSize = 2000

// InventoryOptions tune an inventory walk.
type InventoryOptions struct {
	// Count is the page size. Zero means DefaultInventoryPageSize.
	Count int
	// Predicate filters returned entries. Descriptions are cached
	// regardless.
	Predicate catalog.Predicate
}

type inventoryPage struct {
	Success      int                      `json:"success"`
	Message      string                   `json:"message"`
	Assets       []catalog.RawAsset       `json:"assets"`
	Descriptions []catalog.RawDescription `json:"descriptions"`
	MoreItems    catalog.Flag             `json:"more_items"`
	LastAssetID  catalog.ID               `json:"last_assetid"`
	Total        int                      `json:"total_inventory_count"`
}

// Inventory returns every entry of the container ac owned by steamID.
func (c *Client) Inventory(ctx context.Context, steamID uint64, ac AppContext, opts InventoryOptions) ([]catalog.Entry, error) {
	var out []catalog.Entry
	for entries, err := range c.InventoryPages(ctx, steamID, ac, opts) {
		if err != nil {
			return out, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

// InventoryPages walks the inventory one page at a time. All pages share one
// description cache.
func (c *Client) InventoryPages(ctx context.Context, steamID uint64, ac AppContext, opts InventoryOptions) iter.Seq2[[]catalog.Entry, error] {
	count := opts.Count
	if count <= 0 {
		count = DefaultInventoryPageSize
	}
	resolver := catalog.NewResolver(
		catalog.WithPredicate(opts.Predicate),
		catalog.WithSource("inventory"),
		catalog.WithLogger(c.logger),
	)

	fetch := func(ctx context.Context, cursor paginate.AssetCursor) (inventoryPage, error) {
		return c.fetchInventory(ctx, steamID, ac, count, cursor)
	}
	next := func(page inventoryPage, _ paginate.AssetCursor) (paginate.AssetCursor, bool) {
		return paginate.NextAsset(bool(page.MoreItems), string(page.LastAssetID))
	}
	driver := paginate.New("", fetch, next,
		paginate.WithSource("inventory"), paginate.WithLogger(c.logger))

	return func(yield func([]catalog.Entry, error) bool) {
		for page, err := range driver.Pages(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			entries, err := resolver.ResolvePage(catalog.Page{
				Descriptions: page.Descriptions,
				Assets:       page.Assets,
				OwnerID:      steamID,
			})
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(entries, nil) {
				return
			}
		}
	}
}

// InventoryItem walks the inventory until predicate matches and returns the
// first matching entry. The bool is false when nothing matched.
func (c *Client) InventoryItem(ctx context.Context, steamID uint64, ac AppContext, predicate catalog.Predicate) (catalog.Entry, bool, error) {
	for entries, err := range c.InventoryPages(ctx, steamID, ac, InventoryOptions{Predicate: predicate}) {
		if err != nil {
			return catalog.Entry{}, false, err
		}
		if len(entries) > 0 {
			return entries[0], true, nil
		}
	}
	return catalog.Entry{}, false, nil
}

func (c *Client) fetchInventory(ctx context.Context, steamID uint64, ac AppContext, count int, cursor string) (inventoryPage, error) {
	owner := c.endpoints.Community + "/inventory/" + strconv.FormatUint(steamID, 10) + "/"
	rawURL := owner + fmt.Sprintf("%d/%d", ac.AppID, ac.ContextID)
	query := url.Values{
		"l":     {c.cfg.Language},
		"count": {strconv.Itoa(count)},
	}
	if cursor != "" {
		query.Set("start_assetid", cursor)
	}

	resp, err := c.do(ctx, transport.Get(rawURL, query).WithHeader("Referer", owner))
	if err != nil {
		return inventoryPage{}, err
	}
	if resp.StatusCode == http.StatusForbidden {
		return inventoryPage{}, steamerr.Forbidden("inventory", "inventory of %d is private", steamID)
	}
	if err := checkStatus(resp, rawURL); err != nil {
		return inventoryPage{}, err
	}

	var page inventoryPage
	if err := resp.JSON(&page); err != nil {
		return inventoryPage{}, steamerr.WrapAPI("decode inventory", err)
	}
	if page.Success != 1 {
		msg := page.Message
		if msg == "" {
			msg = "failed to fetch inventory"
		}
		return inventoryPage{}, steamerr.API(resp.Text(), "%s (success %d)", msg, page.Success)
	}
	return page, nil
}
