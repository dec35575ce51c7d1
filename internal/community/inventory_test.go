// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package community_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steamfront/steamfront/internal/catalog"
	"github.com/steamfront/steamfront/internal/community"
	"github.com/steamfront/steamfront/internal/steamerr"
	"github.com/steamfront/steamfront/internal/steamtest"
)

const owner = uint64(76561197960287930)

type fakeIdentity struct {
	token   string
	expired bool
}

func (f fakeIdentity) SteamID() uint64 { return owner }

func (f fakeIdentity) CommunityAccessToken() (string, bool) { return f.token, f.token != "" }

func (f fakeIdentity) IsAccessTokenExpired(time.Time) bool { return f.expired }

func newClient(t *testing.T, id fakeIdentity) (*steamtest.Server, *community.Client) {
	t.Helper()
	srv := steamtest.New(t)
	return srv, community.New(srv.Transport(), id)
}

const inventoryPath = "/inventory/76561197960287930/730/2"

func TestInventory_FollowsAssetCursor(t *testing.T) {
	srv, c := newClient(t, fakeIdentity{})
	srv.Handle(steamtest.CommunityHost, http.MethodGet, inventoryPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start_assetid") == "" {
			steamtest.WriteJSON(w, http.StatusOK, map[string]any{
				"success": 1,
				"assets": []map[string]any{
					{"appid": 730, "contextid": "2", "assetid": "111", "classid": "1", "instanceid": "0", "amount": "1"},
				},
				"descriptions": []map[string]any{
					{"appid": 730, "classid": "1", "instanceid": "0", "name": "AK-47", "market_hash_name": "AK-47 | Redline", "tradable": 1},
				},
				"more_items":            1,
				"last_assetid":          "111",
				"total_inventory_count": 2,
			})
			return
		}
		steamtest.WriteJSON(w, http.StatusOK, map[string]any{
			"success": 1,
			"assets": []map[string]any{
				{"appid": 730, "contextid": "2", "assetid": "222", "classid": "1", "instanceid": "0", "amount": "1"},
			},
			"descriptions":          []map[string]any{},
			"total_inventory_count": 2,
		})
	})

	entries, err := c.Inventory(context.Background(), owner, community.CS2, community.InventoryOptions{Count: 1})
	require.NoError(t, err)

	reqs := srv.RequestsTo(steamtest.CommunityHost, inventoryPath)
	require.Len(t, reqs, 2)
	assert.Empty(t, reqs[0].Query.Get("start_assetid"))
	assert.Equal(t, "111", reqs[1].Query.Get("start_assetid"))
	assert.Equal(t, "english", reqs[0].Query.Get("l"))
	assert.Equal(t, "1", reqs[0].Query.Get("count"))

	require.Len(t, entries, 2)
	assert.Equal(t, uint64(111), entries[0].AssetID)
	assert.Equal(t, uint64(222), entries[1].AssetID)
	assert.Same(t, entries[0].Description, entries[1].Description, "page two joins the page one description")
	assert.Equal(t, owner, entries[1].OwnerID)
	assert.Equal(t, "AK-47 | Redline", entries[1].Description.MarketHashName)
}

func TestInventory_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]any
		check  func(error) bool
	}{
		{"private", http.StatusForbidden, map[string]any{}, steamerr.IsForbidden},
		{"rate limited", http.StatusTooManyRequests, map[string]any{}, steamerr.IsRateLimited},
		{"server error", http.StatusInternalServerError, map[string]any{}, steamerr.IsAPI},
		{"unsuccessful", http.StatusOK, map[string]any{"success": 2, "message": "busy"}, steamerr.IsAPI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, c := newClient(t, fakeIdentity{})
			srv.Handle(steamtest.CommunityHost, http.MethodGet, inventoryPath, func(w http.ResponseWriter, _ *http.Request) {
				steamtest.WriteJSON(w, tt.status, tt.body)
			})

			_, err := c.Inventory(context.Background(), owner, community.CS2, community.InventoryOptions{})
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestInventory_UnresolvedKeyFailsPage(t *testing.T) {
	srv, c := newClient(t, fakeIdentity{})
	srv.Handle(steamtest.CommunityHost, http.MethodGet, inventoryPath, func(w http.ResponseWriter, _ *http.Request) {
		steamtest.WriteJSON(w, http.StatusOK, map[string]any{
			"success": 1,
			"assets": []map[string]any{
				{"appid": 730, "contextid": "2", "assetid": "111", "classid": "404", "instanceid": "0"},
			},
		})
	})

	_, err := c.Inventory(context.Background(), owner, community.CS2, community.InventoryOptions{})
	require.Error(t, err)
	assert.Equal(t, steamerr.TagUnresolvedKey, steamerr.Tag(err))
}

func TestInventoryItem_StopsAtFirstMatch(t *testing.T) {
	srv, c := newClient(t, fakeIdentity{})
	srv.Handle(steamtest.CommunityHost, http.MethodGet, inventoryPath, func(w http.ResponseWriter, _ *http.Request) {
		steamtest.WriteJSON(w, http.StatusOK, map[string]any{
			"success": 1,
			"assets": []map[string]any{
				{"appid": 730, "contextid": "2", "assetid": "1", "classid": "10", "instanceid": "0"},
				{"appid": 730, "contextid": "2", "assetid": "2", "classid": "20", "instanceid": "0"},
			},
			"descriptions": []map[string]any{
				{"appid": 730, "classid": "10", "instanceid": "0", "market_hash_name": "Sticker"},
				{"appid": 730, "classid": "20", "instanceid": "0", "market_hash_name": "Case"},
			},
			"more_items":   1,
			"last_assetid": "2",
		})
	})

	entry, ok, err := c.InventoryItem(context.Background(), owner, community.CS2, func(e catalog.Entry) bool {
		return e.Description.MarketHashName == "Case"
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), entry.AssetID)
	assert.Len(t, srv.RequestsTo(steamtest.CommunityHost, inventoryPath), 1)
}

func TestInventoryPages_StopEarly(t *testing.T) {
	srv, c := newClient(t, fakeIdentity{})
	srv.Handle(steamtest.CommunityHost, http.MethodGet, inventoryPath, func(w http.ResponseWriter, r *http.Request) {
		steamtest.WriteJSON(w, http.StatusOK, map[string]any{
			"success":      1,
			"more_items":   1,
			"last_assetid": r.URL.Query().Get("start_assetid") + "9",
		})
	})

	pages := 0
	for _, err := range c.InventoryPages(context.Background(), owner, community.CS2, community.InventoryOptions{}) {
		require.NoError(t, err)
		pages++
		if pages == 3 {
			break
		}
	}
	assert.Equal(t, 3, pages)
	assert.Len(t, srv.RequestsTo(steamtest.CommunityHost, inventoryPath), 3)
}

func TestParseAppContext(t *testing.T) {
	ac, err := community.ParseAppContext("753/6")
	require.NoError(t, err)
	assert.Equal(t, community.Steam, ac)
	assert.Equal(t, "753/6", ac.String())

	for _, bad := range []string{"", "730", "x/2", "730/y"} {
		_, err := community.ParseAppContext(bad)
		assert.Error(t, err, bad)
	}
}
