// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package community

import (
	"context"
	"iter"
	"net/url"
	"strconv"
	"time"

	"github.com/steamfront/steamfront/internal/catalog"
	"github.com/steamfront/steamfront/internal/paginate"
	"github.com/steamfront/steamfront/internal/steamerr"
)

// TradeOfferState mirrors the platform's trade offer states.
type TradeOfferState int

// Trade offer states.
const (
	TradeOfferInvalid TradeOfferState = iota + 1
	TradeOfferActive
	TradeOfferAccepted
	TradeOfferCountered
	TradeOfferExpired
	TradeOfferCanceled
	TradeOfferDeclined
	TradeOfferInvalidItems
	TradeOfferCreatedNeedsConfirmation
	TradeOfferCanceledBySecondFactor
	TradeOfferInEscrow
)

var tradeOfferStateNames = map[TradeOfferState]string{
	TradeOfferInvalid:                  "invalid",
	TradeOfferActive:                   "active",
	TradeOfferAccepted:                 "accepted",
	TradeOfferCountered:                "countered",
	TradeOfferExpired:                  "expired",
	TradeOfferCanceled:                 "canceled",
	TradeOfferDeclined:                 "declined",
	TradeOfferInvalidItems:             "invalid_items",
	TradeOfferCreatedNeedsConfirmation: "needs_confirmation",
	TradeOfferCanceledBySecondFactor:   "canceled_by_second_factor",
	TradeOfferInEscrow:                 "in_escrow",
}

func (s TradeOfferState) String() string {
	if name, ok := tradeOfferStateNames[s]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(s)) + ")"
}

// TradeItem is one side's asset in a trade offer.
type TradeItem struct {
	catalog.Entry
	Missing bool
	EstUSD  int64
}

// TradeOffer is one offer sent or received by the account.
type TradeOffer struct {
	ID               uint64
	PartnerAccountID uint32
	IsOurOffer       bool
	Message          string
	State            TradeOfferState
	ExpirationTime   time.Time
	TimeCreated      time.Time
	TimeUpdated      time.Time
	ItemsToGive      []TradeItem
	ItemsToReceive   []TradeItem
}

// TradeOffersOptions select which offers to list. Leaving both Sent and
// Received false lists both.
type TradeOffersOptions struct {
	Sent             bool
	Received         bool
	ActiveOnly       bool
	HistoricalOnly   bool
	HistoricalCutoff time.Time
}

// TradeOffersPage is one page of offers.
type TradeOffersPage struct {
	Sent       []TradeOffer
	Received   []TradeOffer
	NextCursor int64
}

type tradeAssetRaw struct {
	catalog.RawAsset
	Missing bool       `json:"missing"`
	EstUSD  catalog.ID `json:"est_usd"`
}

type tradeOfferRaw struct {
	ID             catalog.ID      `json:"tradeofferid"`
	AccountIDOther uint32          `json:"accountid_other"`
	Message        string          `json:"message"`
	ExpirationTime int64           `json:"expiration_time"`
	TimeCreated    int64           `json:"time_created"`
	TimeUpdated    int64           `json:"time_updated"`
	State          int             `json:"trade_offer_state"`
	IsOurOffer     bool            `json:"is_our_offer"`
	ItemsToGive    []tradeAssetRaw `json:"items_to_give"`
	ItemsToReceive []tradeAssetRaw `json:"items_to_receive"`
}

type tradeOffersPayload struct {
	Response struct {
		Sent         []tradeOfferRaw          `json:"trade_offers_sent"`
		Received     []tradeOfferRaw          `json:"trade_offers_received"`
		Descriptions []catalog.RawDescription `json:"descriptions"`
		NextCursor   int64                    `json:"next_cursor"`
	} `json:"response"`
}

// TradeOffers returns every offer matching opts.
func (c *Client) TradeOffers(ctx context.Context, opts TradeOffersOptions) (sent, received []TradeOffer, err error) {
	for page, err := range c.TradeOffersPages(ctx, opts) {
		if err != nil {
			return sent, received, err
		}
		sent = append(sent, page.Sent...)
		received = append(received, page.Received...)
	}
	return sent, received, nil
}

// TradeOffersPages walks the offers page by page, following the server
// cursor until it comes back zero.
func (c *Client) TradeOffersPages(ctx context.Context, opts TradeOffersOptions) iter.Seq2[TradeOffersPage, error] {
	if !opts.Sent && !opts.Received {
		opts.Sent, opts.Received = true, true
	}
	resolver := catalog.NewResolver(catalog.WithSource("trade_offers"), catalog.WithLogger(c.logger))

	fetch := func(ctx context.Context, cursor paginate.ServerCursor) (TradeOffersPage, error) {
		return c.fetchTradeOffers(ctx, resolver, opts, cursor)
	}
	next := func(page TradeOffersPage, _ paginate.ServerCursor) (paginate.ServerCursor, bool) {
		return paginate.NextServer(page.NextCursor)
	}
	driver := paginate.New(0, fetch, next,
		paginate.WithSource("trade_offers"), paginate.WithLogger(c.logger))
	return driver.Pages(ctx)
}

func (c *Client) fetchTradeOffers(ctx context.Context, resolver *catalog.Resolver, opts TradeOffersOptions, cursor int64) (TradeOffersPage, error) {
	params := url.Values{
		"active_only":         {boolParam(opts.ActiveOnly)},
		"get_sent_offers":     {boolParam(opts.Sent)},
		"get_received_offers": {boolParam(opts.Received)},
		"historical_only":     {boolParam(opts.HistoricalOnly)},
		"get_descriptions":    {"1"},
		"cursor":              {strconv.FormatInt(cursor, 10)},
	}
	if !opts.HistoricalCutoff.IsZero() {
		params.Set("time_historical_cutoff", strconv.FormatInt(opts.HistoricalCutoff.Unix(), 10))
	}

	var payload tradeOffersPayload
	if err := c.webAPI(ctx, "IEconService/GetTradeOffers", params, &payload); err != nil {
		return TradeOffersPage{}, err
	}
	r := payload.Response
	if err := describeAll(resolver, r.Descriptions); err != nil {
		return TradeOffersPage{}, err
	}

	owner := c.identity.SteamID()
	sent, err := c.convertOffers(resolver, r.Sent, owner)
	if err != nil {
		return TradeOffersPage{}, err
	}
	received, err := c.convertOffers(resolver, r.Received, owner)
	if err != nil {
		return TradeOffersPage{}, err
	}
	return TradeOffersPage{Sent: sent, Received: received, NextCursor: r.NextCursor}, nil
}

func (c *Client) convertOffers(resolver *catalog.Resolver, raw []tradeOfferRaw, owner uint64) ([]TradeOffer, error) {
	out := make([]TradeOffer, 0, len(raw))
	for _, o := range raw {
		id, err := o.ID.Uint()
		if err != nil {
			return nil, steamerr.WrapAPI("parse trade offer id", err)
		}
		give, err := tradeItems(resolver, o.ItemsToGive, owner)
		if err != nil {
			return nil, err
		}
		receive, err := tradeItems(resolver, o.ItemsToReceive, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, TradeOffer{
			ID:               id,
			PartnerAccountID: o.AccountIDOther,
			IsOurOffer:       o.IsOurOffer,
			Message:          o.Message,
			State:            TradeOfferState(o.State),
			ExpirationTime:   unixTime(o.ExpirationTime),
			TimeCreated:      unixTime(o.TimeCreated),
			TimeUpdated:      unixTime(o.TimeUpdated),
			ItemsToGive:      give,
			ItemsToReceive:   receive,
		})
	}
	return out, nil
}

func tradeItems(resolver *catalog.Resolver, raw []tradeAssetRaw, owner uint64) ([]TradeItem, error) {
	out := make([]TradeItem, 0, len(raw))
	for _, a := range raw {
		entry, err := resolver.Join(a.RawAsset, owner)
		if err != nil {
			return nil, err
		}
		est, err := a.EstUSD.Uint()
		if err != nil {
			return nil, steamerr.WrapAPI("parse est_usd", err)
		}
		out = append(out, TradeItem{Entry: entry, Missing: a.Missing, EstUSD: int64(est)}) //nolint:gosec // cents fit
	}
	return out, nil
}

// HistoryItem is an asset that changed hands in a completed trade.
type HistoryItem struct {
	catalog.Entry
	NewAssetID   uint64
	NewContextID uint64
}

// HistoryTrade is one completed trade.
type HistoryTrade struct {
	TradeID        uint64
	SteamIDOther   uint64
	TimeInit       time.Time
	Status         int
	AssetsGiven    []HistoryItem
	AssetsReceived []HistoryItem
}

// TradeHistoryOptions tune one trade history request. StartAfterTime and
// StartAfterTradeID continue after a trade seen earlier.
type TradeHistoryOptions struct {
	// MaxTrades is the page size. Zero means 100.
	MaxTrades         int
	StartAfterTime    time.Time
	StartAfterTradeID uint64
	NavigatingBack    bool
	IncludeFailed     bool
}

// TradeHistoryPage is one page of completed trades.
type TradeHistoryPage struct {
	Trades []HistoryTrade
	Total  int
	More   bool
}

type historyAssetRaw struct {
	catalog.RawAsset
	NewAssetID   catalog.ID `json:"new_assetid"`
	NewContextID catalog.ID `json:"new_contextid"`
}

type historyTradeRaw struct {
	TradeID        catalog.ID        `json:"tradeid"`
	SteamIDOther   catalog.ID        `json:"steamid_other"`
	TimeInit       int64             `json:"time_init"`
	Status         int               `json:"status"`
	AssetsGiven    []historyAssetRaw `json:"assets_given"`
	AssetsReceived []historyAssetRaw `json:"assets_received"`
}

type historyPayload struct {
	Response struct {
		TotalTrades  int                      `json:"total_trades"`
		More         bool                     `json:"more"`
		Trades       []historyTradeRaw        `json:"trades"`
		Descriptions []catalog.RawDescription `json:"descriptions"`
	} `json:"response"`
}

// historyCursor continues after the last trade of the previous page.
type historyCursor struct {
	Time    int64
	TradeID uint64
}

// TradeHistory fetches one page of completed trades.
func (c *Client) TradeHistory(ctx context.Context, opts TradeHistoryOptions) (TradeHistoryPage, error) {
	resolver := catalog.NewResolver(catalog.WithSource("trade_history"), catalog.WithLogger(c.logger))
	return c.fetchTradeHistory(ctx, resolver, opts)
}

// TradeHistoryPages walks the trade history, continuing after the last trade
// of each page while the server reports more.
func (c *Client) TradeHistoryPages(ctx context.Context, opts TradeHistoryOptions) iter.Seq2[TradeHistoryPage, error] {
	resolver := catalog.NewResolver(catalog.WithSource("trade_history"), catalog.WithLogger(c.logger))

	initial := historyCursor{TradeID: opts.StartAfterTradeID}
	if !opts.StartAfterTime.IsZero() {
		initial.Time = opts.StartAfterTime.Unix()
	}
	fetch := func(ctx context.Context, cursor historyCursor) (TradeHistoryPage, error) {
		pageOpts := opts
		pageOpts.StartAfterTradeID = cursor.TradeID
		pageOpts.StartAfterTime = time.Time{}
		if cursor.Time != 0 {
			pageOpts.StartAfterTime = time.Unix(cursor.Time, 0)
		}
		return c.fetchTradeHistory(ctx, resolver, pageOpts)
	}
	next := func(page TradeHistoryPage, cursor historyCursor) (historyCursor, bool) {
		if !page.More || len(page.Trades) == 0 {
			return cursor, false
		}
		last := page.Trades[len(page.Trades)-1]
		return historyCursor{Time: last.TimeInit.Unix(), TradeID: last.TradeID}, true
	}
	driver := paginate.New(initial, fetch, next,
		paginate.WithSource("trade_history"), paginate.WithLogger(c.logger))
	return driver.Pages(ctx)
}

func (c *Client) fetchTradeHistory(ctx context.Context, resolver *catalog.Resolver, opts TradeHistoryOptions) (TradeHistoryPage, error) {
	maxTrades := opts.MaxTrades
	if maxTrades <= 0 {
		maxTrades = 100
	}
	params := url.Values{
		"max_trades":       {strconv.Itoa(maxTrades)},
		"get_descriptions": {"1"},
		"include_total":    {"1"},
		"include_failed":   {boolParam(opts.IncludeFailed)},
		"navigating_back":  {boolParam(opts.NavigatingBack)},
	}
	if !opts.StartAfterTime.IsZero() {
		params.Set("start_after_time", strconv.FormatInt(opts.StartAfterTime.Unix(), 10))
	}
	if opts.StartAfterTradeID != 0 {
		params.Set("start_after_tradeid", strconv.FormatUint(opts.StartAfterTradeID, 10))
	}

	var payload historyPayload
	if err := c.webAPI(ctx, "IEconService/GetTradeHistory", params, &payload); err != nil {
		return TradeHistoryPage{}, err
	}
	r := payload.Response
	if err := describeAll(resolver, r.Descriptions); err != nil {
		return TradeHistoryPage{}, err
	}

	owner := c.identity.SteamID()
	out := TradeHistoryPage{Total: r.TotalTrades, More: r.More}
	for _, t := range r.Trades {
		id, err := t.TradeID.Uint()
		if err != nil {
			return TradeHistoryPage{}, steamerr.WrapAPI("parse trade id", err)
		}
		other, err := t.SteamIDOther.Uint()
		if err != nil {
			return TradeHistoryPage{}, steamerr.WrapAPI("parse partner id", err)
		}
		given, err := historyItems(resolver, t.AssetsGiven, owner)
		if err != nil {
			return TradeHistoryPage{}, err
		}
		received, err := historyItems(resolver, t.AssetsReceived, other)
		if err != nil {
			return TradeHistoryPage{}, err
		}
		out.Trades = append(out.Trades, HistoryTrade{
			TradeID:        id,
			SteamIDOther:   other,
			TimeInit:       unixTime(t.TimeInit),
			Status:         t.Status,
			AssetsGiven:    given,
			AssetsReceived: received,
		})
	}
	return out, nil
}

func historyItems(resolver *catalog.Resolver, raw []historyAssetRaw, owner uint64) ([]HistoryItem, error) {
	out := make([]HistoryItem, 0, len(raw))
	for _, a := range raw {
		entry, err := resolver.Join(a.RawAsset, owner)
		if err != nil {
			return nil, err
		}
		newAsset, err := a.NewAssetID.Uint()
		if err != nil {
			return nil, steamerr.WrapAPI("parse new asset id", err)
		}
		newContext, err := a.NewContextID.Uint()
		if err != nil {
			return nil, steamerr.WrapAPI("parse new context id", err)
		}
		out = append(out, HistoryItem{Entry: entry, NewAssetID: newAsset, NewContextID: newContext})
	}
	return out, nil
}

func describeAll(resolver *catalog.Resolver, descriptions []catalog.RawDescription) error {
	for _, d := range descriptions {
		if _, err := resolver.Describe(d, nil); err != nil {
			return err
		}
	}
	return nil
}
