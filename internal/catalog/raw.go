// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/samber/oops"
)

// ID is a numeric identifier the platform serves either as a JSON number or
// as a decimal string. It is kept in its decimal string form; the empty
// string means absent.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return oops.Code("CATALOG_BAD_ID").With("raw", string(data)).Wrap(err)
	}
	*id = ID(n.String())
	return nil
}

// Uint parses the id. Absent ids parse as zero.
func (id ID) Uint() (uint64, error) {
	if id == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(string(id), 10, 64)
	if err != nil {
		return 0, oops.Code("CATALOG_BAD_ID").With("raw", string(id)).Wrap(err)
	}
	return v, nil
}

// Flag is a boolean the platform serves as 0/1 or true/false.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.Trim(bytes.TrimSpace(data), `"`)) {
	case "1", "true":
		*f = true
	default:
		*f = false
	}
	return nil
}

// RawAction is an action link as served.
type RawAction struct {
	Link string `json:"link"`
	Name string `json:"name"`
}

// RawTag is a tag as served.
type RawTag struct {
	Category              string `json:"category"`
	InternalName          string `json:"internal_name"`
	LocalizedCategoryName string `json:"localized_category_name"`
	LocalizedTagName      string `json:"localized_tag_name"`
	Color                 string `json:"color"`
}

// RawEntry is a description line as served.
type RawEntry struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Color string `json:"color"`
}

// RawDescription is a description fragment as served by inventory, market
// and trade endpoints.
type RawDescription struct {
	AppID      ID `json:"appid"`
	ContextID  ID `json:"contextid"`
	ClassID    ID `json:"classid"`
	InstanceID ID `json:"instanceid"`

	Name            string `json:"name"`
	MarketName      string `json:"market_name"`
	MarketHashName  string `json:"market_hash_name"`
	NameColor       string `json:"name_color"`
	BackgroundColor string `json:"background_color"`
	Type            string `json:"type"`
	IconURL         string `json:"icon_url"`
	IconURLLarge    string `json:"icon_url_large"`

	Commodity  Flag `json:"commodity"`
	Tradable   Flag `json:"tradable"`
	Marketable Flag `json:"marketable"`

	MarketTradableRestriction   int    `json:"market_tradable_restriction"`
	MarketMarketableRestriction int    `json:"market_marketable_restriction"`
	MarketBuyCountryRestriction string `json:"market_buy_country_restriction"`
	MarketFeeApp                int    `json:"market_fee_app"`

	Actions           []RawAction `json:"actions"`
	MarketActions     []RawAction `json:"market_actions"`
	OwnerActions      []RawAction `json:"owner_actions"`
	Tags              []RawTag    `json:"tags"`
	Descriptions      []RawEntry  `json:"descriptions"`
	OwnerDescriptions []RawEntry  `json:"owner_descriptions"`
	FraudWarnings     []string    `json:"fraudwarnings"`
}

// RawAsset is an asset fragment as served. Market listing assets name the
// asset id "id"; both spellings are accepted.
type RawAsset struct {
	AssetID    ID `json:"assetid"`
	ID         ID `json:"id"`
	AppID      ID `json:"appid"`
	ContextID  ID `json:"contextid"`
	ClassID    ID `json:"classid"`
	InstanceID ID `json:"instanceid"`
	Amount     ID `json:"amount"`
}

// Asset returns the asset id under whichever name it was served.
func (a RawAsset) Asset() ID {
	if a.AssetID != "" {
		return a.AssetID
	}
	return a.ID
}
