// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package catalog

import (
	"strconv"
	"strings"
)

// StaticURL hosts economy item images.
const StaticURL = "https://community.akamai.steamstatic.com"

// Key identifies an item class within the whole economy.
type Key struct {
	AppID      uint32
	ClassID    uint64
	InstanceID uint64
}

// String renders the key as appid:classid:instanceid.
func (k Key) String() string {
	return strconv.FormatUint(uint64(k.AppID), 10) + ":" +
		strconv.FormatUint(k.ClassID, 10) + ":" +
		strconv.FormatUint(k.InstanceID, 10)
}

// KeyOf builds the key of an asset fragment.
func KeyOf(a RawAsset) (Key, error) {
	return parseKey(a.AppID, a.ClassID, a.InstanceID)
}

func parseKey(appID, classID, instanceID ID) (Key, error) {
	app, err := appID.Uint()
	if err != nil {
		return Key{}, err
	}
	class, err := classID.Uint()
	if err != nil {
		return Key{}, err
	}
	instance, err := instanceID.Uint()
	if err != nil {
		return Key{}, err
	}
	return Key{AppID: uint32(app), ClassID: class, InstanceID: instance}, nil //nolint:gosec // app ids fit in 32 bits
}

// Action is an item action link.
type Action struct {
	Link string
	Name string
}

// Tag is an item tag.
type Tag struct {
	Category              string
	InternalName          string
	LocalizedCategoryName string
	LocalizedTagName      string
	Color                 string
}

// DescriptionEntry is one line of an item description.
type DescriptionEntry struct {
	Type  string
	Value string
	Color string
}

// Description holds the display and trading metadata shared by every asset
// of one item class. Records are created once per resolution pass and must
// not be modified afterwards: entries of the same class share the pointer.
type Description struct {
	Key       Key
	ContextID uint64

	Name            string
	MarketName      string
	MarketHashName  string
	Type            string
	NameColor       string
	BackgroundColor string
	Icon            string
	IconLarge       string

	Commodity  bool
	Tradable   bool
	Marketable bool

	MarketTradableRestriction   int
	MarketMarketableRestriction int
	MarketBuyCountryRestriction string
	MarketFeeApp                int

	Actions           []Action
	MarketActions     []Action
	OwnerActions      []Action
	Tags              []Tag
	Descriptions      []DescriptionEntry
	OwnerDescriptions []DescriptionEntry
	FraudWarnings     []string
}

// IconURL returns the small icon URL.
func (d *Description) IconURL() string {
	if d.Icon == "" {
		return ""
	}
	return StaticURL + "/economy/image/" + d.Icon + "/96fx96f"
}

// IconLargeURL returns the large icon URL, if the class has one.
func (d *Description) IconLargeURL() string {
	if d.IconLarge == "" {
		return ""
	}
	return StaticURL + "/economy/image/" + d.IconLarge + "/330x192"
}

// HasTag reports whether the description carries a tag with the given
// internal name.
func (d *Description) HasTag(internalName string) bool {
	for _, t := range d.Tags {
		if strings.EqualFold(t.InternalName, internalName) {
			return true
		}
	}
	return false
}

// Entry is one owned asset joined with its class description.
type Entry struct {
	AssetID     uint64
	OwnerID     uint64
	Amount      int64
	AppID       uint32
	ContextID   uint64
	Description *Description
}

// Key returns the identity key of the entry's class.
func (e Entry) Key() Key {
	if e.Description != nil {
		return e.Description.Key
	}
	return Key{AppID: e.AppID}
}

func newDescription(raw RawDescription, key Key, contextID uint64) *Description {
	return &Description{
		Key:                         key,
		ContextID:                   contextID,
		Name:                        raw.Name,
		MarketName:                  raw.MarketName,
		MarketHashName:              raw.MarketHashName,
		Type:                        raw.Type,
		NameColor:                   raw.NameColor,
		BackgroundColor:             raw.BackgroundColor,
		Icon:                        raw.IconURL,
		IconLarge:                   raw.IconURLLarge,
		Commodity:                   bool(raw.Commodity),
		Tradable:                    bool(raw.Tradable),
		Marketable:                  bool(raw.Marketable),
		MarketTradableRestriction:   raw.MarketTradableRestriction,
		MarketMarketableRestriction: raw.MarketMarketableRestriction,
		MarketBuyCountryRestriction: raw.MarketBuyCountryRestriction,
		MarketFeeApp:                raw.MarketFeeApp,
		Actions:                     convertActions(raw.Actions),
		MarketActions:               convertActions(raw.MarketActions),
		OwnerActions:                convertActions(raw.OwnerActions),
		Tags:                        convertTags(raw.Tags),
		Descriptions:                convertEntries(raw.Descriptions),
		OwnerDescriptions:           convertEntries(raw.OwnerDescriptions),
		FraudWarnings:               append([]string(nil), raw.FraudWarnings...),
	}
}

func convertActions(raw []RawAction) []Action {
	if len(raw) == 0 {
		return nil
	}
	out := make([]Action, len(raw))
	for i, a := range raw {
		out[i] = Action(a)
	}
	return out
}

func convertTags(raw []RawTag) []Tag {
	if len(raw) == 0 {
		return nil
	}
	out := make([]Tag, len(raw))
	for i, t := range raw {
		out[i] = Tag(t)
	}
	return out
}

// convertEntries drops single-space lines, which the platform uses as
// visual spacers.
func convertEntries(raw []RawEntry) []DescriptionEntry {
	var out []DescriptionEntry
	for _, e := range raw {
		if e.Value == " " {
			continue
		}
		out = append(out, DescriptionEntry(e))
	}
	return out
}
