// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package paginate

// AssetCursor is the last asset id of the previous page. The empty string
// addresses the first page.
type AssetCursor = string

// NextAsset implements the asset-cursor discipline: more pages exist only if
// the server says so and hands back a non-empty last asset id.
func NextAsset(moreItems bool, lastAssetID string) (AssetCursor, bool) {
	if !moreItems || lastAssetID == "" {
		return "", false
	}
	return lastAssetID, true
}

// ServerCursor is an opaque numeric cursor echoed by the server until it
// returns zero.
type ServerCursor = int64

// NextServer implements the server-cursor discipline.
func NextServer(next int64) (ServerCursor, bool) {
	return next, next != 0
}

// Offset is a caller-controlled start/count window.
type Offset struct {
	Start int
	Count int
}

// NextOffset advances the window by Count while it stays below total.
func (o Offset) NextOffset(total int) (Offset, bool) {
	if o.Count <= 0 {
		return o, false
	}
	next := Offset{Start: o.Start + o.Count, Count: o.Count}
	if next.Start >= total {
		return o, false
	}
	return next, true
}
