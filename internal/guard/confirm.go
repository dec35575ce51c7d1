// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package guard

import (
	"context"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // fixed by the mobile confirmation protocol
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/samber/oops"
)

// Confirmation tags understood by the mobile confirmation endpoints.
const (
	TagConf    = "conf"
	TagDetails = "details"
	TagAllow   = "allow"
	TagCancel  = "cancel"
)

// ConfirmationKey signs a confirmation request for tag at unix time ts with
// the base64 identity secret.
func ConfirmationKey(identitySecret, tag string, ts int64) (string, error) {
	key, err := base64.StdEncoding.DecodeString(identitySecret)
	if err != nil {
		return "", oops.Code("GUARD_SECRET_INVALID").With("secret", "identity").Wrap(err)
	}

	buf := make([]byte, 8, 8+len(tag))
	binary.BigEndian.PutUint64(buf, uint64(ts)) //nolint:gosec // unix time is non-negative
	buf = append(buf, tag...)

	mac := hmac.New(sha1.New, key)
	mac.Write(buf)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// DeviceID derives the android style device id the confirmation endpoints
// expect for steamID.
func DeviceID(steamID uint64) string {
	sum := sha1.Sum([]byte(strconv.FormatUint(steamID, 10))) //nolint:gosec // identifier derivation
	h := hex.EncodeToString(sum[:])
	return "android:" + h[:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:32]
}

// ConfirmAction is an action awaiting mobile confirmation, such as a trade
// offer or a market listing.
type ConfirmAction struct {
	Kind string
	ID   string
}

// Proof is what a Confirmer returns once an action is confirmed.
type Proof struct {
	ConfirmationID string
	Key            string
}

// Confirmer signs mobile confirmations. Session and catalog code never call
// it; it exists so higher level trade actions can be composed with a
// session.
type Confirmer interface {
	Confirm(ctx context.Context, action ConfirmAction) (Proof, error)
}
