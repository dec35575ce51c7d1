// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package steamerr

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth(t *testing.T) {
	body := map[string]any{"response": map[string]any{}}
	err := Auth("poll_status", body, "remote interaction detected")

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, CodeAuth, oopsErr.Code())
	assert.Equal(t, "poll_status", oopsErr.Context()["step"])
	assert.True(t, IsAuth(err))
	assert.Equal(t, "poll_status", Step(err))
	assert.Equal(t, body, Body(err))
}

func TestWrapAuth(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapAuth("begin_auth", cause)

	assert.True(t, IsAuth(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "begin_auth", Step(err))
}

func TestWrapAuth_KeepsKindOverInnerCode(t *testing.T) {
	inner := oops.Code("TRANSPORT_REQUEST_FAILED").Errorf("dial tcp: timeout")
	err := WrapAuth("rsa_key", inner)

	assert.True(t, IsAuth(err))
	assert.Equal(t, CodeAuth, Code(err))
	assert.Equal(t, "rsa_key", Step(err))
}

func TestAPITagged(t *testing.T) {
	err := APITagged(TagUnresolvedKey, "raw", "asset %s has no description", "42")

	assert.True(t, IsAPI(err))
	assert.Equal(t, TagUnresolvedKey, Tag(err))
	assert.Equal(t, "raw", Body(err))
	assert.Contains(t, err.Error(), "asset 42 has no description")
}

func TestMissingCookie(t *testing.T) {
	err := MissingCookie("store.steampowered.com", "steamLoginSecure", "<html>")

	assert.True(t, IsAPI(err))
	assert.Equal(t, TagMissingCookie, Tag(err))
	assert.Equal(t, "<html>", Body(err))
	assert.Contains(t, err.Error(), "store.steampowered.com")
}

func TestKindPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   func(error) bool
		code string
	}{
		{"forbidden", Forbidden("inventory", "inventory is private"), IsForbidden, CodeForbidden},
		{"api", API(nil, "failed"), IsAPI, CodeAPI},
		{"session expired", SessionExpired("login again"), IsSessionExpired, CodeSessionExpired},
		{"rate limited", RateLimited("https://example.com"), IsRateLimited, CodeRateLimited},
		{"not modified", NotModified("https://example.com"), IsNotModified, CodeNotModified},
		{"wrapped api", WrapAPI("decode", errors.New("bad json")), IsAPI, CodeAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.is(tt.err))
			assert.Equal(t, tt.code, Code(tt.err))
			assert.False(t, IsAuth(tt.err))
		})
	}
}

func TestCode_PlainError(t *testing.T) {
	err := errors.New("plain")

	assert.Empty(t, Code(err))
	assert.Empty(t, Tag(err))
	assert.Nil(t, Body(err))
	assert.False(t, IsAPI(err))
}
