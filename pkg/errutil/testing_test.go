// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/steamfront/steamfront/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("API_ERROR").Errorf("test error")
	errutil.AssertErrorCode(t, err, "API_ERROR")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("step", "guard_code").Errorf("test error")
	errutil.AssertErrorContext(t, err, "step", "guard_code")
}

func TestAssertErrorCode_DeepestCodeWins(t *testing.T) {
	inner := oops.Code("SESSION_MISSING").Errorf("no cookies")
	err := oops.Code("COMMAND_FAILED").Wrap(inner)
	errutil.AssertErrorCode(t, err, "SESSION_MISSING")
}

func TestAssertErrorTag(t *testing.T) {
	err := oops.Code("API_ERROR").With("tag", "missing_secure_cookie").Errorf("no cookie")
	errutil.AssertErrorTag(t, oops.With("domain", "steamcommunity.com").Wrap(err), "missing_secure_cookie")
}
