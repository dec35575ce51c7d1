// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

// Package errutil logs and asserts oops errors produced by steamfront.
package errutil

import (
	"fmt"
	"log/slog"

	"github.com/samber/oops"
)

// maxBodyLen bounds how much of a raw response payload ends up in a log line.
const maxBodyLen = 512

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it logs the message, code and context; a raw response
// payload under the "body" key is rendered and truncated.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.Error(msg, "error", err)
		return
	}

	attrs := []any{
		"error", oopsErr.Error(),
	}
	if code := oopsErr.Code(); code != nil && code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		trimmed := make(map[string]any, len(ctx))
		for k, v := range ctx {
			if k == "body" && v != nil {
				v = truncate(fmt.Sprint(v))
			}
			trimmed[k] = v
		}
		attrs = append(attrs, "context", trimmed)
	}
	logger.Error(msg, attrs...)
}

func truncate(s string) string {
	if len(s) <= maxBodyLen {
		return s
	}
	return s[:maxBodyLen] + "..."
}
