// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

// Package guard supplies the one-time guard codes a login needs and the
// helpers that derive them from account secrets.
//
// The authenticator only depends on CodeSource. A source may compute the
// code locally (TOTPSource), wait for it to arrive in a mailbox (MailSource)
// or ask a human (StaticSource wrapping a prompt). Sources may block; they
// must honor context cancellation.
package guard

import (
	"context"
)

// CodeType tells the authentication service where a guard code came from.
type CodeType int

// Code types accepted by the guard code submission endpoint.
const (
	CodeTypeEmail  CodeType = 2
	CodeTypeDevice CodeType = 3
)

// CodeSource produces a guard code for the current login attempt.
type CodeSource interface {
	Code(ctx context.Context) (string, error)
}

// Typed is implemented by sources that know which code type they produce.
// Sources that do not implement it are treated as device codes.
type Typed interface {
	CodeType() CodeType
}

// TypeOf returns the code type of src.
func TypeOf(src CodeSource) CodeType {
	if typed, ok := src.(Typed); ok {
		return typed.CodeType()
	}
	return CodeTypeDevice
}

// SourceFunc adapts a function to CodeSource.
type SourceFunc func(ctx context.Context) (string, error)

// Code implements CodeSource.
func (f SourceFunc) Code(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticSource always returns the same code. Useful when the code was typed
// in by a person before the login started.
type StaticSource struct {
	Value string
	Type  CodeType
}

// Code implements CodeSource.
func (s StaticSource) Code(context.Context) (string, error) {
	return s.Value, nil
}

// CodeType implements Typed.
func (s StaticSource) CodeType() CodeType {
	if s.Type == 0 {
		return CodeTypeDevice
	}
	return s.Type
}
