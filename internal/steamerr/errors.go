// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

// Package steamerr defines the error taxonomy shared by the session
// authenticator, the catalog resolver and the community client.
//
// Every error is an oops error carrying one of the Code* constants both as its
// code and under the "kind" context key, so callers can branch on the kind
// without string matching:
//
//	if steamerr.IsForbidden(err) {
//	    // inventory is private
//	}
//
// API errors keep the raw response payload under the "body" context key.
//
// oops reports the code of the innermost coded error in a chain. Wrapping a
// transport failure in an auth error would therefore surface the transport
// code, which is why classification reads the "kind" key instead.
package steamerr

import (
	"github.com/samber/oops"
)

// Error codes.
const (
	CodeAuth           = "AUTH_FAILED"
	CodeForbidden      = "FORBIDDEN"
	CodeAPI            = "API_ERROR"
	CodeSessionExpired = "SESSION_EXPIRED"
	CodeRateLimited    = "RATE_LIMITED"
	CodeNotModified    = "NOT_MODIFIED"
)

// Tags attached to API errors that stem from inconsistent remote data.
const (
	TagUnresolvedKey = "unresolved_identity_key"
	TagUnresolvedApp = "unresolved_app"
	TagMissingCookie = "missing_secure_cookie"
)

// Auth creates an error for a login step rejected by the remote service or
// aborted on a security signal.
func Auth(step string, body any, format string, args ...any) error {
	return oops.Code(CodeAuth).
		With(kindKey, CodeAuth).
		With("step", step).
		With("body", body).
		Errorf(format, args...)
}

// WrapAuth wraps a transport failure that happened during a login step.
func WrapAuth(step string, err error) error {
	return oops.Code(CodeAuth).
		With(kindKey, CodeAuth).
		With("step", step).
		Wrap(err)
}

// Forbidden creates an error for a resource the remote service refused to
// serve, such as a private inventory.
func Forbidden(resource, format string, args ...any) error {
	return oops.Code(CodeForbidden).
		With(kindKey, CodeForbidden).
		With("resource", resource).
		Errorf(format, args...)
}

// API creates an error for a well-formed response that lacks the expected
// success indicator.
func API(body any, format string, args ...any) error {
	return oops.Code(CodeAPI).
		With(kindKey, CodeAPI).
		With("body", body).
		Errorf(format, args...)
}

// APITagged creates an API error marked with a data-integrity tag.
func APITagged(tag string, body any, format string, args ...any) error {
	return oops.Code(CodeAPI).
		With(kindKey, CodeAPI).
		With("tag", tag).
		With("body", body).
		Errorf(format, args...)
}

// MissingCookie creates an API error for a domain transfer whose response
// lacked the secure session cookie.
func MissingCookie(domain, cookie string, body any) error {
	return oops.Code(CodeAPI).
		With(kindKey, CodeAPI).
		With("tag", TagMissingCookie).
		With("domain", domain).
		With("body", body).
		Errorf("no %s cookie in transfer response from %s", cookie, domain)
}

// WrapAPI wraps a lower-level failure as an API error.
func WrapAPI(operation string, err error) error {
	return oops.Code(CodeAPI).
		With(kindKey, CodeAPI).
		With("operation", operation).
		Wrap(err)
}

// SessionExpired creates an error telling the caller to log in again.
func SessionExpired(format string, args ...any) error {
	return oops.Code(CodeSessionExpired).
		With(kindKey, CodeSessionExpired).
		Errorf(format, args...)
}

// RateLimited creates an error for an HTTP 429 response.
func RateLimited(url string) error {
	return oops.Code(CodeRateLimited).
		With(kindKey, CodeRateLimited).
		With("url", url).
		Errorf("rate limited, rest for a while")
}

// NotModified creates an error for an HTTP 304 answer to a conditional
// request.
func NotModified(url string) error {
	return oops.Code(CodeNotModified).
		With(kindKey, CodeNotModified).
		With("url", url).
		Errorf("resource not modified")
}

const kindKey = "kind"

// Code returns the kind of err, falling back to its oops code, or an empty
// string.
func Code(err error) string {
	if kind := contextString(err, kindKey); kind != "" {
		return kind
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string) //nolint:errcheck // type assertion, not an error
	return code
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool { return Code(err) == CodeAuth }

// IsForbidden reports whether err is an access denial.
func IsForbidden(err error) bool { return Code(err) == CodeForbidden }

// IsAPI reports whether err is a generic API failure.
func IsAPI(err error) bool { return Code(err) == CodeAPI }

// IsSessionExpired reports whether err asks for a new login.
func IsSessionExpired(err error) bool { return Code(err) == CodeSessionExpired }

// IsRateLimited reports whether err is a rate limit answer.
func IsRateLimited(err error) bool { return Code(err) == CodeRateLimited }

// IsNotModified reports whether err is a 304 answer.
func IsNotModified(err error) bool { return Code(err) == CodeNotModified }

// Tag returns the data-integrity tag of err, if any.
func Tag(err error) string {
	return contextString(err, "tag")
}

// Step returns the login step an auth error was raised in, if any.
func Step(err error) string {
	return contextString(err, "step")
}

// Body returns the raw response payload attached to err, if any.
func Body(err error) any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()["body"]
}

func contextString(err error, key string) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	v, _ := oopsErr.Context()[key].(string) //nolint:errcheck // type assertion, not an error
	return v
}
