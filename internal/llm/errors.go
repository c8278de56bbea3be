// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// Kind categorizes client errors for handling.
type Kind int

const (
	KindUnknown Kind = iota

	// KindTransport covers connection failures and non-2xx responses.
	KindTransport

	// KindEmptyResponse means a 2xx response carried no usable choice.
	KindEmptyResponse

	// KindDecode marks an SSE data line that was not valid JSON. The stream
	// reader recovers from these locally; they never reach the caller.
	KindDecode

	// KindConfig means the client cannot be built (missing API key, bad URL).
	KindConfig

	// KindInvalidRequest means request parameters are out of range.
	KindInvalidRequest
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindEmptyResponse:
		return "empty response"
	case KindDecode:
		return "decode"
	case KindConfig:
		return "config"
	case KindInvalidRequest:
		return "invalid request"
	default:
		return "unknown"
	}
}

// Error represents an error from the DeepSeek client.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int // HTTP status, 0 when no response was received
	Cause      error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for e's kind, so that
// errors.Is(err, ErrTransport) matches every transport failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == kindSentinelMessage[t.Kind]
}

var kindSentinelMessage = map[Kind]string{
	KindTransport:      "transport error",
	KindEmptyResponse:  "empty response",
	KindDecode:         "malformed stream chunk",
	KindConfig:         "client not configured",
	KindInvalidRequest: "invalid request",
}

// Sentinel errors for easy checking with errors.Is.
var (
	ErrTransport      = &Error{Kind: KindTransport, Message: kindSentinelMessage[KindTransport]}
	ErrEmptyResponse  = &Error{Kind: KindEmptyResponse, Message: kindSentinelMessage[KindEmptyResponse]}
	ErrDecode         = &Error{Kind: KindDecode, Message: kindSentinelMessage[KindDecode]}
	ErrNotConfigured  = &Error{Kind: KindConfig, Message: kindSentinelMessage[KindConfig]}
	ErrInvalidRequest = &Error{Kind: KindInvalidRequest, Message: kindSentinelMessage[KindInvalidRequest]}
)

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// KindOf returns the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTransport checks if an error is a network or HTTP status failure.
func IsTransport(err error) bool {
	return KindOf(err) == KindTransport
}

// IsEmptyResponse checks if an error reports a response without choices.
func IsEmptyResponse(err error) bool {
	return KindOf(err) == KindEmptyResponse
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

func transportError(msg string, status int, cause error) *Error {
	return &Error{Kind: KindTransport, Message: msg, StatusCode: status, Cause: cause}
}
