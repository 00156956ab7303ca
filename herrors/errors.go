/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package herrors implements the error taxonomy of §7: one concrete
// Kind per failure class, wrapping the underlying cause with
// github.com/pkg/errors so callers can still unwrap down to the
// original net.Error or parse failure (grounded in packetd-packetd
// and docker-compose's use of pkg/errors to annotate low-level
// failures without discarding them).
package herrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the taxonomy of §7: Parse, Protocol, IO, User, Canceled,
// H2, Shutdown, each with sub-reasons recorded in Reason.
type Kind int

const (
	KindParse Kind = iota
	KindProtocol
	KindIO
	KindUser
	KindCanceled
	KindH2
	KindShutdown
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindProtocol:
		return "protocol"
	case KindIO:
		return "io"
	case KindUser:
		return "user"
	case KindCanceled:
		return "canceled"
	case KindH2:
		return "h2"
	case KindShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Reason is a specific sub-kind within a Kind, e.g. "method" under
// KindParse or "unexpected-message" under KindProtocol.
type Reason string

const (
	ReasonMethod             Reason = "method"
	ReasonURI                Reason = "uri"
	ReasonVersion            Reason = "version"
	ReasonHeader             Reason = "header"
	ReasonTooLarge           Reason = "too-large"
	ReasonStatus             Reason = "status"
	ReasonChunkSize          Reason = "chunk-size"
	ReasonUpgradeUnsupported Reason = "upgrade-not-supported"

	ReasonUnexpectedMessage Reason = "unexpected-message"
	ReasonVersionH2         Reason = "version-h2"
	ReasonIncompleteMessage Reason = "incomplete-message"

	ReasonBodyWrite   Reason = "body-write"
	ReasonService     Reason = "service"
	ReasonMakeService Reason = "make-service"
)

// Error is the concrete error type every core component returns.
type Error struct {
	Kind   Kind
	Reason Reason
	cause  error
	// Request, set by WithRequest, carries back the request an error
	// belongs to, so the caller may retry it on a new connection (§7,
	// "Partial-failure"). It is set on KindUser errors and also on
	// KindCanceled (dispatch channel) and KindIO (H2 RoundTrip) errors.
	Request any
}

func (e *Error) Error() string {
	if e.Reason != "" {
		if e.cause != nil {
			return fmt.Sprintf("httpcore: %s/%s: %v", e.Kind, e.Reason, e.cause)
		}
		return fmt.Sprintf("httpcore: %s/%s", e.Kind, e.Reason)
	}
	if e.cause != nil {
		return fmt.Sprintf("httpcore: %s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("httpcore: %s", e.Kind)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, reason Reason) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap builds an Error wrapping cause with pkg/errors so its stack
// trace is preserved for diagnostics.
func Wrap(kind Kind, reason Reason, cause error) *Error {
	if cause == nil {
		return New(kind, reason)
	}
	return &Error{Kind: kind, Reason: reason, cause: errors.WithStack(cause)}
}

// WithRequest attaches the original request to a pre-commit send
// error so the caller can retry it on a different connection.
func (e *Error) WithRequest(req any) *Error {
	e.Request = req
	return e
}

// Is reports whether target is an *Error with the same Kind (and, if
// set, the same Reason), enabling errors.Is(err, herrors.New(KindIO, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Reason == "" {
		return true
	}
	return t.Reason == e.Reason
}

// IO wraps a transport error, per §7's "IO: underlying transport
// error; wraps the inner error".
func IO(cause error) *Error { return Wrap(KindIO, "", cause) }

// Canceled reports that the caller dropped interest before completion.
func Canceled() *Error { return New(KindCanceled, "") }

// Shutdown reports that graceful shutdown completed.
func Shutdown() *Error { return New(KindShutdown, "") }
