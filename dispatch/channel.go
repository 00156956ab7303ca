/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package dispatch implements the Dispatch Channel of §4.6: a typed
// MPSC channel carrying (message, callback) pairs between an
// application and a connection task. Go has no futures to poll, so
// "the callback fires" is modeled as a buffered result channel the
// sender reads from, and cancellation is modeled with context and a
// closed-channel check rather than a Drop impl.
package dispatch

import (
	"context"

	"github.com/badu/httpcore/herrors"
)

// Result is what a dispatched entry's callback eventually receives:
// either a response or a SendError-shaped *herrors.Error, optionally
// carrying the original message back for pre-commit failures (§3,
// §7's "Partial-failure").
type Result[RESP any] struct {
	Value RESP
	Err   *herrors.Error
}

// Entry is the DispatchEntry of §3: a message, the channel its result
// is delivered on, and a cancellation channel the receiver can select
// on. Nothing in this package closes that channel, so a sender that
// stops waiting is not reported to the receiver through it.
type Entry[REQ any, RESP any] struct {
	Message  REQ
	result   chan Result[RESP]
	canceled chan struct{}
}

// ResultChan returns the channel the sender will receive this entry's
// outcome on. Reading from it is how an application's "response
// future" is implemented.
func (e *Entry[REQ, RESP]) ResultChan() <-chan Result[RESP] { return e.result }

// Canceled returns the entry's cancellation channel. Nothing in this
// package closes it: a sender that stops waiting for this entry's
// result is not reported through it.
func (e *Entry[REQ, RESP]) Canceled() <-chan struct{} { return e.canceled }

// Complete delivers resp or err to the sender exactly once, ending
// the entry's ownership transfer from receiver back to sender (§3).
func (e *Entry[REQ, RESP]) Complete(value RESP, err *herrors.Error) {
	select {
	case e.result <- Result[RESP]{Value: value, Err: err}:
	default:
	}
	close(e.result)
}

// Channel is the bounded MPSC queue of §4.6: any number of senders
// call TrySend/Send, a single owner calls PollRecv/TryRecv. The
// zero-value Channel is never used directly — build one with New.
type Channel[REQ any, RESP any] struct {
	entries chan *Entry[REQ, RESP]
	closed  chan struct{}
}

// New builds a Channel with the given buffer size. A buffer of 0 makes
// every send a rendezvous with a receiver (TrySend then succeeds only
// while a PollRecv/TryRecv is waiting); there is no unbounded mode.
func New[REQ any, RESP any](buffer int) *Channel[REQ, RESP] {
	return &Channel[REQ, RESP]{
		entries: make(chan *Entry[REQ, RESP], buffer),
		closed:  make(chan struct{}),
	}
}

// TrySend is the non-blocking send of §4.6: it returns the entry (and
// its ResultChan) on success, or the message back wrapped in a
// KindCanceled/KindUser error when the channel is closed or full.
func (c *Channel[REQ, RESP]) TrySend(msg REQ) (*Entry[REQ, RESP], error) {
	select {
	case <-c.closed:
		return nil, herrors.New(herrors.KindCanceled, "").WithRequest(msg)
	default:
	}
	e := &Entry[REQ, RESP]{Message: msg, result: make(chan Result[RESP], 1), canceled: make(chan struct{})}
	select {
	case c.entries <- e:
		return e, nil
	default:
		return nil, herrors.New(herrors.KindUser, herrors.ReasonBodyWrite).WithRequest(msg)
	}
}

// Send is the async send of §4.6: it awaits capacity (or ctx, or the
// channel closing).
func (c *Channel[REQ, RESP]) Send(ctx context.Context, msg REQ) (*Entry[REQ, RESP], error) {
	select {
	case <-c.closed:
		return nil, herrors.New(herrors.KindCanceled, "").WithRequest(msg)
	default:
	}
	e := &Entry[REQ, RESP]{Message: msg, result: make(chan Result[RESP], 1), canceled: make(chan struct{})}
	select {
	case c.entries <- e:
		return e, nil
	case <-c.closed:
		return nil, herrors.New(herrors.KindCanceled, "").WithRequest(msg)
	case <-ctx.Done():
		return nil, herrors.New(herrors.KindCanceled, "").WithRequest(msg)
	}
}

// PollRecv blocks for the next entry, or returns nil when the channel
// is closed and drained.
func (c *Channel[REQ, RESP]) PollRecv(ctx context.Context) (*Entry[REQ, RESP], error) {
	select {
	case e, ok := <-c.entries:
		if !ok {
			return nil, nil
		}
		return e, nil
	case <-ctx.Done():
		return nil, herrors.Canceled()
	}
}

// TryRecv is the non-blocking drain-on-shutdown variant of §4.6.
func (c *Channel[REQ, RESP]) TryRecv() (*Entry[REQ, RESP], bool) {
	select {
	case e, ok := <-c.entries:
		return e, ok
	default:
		return nil, false
	}
}

// Close marks the channel closed: future TrySend/Send calls fail, and
// PollRecv drains whatever is already queued before returning nil.
// It is safe to call more than once.
func (c *Channel[REQ, RESP]) Close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
		close(c.entries)
	}
}

// IsClosed reports whether Close has been called.
func (c *Channel[REQ, RESP]) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// IsReady reports whether a TrySend would currently succeed, without
// attempting it.
func (c *Channel[REQ, RESP]) IsReady() bool {
	return !c.IsClosed() && len(c.entries) < cap(c.entries)
}
