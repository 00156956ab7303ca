/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package h1 implements the HTTP/1 connection state machine: the
// codec that parses and encodes message heads and chooses body
// framing (§4.2), the per-connection Conn that drives reading and
// writing phases, keep-alive and pipelining (§4.3), and the
// Dispatcher that couples a Conn to an application (§4.4).
package h1

import (
	"github.com/badu/httpcore"
	"github.com/badu/httpcore/body"
)

// ReadState is the reading half of ConnState (§3).
type ReadState uint8

const (
	ReadInit ReadState = iota
	ReadBody
	ReadKeepAlive
	ReadClosed
)

// WriteState is the writing half of ConnState (§3).
type WriteState uint8

const (
	WriteInit WriteState = iota
	WriteBody
	WriteKeepAlive
	WriteClosed
)

// KeepAliveState tracks whether the connection may be reused (§3).
type KeepAliveState uint8

const (
	KeepAliveBusy KeepAliveState = iota
	KeepAliveIdle
	KeepAliveDisabled
)

// ConnState is the per-connection state machine of §3: reading and
// writing phases advance independently; keep-alive is the conjunction
// of both reaching KeepAlive and KeepAliveState not being Disabled.
// It is exclusively owned by the connection's task (§5); no field is
// ever touched by another goroutine.
type ConnState struct {
	Reading      ReadState
	ReadDecoder  *body.Decoder
	Writing      WriteState
	WriteEncoder *body.Encoder
	KeepAlive    KeepAliveState
	Method       *string
	Err          error

	AllowHalfClose     bool
	TitleCaseHeaders   bool
	PreserveHeaderCase bool
	NotifyRead         bool
	Version            httpcore.Version
}

// NewConnState returns a freshly Init/Init/Idle state machine.
func NewConnState() *ConnState {
	return &ConnState{KeepAlive: KeepAliveIdle}
}

// IsKeepAlive reports the keep-alive algebra of §4.3: "the connection
// is keep-alive iff reading=KeepAlive ∧ writing=KeepAlive ∧
// keep_alive≠Disabled".
func (c *ConnState) IsKeepAlive() bool {
	return c.Reading == ReadKeepAlive && c.Writing == WriteKeepAlive && c.KeepAlive != KeepAliveDisabled
}

// IsClosed reports whether either half has reached its terminal
// state, the invariant §3(a) requires to imply KeepAliveDisabled.
func (c *ConnState) IsClosed() bool {
	return c.Reading == ReadClosed || c.Writing == WriteClosed
}

// TryKeepAlive is the idempotent routine called whenever either half
// completes (§4.3). Cross-closed states collapse to full close;
// otherwise a fully idle connection transitions Busy -> Idle.
// Repeated calls with no intervening state change have no further
// effect (§8's idempotence invariant).
func (c *ConnState) TryKeepAlive() {
	if c.IsClosed() {
		c.Reading = ReadClosed
		c.Writing = WriteClosed
		c.KeepAlive = KeepAliveDisabled
		return
	}
	if c.Reading == ReadKeepAlive && c.Writing == WriteKeepAlive && c.KeepAlive == KeepAliveBusy {
		c.KeepAlive = KeepAliveIdle
	}
}

// DisableKeepAlive transitions to Disabled. If the connection is
// already idle, closure is immediate (§4.3); otherwise it closes at
// the next natural boundary via TryKeepAlive.
func (c *ConnState) DisableKeepAlive() {
	wasIdle := c.KeepAlive == KeepAliveIdle
	c.KeepAlive = KeepAliveDisabled
	if wasIdle {
		c.Reading = ReadClosed
		c.Writing = WriteClosed
	}
}

// MarkBusy records that a new exchange has started, the
// precondition §3(c) describes for Method being Some.
func (c *ConnState) MarkBusy(method string) {
	c.KeepAlive = KeepAliveBusy
	c.Method = &method
}

// MarkExchangeDone clears Method, completing §3(c)'s window.
func (c *ConnState) MarkExchangeDone() {
	c.Method = nil
}

// Close forces both halves Closed and keep-alive Disabled,
// unconditionally, used on parse/I-O errors (§4.3).
func (c *ConnState) Close(err error) {
	c.Reading = ReadClosed
	c.Writing = WriteClosed
	c.KeepAlive = KeepAliveDisabled
	if err != nil && c.Err == nil {
		c.Err = err
	}
}

// CloseReading forces only the reading half Closed and disables
// keep-alive, leaving Writing untouched. Used on a head parse error
// (§4.3/§7): the writing half must stay at Init so WriteAutoError can
// still emit the automatic 4xx before the connection is torn down.
func (c *ConnState) CloseReading(err error) {
	c.Reading = ReadClosed
	c.KeepAlive = KeepAliveDisabled
	if err != nil && c.Err == nil {
		c.Err = err
	}
}
