/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package h2 wraps golang.org/x/net/http2 as the core's HTTP/2 client
// session (§4.5): handshake and SETTINGS tuning, one RoundTrip per
// dispatched exchange, keep-alive pings, BDP-driven window estimation,
// and graceful GOAWAY shutdown. The multiplexer itself — frame codec,
// HPACK, flow-control bookkeeping — is treated as an external
// collaborator per §6; this package adapts it to the core's head/body
// vocabulary rather than reimplementing it.
package h2

import (
	"time"

	"github.com/badu/httpcore/metrics"
)

// Options collects the http2_* tunables of §6 (struct-of-flags style,
// matching h1.Options). Dial passes MaxFrameSize, MaxHeaderListSize,
// ReadIdleTimeout and PingTimeout to golang.org/x/net/http2.Transport;
// InitialWindowSize, HeaderTableSize and MaxConcurrentStreams are not
// passed to it, so the transport's own values apply for those.
type Options struct {
	InitialWindowSize     uint32
	MaxFrameSize          uint32
	HeaderTableSize       uint32
	MaxConcurrentStreams  uint32
	MaxHeaderListSize     uint32
	PingInterval          time.Duration
	PingTimeout           time.Duration
	AdaptiveWindow        bool
	ReadIdleTimeout       time.Duration

	// Metrics is nil-safe: a nil Collector disables collection.
	Metrics *metrics.Collector
}

// DefaultOptions mirrors the values golang.org/x/net/http2 itself
// defaults to, made explicit so callers can tune them per §6.
func DefaultOptions() Options {
	return Options{
		InitialWindowSize:    1 << 20,
		MaxFrameSize:         16384,
		HeaderTableSize:      4096,
		MaxConcurrentStreams: 100,
		MaxHeaderListSize:    10 << 20,
		PingInterval:         15 * time.Second,
		PingTimeout:          5 * time.Second,
		AdaptiveWindow:       true,
		ReadIdleTimeout:      30 * time.Second,
	}
}
