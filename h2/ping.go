/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h2

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PingRecorder drives the periodic keep-alive PING golang.org/x/net/http2
// doesn't send on its own for client connections (§4.5), and records
// each round-trip time so an AdaptiveWindowEstimator can turn it into
// a bandwidth-delay-product estimate.
type PingRecorder struct {
	session  *ClientSession
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
	window   AdaptiveWindowEstimator
}

func newPingRecorder(s *ClientSession, interval, timeout time.Duration, log *zap.Logger) *PingRecorder {
	return &PingRecorder{session: s, interval: interval, timeout: timeout, log: log}
}

// run starts the ticker loop in its own goroutine and returns a stop
// function; the loop also exits on ctx cancellation.
func (p *PingRecorder) run(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.pingOnce(ctx)
			}
		}
	}()
	return cancel
}

func (p *PingRecorder) pingOnce(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	if err := p.session.Ping(pingCtx); err != nil {
		p.log.Warn("h2 keepalive ping failed", zap.Error(err))
		return
	}
	rtt := time.Since(start)
	p.session.opts.Metrics.ObservePingRTT(rtt.Seconds())
	if p.session.opts.AdaptiveWindow {
		p.window.Observe(rtt)
	}
}

// AdaptiveWindowEstimator implements the BDP-based window sizing
// idea of §4.5: it tracks an exponential moving average of observed
// PING round-trip times, and Target derives from it the flow-control
// window that would keep one RTT's worth of data in flight at the
// throughput passed to it. golang.org/x/net/http2's ClientConn has no
// public API to resize an already-open connection's window, so
// Target's result is advisory — a value for a future session's
// Options, neither applied in place nor logged.
type AdaptiveWindowEstimator struct {
	emaRTT time.Duration
	n      int
}

// Observe folds one more RTT sample into the estimator.
func (a *AdaptiveWindowEstimator) Observe(rtt time.Duration) {
	a.n++
	if a.n == 1 {
		a.emaRTT = rtt
		return
	}
	const alpha = 0.25
	a.emaRTT = time.Duration(float64(a.emaRTT)*(1-alpha) + float64(rtt)*alpha)
}

// Target returns the window size (bytes) that would keep bandwidth*RTT
// bytes in flight, given an observed or assumed throughput, clamped to
// HTTP/2's legal INITIAL_WINDOW_SIZE range.
func (a *AdaptiveWindowEstimator) Target(throughputBytesPerSec uint64) uint32 {
	if a.n == 0 {
		return DefaultOptions().InitialWindowSize
	}
	bdp := uint64(a.emaRTT.Seconds() * float64(throughputBytesPerSec))
	switch {
	case bdp < (1 << 16):
		return 1 << 16
	case bdp > (1<<31 - 1):
		return 1<<31 - 1
	default:
		return uint32(bdp)
	}
}

// RTT returns the current smoothed round-trip-time estimate.
func (a *AdaptiveWindowEstimator) RTT() time.Duration { return a.emaRTT }
