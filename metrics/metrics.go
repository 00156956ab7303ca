/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package metrics wires the core's optional prometheus collaborators
// (§5, §9's one piece of global state, plus the per-connection
// counters the domain-stack expansion adds). A nil
// *Collector disables collection entirely — these are opt-in
// observability plumbing, not part of the wire protocol, so every
// method is safe to call on a nil receiver.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds the counters/histograms h1 and h2 components report
// to, registered against a caller-supplied registry so embedding
// applications control where (or whether) metrics are exposed.
type Collector struct {
	h1Connections        prometheus.Counter
	h1KeepAliveDisabled   prometheus.Counter
	h2PingRTT             prometheus.Histogram
	dateRefreshes         prometheus.CounterFunc
}

// New registers the core's collectors against reg and returns a
// Collector to pass into h1.Options.Metrics / h2.Options.Metrics. reg
// may be a fresh prometheus.NewRegistry() or prometheus.DefaultRegisterer
// wrapped via prometheus.WrapRegistererWithPrefix.
func New(reg prometheus.Registerer, dateRefreshCount func() uint64) *Collector {
	c := &Collector{
		h1Connections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "httpcore_h1_connections_total",
			Help: "HTTP/1 connections accepted or dialed.",
		}),
		h1KeepAliveDisabled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "httpcore_h1_keepalive_disabled_total",
			Help: "HTTP/1 connections that had keep-alive disabled before natural close.",
		}),
		h2PingRTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "httpcore_h2_ping_rtt_seconds",
			Help:    "Observed HTTP/2 keep-alive PING round-trip time.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if dateRefreshCount != nil {
		c.dateRefreshes = prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "httpcore_date_header_refresh_total",
			Help: "Times the cached Date header value was recomputed.",
		}, func() float64 { return float64(dateRefreshCount()) })
	}
	for _, coll := range []prometheus.Collector{c.h1Connections, c.h1KeepAliveDisabled, c.h2PingRTT} {
		reg.MustRegister(coll)
	}
	if c.dateRefreshes != nil {
		reg.MustRegister(c.dateRefreshes)
	}
	return c
}

func (c *Collector) ConnectionAccepted() {
	if c == nil {
		return
	}
	c.h1Connections.Inc()
}

func (c *Collector) KeepAliveDisabled() {
	if c == nil {
		return
	}
	c.h1KeepAliveDisabled.Inc()
}

func (c *Collector) ObservePingRTT(seconds float64) {
	if c == nil {
		return
	}
	c.h2PingRTT.Observe(seconds)
}
