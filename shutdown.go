/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpcore

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/badu/httpcore/herrors"
)

// GracefulShutdown implements the watcher pattern of §5, supplemented
// from original_source/src/server/shutdown.rs: every in-flight
// connection is one errgroup.Group goroutine rather than a cloned
// watch-sender, and shutdown completes once Wait returns. errgroup
// cancels its Group's context on the first non-nil error, which would
// needlessly tear down still-healthy connections during a drain, so
// Track absorbs each connection's error into a go-multierror instead
// of returning it — Wait always sees nil, and Shutdown reports the
// aggregate separately.
type GracefulShutdown struct {
	group    *errgroup.Group
	draining chan struct{}
	once     sync.Once

	mu   sync.Mutex
	errs *multierror.Error
}

// NewGracefulShutdown returns a shutdown tracker ready to Track
// connections against.
func NewGracefulShutdown() *GracefulShutdown {
	return &GracefulShutdown{group: &errgroup.Group{}, draining: make(chan struct{})}
}

// Track runs fn as one errgroup goroutine. fn's error, if any, is
// recorded rather than propagated immediately, so one failing
// connection never masks others still draining.
func (g *GracefulShutdown) Track(fn func() error) {
	g.group.Go(func() error {
		if err := fn(); err != nil {
			g.mu.Lock()
			g.errs = multierror.Append(g.errs, err)
			g.mu.Unlock()
		}
		return nil
	})
}

// Draining returns a channel closed once Shutdown has been called, so
// a connection's serve loop can check it between pipelined exchanges
// and decline to start another (§5's "graceful_shutdown": stop
// accepting new exchanges, let in-flight ones finish).
func (g *GracefulShutdown) Draining() <-chan struct{} { return g.draining }

// Shutdown marks the server draining and blocks until every tracked
// connection finishes or ctx expires, returning the aggregated
// connection errors (if any) or a KindShutdown error on timeout.
func (g *GracefulShutdown) Shutdown(ctx context.Context) error {
	g.once.Do(func() { close(g.draining) })

	done := make(chan struct{})
	go func() {
		g.group.Wait() //nolint:errcheck // Track never returns a non-nil error; aggregate lives in g.errs
		close(done)
	}()

	select {
	case <-done:
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.errs.ErrorOrNil()
	case <-ctx.Done():
		return herrors.Wrap(herrors.KindShutdown, "", ctx.Err())
	}
}
