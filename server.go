/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpcore

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/badu/httpcore/body"
	"github.com/badu/httpcore/h1"
	"github.com/badu/httpcore/metrics"
)

// Server is the top-level wiring §5 describes but leaves to a
// collaborator: an Accept loop handing each connection to an h1.Conn
// plus h1.Dispatcher, tracked by a GracefulShutdown watcher. It never
// resolves DNS, establishes TLS, or routes requests (§1's Non-goals);
// ln is expected to already produce live, (optionally) TLS-terminated
// connections.
type Server struct {
	Service h1.Service
	Opts    h1.Options
	Log     *zap.Logger
	Metrics *metrics.Collector

	shutdown *GracefulShutdown
}

// NewServer returns a Server ready to Serve connections from a
// net.Listener.
func NewServer(svc h1.Service, opts h1.Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{Service: svc, Opts: opts, Log: log, Metrics: opts.Metrics, shutdown: NewGracefulShutdown()}
}

// WithMetrics attaches a Collector, propagated into every connection
// this Server subsequently accepts.
func (s *Server) WithMetrics(m *metrics.Collector) *Server {
	s.Metrics = m
	s.Opts.Metrics = m
	return s
}

// Serve accepts connections from ln until it errors or Shutdown is
// called, dispatching each one against s.Service on its own goroutine
// per §4.4/§5. Shutdown does not close ln: Serve returns once its
// pending Accept returns, closing without serving a connection
// accepted after Shutdown began.
func (s *Server) Serve(ln net.Listener) error {
	for {
		select {
		case <-s.shutdown.Draining():
			return nil
		default:
		}
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown.Draining():
				return nil
			default:
				return err
			}
		}
		select {
		case <-s.shutdown.Draining():
			conn.Close()
			return nil
		default:
		}
		s.shutdown.Track(func() error { return s.serveOne(conn) })
	}
}

// Shutdown stops accepting and waits for in-flight connections to
// finish their current exchange, per §5's graceful_shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.shutdown.Shutdown(ctx)
}

func (s *Server) serveOne(raw net.Conn) error {
	defer raw.Close()

	info := ConnInfo{ID: uuid.New(), LocalAddr: raw.LocalAddr(), RemoteAddr: raw.RemoteAddr()}
	if tc, ok := raw.(*tls.Conn); ok {
		info.ALPN = tc.ConnectionState().NegotiatedProtocol
	}

	// Canceled the moment the server starts draining, so Dispatcher.Serve
	// declines to start another pipelined exchange on this connection
	// (§5's "new reads are refused; in-flight exchanges complete").
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.shutdown.Draining():
			cancel()
		case <-ctx.Done():
		}
	}()

	conn := h1.New(raw, h1.RoleServer, s.Opts, s.Log)
	d := h1.NewDispatcher(conn)
	return d.Serve(ctx, connInfoService{svc: s.Service, info: info})
}

// connInfoService stamps every request's Extensions with the
// connection it arrived on (the ext.ConnInfo supplemented feature)
// before delegating to the configured Service.
type connInfoService struct {
	svc  h1.Service
	info ConnInfo
}

func (c connInfoService) Serve(ctx context.Context, head *RequestHead, reqBody body.Body) (*ResponseHead, body.Body, error) {
	WithConnInfo(&head.Extensions, c.info)
	return c.svc.Serve(ctx, head, reqBody)
}
