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
	"github.com/badu/httpcore/bio"
	"github.com/badu/httpcore/h1"
	"github.com/badu/httpcore/h2"
	"github.com/badu/httpcore/metrics"
)

// RoundTripper is the protocol-agnostic client entry point: one
// Exchange in, one Outcome out, whether the underlying connection
// speaks HTTP/1 or HTTP/2. Both Conn (via h1.Dispatcher.RoundTrip) and
// ClientSession (via h2.ClientSession.RoundTrip) satisfy it once
// wrapped by this file's adapters.
type RoundTripper interface {
	RoundTrip(ctx context.Context, head *RequestHead, reqBody body.Body) (*ResponseHead, body.Body, error)
}

// Client selects and wires one of the two protocol engines onto a
// caller-supplied, already-connected transport, stamping ConnInfo the
// same way Server does on the accept side. Dialing, TLS, and ALPN
// negotiation remain the caller's job per §1's Non-goals; Client only
// decides, from the negotiated protocol, which engine to build.
type Client struct {
	H1Opts  h1.Options
	H2Opts  h2.Options
	Log     *zap.Logger
	Metrics *metrics.Collector
}

// NewClient returns a Client with documented defaults for both
// engines.
func NewClient(log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{H1Opts: h1.DefaultOptions(), H2Opts: h2.DefaultOptions(), Log: log}
}

// Dial wraps an already-connected transport as a RoundTripper,
// choosing HTTP/2 when conn negotiated "h2" over ALPN. A plain
// net.Conn with no TLS state defaults to HTTP/1 — h2c upgrade
// negotiation is the caller's job, not this package's.
func (c *Client) Dial(conn net.Conn) (RoundTripper, ConnInfo, error) {
	info := ConnInfo{ID: uuid.New(), LocalAddr: conn.LocalAddr(), RemoteAddr: conn.RemoteAddr()}
	if tc, ok := conn.(*tls.Conn); ok {
		info.ALPN = tc.ConnectionState().NegotiatedProtocol
	}

	if info.ALPN == "h2" {
		h2opts := c.H2Opts
		h2opts.Metrics = c.Metrics
		session, err := h2.Dial(conn, h2opts, c.Log)
		if err != nil {
			return nil, info, err
		}
		return &h2RoundTripper{session: session, info: info}, info, nil
	}

	opts := c.H1Opts
	opts.Metrics = c.Metrics
	h1conn := h1.New(conn, h1.RoleClient, opts, c.Log)
	return &h1RoundTripper{dispatcher: h1.NewDispatcher(h1conn), info: info}, info, nil
}

type h1RoundTripper struct {
	dispatcher *h1.Dispatcher
	info       ConnInfo
}

func (rt *h1RoundTripper) RoundTrip(ctx context.Context, head *RequestHead, reqBody body.Body) (*ResponseHead, body.Body, error) {
	WithConnInfo(&head.Extensions, rt.info)
	out, err := rt.dispatcher.RoundTrip(ctx, h1.Exchange{Head: head, Body: reqBody})
	if err != nil {
		return nil, nil, err
	}
	return out.Head, out.Body, nil
}

type h2RoundTripper struct {
	session *h2.ClientSession
	info    ConnInfo
}

func (rt *h2RoundTripper) RoundTrip(ctx context.Context, head *RequestHead, reqBody body.Body) (*ResponseHead, body.Body, error) {
	WithConnInfo(&head.Extensions, rt.info)
	return rt.session.RoundTrip(ctx, head, reqBody)
}

// verify bio.Transport is satisfied by net.Conn, the contract Dial's
// callers rely on implicitly.
var _ bio.Transport = (net.Conn)(nil)
