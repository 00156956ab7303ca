/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h2

import (
	"context"
	"io"
	"net"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/badu/httpcore"
	"github.com/badu/httpcore/body"
	"github.com/badu/httpcore/hdr"
	"github.com/badu/httpcore/herrors"
)

// ClientSession is the §4.5 H2 Client Session: one golang.org/x/net/http2
// connection, handshaken and SETTINGS-tuned, exposing one RoundTrip
// per exchange as the H1 Dispatcher does, though in terms of request
// and response heads and bodies rather than the Dispatcher's
// Exchange/Outcome types.
type ClientSession struct {
	cc   *http2.ClientConn
	opts Options
	log  *zap.Logger
	ping *PingRecorder
}

// Dial performs the H2 client preface and SETTINGS handshake over an
// already-connected, already-negotiated-h2 net.Conn (TLS/ALPN setup is
// an external collaborator per §1/§6 — this package never dials or
// negotiates ALPN itself).
func Dial(conn net.Conn, opts Options, log *zap.Logger) (*ClientSession, error) {
	if log == nil {
		log = zap.NewNop()
	}
	tr := &http2.Transport{
		ReadIdleTimeout:            opts.ReadIdleTimeout,
		PingTimeout:                opts.PingTimeout,
		MaxHeaderListSize:          opts.MaxHeaderListSize,
		MaxReadFrameSize:           opts.MaxFrameSize,
		StrictMaxConcurrentStreams: true,
	}
	cc, err := tr.NewClientConn(conn)
	if err != nil {
		return nil, herrors.Wrap(herrors.KindH2, "", err)
	}
	s := &ClientSession{cc: cc, opts: opts, log: log}
	if opts.PingInterval > 0 {
		s.ping = newPingRecorder(s, opts.PingInterval, opts.PingTimeout, log)
	}
	return s, nil
}

// Ping issues one HTTP/2 PING frame and waits for its acknowledgement,
// returning only an error; the round-trip time is measured around the
// call by PingRecorder, which feeds both explicit keep-alive and the
// BDP-based AdaptiveWindowEstimator (§4.5).
func (s *ClientSession) Ping(ctx context.Context) error {
	if err := s.cc.Ping(ctx); err != nil {
		return herrors.Wrap(herrors.KindH2, "", err)
	}
	return nil
}

// StartKeepAlive launches the background PingRecorder loop, if one
// was configured, and returns a stop function. Safe to call at most
// once per session.
func (s *ClientSession) StartKeepAlive(ctx context.Context) (stop func()) {
	if s.ping == nil {
		return func() {}
	}
	return s.ping.run(ctx)
}

// Ready reports whether the session can currently accept a new
// request (§4.5's "ready()/when_ready() split", supplemented from
// original_source/src/client/conn/http2.rs). golang.org/x/net/http2
// exposes this as a snapshot rather than a future to await, so unlike
// h1.Conn's blocking calls, the KindH2 / ReasonUnexpectedMessage
// error returned here when the connection cannot take a new request
// is a snapshot, not a fatal condition.
func (s *ClientSession) Ready() error {
	if !s.cc.CanTakeNewRequest() {
		return herrors.New(herrors.KindH2, herrors.ReasonUnexpectedMessage)
	}
	return nil
}

// RoundTrip sends one request head and body over the session and
// returns the response head and body, translating the core's head/body vocabulary to and from
// net/http's, which is what golang.org/x/net/http2.ClientConn speaks.
func (s *ClientSession) RoundTrip(ctx context.Context, head *httpcore.RequestHead, reqBody body.Body) (*httpcore.ResponseHead, body.Body, error) {
	req, err := buildRequest(ctx, head, reqBody)
	if err != nil {
		return nil, nil, herrors.Wrap(herrors.KindUser, herrors.ReasonHeader, err).WithRequest(head)
	}

	resp, err := s.cc.RoundTrip(req)
	if err != nil {
		if _, ok := err.(http2.StreamError); ok {
			return nil, nil, herrors.Wrap(herrors.KindH2, "", err)
		}
		return nil, nil, herrors.Wrap(herrors.KindIO, "", err).WithRequest(head)
	}

	respHead, err := responseHead(resp)
	if err != nil {
		return nil, nil, herrors.Wrap(herrors.KindParse, herrors.ReasonHeader, err)
	}
	hint := body.UnknownSize()
	if resp.ContentLength >= 0 {
		hint = body.ExactSize(uint64(resp.ContentLength))
	}
	return respHead, body.FromReader(&closeOnEOF{rc: resp.Body}, hint, 32*1024), nil
}

// Shutdown sends a GOAWAY and waits for in-flight streams to drain or
// ctx to expire, the graceful-close half of §4.5.
func (s *ClientSession) Shutdown(ctx context.Context) error {
	if err := s.cc.Shutdown(ctx); err != nil {
		return herrors.Wrap(herrors.KindShutdown, "", err)
	}
	return nil
}

// Close aborts the session immediately, without GOAWAY draining.
func (s *ClientSession) Close() error { return s.cc.Close() }

func buildRequest(ctx context.Context, head *httpcore.RequestHead, reqBody body.Body) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, head.Subject.Method, head.Subject.Target, nil)
	if err != nil {
		return nil, err
	}
	req.Proto = "HTTP/2.0"
	req.ProtoMajor, req.ProtoMinor = 2, 0
	req.Header = make(http.Header, head.Header.Len())
	head.Header.Range(func(key string, values []string) bool {
		if hdr.IsConnectionSpecific(key) {
			return true // §4.5 step 4: hop-by-hop fields never cross onto an H2 stream
		}
		req.Header[key] = append([]string(nil), values...)
		return true
	})
	if host := head.Header.Get(hdr.Host); host != "" {
		req.Host = host
	}
	if n, ok := reqBody.SizeHint().Exact(); ok {
		req.ContentLength = int64(n)
	} else {
		req.ContentLength = -1
	}
	if reqBody != nil && !reqBody.IsEndStream() {
		sink := newSendStreamSink(ctx)
		go func() {
			if err := body.Pipe(ctx, reqBody, sink); err != nil {
				_ = sink.Reset(err)
			}
		}()
		req.Body = sink.reader()
	}
	if proto, ok := head.Extensions.Get(extendedConnectProtocol); ok {
		req.Header.Set(hdr.Protocol, proto.(string))
	}
	return req, nil
}

// extendedConnectProtocol is the Extensions key a caller sets to
// perform an RFC 8441 extended CONNECT. golang.org/x/net/http2 has no
// public API to stamp the ":protocol" pseudo-header directly (the
// same gap noted by real-world RFC 8441 client code forced to speak
// raw HTTP/2 frames instead); this package forwards the value as a
// regular "Protocol" request header, which only round-trips through
// servers that specifically look for it rather than the wire
// pseudo-header itself.
const extendedConnectProtocol = "h2-extended-connect-protocol"

func responseHead(resp *http.Response) (*httpcore.ResponseHead, error) {
	h := hdr.New()
	for k, vv := range resp.Header {
		for _, v := range vv {
			h.Add(k, v)
		}
	}
	return &httpcore.ResponseHead{
		Version: httpcore.HTTP2,
		Subject: httpcore.StatusLine{Version: httpcore.HTTP2, Code: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)},
		Header:  h,
	}, nil
}

// closeOnEOF closes the wrapped ReadCloser the first time Read
// returns any error (including io.EOF), so response bodies streamed
// through body.FromReader still release their HTTP/2 stream promptly.
type closeOnEOF struct {
	rc     io.ReadCloser
	closed bool
}

func (c *closeOnEOF) Read(p []byte) (int, error) {
	n, err := c.rc.Read(p)
	if err != nil && !c.closed {
		c.closed = true
		_ = c.rc.Close()
	}
	return n, err
}
