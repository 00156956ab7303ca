/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h1

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/badu/httpcore"
	"github.com/badu/httpcore/body"
	"github.com/badu/httpcore/dispatch"
	"github.com/badu/httpcore/hdr"
	"github.com/badu/httpcore/herrors"
)

// pipelineBudget bounds how many requests a server Dispatcher will
// pull off one connection before forcing a Flush, so one pipelining
// client sharing a goroutine pool slot cannot starve a Flush call
// waiting behind a deep read buffer (§4.4's fairness budget, reworked
// from a poll-loop iteration count into a read-ahead bound since Go
// has no cooperative poll budget to spend).
const pipelineBudget = 16

// Service answers one request on a server connection; reqBody streams
// the request entity. Whatever part of reqBody the service leaves
// unread is drained by Serve before the response is written, so the
// connection can advance to the next pipelined request.
type Service interface {
	Serve(ctx context.Context, head *httpcore.RequestHead, reqBody body.Body) (*httpcore.ResponseHead, body.Body, error)
}

// ServiceFunc adapts a plain function to Service.
type ServiceFunc func(ctx context.Context, head *httpcore.RequestHead, reqBody body.Body) (*httpcore.ResponseHead, body.Body, error)

func (f ServiceFunc) Serve(ctx context.Context, head *httpcore.RequestHead, reqBody body.Body) (*httpcore.ResponseHead, body.Body, error) {
	return f(ctx, head, reqBody)
}

// Dispatcher owns a Conn and drives it against either a Service
// (server role) or a Dispatch Channel of outgoing exchanges (client
// role), per §4.4. A Dispatcher is used from exactly one goroutine —
// the "connection task" — matching the ownership rule of §5.
type Dispatcher struct {
	conn *Conn
	log  *zap.Logger
}

// NewDispatcher wraps conn for driving by Serve or RunClient.
func NewDispatcher(conn *Conn) *Dispatcher {
	return &Dispatcher{conn: conn, log: conn.Log}
}

// Serve runs the server side of §4.4: read a head, deliver it and a
// streaming body to svc, pipe whatever Body svc returns back as the
// response, and repeat while the connection remains keep-alive. It
// returns nil when the peer closes cleanly, or the first error that
// forced the connection closed. Once ctx is Done (the graceful
// shutdown draining signal, see GracefulShutdown.Draining)
// Serve declines to start another pipelined exchange and returns,
// letting whatever exchange is already in flight finish first (§5).
func (d *Dispatcher) Serve(ctx context.Context, svc Service) error {
	// An exchange already read runs on a context that ignores ctx's
	// cancellation, so it is answered in full while draining.
	exCtx := context.WithoutCancel(ctx)
	count := 0
	for {
		msg, err := d.conn.ReadHead("")
		if err != nil {
			if herr, ok := err.(*herrors.Error); ok && herr.Kind == herrors.KindIO && count > 0 {
				return nil // peer closed between pipelined requests
			}
			_ = d.conn.WriteAutoError(err)
			return err
		}

		reqBody := &decoderBody{conn: d.conn}
		respHead, respBody, err := svc.Serve(exCtx, msg.RequestHead, reqBody)
		drainBody(exCtx, reqBody)
		if err != nil {
			respHead, respBody = serviceErrorResponse(err)
		}
		if respBody == nil {
			respBody = body.Empty
		}

		if err := d.writeResponse(exCtx, respHead, respBody); err != nil {
			return err
		}

		count++
		if !d.conn.State.IsKeepAlive() {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil // draining: let this exchange finish, refuse the next
		default:
		}
		if count%pipelineBudget == 0 {
			if err := d.conn.Flush(); err != nil {
				return err
			}
		}
	}
}

func (d *Dispatcher) writeResponse(ctx context.Context, head *httpcore.ResponseHead, b body.Body) error {
	enc, err := d.conn.WriteHead(nil, head, b.SizeHint())
	if err != nil {
		return err
	}
	_ = enc
	sink := &connSink{conn: d.conn}
	if err := body.Pipe(ctx, b, sink); err != nil {
		return err
	}
	return d.conn.Flush()
}

// serviceErrorResponse turns a Service error into a 500, in the manner
// of a top-level panic/error recovery guarding a server loop (§7's
// "Service: application handler returned an error").
func serviceErrorResponse(err error) (*httpcore.ResponseHead, body.Body) {
	head := &httpcore.ResponseHead{
		Version: httpcore.HTTP11,
		Subject: httpcore.StatusLine{Version: httpcore.HTTP11, Code: 500, Reason: "Internal Server Error"},
		Header:  hdr.New(),
	}
	head.Header.Set(hdr.ContentLength, "0")
	return head, body.Empty
}

// drainBody reads a request body to completion so the next pipelined
// request can be parsed; a Service that ignores the body must not
// leave unread bytes on the wire.
func drainBody(ctx context.Context, b body.Body) {
	for {
		f, err := b.PollFrame(ctx)
		if err != nil || f == nil {
			return
		}
	}
}

// Exchange is one outgoing request a client Dispatcher sends,
// accompanied by its request body.
type Exchange struct {
	Head *httpcore.RequestHead
	Body body.Body
}

// Outcome is the response a client Dispatcher delivers back through
// the Dispatch Channel.
type Outcome struct {
	Head *httpcore.ResponseHead
	Body body.Body
}

// RunClient runs the client side of §4.4: pull exchanges from ch,
// write each request and pipe its body, read the matching response,
// and complete the entry with an Outcome whose Body streams lazily
// off the same Conn. It returns when ch closes and drains, or the
// connection fails.
func (d *Dispatcher) RunClient(ctx context.Context, ch *dispatch.Channel[Exchange, Outcome]) error {
	for {
		entry, err := ch.PollRecv(ctx)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil // channel closed and drained
		}

		select {
		case <-entry.Canceled():
			continue
		default:
		}

		outcome, sendErr := d.roundTrip(ctx, entry.Message)
		if sendErr != nil {
			entry.Complete(Outcome{}, sendErr)
			if !d.conn.State.IsKeepAlive() {
				return sendErr
			}
			continue
		}
		entry.Complete(outcome, nil)

		if !d.conn.State.IsKeepAlive() {
			return nil
		}
	}
}

// RoundTrip performs a single exchange directly against the Conn,
// without a Dispatch Channel. It is the synchronous entry point a
// top-level Client uses when it owns the Conn outright (no
// multiplexing across goroutines), as opposed to RunClient's
// channel-fed loop for a Conn shared by multiple callers.
func (d *Dispatcher) RoundTrip(ctx context.Context, ex Exchange) (Outcome, error) {
	out, err := d.roundTrip(ctx, ex)
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func (d *Dispatcher) roundTrip(ctx context.Context, ex Exchange) (Outcome, *herrors.Error) {
	reqBody := ex.Body
	if reqBody == nil {
		reqBody = body.Empty
	}
	enc, err := d.conn.WriteHead(ex.Head, nil, reqBody.SizeHint())
	if err != nil {
		return Outcome{}, herrors.Wrap(herrors.KindUser, herrors.ReasonBodyWrite, err).WithRequest(ex)
	}
	_ = enc
	if err := body.Pipe(ctx, reqBody, &connSink{conn: d.conn}); err != nil {
		return Outcome{}, herrors.IO(err)
	}
	if err := d.conn.Flush(); err != nil {
		return Outcome{}, herrors.IO(err)
	}

	msg, err := d.conn.ReadHead(ex.Head.Subject.Method)
	if err != nil {
		return Outcome{}, herrors.IO(err)
	}
	return Outcome{Head: msg.ResponseHead, Body: &decoderBody{conn: d.conn}}, nil
}

// decoderBody adapts Conn.ReadBodyChunk into a Body so a request or
// response entity can be handed to an application as a normal
// streaming producer, matching the Decoder(d) reading phase of §4.3
// to the polymorphic Body of §3.
type decoderBody struct {
	conn *Conn
	done bool
}

func (b *decoderBody) PollFrame(ctx context.Context) (*body.Frame, error) {
	if b.done {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chunk, err := b.conn.ReadBodyChunk()
	if err == nil {
		if len(chunk) == 0 {
			return b.PollFrame(ctx)
		}
		f := body.DataFrame(chunk)
		return &f, nil
	}
	if err == io.EOF {
		b.done = true
		if trailer := b.conn.State.ReadDecoder.Trailer(); trailer != nil && trailer.Len() > 0 {
			f := body.TrailersFrame(trailer)
			return &f, nil
		}
		if len(chunk) > 0 {
			f := body.DataFrame(chunk)
			return &f, nil
		}
		return nil, nil
	}
	return nil, err
}

func (b *decoderBody) IsEndStream() bool { return b.done }

func (b *decoderBody) SizeHint() body.SizeHint { return body.UnknownSize() }

// connSink adapts Conn's write-phase methods into a body.Sink, so
// body.Pipe can drain an application Body onto the wire without
// knowing it is talking to an HTTP/1 connection (§4.7).
type connSink struct{ conn *Conn }

func (s *connSink) Ready(ctx context.Context) error { return ctx.Err() }

func (s *connSink) WriteChunk(p []byte) error { return s.conn.WriteBodyChunk(p) }

func (s *connSink) WriteTrailers(h *hdr.Header) error { return s.conn.EndBody(h) }

func (s *connSink) End() error { return s.conn.EndBody(nil) }

func (s *connSink) Reset(err error) error {
	s.conn.DisableKeepAlive()
	s.conn.State.Close(err)
	return nil
}
