/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h1

import (
	"io"

	"go.uber.org/zap"

	"github.com/badu/httpcore"
	"github.com/badu/httpcore/bio"
	"github.com/badu/httpcore/body"
	"github.com/badu/httpcore/hdr"
	"github.com/badu/httpcore/herrors"
)

// Conn is the per-connection state machine of §4.3: it exclusively
// owns a BufferedIO, a ConnState, and whatever Decoder/Encoder is
// currently open (§3's ownership rule; §5's "no locks required").
// Conn itself never touches an application type — it hands parsed
// heads and decoded frames to whatever calls it (the Dispatcher).
type Conn struct {
	IO    *bio.BufferedIO
	State *ConnState
	Role  Role
	Opts  Options
	Log   *zap.Logger

	// pendingRequestMethod remembers the method of the request the
	// current response belongs to: on the client, the request a
	// response is being parsed for; on the server, the request last
	// read, whose response WriteHead encodes. Response framing depends
	// on it (HEAD -> zero body, CONNECT -> upgrade).
	pendingRequestMethod string
}

// New builds a Conn bound to transport via a fresh BufferedIO.
func New(transport bio.Transport, role Role, opts Options, log *zap.Logger) *Conn {
	if log == nil {
		log = zap.NewNop()
	}
	strategy := bio.Auto
	switch opts.Writev {
	case WritevOn:
		strategy = bio.QueuedVectored
	case WritevOff:
		strategy = bio.Flattened
	}
	opts.Metrics.ConnectionAccepted()
	return &Conn{
		IO:    bio.New(transport, strategy, opts.MaxBufSize),
		State: NewConnState(),
		Role:  role,
		Opts:  opts,
		Log:   log,
	}
}

func (c *Conn) parseCtx() ParseContext {
	return ParseContext{
		Role:               c.Role,
		PreserveHeaderCase: c.Opts.PreserveHeaderCase,
		RequestMethod:      c.pendingRequestMethod,
	}
}

// ReadHead implements the Init -> Body|KeepAlive reading transition
// of §4.3. On the server it parses a request; on the client it parses
// a response for the outstanding request (requestMethod), skipping
// any number of DecodeIgnore (1xx, non-101) heads and retrying, as
// §4.2's "Ignore" DecodeAction requires.
func (c *Conn) ReadHead(requestMethod string) (*ParsedMessage, error) {
	if c.State.Reading == ReadClosed {
		return nil, herrors.New(herrors.KindProtocol, herrors.ReasonUnexpectedMessage)
	}
	c.pendingRequestMethod = requestMethod
	if err := c.IO.ConsumeLeadingLines(); err != nil {
		return nil, err
	}

	var (
		msg *ParsedMessage
		err error
	)
	for {
		if c.Role == RoleServer {
			msg, err = ParseRequest(c.IO.Reader(), c.parseCtx())
		} else {
			msg, err = ParseResponse(c.IO.Reader(), c.parseCtx(), requestMethod)
		}
		if err != nil {
			// Close only the reading half: Writing stays at Init so
			// WriteAutoError can still emit the automatic 4xx below.
			c.State.CloseReading(err)
			return nil, err
		}
		if msg.Decode.Kind == DecodeIgnore {
			continue // 1xx other than 101: skip and re-parse
		}
		break
	}

	if c.Role == RoleServer {
		c.pendingRequestMethod = msg.RequestHead.Subject.Method
	}
	if !msg.KeepAlive {
		c.State.KeepAlive = KeepAliveDisabled
	}
	if msg.Decode.Decoder.IsEOF() {
		c.State.Reading = ReadKeepAlive
	} else {
		c.State.Reading = ReadBody
	}
	c.State.ReadDecoder = msg.Decode.Decoder
	return msg, nil
}

// ReadBodyChunk drives the open Decoder (Body(d) -> read_body of
// §4.3), returning io.EOF once the decoder is exhausted and
// transitioning Reading to KeepAlive.
func (c *Conn) ReadBodyChunk() ([]byte, error) {
	if c.State.Reading != ReadBody {
		return nil, io.EOF
	}
	chunk, err := c.State.ReadDecoder.Decode(c.IO.Reader())
	if err == io.EOF {
		c.State.Reading = ReadKeepAlive
		c.tryKeepAlive()
		return chunk, io.EOF
	}
	if err != nil {
		if err == io.ErrUnexpectedEOF && c.Opts.HalfClose {
			c.State.Reading = ReadKeepAlive
			return chunk, io.EOF
		}
		reason := herrors.ReasonIncompleteMessage
		c.State.Close(herrors.New(herrors.KindProtocol, reason))
		return chunk, c.State.Err
	}
	return chunk, nil
}

// WriteHead implements the Init -> Body|KeepAlive|Closed writing
// transition of §4.3, delegating framing to the H1 Codec.
func (c *Conn) WriteHead(reqHead *httpcore.RequestHead, respHead *httpcore.ResponseHead, bodyHint body.SizeHint) (*body.Encoder, error) {
	opt := EncodeOptions{TitleCaseHeaders: c.Opts.TitleCaseHeaders, AutoDate: c.Role == RoleServer}
	var (
		enc *body.Encoder
		err error
	)
	if c.Role == RoleClient {
		enc, err = EncodeRequest(reqHead, bodyHint, stagingWriter{c.IO}, opt)
	} else {
		enc, err = EncodeResponse(respHead, c.pendingRequestMethod, bodyHint, c.State.KeepAlive != KeepAliveDisabled && c.Opts.KeepAlive, stagingWriter{c.IO}, opt)
	}
	if err != nil {
		c.State.Close(err)
		return nil, err
	}
	c.State.WriteEncoder = enc
	if enc.IsEOF() {
		if enc.IsLast() {
			c.State.Writing = WriteClosed
		} else {
			c.State.Writing = WriteKeepAlive
		}
	} else {
		c.State.Writing = WriteBody
	}
	return enc, nil
}

// WriteBodyChunk drives the open Encoder.
func (c *Conn) WriteBodyChunk(chunk []byte) error {
	if c.State.Writing != WriteBody {
		return herrors.New(herrors.KindProtocol, herrors.ReasonUnexpectedMessage)
	}
	if err := c.State.WriteEncoder.WriteChunk(stagingWriter{c.IO}, chunk); err != nil {
		c.State.Close(err)
		return err
	}
	if c.State.WriteEncoder.IsEOF() {
		c.finishWrite()
	}
	return nil
}

// EndBody finalizes the open Encoder, optionally with trailers
// (chunked only).
func (c *Conn) EndBody(trailers *hdr.Header) error {
	if c.State.Writing != WriteBody {
		return nil
	}
	if err := c.State.WriteEncoder.End(stagingWriter{c.IO}, trailers); err != nil {
		c.State.Close(err)
		return err
	}
	c.finishWrite()
	return nil
}

func (c *Conn) finishWrite() {
	if c.State.WriteEncoder.IsLast() {
		c.State.Writing = WriteClosed
	} else {
		c.State.Writing = WriteKeepAlive
	}
	c.tryKeepAlive()
}

// tryKeepAlive is TryKeepAlive plus the NotifyRead bookkeeping §4.3
// calls out: a response finished writing while the read half was
// parked mid-pipeline needs the Dispatcher to be re-polled.
func (c *Conn) tryKeepAlive() {
	before := c.State.Reading == ReadKeepAlive && c.State.Writing == WriteKeepAlive
	c.State.TryKeepAlive()
	if before && c.IO.Reader().Buffered() > 0 {
		c.State.NotifyRead = true
	}
}

// DisableKeepAlive disables reuse of this connection, per §4.3.
func (c *Conn) DisableKeepAlive() {
	c.State.DisableKeepAlive()
	c.Opts.Metrics.KeepAliveDisabled()
}

// Flush pushes the write buffer to the transport (poll_flush of
// §4.4's third step) and re-runs TryKeepAlive.
func (c *Conn) Flush() error {
	if err := c.IO.Flush(); err != nil {
		c.State.Close(err)
		return err
	}
	c.tryKeepAlive()
	return nil
}

// WriteAutoError implements §4.3/§7's automatic 4xx: only legal while
// Writing is still Init (the reading half's parse-error path closes
// only Reading via CloseReading, leaving Writing at Init for this).
// 400 covers method/URI/header/version failures; 431 covers oversize
// headers. The connection is already permanently disabled for reuse
// (CloseReading set KeepAlive to Disabled), so EncodeResponse is told
// keepAlive=true purely to suppress its own "Connection: close"
// header injection: §4.3/§7's automatic response closes the
// connection without announcing it on the wire.
func (c *Conn) WriteAutoError(cause error) error {
	if c.State.Writing != WriteInit {
		return cause
	}
	code := 400
	reason := "Bad Request"
	if herr, ok := cause.(*herrors.Error); ok && herr.Reason == herrors.ReasonTooLarge {
		code = 431
		reason = "Request Header Fields Too Large"
	}
	head := &httpcore.ResponseHead{
		Version: httpcore.HTTP11,
		Subject: httpcore.StatusLine{Version: httpcore.HTTP11, Code: code, Reason: reason},
		Header:  hdr.New(),
	}
	head.Header.Set(hdr.ContentLength, "0")
	opt := EncodeOptions{TitleCaseHeaders: c.Opts.TitleCaseHeaders, AutoDate: true}
	enc, err := EncodeResponse(head, "", body.ExactSize(0), true, stagingWriter{c.IO}, opt)
	if err != nil {
		return cause
	}
	c.State.WriteEncoder = enc
	c.State.Writing = WriteClosed
	if err := c.Flush(); err != nil {
		return cause
	}
	c.State.Close(cause)
	return cause
}

// stagingWriter adapts BufferedIO's QueueWrite into an io.Writer for
// the codec and Encoder, which only know how to Write.
type stagingWriter struct{ io *bio.BufferedIO }

func (s stagingWriter) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	s.io.QueueWrite(cp)
	return len(p), nil
}
