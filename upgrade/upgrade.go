/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package upgrade implements the Upgrade Bridge of §4.8: once a
// connection leaves HTTP semantics behind (a 101 response, or an
// RFC 8441 extended CONNECT stream), this package hands the caller a
// plain byte stream instead of forcing them back through h1 or h2.
package upgrade

import (
	"bufio"
	"io"

	"golang.org/x/net/http2"

	"github.com/badu/httpcore/herrors"
)

// Upgraded is the byte-stream handle §4.8 describes: whatever bytes
// the H1 Codec had already buffered past the 101 head are the first
// bytes Read returns, after which reads and writes pass straight
// through to the underlying transport (or H2 stream).
type Upgraded interface {
	io.Reader
	io.Writer
	io.Closer
}

// FromConn bridges a post-101 HTTP/1 connection: buffered is the
// connection's read buffer (which may already hold bytes the peer
// pipelined immediately after its Upgrade request), raw is the
// transport those buffered bytes came from, and closer releases the
// underlying connection. Grounded on init_npn_request.go and
// check_conn_error_writer.go's pattern of handing a raw net.Conn to a
// protocol switch once HTTP framing no longer applies.
func FromConn(buffered *bufio.Reader, raw io.ReadWriter, closer io.Closer) Upgraded {
	return &connUpgrade{buffered: buffered, raw: raw, closer: closer}
}

type connUpgrade struct {
	buffered *bufio.Reader
	raw      io.ReadWriter
	closer   io.Closer
}

// Read drains whatever the H1 Codec had already buffered before
// falling through to the raw transport, so no byte the peer sent is
// ever lost at the protocol switch.
func (u *connUpgrade) Read(p []byte) (int, error) {
	if u.buffered != nil {
		if u.buffered.Buffered() > 0 {
			return u.buffered.Read(p)
		}
		u.buffered = nil
	}
	n, err := u.raw.Read(p)
	if err != nil && err != io.EOF {
		return n, herrors.IO(err)
	}
	return n, err
}

func (u *connUpgrade) Write(p []byte) (int, error) {
	n, err := u.raw.Write(p)
	if err != nil {
		return n, herrors.IO(err)
	}
	return n, nil
}

func (u *connUpgrade) Close() error {
	if u.closer == nil {
		return nil
	}
	return u.closer.Close()
}

// FromH2Stream bridges an RFC 8441 extended CONNECT stream: an H2
// request and response body pair used as a duplex byte stream. RST
// frames and other stream-level failures surface through Read/Write
// as an ordinary *herrors.Error instead of a raw http2.StreamError (a
// stream reset becomes KindH2, a GOAWAY KindShutdown, anything else
// KindIO), so callers above this package never need to import
// golang.org/x/net/http2 themselves.
func FromH2Stream(r io.Reader, w io.Writer, closer io.Closer) Upgraded {
	return &h2Upgrade{r: r, w: w, closer: closer}
}

type h2Upgrade struct {
	r      io.Reader
	w      io.Writer
	closer io.Closer
}

func (u *h2Upgrade) Read(p []byte) (int, error) {
	n, err := u.r.Read(p)
	if err != nil && err != io.EOF {
		return n, mapStreamError(err)
	}
	return n, err
}

func (u *h2Upgrade) Write(p []byte) (int, error) {
	n, err := u.w.Write(p)
	if err != nil {
		return n, mapStreamError(err)
	}
	return n, nil
}

func (u *h2Upgrade) Close() error {
	if u.closer == nil {
		return nil
	}
	return u.closer.Close()
}

// mapStreamError turns an http2.StreamError (RST_STREAM) or
// http2.GoAwayError into the shared *herrors.Error taxonomy, per
// §4.8.
func mapStreamError(err error) error {
	switch err.(type) {
	case http2.StreamError:
		return herrors.Wrap(herrors.KindH2, "", err)
	case http2.GoAwayError:
		return herrors.Wrap(herrors.KindShutdown, "", err)
	default:
		return herrors.IO(err)
	}
}
