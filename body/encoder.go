/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package body

import (
	"fmt"
	"io"

	"github.com/badu/httpcore/hdr"
	"github.com/badu/httpcore/herrors"
)

// EncoderKind is the dual of DecoderKind: the four ways a body can be
// framed onto the wire (§3).
type EncoderKind uint8

const (
	EncoderLength EncoderKind = iota
	EncoderChunked
	EncoderCloseDelimited
	EncoderEmpty
)

var crlf = []byte("\r\n")

// Encoder is the dual of Decoder: it writes data frames to an
// io.Writer (the connection's write buffer) in the framing chosen by
// the H1 Codec's encode decision table (§4.2), and tracks whether the
// stream is complete and whether keep-alive survives it.
type Encoder struct {
	kind      EncoderKind
	remaining uint64 // EncoderLength
	done      bool
	isLast    bool // keep-alive not possible after this encoder (§3)
}

func newEncoder(kind EncoderKind, remaining uint64, isLast bool) *Encoder {
	e := &Encoder{kind: kind, remaining: remaining, isLast: isLast}
	if kind == EncoderEmpty || (kind == EncoderLength && remaining == 0) {
		e.done = true
	}
	return e
}

func NewLengthEncoder(n uint64, isLast bool) *Encoder {
	return newEncoder(EncoderLength, n, isLast)
}
func NewChunkedEncoder(isLast bool) *Encoder { return newEncoder(EncoderChunked, 0, isLast) }
func NewCloseDelimitedEncoder() *Encoder    { return newEncoder(EncoderCloseDelimited, 0, true) }
func NewEmptyEncoder(isLast bool) *Encoder  { return newEncoder(EncoderEmpty, 0, isLast) }

func (e *Encoder) Kind() EncoderKind { return e.kind }
func (e *Encoder) IsEOF() bool       { return e.done }
func (e *Encoder) IsLast() bool      { return e.isLast }

// WriteChunk encodes one data frame to w per the encoder's framing.
// It errors if called after IsEOF or, for EncoderLength, if p would
// overrun the declared length.
func (e *Encoder) WriteChunk(w io.Writer, p []byte) error {
	if e.done {
		return herrors.New(herrors.KindProtocol, herrors.ReasonUnexpectedMessage)
	}
	switch e.kind {
	case EncoderLength:
		if uint64(len(p)) > e.remaining {
			return herrors.New(herrors.KindUser, herrors.ReasonBodyWrite)
		}
		if _, err := w.Write(p); err != nil {
			return herrors.IO(err)
		}
		e.remaining -= uint64(len(p))
		if e.remaining == 0 {
			e.done = true
		}
		return nil
	case EncoderChunked:
		if len(p) == 0 {
			return nil
		}
		if _, err := fmt.Fprintf(w, "%x\r\n", len(p)); err != nil {
			return herrors.IO(err)
		}
		if _, err := w.Write(p); err != nil {
			return herrors.IO(err)
		}
		if _, err := w.Write(crlf); err != nil {
			return herrors.IO(err)
		}
		return nil
	case EncoderCloseDelimited:
		if _, err := w.Write(p); err != nil {
			return herrors.IO(err)
		}
		return nil
	default: // EncoderEmpty
		if len(p) != 0 {
			return herrors.New(herrors.KindUser, herrors.ReasonBodyWrite)
		}
		return nil
	}
}

// End finalizes the encoder: for EncoderChunked, writes the zero-size
// chunk (and trailers, if any) and the terminating CRLF; for every
// other kind it only marks the encoder complete — close-delimited
// bodies end by the connection itself closing.
func (e *Encoder) End(w io.Writer, trailers *hdr.Header) error {
	defer func() { e.done = true }()
	if e.kind != EncoderChunked {
		return nil
	}
	if _, err := io.WriteString(w, "0\r\n"); err != nil {
		return herrors.IO(err)
	}
	if trailers != nil && trailers.Len() > 0 {
		if err := trailers.Write(w, nil); err != nil {
			return herrors.IO(err)
		}
	}
	if _, err := w.Write(crlf); err != nil {
		return herrors.IO(err)
	}
	return nil
}
