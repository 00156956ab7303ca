/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package body implements the polymorphic Body the core consumes and
// produces (§3, §6), the pull-based Decoder/Encoder state machines
// that translate it to and from HTTP/1 wire framing (§3, §4.2), and
// the Body Pipe that streams a producer Body into a protocol-specific
// sink with backpressure (§4.7).
package body

import (
	"context"
	"io"

	"github.com/badu/httpcore/hdr"
)

// FrameKind distinguishes a data frame from a trailers frame.
type FrameKind uint8

const (
	FrameData FrameKind = iota
	FrameTrailers
)

// Frame is one unit a Body yields: either a data chunk or, at most
// once and only as the final frame, a trailers map.
type Frame struct {
	Kind     FrameKind
	Data     []byte
	Trailers *hdr.Header
}

func DataFrame(b []byte) Frame              { return Frame{Kind: FrameData, Data: b} }
func TrailersFrame(h *hdr.Header) Frame     { return Frame{Kind: FrameTrailers, Trailers: h} }
func (f Frame) IsData() bool                { return f.Kind == FrameData }
func (f Frame) IsTrailers() bool            { return f.Kind == FrameTrailers }

// SizeHint is a Body's size estimate: exact, at-most, or unknown.
type SizeHint struct {
	known bool
	exact bool
	n     uint64
}

func ExactSize(n uint64) SizeHint  { return SizeHint{known: true, exact: true, n: n} }
func AtMostSize(n uint64) SizeHint { return SizeHint{known: true, n: n} }
func UnknownSize() SizeHint        { return SizeHint{} }

// Exact returns (n, true) when the hint is an exact size.
func (s SizeHint) Exact() (uint64, bool) {
	if s.known && s.exact {
		return s.n, true
	}
	return 0, false
}

// UpperBound returns (n, true) when the hint bounds the body above,
// whether exact or "at most".
func (s SizeHint) UpperBound() (uint64, bool) {
	if s.known {
		return s.n, true
	}
	return 0, false
}

// Body is the polymorphic, lazy, finite, non-restartable sequence of
// data frames a request or response carries, optionally terminated by
// one trailers frame (§3, §6). PollFrame returns (nil, nil) at EOF
// with no trailers, and (Frame{Kind: FrameTrailers}, nil) as the
// final yielded frame when trailers are present.
type Body interface {
	PollFrame(ctx context.Context) (*Frame, error)
	IsEndStream() bool
	SizeHint() SizeHint
}

// Empty is the zero body: an immediate EOF with no data and no
// trailers, used for HEAD responses, 1xx/204/304, and CONNECT 2xx.
var Empty Body = emptyBody{}

type emptyBody struct{}

func (emptyBody) PollFrame(context.Context) (*Frame, error) { return nil, nil }
func (emptyBody) IsEndStream() bool                          { return true }
func (emptyBody) SizeHint() SizeHint                         { return ExactSize(0) }

// FromBytes returns a Body that yields b as a single data frame, then
// EOF. Useful for small, fully-buffered request/response bodies.
func FromBytes(b []byte) Body {
	if len(b) == 0 {
		return Empty
	}
	return &bytesBody{data: b}
}

type bytesBody struct {
	data []byte
	done bool
}

func (b *bytesBody) PollFrame(context.Context) (*Frame, error) {
	if b.done {
		return nil, nil
	}
	b.done = true
	f := DataFrame(b.data)
	return &f, nil
}

func (b *bytesBody) IsEndStream() bool  { return b.done }
func (b *bytesBody) SizeHint() SizeHint { return ExactSize(uint64(len(b.data))) }

// FromReader adapts an io.Reader into a Body that yields data frames
// of at most chunkSize bytes. hint describes the reader's total size,
// if known. This is the producer-side equivalent of Decoder: where
// Decoder pulls wire bytes into frames for the application, FromReader
// pulls application bytes into frames for the wire.
func FromReader(r io.Reader, hint SizeHint, chunkSize int) Body {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	return &readerBody{r: r, buf: make([]byte, chunkSize), hint: hint}
}

type readerBody struct {
	r    io.Reader
	buf  []byte
	hint SizeHint
	done bool
}

func (b *readerBody) PollFrame(ctx context.Context) (*Frame, error) {
	if b.done {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := b.r.Read(b.buf)
	if n > 0 {
		f := DataFrame(append([]byte(nil), b.buf[:n]...))
		if err == io.EOF {
			b.done = true
		} else if err != nil {
			return &f, nil
		}
		return &f, nil
	}
	if err == io.EOF {
		b.done = true
		return nil, nil
	}
	return nil, err
}

func (b *readerBody) IsEndStream() bool  { return b.done }
func (b *readerBody) SizeHint() SizeHint { return b.hint }
