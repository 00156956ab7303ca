/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package body

import (
	"bufio"
	"bytes"
	"io"
	"strconv"

	"github.com/badu/httpcore"
	"github.com/badu/httpcore/hdr"
	"github.com/badu/httpcore/herrors"
)

// DecoderKind identifies which of the four framings (§3) a Decoder
// implements.
type DecoderKind uint8

const (
	DecoderLength DecoderKind = iota
	DecoderChunked
	DecoderEof
	DecoderEmpty
)

// Decoder is the pull-based state machine that turns wire bytes read
// from a bufio.Reader into body Frames (§3). Decode returns the decoded
// body payload piece by piece and io.EOF once it is exhausted; after
// that, Trailer returns any trailer fields (Chunked only).
type Decoder struct {
	kind      DecoderKind
	remaining uint64 // DecoderLength
	eof       bool
	chunk     chunkState // DecoderChunked
	trailer   *hdr.Header
}

// NewDecoder builds a Decoder from a DecodedLength per §3's "serves
// as the input to Decoder construction".
func NewDecoder(dl httpcore.DecodedLength) *Decoder {
	switch {
	case dl.IsZero():
		return &Decoder{kind: DecoderEmpty, eof: true}
	case dl.IsClose():
		return &Decoder{kind: DecoderEof}
	case dl.IsChunked():
		return &Decoder{kind: DecoderChunked}
	default:
		n, _ := dl.Known()
		return &Decoder{kind: DecoderLength, remaining: n, eof: n == 0}
	}
}

// Kind reports which framing variant this Decoder implements.
func (d *Decoder) Kind() DecoderKind { return d.kind }

// IsEOF is monotonic: once true it never reverts (§3).
func (d *Decoder) IsEOF() bool { return d.eof }

// Decode reads the next body chunk from r, returning io.EOF once the
// framing signals completion (a zero-size chunk, the declared
// content-length reached, or — for DecoderEof — the transport closing).
func (d *Decoder) Decode(r *bufio.Reader) ([]byte, error) {
	if d.eof {
		return nil, io.EOF
	}
	switch d.kind {
	case DecoderEmpty:
		d.eof = true
		return nil, io.EOF
	case DecoderLength:
		return d.decodeLength(r)
	case DecoderChunked:
		return d.decodeChunked(r)
	case DecoderEof:
		return d.decodeEof(r)
	default:
		d.eof = true
		return nil, io.EOF
	}
}

func (d *Decoder) decodeLength(r *bufio.Reader) ([]byte, error) {
	want := d.remaining
	if want > 32*1024 {
		want = 32 * 1024
	}
	buf := make([]byte, want)
	n, err := io.ReadFull(r, buf)
	d.remaining -= uint64(n)
	if d.remaining == 0 {
		d.eof = true
	}
	if err != nil && err != io.ErrUnexpectedEOF {
		return buf[:n], err
	}
	if d.eof && n == 0 {
		return nil, io.EOF
	}
	return buf[:n], nil
}

func (d *Decoder) decodeEof(r *bufio.Reader) ([]byte, error) {
	buf := make([]byte, 32*1024)
	n, err := r.Read(buf)
	if err == io.EOF {
		d.eof = true
	}
	if n > 0 {
		return buf[:n], nil
	}
	return nil, err
}

// chunkState tracks progress through "*(chunk-size [ext] CRLF
// chunk-data CRLF) 0 CRLF *trailer CRLF" (§6).
type chunkState struct {
	inChunk  bool
	n        uint64 // bytes left in current chunk
	sawFinal bool
}

func (d *Decoder) decodeChunked(r *bufio.Reader) ([]byte, error) {
	for {
		if d.chunk.sawFinal {
			trailer, err := readTrailer(r)
			if err != nil {
				return nil, err
			}
			d.trailer = trailer
			d.eof = true
			return nil, io.EOF
		}
		if !d.chunk.inChunk {
			n, err := readChunkSize(r)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				d.chunk.sawFinal = true
				continue
			}
			d.chunk.inChunk = true
			d.chunk.n = n
		}
		want := d.chunk.n
		if want > 32*1024 {
			want = 32 * 1024
		}
		buf := make([]byte, want)
		n, err := io.ReadFull(r, buf)
		d.chunk.n -= uint64(n)
		if err != nil {
			return buf[:n], err
		}
		if d.chunk.n == 0 {
			d.chunk.inChunk = false
			if _, err := readCRLF(r); err != nil {
				return buf[:n], err
			}
		}
		if n > 0 {
			return buf[:n], nil
		}
	}
}

// Trailer returns the trailer fields read after the terminal chunk,
// or nil if the Decoder is not Chunked or has not reached EOF yet.
func (d *Decoder) Trailer() *hdr.Header { return d.trailer }

func readCRLF(r *bufio.Reader) (struct{}, error) {
	var b [2]byte
	_, err := io.ReadFull(r, b[:])
	if err != nil {
		return struct{}{}, err
	}
	if b[0] != '\r' || b[1] != '\n' {
		return struct{}{}, httpcoreChunkErr()
	}
	return struct{}{}, nil
}

// readChunkSize parses "1*HEXDIGIT [';' chunk-ext] CRLF" (§6's chunk
// framing grammar, tested by §8's boundary table).
func readChunkSize(r *bufio.Reader) (uint64, error) {
	line, err := readLine(r)
	if err != nil {
		return 0, err
	}
	if i := bytes.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	} else if i := bytes.IndexAny(line, " \t"); i >= 0 {
		// a non-hex, non-extension byte before any ';' is an error
		// per §8 ("1 invalid\r\n" -> error), so only trim when what
		// follows is itself blank.
		rest := bytes.TrimSpace(line[i:])
		if len(rest) != 0 {
			return 0, httpcoreChunkErr()
		}
		line = line[:i]
	}
	if len(line) == 0 {
		return 0, httpcoreChunkErr()
	}
	n, err := strconv.ParseUint(string(line), 16, 64)
	if err != nil {
		return 0, httpcoreChunkErr()
	}
	return n, nil
}

// readLine reads one CRLF- or LF-terminated line, stripping the
// terminator, erroring if the reader hits EOF mid-line (covers §8's
// "10\r" without LF -> error case).
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err != nil {
		if err == bufio.ErrBufferFull {
			return nil, httpcoreChunkErr()
		}
		return nil, err
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, nil
}

func readTrailer(r *bufio.Reader) (*hdr.Header, error) {
	h := hdr.New()
	for {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			return h, nil
		}
		i := bytes.IndexByte(line, ':')
		if i < 0 {
			return nil, httpcoreChunkErr()
		}
		name := string(bytes.TrimSpace(line[:i]))
		val := string(bytes.TrimSpace(line[i+1:]))
		h.Add(name, val)
	}
}

func httpcoreChunkErr() error { return herrors.New(herrors.KindParse, herrors.ReasonChunkSize) }
