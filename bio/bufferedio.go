/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package bio implements BufferedIO (§4.1): the layer that owns a
// connection's read and write buffers. The read buffer is a fixed
// 4096-byte bufio.Reader that does not grow; the configured cap
// (maxBufSize) applies only to bytes queued for write. For writes it
// chooses between a flattened single-buffer
// write strategy and a queued-vectored one backed by net.Buffers,
// mirroring badu-http's bufio.Reader/Writer pooling in conn.go but
// generalized to the two write strategies §4.1 describes.
package bio

import (
	"bufio"
	"io"
	"net"

	"github.com/badu/httpcore/herrors"
)

// WriteStrategy selects how the write buffer accumulates bytes before
// a Flush (§4.1).
type WriteStrategy uint8

const (
	// Auto starts QueuedVectored and downgrades permanently to
	// Flattened the first time a vectored write fails.
	Auto WriteStrategy = iota
	Flattened
	QueuedVectored
)

// DefaultMaxBufSize is the default cap on bytes queued for write, as
// checked by CanBuffer (§4.1: "≈ 400 KB"). It does not size the read
// buffer.
const DefaultMaxBufSize = 400 * 1024

// Transport is the minimal collaborator BufferedIO needs: a
// bidirectional byte stream. TCP/TLS establishment and Happy Eyeballs
// are out of scope (§1) — whatever satisfies this interface is
// already connected.
type Transport interface {
	io.Reader
	io.Writer
}

// BufferedIO owns the read/write buffers over an async byte stream
// (§4.1). It is exclusively owned by one connection task; no locking
// is required on it (§5).
type BufferedIO struct {
	transport Transport
	reader    *bufio.Reader
	maxBuf    int

	strategy    WriteStrategy
	resolved    WriteStrategy // Auto resolves to one of the other two on first flush
	flatBuf     []byte
	queued      net.Buffers
	queuedBytes int
}

// New wraps transport with a read buffer and a write strategy.
func New(transport Transport, strategy WriteStrategy, maxBufSize int) *BufferedIO {
	if maxBufSize <= 0 {
		maxBufSize = DefaultMaxBufSize
	}
	return &BufferedIO{
		transport: transport,
		reader:    bufio.NewReaderSize(transport, 4096),
		maxBuf:    maxBufSize,
		strategy:  strategy,
		resolved:  strategy,
	}
}

// Reader exposes the underlying bufio.Reader for the H1 Codec to
// parse heads and bodies from directly — BufferedIO's job is buffer
// lifetime, not wire grammar.
func (b *BufferedIO) Reader() *bufio.Reader { return b.reader }

// ReadFromIO pulls more bytes from the transport into the read
// buffer, returning the number of bytes newly available to Peek/Read.
// bufio.Reader owns the fixed-size read buffer, which ReadFromIO never
// grows; its role here is to surface transport errors uniformly as
// *herrors.Error.
func (b *BufferedIO) ReadFromIO() (int, error) {
	n, err := b.reader.Peek(1)
	if err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, herrors.IO(err)
	}
	return len(n), nil
}

// CanBuffer reports whether more data may be queued for write without
// exceeding maxBuf — the back-pressure signal other layers poll
// before writing another chunk.
func (b *BufferedIO) CanBuffer() bool {
	return b.queuedBytes+len(b.flatBuf) <= b.maxBuf
}

// QueueWrite stages p for the next Flush. In QueuedVectored mode p is
// held without copying (the caller must not mutate it after queuing);
// in Flattened mode it is appended to a contiguous buffer, which is
// required whenever the transport copies anyway (most TLS streams).
func (b *BufferedIO) QueueWrite(p []byte) {
	if len(p) == 0 {
		return
	}
	if b.effectiveStrategy() == QueuedVectored {
		b.queued = append(b.queued, p)
		b.queuedBytes += len(p)
		return
	}
	b.flatBuf = append(b.flatBuf, p...)
}

func (b *BufferedIO) effectiveStrategy() WriteStrategy {
	if b.strategy == Auto {
		if b.resolved == Auto {
			b.resolved = QueuedVectored
		}
		return b.resolved
	}
	return b.strategy
}

// Flush writes every staged byte to the transport. A failed vectored
// write under Auto permanently downgrades subsequent flushes to
// Flattened (§4.1's "downgrades to flattened on first failed vectored
// write").
func (b *BufferedIO) Flush() error {
	if b.effectiveStrategy() == QueuedVectored && len(b.queued) > 0 {
		if _, err := b.queued.WriteTo(writerOnly{b.transport}); err != nil {
			if b.strategy == Auto {
				b.resolved = Flattened
				for _, chunk := range b.queued {
					b.flatBuf = append(b.flatBuf, chunk...)
				}
				b.queued = nil
				b.queuedBytes = 0
				return b.Flush()
			}
			return herrors.IO(err)
		}
		b.queued = nil
		b.queuedBytes = 0
		return nil
	}
	if len(b.flatBuf) == 0 {
		return nil
	}
	if _, err := b.transport.Write(b.flatBuf); err != nil {
		return herrors.IO(err)
	}
	b.flatBuf = b.flatBuf[:0]
	return nil
}

type writerOnly struct{ w io.Writer }

func (w writerOnly) Write(p []byte) (int, error) { return w.w.Write(p) }

// ConsumeLeadingLines skips stray CRLF/LF sequences preceding a new
// message, the lenient-parse tolerance §4.1 describes for buggy
// clients that send an extra blank line after a POST body.
func (b *BufferedIO) ConsumeLeadingLines() error {
	for {
		peek, err := b.reader.Peek(2)
		if err != nil {
			return nil
		}
		switch {
		case peek[0] == '\n':
			b.reader.Discard(1)
		case peek[0] == '\r' && peek[1] == '\n':
			b.reader.Discard(2)
		default:
			return nil
		}
	}
}
