/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h2

import (
	"context"
	"io"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/badu/httpcore/hdr"
	"github.com/badu/httpcore/herrors"
)

// maxInFlightChunks bounds how many body.Pipe data frames a
// sendStreamSink will buffer ahead of golang.org/x/net/http2 actually
// reading them off req.Body, giving a concrete backpressure signal
// for "respecting the sink's flow-control or buffer-ready signal"
// (§4.7) on the send side of an H2 exchange.
const maxInFlightChunks = 8

// sendStreamSink adapts the pull-based io.ReadCloser
// golang.org/x/net/http2 wants for req.Body into the push-based
// body.Sink interface body.Pipe drives, bounding the number of
// unacknowledged frames in flight with a weighted semaphore rather
// than an unbounded channel.
type sendStreamSink struct {
	ctx      context.Context
	sem      *semaphore.Weighted
	data     chan []byte
	done     chan error
	closeOne sync.Once
}

func newSendStreamSink(ctx context.Context) *sendStreamSink {
	return &sendStreamSink{
		ctx:  ctx,
		sem:  semaphore.NewWeighted(maxInFlightChunks),
		data: make(chan []byte),
		done: make(chan error, 1),
	}
}

func (s *sendStreamSink) Ready(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return herrors.Wrap(herrors.KindCanceled, "", err)
	}
	return nil
}

func (s *sendStreamSink) WriteChunk(p []byte) error {
	select {
	case s.data <- p:
		return nil
	case <-s.ctx.Done():
		return herrors.Canceled()
	}
}

func (s *sendStreamSink) WriteTrailers(*hdr.Header) error { return nil } // H2 request trailers: not exposed by this client's RoundTrip

func (s *sendStreamSink) End() error {
	s.closeOne.Do(func() { close(s.data) })
	return nil
}

func (s *sendStreamSink) Reset(err error) error {
	s.closeOne.Do(func() {
		s.done <- err
		close(s.data)
	})
	return nil
}

// reader returns an io.ReadCloser suitable for http.Request.Body: each
// Read drains one buffered chunk and releases the semaphore permit
// body.Pipe is waiting on for the next one.
func (s *sendStreamSink) reader() io.ReadCloser { return &sendStreamReader{sink: s} }

type sendStreamReader struct {
	sink *sendStreamSink
	left []byte
}

func (r *sendStreamReader) Read(p []byte) (int, error) {
	for len(r.left) == 0 {
		select {
		case err := <-r.sink.done:
			if err != nil {
				return 0, herrors.Wrap(herrors.KindIO, "", err)
			}
			return 0, io.EOF
		case chunk, ok := <-r.sink.data:
			if !ok {
				// A Reset closes data and done together; report its
				// error rather than a clean EOF.
				select {
				case err := <-r.sink.done:
					if err != nil {
						return 0, herrors.Wrap(herrors.KindIO, "", err)
					}
				default:
				}
				return 0, io.EOF
			}
			r.left = chunk
			r.sink.sem.Release(1)
		}
	}
	n := copy(p, r.left)
	r.left = r.left[n:]
	return n, nil
}

func (r *sendStreamReader) Close() error { return nil }
