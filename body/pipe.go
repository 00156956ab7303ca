/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package body

import (
	"context"

	"github.com/badu/httpcore/hdr"
)

// Sink is what a Body Pipe (§4.7) drains a producer Body into: an H1
// Encoder writing onto a BufferedIO, or an H2 SendStream. Ready
// blocks until the sink can accept more data (flow control or a full
// write buffer); Reset aborts the stream when the producer errors.
type Sink interface {
	Ready(ctx context.Context) error
	WriteChunk(p []byte) error
	WriteTrailers(h *hdr.Header) error
	End() error
	Reset(err error) error
}

// Pipe drains b into sink until EOF, a trailers frame, or an error.
// It is the single implementation backing both H1-encoder sinks and
// H2 SendStream sinks (§4.7): "given a producer body B and a sink S
// ... drives poll_frame on B; for each data frame, encode_and_send on
// S respecting the sink's flow-control or buffer-ready signal".
func Pipe(ctx context.Context, b Body, sink Sink) error {
	for {
		frame, err := b.PollFrame(ctx)
		if err != nil {
			_ = sink.Reset(err)
			return err
		}
		if frame == nil {
			return sink.End()
		}
		if frame.IsTrailers() {
			if err := sink.WriteTrailers(frame.Trailers); err != nil {
				return err
			}
			return sink.End()
		}
		if err := sink.Ready(ctx); err != nil {
			_ = sink.Reset(err)
			return err
		}
		if err := sink.WriteChunk(frame.Data); err != nil {
			return err
		}
	}
}
