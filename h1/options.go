/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h1

import (
	"time"

	"github.com/badu/httpcore/metrics"
)

// Options collects the http1_* configurable options of §6, populated
// with the documented defaults (struct-of-flags style, in the manner
// of net/http's Server/Transport config structs).
type Options struct {
	KeepAlive          bool
	HalfClose          bool
	TitleCaseHeaders   bool
	PreserveHeaderCase bool
	Writev             WritevMode
	MaxBufSize         int
	PipelineFlush      bool
	HeaderReadTimeout  time.Duration

	// Metrics is nil-safe: a nil Collector disables collection.
	Metrics *metrics.Collector
}

// WritevMode is the tri-state auto/true/false of http1_writev.
type WritevMode uint8

const (
	WritevAuto WritevMode = iota
	WritevOn
	WritevOff
)

// DefaultOptions mirrors §6's documented defaults.
func DefaultOptions() Options {
	return Options{
		KeepAlive:  true,
		HalfClose:  false,
		Writev:     WritevAuto,
		MaxBufSize: 400 * 1024,
	}
}
