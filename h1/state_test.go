/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h1

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnStateKeepAliveAlgebra(t *testing.T) {
	s := NewConnState()
	assert.False(t, s.IsKeepAlive(), "fresh state has not reached keep-alive in either half")

	s.MarkBusy("GET")
	s.Reading = ReadKeepAlive
	s.Writing = WriteKeepAlive
	assert.True(t, s.IsKeepAlive())

	s.TryKeepAlive()
	assert.Equal(t, KeepAliveIdle, s.KeepAlive, "both halves keep-alive and busy collapses to idle")
	assert.True(t, s.IsKeepAlive())
}

func TestConnStateTryKeepAliveIdempotent(t *testing.T) {
	s := NewConnState()
	s.MarkBusy("GET")
	s.Reading = ReadKeepAlive
	s.Writing = WriteKeepAlive
	s.TryKeepAlive()
	s.TryKeepAlive()
	s.TryKeepAlive()
	assert.Equal(t, KeepAliveIdle, s.KeepAlive)
}

func TestConnStateClosedHalfDisablesKeepAlive(t *testing.T) {
	s := NewConnState()
	s.Reading = ReadClosed
	s.Writing = WriteKeepAlive
	s.TryKeepAlive()
	assert.Equal(t, ReadClosed, s.Reading)
	assert.Equal(t, WriteClosed, s.Writing)
	assert.Equal(t, KeepAliveDisabled, s.KeepAlive)
	assert.True(t, s.IsClosed())
}

func TestConnStateDisableKeepAliveWhileIdleClosesImmediately(t *testing.T) {
	s := NewConnState()
	assert.Equal(t, KeepAliveIdle, s.KeepAlive)
	s.DisableKeepAlive()
	assert.Equal(t, KeepAliveDisabled, s.KeepAlive)
	assert.Equal(t, ReadClosed, s.Reading)
	assert.Equal(t, WriteClosed, s.Writing)
}

func TestConnStateDisableKeepAliveWhileBusyDefers(t *testing.T) {
	s := NewConnState()
	s.MarkBusy("GET")
	s.DisableKeepAlive()
	assert.Equal(t, KeepAliveDisabled, s.KeepAlive)
	assert.NotEqual(t, ReadClosed, s.Reading, "busy connection does not close mid-exchange")
	assert.NotEqual(t, WriteClosed, s.Writing)
}

func TestConnStateCloseIsUnconditionalAndSticky(t *testing.T) {
	s := NewConnState()
	first := errors.New("boom")
	second := errors.New("second")
	s.Close(first)
	s.Close(second)
	assert.True(t, s.IsClosed())
	assert.Equal(t, KeepAliveDisabled, s.KeepAlive)
	assert.Equal(t, first, s.Err, "first recorded error is sticky")
}

func TestConnStateCloseReadingLeavesWritingAtInit(t *testing.T) {
	s := NewConnState()
	boom := errors.New("boom")
	s.CloseReading(boom)
	assert.Equal(t, ReadClosed, s.Reading)
	assert.Equal(t, WriteInit, s.Writing, "Writing must stay Init so an automatic error response can still be written")
	assert.Equal(t, KeepAliveDisabled, s.KeepAlive)
	assert.Equal(t, boom, s.Err)
}

func TestConnStateCloseReadingErrIsSticky(t *testing.T) {
	s := NewConnState()
	first := errors.New("first")
	second := errors.New("second")
	s.CloseReading(first)
	s.CloseReading(second)
	assert.Equal(t, first, s.Err)
}

func TestConnStateMarkBusyAndExchangeDone(t *testing.T) {
	s := NewConnState()
	s.MarkBusy("POST")
	assert.NotNil(t, s.Method)
	assert.Equal(t, "POST", *s.Method)
	s.MarkExchangeDone()
	assert.Nil(t, s.Method)
}
