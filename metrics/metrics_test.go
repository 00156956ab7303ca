/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	m := &dto.Metric{}
	require.NoError(t, (<-ch).Write(m))
	return m.GetCounter().GetValue()
}

func TestCollectorNilReceiverIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ConnectionAccepted()
		c.KeepAliveDisabled()
		c.ObservePingRTT(0.1)
	})
}

func TestCollectorRecordsConnectionsAndKeepAlive(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg, nil)

	c.ConnectionAccepted()
	c.ConnectionAccepted()
	c.KeepAliveDisabled()

	assert.Equal(t, float64(2), counterValue(t, c.h1Connections))
	assert.Equal(t, float64(1), counterValue(t, c.h1KeepAliveDisabled))
}

func TestCollectorRegistersDateRefreshFuncWhenProvided(t *testing.T) {
	reg := prometheus.NewRegistry()
	count := uint64(7)
	c := New(reg, func() uint64 { return count })
	require.NotNil(t, c.dateRefreshes)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if f.GetName() == "httpcore_date_header_refresh_total" {
			found = true
			assert.Equal(t, float64(7), f.Metric[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found, "httpcore_date_header_refresh_total must be registered when dateRefreshCount is non-nil")
}

func TestCollectorOmitsDateRefreshFuncWhenNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg, nil)
	assert.Nil(t, c.dateRefreshes)
}
