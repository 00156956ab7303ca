/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpcore

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/badu/httpcore/body"
	"github.com/badu/httpcore/h1"
	"github.com/badu/httpcore/hdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func greetingService() h1.Service {
	return h1.ServiceFunc(func(ctx context.Context, head *RequestHead, reqBody body.Body) (*ResponseHead, body.Body, error) {
		h := hdr.New()
		return &ResponseHead{
			Version: HTTP11,
			Subject: StatusLine{Version: HTTP11, Code: 200, Reason: "OK"},
			Header:  h,
		}, body.FromBytes([]byte("hi " + head.Subject.Target)), nil
	})
}

func TestServerAndClientEndToEnd(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := NewServer(greetingService(), h1.DefaultOptions(), nil)
	go srv.Serve(ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	client := NewClient(nil)
	rt, info, err := client.Dial(conn)
	require.NoError(t, err)
	assert.Empty(t, info.ALPN, "a plain net.Conn carries no ALPN")

	reqHead := &RequestHead{
		Version: HTTP11,
		Subject: RequestLine{Method: "GET", Target: "/world", Version: HTTP11},
		Header:  hdr.New(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	respHead, respBody, err := rt.RoundTrip(ctx, reqHead, body.Empty)
	require.NoError(t, err)
	assert.Equal(t, 200, respHead.Subject.Code)

	var data []byte
	for {
		f, err := respBody.PollFrame(ctx)
		require.NoError(t, err)
		if f == nil {
			break
		}
		data = append(data, f.Data...)
	}
	assert.Equal(t, "hi /world", string(data))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	conn.Close()
	require.NoError(t, srv.Shutdown(shutdownCtx))
}

func TestConnInfoServiceStampsExtensions(t *testing.T) {
	want := ConnInfo{LocalAddr: &net.TCPAddr{Port: 1}, RemoteAddr: &net.TCPAddr{Port: 2}}
	seen := make(chan ConnInfo, 1)
	inner := h1.ServiceFunc(func(ctx context.Context, head *RequestHead, reqBody body.Body) (*ResponseHead, body.Body, error) {
		info, ok := ConnInfoFrom(head.Extensions)
		require.True(t, ok)
		seen <- info
		return &ResponseHead{Version: HTTP11, Subject: StatusLine{Version: HTTP11, Code: 200}, Header: hdr.New()}, body.Empty, nil
	})

	svc := connInfoService{svc: inner, info: want}
	head := &RequestHead{Version: HTTP11, Subject: RequestLine{Method: "GET", Target: "/"}, Header: hdr.New()}
	_, _, err := svc.Serve(context.Background(), head, body.Empty)
	require.NoError(t, err)

	got := <-seen
	assert.Equal(t, want.LocalAddr, got.LocalAddr)
	assert.Equal(t, want.RemoteAddr, got.RemoteAddr)
}
