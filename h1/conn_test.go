/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h1

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/badu/httpcore"
	"github.com/badu/httpcore/body"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoService() Service {
	return ServiceFunc(func(ctx context.Context, head *httpcore.RequestHead, reqBody body.Body) (*httpcore.ResponseHead, body.Body, error) {
		var data []byte
		for {
			f, err := reqBody.PollFrame(ctx)
			if err != nil {
				return nil, nil, err
			}
			if f == nil {
				break
			}
			if f.IsData() {
				data = append(data, f.Data...)
			}
		}
		respHead := &httpcore.ResponseHead{
			Version: httpcore.HTTP11,
			Subject: httpcore.StatusLine{Version: httpcore.HTTP11, Code: 200, Reason: "OK"},
			Header:  newHeader(),
		}
		return respHead, body.FromBytes(data), nil
	})
}

func TestDispatcherServeAndRoundTripSingleExchange(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	opts := DefaultOptions()
	serverH1 := New(serverConn, RoleServer, opts, nil)
	clientH1 := New(clientConn, RoleClient, opts, nil)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- NewDispatcher(serverH1).Serve(context.Background(), echoService())
	}()

	clientDispatcher := NewDispatcher(clientH1)
	reqHead := &httpcore.RequestHead{
		Version: httpcore.HTTP11,
		Subject: httpcore.RequestLine{Method: "POST", Target: "/echo", Version: httpcore.HTTP11},
		Header:  newHeader(),
	}
	outcome, err := clientDispatcher.RoundTrip(context.Background(), Exchange{Head: reqHead, Body: body.FromBytes([]byte("hello world"))})
	require.NoError(t, err)
	require.NotNil(t, outcome.Head)
	assert.Equal(t, 200, outcome.Head.Subject.Code)

	var respData []byte
	for {
		f, err := outcome.Body.PollFrame(context.Background())
		require.NoError(t, err)
		if f == nil {
			break
		}
		if f.IsData() {
			respData = append(respData, f.Data...)
		}
	}
	assert.Equal(t, "hello world", string(respData))

	clientConn.Close()
	select {
	case <-serverDone:
	case <-time.After(2 * time.Second):
		t.Fatal("server dispatcher did not exit after client closed")
	}
}

func TestDispatcherServeStopsAfterCurrentExchangeWhenContextDraining(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	opts := DefaultOptions()
	serverH1 := New(serverConn, RoleServer, opts, nil)
	clientH1 := New(clientConn, RoleClient, opts, nil)

	// Canceled up front: the in-flight exchange below must still be
	// allowed to complete (it already arrived), but Serve must refuse
	// to start a second one afterward rather than block on this
	// still-open keep-alive connection.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- NewDispatcher(serverH1).Serve(ctx, echoService())
	}()

	clientDispatcher := NewDispatcher(clientH1)
	reqHead := &httpcore.RequestHead{
		Version: httpcore.HTTP11,
		Subject: httpcore.RequestLine{Method: "GET", Target: "/", Version: httpcore.HTTP11},
		Header:  newHeader(),
	}
	outcome, err := clientDispatcher.RoundTrip(context.Background(), Exchange{Head: reqHead, Body: body.Empty})
	require.NoError(t, err)
	assert.Equal(t, 200, outcome.Head.Subject.Code)
	drainBody(context.Background(), outcome.Body)

	select {
	case err := <-serverDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not exit once its context was canceled between exchanges")
	}
}

func TestDispatcherHandlesSequentialKeepAliveExchanges(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	opts := DefaultOptions()
	serverH1 := New(serverConn, RoleServer, opts, nil)
	clientH1 := New(clientConn, RoleClient, opts, nil)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- NewDispatcher(serverH1).Serve(context.Background(), echoService())
	}()

	clientDispatcher := NewDispatcher(clientH1)
	for i := 0; i < 3; i++ {
		reqHead := &httpcore.RequestHead{
			Version: httpcore.HTTP11,
			Subject: httpcore.RequestLine{Method: "GET", Target: "/", Version: httpcore.HTTP11},
			Header:  newHeader(),
		}
		outcome, err := clientDispatcher.RoundTrip(context.Background(), Exchange{Head: reqHead, Body: body.Empty})
		require.NoError(t, err)
		assert.Equal(t, 200, outcome.Head.Subject.Code)
		drainBody(context.Background(), outcome.Body)
	}

	clientConn.Close()
	select {
	case <-serverDone:
	case <-time.After(2 * time.Second):
		t.Fatal("server dispatcher did not exit after client closed")
	}
}

func TestConnWriteAutoErrorOnBadRequestLine(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	opts := DefaultOptions()
	serverH1 := New(serverConn, RoleServer, opts, nil)

	go func() {
		_, _ = clientConn.Write([]byte("NOT A REQUEST\r\n\r\n"))
	}()

	_, err := serverH1.ReadHead("")
	require.Error(t, err)

	// net.Pipe is unbuffered, so the reply must be read concurrently
	// with Flush, and it may arrive in several writes.
	type readResult struct {
		data []byte
		err  error
	}
	replies := make(chan readResult, 1)
	go func() {
		clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
		data, err := io.ReadAll(clientConn)
		replies <- readResult{data: data, err: err}
	}()

	writeErr := serverH1.WriteAutoError(err)
	assert.Equal(t, err, writeErr)
	require.NoError(t, serverH1.Flush())
	serverConn.Close()

	res := <-replies
	require.NoError(t, res.err)
	got := string(res.data)
	assert.Contains(t, got, "400 Bad Request")
	assert.Contains(t, got, "Content-Length: 0")
	assert.NotContains(t, got, "Connection:", "the automatic error response closes without announcing it")
}
