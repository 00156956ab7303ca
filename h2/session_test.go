/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h2

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badu/httpcore"
	"github.com/badu/httpcore/body"
	"github.com/badu/httpcore/hdr"
)

func newReqHead(method, target string) *httpcore.RequestHead {
	return &httpcore.RequestHead{
		Version: httpcore.HTTP2,
		Subject: httpcore.RequestLine{Method: method, Target: target, Version: httpcore.HTTP2},
		Header:  hdr.New(),
	}
}

func TestBuildRequestCopiesHeadersAndHost(t *testing.T) {
	head := newReqHead("GET", "https://example.com/widgets")
	head.Header.Set(hdr.Host, "example.com")
	head.Header.Set("Accept", "application/json")

	req, err := buildRequest(context.Background(), head, body.Empty)
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "example.com", req.Host)
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Equal(t, "HTTP/2.0", req.Proto)
	assert.Equal(t, 2, req.ProtoMajor)
}

func TestBuildRequestStripsConnectionSpecificHeaders(t *testing.T) {
	head := newReqHead("GET", "https://example.com/")
	head.Header.Set(hdr.Connection, "keep-alive")
	head.Header.Set(hdr.TransferEncoding, "chunked")
	head.Header.Set(hdr.Upgrade, "websocket")
	head.Header.Set("X-Custom", "yes")

	req, err := buildRequest(context.Background(), head, body.Empty)
	require.NoError(t, err)
	assert.Empty(t, req.Header.Get(hdr.Connection))
	assert.Empty(t, req.Header.Get(hdr.TransferEncoding))
	assert.Empty(t, req.Header.Get(hdr.Upgrade))
	assert.Equal(t, "yes", req.Header.Get("X-Custom"))
}

func TestBuildRequestEmptyBodyLeavesReqBodyNil(t *testing.T) {
	head := newReqHead("GET", "https://example.com/")
	req, err := buildRequest(context.Background(), head, body.Empty)
	require.NoError(t, err)
	assert.Nil(t, req.Body)
	assert.EqualValues(t, 0, req.ContentLength)
}

func TestBuildRequestExactSizeBodySetsContentLengthAndStreams(t *testing.T) {
	head := newReqHead("POST", "https://example.com/")
	req, err := buildRequest(context.Background(), head, body.FromBytes([]byte("payload")))
	require.NoError(t, err)
	require.NotNil(t, req.Body)
	assert.EqualValues(t, len("payload"), req.ContentLength)

	got, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestBuildRequestForwardsExtendedConnectProtocolAsHeader(t *testing.T) {
	head := newReqHead("CONNECT", "https://example.com/")
	head.Extensions.Set(extendedConnectProtocol, "webtransport")

	req, err := buildRequest(context.Background(), head, body.Empty)
	require.NoError(t, err)
	assert.Equal(t, "webtransport", req.Header.Get(hdr.Protocol))
}

func TestBuildRequestRejectsInvalidTarget(t *testing.T) {
	head := newReqHead("GET", "://not a url")
	_, err := buildRequest(context.Background(), head, body.Empty)
	assert.Error(t, err)
}

func TestResponseHeadCopiesStatusAndHeaders(t *testing.T) {
	resp := &http.Response{
		StatusCode: 201,
		Header:     http.Header{"X-Id": []string{"42"}, "Set-Cookie": []string{"a=1", "b=2"}},
		Body:       io.NopCloser(strings.NewReader("")),
	}
	head, err := responseHead(resp)
	require.NoError(t, err)
	assert.Equal(t, httpcore.HTTP2, head.Version)
	assert.Equal(t, 201, head.Subject.Code)
	assert.Equal(t, "42", head.Header.Get("X-Id"))
	assert.Equal(t, []string{"a=1", "b=2"}, head.Header.Values("Set-Cookie"))
}

func TestCloseOnEOFClosesUnderlyingReaderOnce(t *testing.T) {
	rc := &countingCloser{Reader: strings.NewReader("abc")}
	c := &closeOnEOF{rc: rc}

	buf := make([]byte, 16)
	for {
		_, err := c.Read(buf)
		if err != nil {
			break
		}
	}
	assert.Equal(t, 1, rc.closes)

	// A further Read past EOF must not close it again.
	_, _ = c.Read(buf)
	assert.Equal(t, 1, rc.closes)
}

type countingCloser struct {
	io.Reader
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	return nil
}
