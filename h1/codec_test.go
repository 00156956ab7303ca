/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h1

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/badu/httpcore"
	"github.com/badu/httpcore/body"
	"github.com/badu/httpcore/hdr"
	"github.com/badu/httpcore/herrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHeader() *hdr.Header { return hdr.New() }

func parseReq(t *testing.T, raw string, ctx ParseContext) *ParsedMessage {
	t.Helper()
	msg, err := ParseRequest(bufio.NewReader(strings.NewReader(raw)), ctx)
	require.NoError(t, err)
	return msg
}

func TestParseRequestSimpleGET(t *testing.T) {
	msg := parseReq(t, "GET /foo HTTP/1.1\r\nHost: example.com\r\n\r\n", ParseContext{})
	require.NotNil(t, msg.RequestHead)
	assert.Equal(t, "GET", msg.RequestHead.Subject.Method)
	assert.Equal(t, "/foo", msg.RequestHead.Subject.Target)
	assert.Equal(t, httpcore.HTTP11, msg.RequestHead.Version)
	assert.True(t, msg.KeepAlive)
	assert.Equal(t, DecodeNormal, msg.Decode.Kind)
}

func TestParseRequestDefaultsToZeroLengthBody(t *testing.T) {
	msg := parseReq(t, "GET / HTTP/1.1\r\nHost: h\r\n\r\n", ParseContext{})
	assert.Equal(t, body.DecoderEmpty, msg.Decode.Decoder.Kind())
	assert.True(t, msg.Decode.Decoder.IsEOF())
}

func TestParseRequestContentLength(t *testing.T) {
	msg := parseReq(t, "POST / HTTP/1.1\r\nHost: h\r\nContent-Length: 5\r\n\r\nhello", ParseContext{})
	assert.Equal(t, body.DecoderLength, msg.Decode.Decoder.Kind())
	assert.False(t, msg.Decode.Decoder.IsEOF())
}

func TestParseRequestChunkedTransferEncoding(t *testing.T) {
	msg := parseReq(t, "POST / HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n", ParseContext{})
	assert.Equal(t, body.DecoderChunked, msg.Decode.Decoder.Kind())
}

func TestParseRequestHTTP10NoKeepAliveByDefault(t *testing.T) {
	msg := parseReq(t, "GET / HTTP/1.0\r\nHost: h\r\n\r\n", ParseContext{})
	assert.False(t, msg.KeepAlive)
}

func TestParseRequestHTTP10KeepAliveToken(t *testing.T) {
	msg := parseReq(t, "GET / HTTP/1.0\r\nHost: h\r\nConnection: keep-alive\r\n\r\n", ParseContext{})
	assert.True(t, msg.KeepAlive)
}

func TestParseRequestConnectionCloseOverridesHTTP11(t *testing.T) {
	msg := parseReq(t, "GET / HTTP/1.1\r\nHost: h\r\nConnection: close\r\n\r\n", ParseContext{})
	assert.False(t, msg.KeepAlive)
}

func TestParseRequestExpectContinue(t *testing.T) {
	msg := parseReq(t, "POST / HTTP/1.1\r\nHost: h\r\nExpect: 100-continue\r\nContent-Length: 3\r\n\r\nabc", ParseContext{})
	assert.True(t, msg.ExpectContinue)
}

func TestParseRequestConnectForcesZeroLengthFinal(t *testing.T) {
	msg := parseReq(t, "CONNECT example.com:443 HTTP/1.1\r\nHost: h\r\n\r\n", ParseContext{})
	assert.Equal(t, DecodeFinal, msg.Decode.Kind)
}

func TestParseRequestRejectsMultipleDifferingContentLengths(t *testing.T) {
	_, err := ParseRequest(bufio.NewReader(strings.NewReader(
		"POST / HTTP/1.1\r\nHost: h\r\nContent-Length: 5\r\nContent-Length: 6\r\n\r\nhello!")), ParseContext{})
	require.Error(t, err)
	var herr *herrors.Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, herrors.KindParse, herr.Kind)
}

func TestParseRequestRejectsMalformedRequestLine(t *testing.T) {
	_, err := ParseRequest(bufio.NewReader(strings.NewReader("GET /foo\r\nHost: h\r\n\r\n")), ParseContext{})
	assert.Error(t, err)
}

func TestParseRequestRejectsHTTP2Prefix(t *testing.T) {
	_, err := ParseRequest(bufio.NewReader(strings.NewReader("GET / HTTP/2.0\r\nHost: h\r\n\r\n")), ParseContext{})
	require.Error(t, err)
	var herr *herrors.Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, herrors.KindProtocol, herr.Kind)
}

func TestParseResponseNoBodyOnHEAD(t *testing.T) {
	msg, err := ParseResponse(bufio.NewReader(strings.NewReader(
		"HTTP/1.1 200 OK\r\nContent-Length: 123\r\n\r\n")), ParseContext{}, "HEAD")
	require.NoError(t, err)
	assert.Equal(t, body.DecoderEmpty, msg.Decode.Decoder.Kind())
}

func TestParseResponse204NoBody(t *testing.T) {
	msg, err := ParseResponse(bufio.NewReader(strings.NewReader("HTTP/1.1 204 No Content\r\n\r\n")), ParseContext{}, "GET")
	require.NoError(t, err)
	assert.Equal(t, body.DecoderEmpty, msg.Decode.Decoder.Kind())
}

func TestParseResponse1xxIgnored(t *testing.T) {
	msg, err := ParseResponse(bufio.NewReader(strings.NewReader("HTTP/1.1 102 Processing\r\n\r\n")), ParseContext{}, "GET")
	require.NoError(t, err)
	assert.Equal(t, DecodeIgnore, msg.Decode.Kind)
}

func TestParseResponse101SwitchingProtocolsIsFinal(t *testing.T) {
	msg, err := ParseResponse(bufio.NewReader(strings.NewReader("HTTP/1.1 101 Switching Protocols\r\n\r\n")), ParseContext{}, "GET")
	require.NoError(t, err)
	assert.Equal(t, DecodeFinal, msg.Decode.Kind)
}

func TestParseResponseNoContentLengthDefaultsCloseDelimited(t *testing.T) {
	msg, err := ParseResponse(bufio.NewReader(strings.NewReader("HTTP/1.1 200 OK\r\n\r\n")), ParseContext{}, "GET")
	require.NoError(t, err)
	assert.Equal(t, body.DecoderEof, msg.Decode.Decoder.Kind())
}

func TestEncodeRequestContentLength(t *testing.T) {
	head := &httpcore.RequestHead{
		Version: httpcore.HTTP11,
		Subject: httpcore.RequestLine{Method: "POST", Target: "/x", Version: httpcore.HTTP11},
		Header:  newHeader(),
	}
	var buf bytes.Buffer
	enc, err := EncodeRequest(head, body.ExactSize(5), &buf, EncodeOptions{})
	require.NoError(t, err)
	require.NotNil(t, enc)
	assert.Contains(t, buf.String(), "POST /x HTTP/1.1\r\n")
	assert.Contains(t, buf.String(), "Content-Length: 5\r\n")
}

func TestEncodeResponseInjectsConnectionCloseWhenNotKeepAlive(t *testing.T) {
	head := &httpcore.ResponseHead{
		Version: httpcore.HTTP11,
		Subject: httpcore.StatusLine{Version: httpcore.HTTP11, Code: 200},
		Header:  newHeader(),
	}
	var buf bytes.Buffer
	_, err := EncodeResponse(head, "GET", body.UnknownSize(), false, &buf, EncodeOptions{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Connection: close\r\n")
	assert.Contains(t, buf.String(), "Transfer-Encoding: chunked\r\n")
}

func TestEncodeResponseHeadMethodStripsBodyHeaders(t *testing.T) {
	head := &httpcore.ResponseHead{
		Version: httpcore.HTTP11,
		Subject: httpcore.StatusLine{Version: httpcore.HTTP11, Code: 200},
		Header:  newHeader(),
	}
	head.Header.Set("Content-Length", "100")
	var buf bytes.Buffer
	enc, err := EncodeResponse(head, "HEAD", body.ExactSize(100), true, &buf, EncodeOptions{})
	require.NoError(t, err)
	assert.NotNil(t, enc)
	assert.NotContains(t, buf.String(), "Content-Length")
}

func TestEncodeResponseAutoDate(t *testing.T) {
	head := &httpcore.ResponseHead{
		Version: httpcore.HTTP11,
		Subject: httpcore.StatusLine{Version: httpcore.HTTP11, Code: 200},
		Header:  newHeader(),
	}
	var buf bytes.Buffer
	_, err := EncodeResponse(head, "GET", body.ExactSize(0), true, &buf, EncodeOptions{AutoDate: true})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Date: ")
}
