/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h1

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/badu/httpcore"
	"github.com/badu/httpcore/body"
	"github.com/badu/httpcore/hdr"
	"github.com/badu/httpcore/herrors"
	"github.com/badu/httpcore/internal/dateheader"
)

// Role distinguishes which side of the exchange a Codec call is
// parsing or encoding, since heads and framing rules mirror (§4.2).
type Role uint8

const (
	RoleServer Role = iota
	RoleClient
)

// ParseContext carries the "parse context" bitflags supplemented from
// hyper's proto/h1/role.rs as an explicit struct rather than
// positional booleans.
type ParseContext struct {
	Role               Role
	PreserveHeaderCase bool
	MaxHeaderBytes     int
	// RequestMethod records the method of the request a parsed
	// response answers. ParseResponse takes that method as its own
	// requestMethod argument and does not read this field.
	RequestMethod string
}

const defaultMaxHeaderBytes = 1 << 20 // 1 MiB, matches DefaultMaxBufSize order of magnitude

// DecodeActionKind is the three-way outcome §4.2 assigns a parsed
// head: deliver it normally, deliver it as final (no further
// keep-alive possible), or skip it and retry parsing (1xx other than
// 101).
type DecodeActionKind uint8

const (
	DecodeNormal DecodeActionKind = iota
	DecodeFinal
	DecodeIgnore
)

// DecodeAction pairs the outcome with the Decoder to use when Normal
// or Final.
type DecodeAction struct {
	Kind    DecodeActionKind
	Decoder *body.Decoder
}

// ParsedMessage is what Codec.Parse returns: the head, the decode
// action, whether Expect: 100-continue was present, and whether the
// parsed head itself permits keep-alive (independent of the
// connection's own keep-alive configuration).
type ParsedMessage struct {
	RequestHead    *httpcore.RequestHead
	ResponseHead   *httpcore.ResponseHead
	Decode         DecodeAction
	ExpectContinue bool
	KeepAlive      bool
}

// ParseRequest consumes a complete request head from r, blocking on r
// until the head is complete (§4.2). A read error or a malformed head
// is returned as an error; it never returns a nil message with a nil
// error.
func ParseRequest(r *bufio.Reader, ctx ParseContext) (*ParsedMessage, error) {
	line, err := readHeadLine(r, maxHeaderBytes(ctx))
	if err != nil {
		return nil, err
	}
	method, target, version, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	h, err := readHeaderFields(r, ctx, maxHeaderBytes(ctx))
	if err != nil {
		return nil, err
	}

	dl, err := decodedLengthFromHeaders(h, false, method, 0, version)
	if err != nil {
		return nil, err
	}

	msg := &ParsedMessage{
		RequestHead: &httpcore.RequestHead{
			Version: version,
			Subject: httpcore.RequestLine{Method: method, Target: target, Version: version},
			Header:  h,
		},
		Decode:         DecodeAction{Kind: DecodeNormal, Decoder: body.NewDecoder(dl)},
		ExpectContinue: hasExpectContinue(h),
		KeepAlive:      requestKeepAlive(h, version),
	}
	if method == "CONNECT" {
		msg.Decode = DecodeAction{Kind: DecodeFinal, Decoder: body.NewDecoder(httpcore.ZeroLength())}
	}
	return msg, nil
}

// ParseResponse consumes a complete response head from r. requestMethod
// is the method of the request this response answers, needed to apply
// the HEAD/CONNECT special cases of the framing table (§4.2). A 1xx
// status other than 101 yields DecodeIgnore so the caller re-parses.
func ParseResponse(r *bufio.Reader, ctx ParseContext, requestMethod string) (*ParsedMessage, error) {
	line, err := readHeadLine(r, maxHeaderBytes(ctx))
	if err != nil {
		return nil, err
	}
	version, code, reason, err := parseStatusLine(line)
	if err != nil {
		return nil, err
	}

	h, err := readHeaderFields(r, ctx, maxHeaderBytes(ctx))
	if err != nil {
		return nil, err
	}

	msg := &ParsedMessage{
		ResponseHead: &httpcore.ResponseHead{
			Version: version,
			Subject: httpcore.StatusLine{Version: version, Code: code, Reason: reason},
			Header:  h,
		},
		KeepAlive: responseKeepAlive(h, version),
	}

	switch {
	case code >= 100 && code < 200 && code != 101:
		msg.Decode = DecodeAction{Kind: DecodeIgnore}
		return msg, nil
	case code == 101:
		msg.Decode = DecodeAction{Kind: DecodeFinal, Decoder: body.NewDecoder(httpcore.ZeroLength())}
		return msg, nil
	case requestMethod == "CONNECT" && code >= 200 && code < 300:
		msg.Decode = DecodeAction{Kind: DecodeFinal, Decoder: body.NewDecoder(httpcore.ZeroLength())}
		return msg, nil
	}

	dl, err := decodedLengthFromHeaders(h, true, requestMethod, code, version)
	if err != nil {
		return nil, err
	}
	msg.Decode = DecodeAction{Kind: DecodeNormal, Decoder: body.NewDecoder(dl)}
	return msg, nil
}

func maxHeaderBytes(ctx ParseContext) int {
	if ctx.MaxHeaderBytes > 0 {
		return ctx.MaxHeaderBytes
	}
	return defaultMaxHeaderBytes
}

func readHeadLine(r *bufio.Reader, limit int) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err != nil {
		if err == bufio.ErrBufferFull || len(line) > limit {
			return nil, herrors.New(herrors.KindParse, herrors.ReasonTooLarge)
		}
		return nil, herrors.IO(err)
	}
	return bytes.TrimRight(line, "\r\n"), nil
}

func parseRequestLine(line []byte) (method, target string, version httpcore.Version, err error) {
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) != 3 {
		return "", "", 0, herrors.New(herrors.KindParse, herrors.ReasonMethod)
	}
	method = string(parts[0])
	if !validMethod(method) {
		return "", "", 0, herrors.New(herrors.KindParse, herrors.ReasonMethod)
	}
	target = string(parts[1])
	if target == "" {
		return "", "", 0, herrors.New(herrors.KindParse, herrors.ReasonURI)
	}
	version, err = parseVersion(parts[2])
	if err != nil {
		return "", "", 0, err
	}
	return method, target, version, nil
}

func validMethod(m string) bool {
	if m == "" {
		return false
	}
	for i := 0; i < len(m); i++ {
		if !hdr.ValidHeaderFieldName(m[i : i+1]) {
			return false
		}
	}
	return true
}

func parseVersion(b []byte) (httpcore.Version, error) {
	s := string(b)
	switch s {
	case "HTTP/1.1":
		return httpcore.HTTP11, nil
	case "HTTP/1.0":
		return httpcore.HTTP10, nil
	default:
		if strings.HasPrefix(s, "HTTP/2") {
			return 0, herrors.New(herrors.KindProtocol, herrors.ReasonVersionH2)
		}
		return 0, herrors.New(herrors.KindParse, herrors.ReasonVersion)
	}
}

func parseStatusLine(line []byte) (version httpcore.Version, code int, reason string, err error) {
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) < 2 {
		return 0, 0, "", herrors.New(herrors.KindParse, herrors.ReasonStatus)
	}
	version, err = parseVersion(parts[0])
	if err != nil {
		return 0, 0, "", err
	}
	code, err = strconv.Atoi(string(parts[1]))
	if err != nil || code < 100 || code > 999 {
		return 0, 0, "", herrors.New(herrors.KindParse, herrors.ReasonStatus)
	}
	if len(parts) == 3 {
		reason = string(parts[2])
	}
	return version, code, reason, nil
}

func readHeaderFields(r *bufio.Reader, ctx ParseContext, limit int) (*hdr.Header, error) {
	h := hdr.New()
	h.PreserveCase = ctx.PreserveHeaderCase
	total := 0
	for {
		line, err := r.ReadSlice('\n')
		if err != nil {
			if err == bufio.ErrBufferFull {
				return nil, herrors.New(herrors.KindParse, herrors.ReasonTooLarge)
			}
			return nil, herrors.IO(err)
		}
		total += len(line)
		if total > limit {
			return nil, herrors.New(herrors.KindParse, herrors.ReasonTooLarge)
		}
		trimmed := bytes.TrimRight(line, "\r\n")
		if len(trimmed) == 0 {
			return h, nil
		}
		i := bytes.IndexByte(trimmed, ':')
		if i <= 0 {
			return nil, herrors.New(herrors.KindParse, herrors.ReasonHeader)
		}
		name := string(trimmed[:i])
		val := string(bytes.TrimSpace(trimmed[i+1:]))
		if !hdr.ValidHeaderFieldName(name) || !hdr.ValidHeaderFieldValue(val) {
			return nil, herrors.New(herrors.KindParse, herrors.ReasonHeader)
		}
		h.Add(name, val)
	}
}

func hasExpectContinue(h *hdr.Header) bool {
	return strings.EqualFold(h.Get(hdr.Expect), "100-continue")
}

func requestKeepAlive(h *hdr.Header, v httpcore.Version) bool {
	conn := h.Values(hdr.Connection)
	if v.AtLeast1_1() {
		return !tokenPresent(conn, "close")
	}
	return tokenPresent(conn, "keep-alive")
}

func responseKeepAlive(h *hdr.Header, v httpcore.Version) bool {
	conn := h.Values(hdr.Connection)
	if tokenPresent(conn, "close") {
		return false
	}
	if v.AtLeast1_1() {
		return true
	}
	return tokenPresent(conn, "keep-alive")
}

func tokenPresent(values []string, tok string) bool {
	for _, t := range hdr.ConnectionTokens(values) {
		if strings.EqualFold(t, tok) {
			return true
		}
	}
	return false
}

// decodedLengthFromHeaders mirrors RFC 7230 §3.3.3 precisely (§4.2):
// Transfer-Encoding present and ending in chunked wins; multiple
// differing Content-Lengths error; a single (or repeated-identical)
// Content-Length is Known(n); HTTP/1.0 with TE errors; otherwise a
// request defaults to Length(0) and a response to close-delimited.
func decodedLengthFromHeaders(h *hdr.Header, isResponse bool, method string, statusCode int, version httpcore.Version) (httpcore.DecodedLength, error) {
	if isResponse {
		if method == "HEAD" || noBodyStatus(statusCode) {
			return httpcore.ZeroLength(), nil
		}
	}

	te := h.Values(hdr.TransferEncoding)
	if len(te) > 0 {
		if !version.AtLeast1_1() {
			return httpcore.DecodedLength{}, herrors.New(herrors.KindParse, herrors.ReasonHeader)
		}
		last := hdr.ConnectionTokens(te)
		if len(last) > 0 && strings.EqualFold(last[len(last)-1], "chunked") {
			return httpcore.ChunkedLength(), nil
		}
		if !isResponse {
			return httpcore.DecodedLength{}, herrors.New(herrors.KindParse, herrors.ReasonHeader)
		}
		return httpcore.CloseDelimited(), nil
	}

	cls := h.Values(hdr.ContentLength)
	if len(cls) > 0 {
		first := cls[0]
		for _, v := range cls[1:] {
			if v != first {
				return httpcore.DecodedLength{}, herrors.New(herrors.KindParse, herrors.ReasonHeader)
			}
		}
		n, err := strconv.ParseUint(first, 10, 64)
		if err != nil {
			return httpcore.DecodedLength{}, herrors.New(herrors.KindParse, herrors.ReasonHeader)
		}
		return httpcore.KnownLength(n), nil
	}

	if !isResponse {
		return httpcore.ZeroLength(), nil
	}
	return httpcore.CloseDelimited(), nil
}

func noBodyStatus(code int) bool {
	return code == 204 || code == 304 || (code >= 100 && code < 200)
}

// ---- Encoding ----

// EncodeOptions configures the wire presentation choices that don't
// affect framing semantics: title-cased header names and whether
// Date is injected automatically (servers only).
type EncodeOptions struct {
	TitleCaseHeaders bool
	AutoDate         bool
}

// EncodeRequest writes a request head to dst and returns the Encoder
// to drive the body through, choosing framing per the client mirror
// of the table in §4.2 (HEAD/GET/CONNECT excluded from chunked is the
// caller's responsibility via bodyHint).
func EncodeRequest(head *httpcore.RequestHead, bodyHint body.SizeHint, dst io.Writer, opt EncodeOptions) (*body.Encoder, error) {
	enc, err := chooseEncoder(head.Header, head.Subject.Method, 0, bodyHint, head.Version, false)
	if err != nil {
		return nil, err
	}
	head.Header.TitleCase = opt.TitleCaseHeaders
	if _, err := fmt.Fprintf(dst, "%s %s HTTP/%s\r\n", head.Subject.Method, head.Subject.Target, versionDigits(head.Version)); err != nil {
		return nil, herrors.IO(err)
	}
	if err := head.Header.Write(dst, nil); err != nil {
		return nil, herrors.IO(err)
	}
	if _, err := io.WriteString(dst, "\r\n"); err != nil {
		return nil, herrors.IO(err)
	}
	return enc, nil
}

// EncodeResponse writes a response head to dst per the server framing
// decision table of §4.2, injecting Connection: close and Date as
// needed, and returns the resulting Encoder.
func EncodeResponse(head *httpcore.ResponseHead, requestMethod string, bodyHint body.SizeHint, keepAlive bool, dst io.Writer, opt EncodeOptions) (*body.Encoder, error) {
	if !keepAlive && !head.Header.Has(hdr.Connection) {
		head.Header.Set(hdr.Connection, "close")
	}
	enc, err := chooseEncoder(head.Header, requestMethod, head.Subject.Code, bodyHint, head.Version, true)
	if err != nil {
		return nil, err
	}
	if opt.AutoDate && !head.Header.Has(hdr.Date) {
		head.Header.Set(hdr.Date, dateheader.Get())
	}
	head.Header.TitleCase = opt.TitleCaseHeaders
	reason := head.Subject.Reason
	if reason == "" {
		reason = "OK"
	}
	if _, err := fmt.Fprintf(dst, "HTTP/%s %d %s\r\n", versionDigits(head.Version), head.Subject.Code, reason); err != nil {
		return nil, herrors.IO(err)
	}
	if err := head.Header.Write(dst, nil); err != nil {
		return nil, herrors.IO(err)
	}
	if _, err := io.WriteString(dst, "\r\n"); err != nil {
		return nil, herrors.IO(err)
	}
	return enc, nil
}

func versionDigits(v httpcore.Version) string {
	if v == httpcore.HTTP10 {
		return "1.0"
	}
	return "1.1"
}

// chooseEncoder implements the framing decision table of §4.2.
func chooseEncoder(h *hdr.Header, method string, statusCode int, hint body.SizeHint, version httpcore.Version, isResponse bool) (*body.Encoder, error) {
	isHead := method == "HEAD"
	isFinalNoBody := isResponse && (isHead || noBodyStatus(statusCode))

	if isFinalNoBody {
		h.Del(hdr.ContentLength)
		h.Del(hdr.TransferEncoding)
		return body.NewEmptyEncoder(false), nil
	}
	if isResponse && method == "CONNECT" && statusCode >= 200 && statusCode < 300 {
		h.Del(hdr.ContentLength)
		h.Del(hdr.TransferEncoding)
		return body.NewEmptyEncoder(true), nil
	}

	if cl := h.Get(hdr.ContentLength); cl != "" {
		n, err := strconv.ParseUint(cl, 10, 64)
		if err != nil {
			return nil, herrors.New(herrors.KindParse, herrors.ReasonHeader)
		}
		if m, ok := hint.Exact(); ok && m != n {
			return nil, herrors.New(herrors.KindUser, herrors.ReasonHeader)
		}
		h.Del(hdr.TransferEncoding)
		return body.NewLengthEncoder(n, false), nil
	}

	if te := h.Values(hdr.TransferEncoding); len(te) > 0 {
		toks := hdr.ConnectionTokens(te)
		if len(toks) == 0 || !strings.EqualFold(toks[len(toks)-1], "chunked") {
			h.Set(hdr.TransferEncoding, joinTokensChunked(toks))
		}
		return body.NewChunkedEncoder(false), nil
	}

	if n, ok := hint.Exact(); ok {
		h.Set(hdr.ContentLength, strconv.FormatUint(n, 10))
		return body.NewLengthEncoder(n, false), nil
	}

	if version == httpcore.HTTP10 {
		return body.NewCloseDelimitedEncoder(), nil
	}
	h.Set(hdr.TransferEncoding, "chunked")
	return body.NewChunkedEncoder(false), nil
}

func joinTokensChunked(toks []string) string {
	return strings.Join(append(append([]string{}, toks...), "chunked"), ", ")
}
