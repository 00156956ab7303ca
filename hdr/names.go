/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package hdr implements the header multimap the protocol engine reads
// and writes heads through. Unlike net/http.Header (a bare
// map[string][]string), it preserves both insertion order and, when
// asked, the original wire casing of a field name, since the core's
// round-trip invariant (parse(encode(m)) preserves header ordering
// under preserve_case) depends on both.
package hdr

const toLower = 'a' - 'A'

// Common field names, canonical form. Kept as constants (rather than
// string literals scattered through the codec) because the H1 codec
// inspects a fixed set of them by name per RFC 7230 framing rules.
const (
	Connection       = "Connection"
	ContentLength    = "Content-Length"
	ContentType      = "Content-Type"
	Date             = "Date"
	Expect           = "Expect"
	Host             = "Host"
	KeepAlive        = "Keep-Alive"
	ProxyAuthenticate = "Proxy-Authenticate"
	ProxyAuthorization = "Proxy-Authorization"
	ProxyConnection  = "Proxy-Connection"
	Protocol         = "Protocol"
	TE               = "TE"
	Trailer          = "Trailer"
	TransferEncoding = "Transfer-Encoding"
	Upgrade          = "Upgrade"

	TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"
)

// connectionSpecific lists the header fields that are hop-by-hop and
// therefore illegal to forward onto an HTTP/2 stream (§4.5 step 4).
var connectionSpecific = map[string]bool{
	Connection:         true,
	TransferEncoding:   true,
	KeepAlive:          true,
	ProxyAuthenticate:  true,
	ProxyAuthorization: true,
	ProxyConnection:    true,
	Upgrade:            true,
}

// IsConnectionSpecific reports whether the canonical field name is
// hop-by-hop and must be stripped before handing a request to an H2
// session.
func IsConnectionSpecific(canonicalKey string) bool {
	return connectionSpecific[canonicalKey]
}

// commonHeader interns the canonical spelling of frequently seen
// field names so CanonicalHeaderKey avoids an allocation for them.
var commonHeader = map[string]string{}

func init() {
	for _, v := range []string{
		"Accept", "Accept-Encoding", "Accept-Language", "Authorization",
		"Cache-Control", Connection, "Content-Encoding", ContentLength,
		ContentType, "Cookie", Date, Expect, Host, KeepAlive, "Location",
		ProxyAuthenticate, ProxyAuthorization, ProxyConnection, Protocol,
		"Referer", "Set-Cookie", TE, Trailer, TransferEncoding, Upgrade,
		"User-Agent", "Via",
	} {
		commonHeader[v] = v
	}
}
