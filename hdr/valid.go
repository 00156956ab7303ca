/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

// isTokenTable is a copy of net/http/lex.go's isTokenTable.
// See https://httpwg.github.io/specs/rfc7230.html#rule.token.separators
var isTokenTable = [127]bool{
	'0': true, '1': true, '2': true, '3': true, '4': true, '5': true, '6': true, '7': true,
	'8': true, '9': true,

	'a': true, 'b': true, 'c': true, 'd': true, 'e': true, 'f': true, 'g': true, 'h': true,
	'i': true, 'j': true, 'k': true, 'l': true, 'm': true, 'n': true, 'o': true, 'p': true,
	'q': true, 'r': true, 's': true, 't': true, 'u': true, 'v': true, 'w': true, 'x': true,
	'y': true, 'z': true,

	'A': true, 'B': true, 'C': true, 'D': true, 'E': true, 'F': true, 'G': true, 'H': true,
	'I': true, 'J': true, 'K': true, 'L': true, 'M': true, 'N': true, 'O': true, 'P': true,
	'Q': true, 'R': true, 'S': true, 'T': true, 'U': true, 'V': true, 'W': true, 'X': true,
	'Y': true, 'Z': true,

	'!': true, '#': true, '$': true, '%': true, '&': true, '\'': true, '*': true, '+': true,
	'-': true, '.': true, '^': true, '_': true, '`': true, '|': true, '~': true,
}

func validHeaderFieldByte(b byte) bool {
	return int(b) < len(isTokenTable) && isTokenTable[b]
}

// ValidHeaderFieldName reports whether s is a valid RFC 7230 token,
// required of every field-name.
func ValidHeaderFieldName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !validHeaderFieldByte(s[i]) {
			return false
		}
	}
	return true
}

func isCTL(b byte) bool { return b < ' ' || b == 0x7f }

// ValidHeaderFieldValue reports whether s is free of control
// characters other than horizontal tab, which is the only CTL RFC
// 7230 field-content allows.
func ValidHeaderFieldValue(s string) bool {
	for i := 0; i < len(s); i++ {
		if b := s[i]; isCTL(b) && b != '\t' {
			return false
		}
	}
	return true
}

// CanonicalHeaderKey returns the canonical form of a header field
// name: the first letter and any letter following a hyphen are upper
// case, the rest lower case. It mirrors net/textproto's
// CanonicalMIMEHeaderKey so the wire form is unsurprising to callers
// coming from net/http.
func CanonicalHeaderKey(s string) string {
	if v, ok := commonHeader[s]; ok {
		return v
	}

	b := []byte(s)
	upper := true
	canon := true
	for i, c := range b {
		if !validHeaderFieldByte(c) {
			return s
		}
		if upper && 'a' <= c && c <= 'z' {
			c -= toLower
			canon = false
		} else if !upper && 'A' <= c && c <= 'Z' {
			c += toLower
			canon = false
		}
		b[i] = c
		upper = c == '-'
	}
	if canon {
		return s
	}
	return string(b)
}
