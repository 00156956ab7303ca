/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

import (
	"io"
	"strings"
)

var crlf = []byte("\r\n")

var headerNewlineToSpace = strings.NewReplacer("\n", " ", "\r", " ")

// Write serializes h in wire format, honoring PreserveCase and
// TitleCase. Exclude, if non-nil, skips any canonical key present in
// it (used to drop fields the caller recomputed, e.g. Content-Length
// after a framing conflict was resolved).
func (h *Header) Write(w io.Writer, exclude map[string]bool) error {
	if h == nil {
		return nil
	}
	ws, ok := w.(stringWriterIface)
	if !ok {
		ws = &stringWriter{w}
	}
	for _, e := range h.entries {
		if exclude[e.key] {
			continue
		}
		name := e.key
		switch {
		case h.PreserveCase && e.raw != "":
			name = e.raw
		case h.TitleCase:
			name = titleCase(e.key)
		}
		for _, v := range e.values {
			v = headerNewlineToSpace.Replace(v)
			v = strings.TrimSpace(v)
			for _, s := range [...]string{name, ": ", v, "\r\n"} {
				if _, err := ws.WriteString(s); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// titleCase upper-cases the letter following each '-' as well as the
// first letter; canonical form already does this for the first
// letter and after '-', so in practice this only changes a key that
// CanonicalHeaderKey returned as given because it holds a byte that
// is not a valid token character. Kept distinct from
// CanonicalHeaderKey so http1_title_case_headers is a pure wire
// presentation choice, not a canonicalization change.
func titleCase(s string) string {
	b := []byte(s)
	upper := true
	for i, c := range b {
		if upper && 'a' <= c && c <= 'z' {
			b[i] = c - toLower
		} else if !upper && 'A' <= c && c <= 'Z' {
			b[i] = c + toLower
		}
		upper = b[i] == '-'
	}
	return string(b)
}

type stringWriterIface interface {
	WriteString(string) (int, error)
}

type stringWriter struct{ w io.Writer }

func (s *stringWriter) WriteString(str string) (int, error) {
	return s.w.Write([]byte(str))
}
