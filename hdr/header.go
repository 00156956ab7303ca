/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

// entry holds every value seen for one field name, in the order Add
// was called, plus the exact bytes the wire used for the name the
// first time it was seen (raw). raw is only consulted when a Header
// is writing with PreserveCase set; otherwise Write uses key or a
// title-cased form of it.
type entry struct {
	key    string // canonical form
	raw    string // original casing, first occurrence
	values []string
}

// Header is an insertion-order preserving, case-canonicalizing
// multimap, the core's substitute for the MessageHead<S> "headers"
// field (§3). Unlike net/http.Header it remembers the order fields
// were added and, optionally, their original casing, because the
// round-trip invariant in §8 depends on both surviving
// parse(encode(m)).
type Header struct {
	entries      []entry
	index        map[string]int // canonical key -> index into entries
	PreserveCase bool
	TitleCase    bool
}

// New returns an empty Header ready for use.
func New() *Header {
	return &Header{index: make(map[string]int)}
}

func (h *Header) ensureIndex() {
	if h.index == nil {
		h.index = make(map[string]int, len(h.entries))
		for i, e := range h.entries {
			h.index[e.key] = i
		}
	}
}

// Add appends value under key, preserving key's original casing for
// the first occurrence when PreserveCase is set.
func (h *Header) Add(key, value string) {
	h.ensureIndex()
	canon := CanonicalHeaderKey(key)
	if i, ok := h.index[canon]; ok {
		h.entries[i].values = append(h.entries[i].values, value)
		return
	}
	h.index[canon] = len(h.entries)
	h.entries = append(h.entries, entry{key: canon, raw: key, values: []string{value}})
}

// Set replaces any existing values for key with the single value v.
func (h *Header) Set(key, value string) {
	h.ensureIndex()
	canon := CanonicalHeaderKey(key)
	if i, ok := h.index[canon]; ok {
		h.entries[i].values = h.entries[i].values[:0]
		h.entries[i].values = append(h.entries[i].values, value)
		h.entries[i].raw = key
		return
	}
	h.Add(key, value)
}

// Get returns the first value for key, or "" if absent.
func (h *Header) Get(key string) string {
	vv := h.Values(key)
	if len(vv) == 0 {
		return ""
	}
	return vv[0]
}

// Values returns every value for key in insertion order, or nil.
func (h *Header) Values(key string) []string {
	if h == nil || h.index == nil {
		return nil
	}
	canon := CanonicalHeaderKey(key)
	if i, ok := h.index[canon]; ok {
		return h.entries[i].values
	}
	return nil
}

// Has reports whether key has at least one value.
func (h *Header) Has(key string) bool {
	return len(h.Values(key)) > 0
}

// Del removes every value for key.
func (h *Header) Del(key string) {
	if h == nil || h.index == nil {
		return
	}
	canon := CanonicalHeaderKey(key)
	i, ok := h.index[canon]
	if !ok {
		return
	}
	h.entries = append(h.entries[:i], h.entries[i+1:]...)
	delete(h.index, canon)
	for k, idx := range h.index {
		if idx > i {
			h.index[k] = idx - 1
		}
	}
}

// Len reports the number of distinct field names.
func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// Range calls fn for each field in insertion order. Stops early if fn
// returns false.
func (h *Header) Range(fn func(key string, values []string) bool) {
	if h == nil {
		return
	}
	for _, e := range h.entries {
		if !fn(e.key, e.values) {
			return
		}
	}
}

// Clone returns a deep copy.
func (h *Header) Clone() *Header {
	if h == nil {
		return nil
	}
	out := &Header{
		entries:      make([]entry, len(h.entries)),
		index:        make(map[string]int, len(h.entries)),
		PreserveCase: h.PreserveCase,
		TitleCase:    h.TitleCase,
	}
	for i, e := range h.entries {
		vv := make([]string, len(e.values))
		copy(vv, e.values)
		out.entries[i] = entry{key: e.key, raw: e.raw, values: vv}
		out.index[e.key] = i
	}
	return out
}

// HasToken reports whether the comma-separated value of key contains
// tok (case-insensitively), the test used for Connection: close /
// keep-alive and TE: trailers negotiation.
func (h *Header) HasToken(key, tok string) bool {
	for _, tokens := range ConnectionTokens(h.Values(key)) {
		if equalFold(tokens, tok) {
			return true
		}
	}
	return false
}
