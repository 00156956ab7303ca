/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpcore

import (
	"net"

	"github.com/google/uuid"
)

// connInfoKey is the Extensions key ConnInfo is stored under.
const connInfoKey = "httpcore.conninfo"

// ConnInfo is a supplemented extension value (grounded on
// original_source's src/ext/conn_info.rs) attached to request heads'
// Extensions by the Server (incoming requests) and by the Client's H1
// and H2 round-trippers (outgoing requests), so an application can
// answer "which physical connection carried this exchange" without
// the core exposing the connection type itself. Response heads do not
// carry it.
type ConnInfo struct {
	ID         uuid.UUID
	LocalAddr  net.Addr
	RemoteAddr net.Addr
	ALPN       string
}

// WithConnInfo stores info in ext under the package's well-known key.
func WithConnInfo(ext *Extensions, info ConnInfo) {
	ext.Set(connInfoKey, info)
}

// ConnInfoFrom retrieves the ConnInfo stored by WithConnInfo, if any.
func ConnInfoFrom(ext Extensions) (ConnInfo, bool) {
	v, ok := ext.Get(connInfoKey)
	if !ok {
		return ConnInfo{}, false
	}
	info, ok := v.(ConnInfo)
	return info, ok
}
