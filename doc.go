/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package httpcore is the protocol engine of a low-level HTTP/1.x and
// HTTP/2 library: the per-connection state machines that turn a
// bidirectional byte stream into a sequence of request/response
// exchanges and back. It does not establish connections, resolve
// DNS, terminate TLS, route requests, or speak HTTP/3 — those are the
// job of collaborators this package consumes through small
// interfaces (see the h1, h2, bio, body, dispatch and upgrade
// subpackages).
package httpcore
