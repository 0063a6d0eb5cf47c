// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc defines the binary record exchanged between the host and
// a native plugin process. Both the host side (lib/pluginhost) and the
// plugin side (lib/pluginsdk) import this package so the wire layout is
// defined once.
//
// A [Message] encodes to a fixed little-endian layout:
//
//	kind        1 byte   0=Call 1=Response 2=Error 3=Event 4=Ping 5=Pong
//	id          8 bytes  u64 correlation key
//	method_len  2 bytes  u16, 0 when absent
//	method      method_len bytes of UTF-8
//	payload_len 4 bytes  u32
//	payload     payload_len bytes, opaque
//	error_len   2 bytes  u16, 0 when absent
//	error       error_len bytes of UTF-8
//
// [Decode] is the trust boundary between an external process and the
// host. It treats every byte as untrusted: any length field that would
// read past the end of the buffer, an unknown kind, invalid UTF-8, or
// trailing garbage yields an error wrapping [ErrMalformedMessage]. It
// never panics.
//
// This package performs no I/O. Framing on a byte stream lives in
// lib/stream.
package ipc
