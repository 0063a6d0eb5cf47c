// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream frames ipc messages on a byte-oriented duplex pipe.
//
// On the wire every message is preceded by its length:
//
//	[u32 little-endian body length] [body: one ipc.Encode output]
//
// repeated for the life of the pipe. There is no handshake and no
// trailer.
//
// [WriteFrame] and [ReadFrame] are the stateless primitives, used
// directly by lib/pluginsdk on the plugin side. [Framer] owns one
// peer's pipes on the host side: an outbound loop that serializes
// writes from many concurrent callers through a queue, and an inbound
// loop that decodes and dispatches. A frame that fails to decode, or
// whose length exceeds [MaxFrameSize], is logged and dropped; only end
// of stream or a read error ends the inbound loop.
package stream
