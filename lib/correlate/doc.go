// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package correlate matches responses to the calls that caused them.
//
// A [Correlator] belongs to exactly one peer. [Correlator.Call] assigns
// the next id from a monotonic counter, registers a pending entry,
// hands the encoded Call frame to a [Sender], and waits. The inbound
// side of the connection feeds every Response and Error frame to
// [Correlator.Resolve], which hands the frame to the waiting caller.
//
// Each pending entry resolves at most once. Whichever of response,
// timeout, context cancellation, or [Correlator.Close] reaches it first
// wins; the others find the entry already settled and do nothing. A
// response arriving after its call timed out therefore has no effect
// beyond Resolve returning false.
//
// The outcomes a caller can see:
//
//   - the response payload
//   - a [*RemoteError] carrying the peer's Error frame text
//   - a [*TimeoutError] (errors.Is matches [ErrTimeout])
//   - [ErrChannelClosed] when the connection is torn down first
//   - ctx.Err() when the caller's context ends first
package correlate
