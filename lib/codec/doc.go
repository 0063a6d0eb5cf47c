// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the CBOR encoding used for structured call
// payloads.
//
// The ipc wire format treats payloads as opaque bytes. Hosts and
// plugins that want typed arguments use [Marshal] and [Unmarshal] on
// both sides (see pluginhost.Registry.CallValue and
// pluginsdk.HandleValue), so the two ends agree on one configuration:
// Core Deterministic Encoding (RFC 8949 §4.2) on the way out, unknown
// fields ignored on the way in, and map[string]any for untyped maps.
//
// Only this package imports fxamacker/cbor.
package codec
