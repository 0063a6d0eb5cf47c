// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		message Message
	}{
		{
			name:    "call",
			message: NewCall(42, "test_method", []byte{1, 2, 3, 4}),
		},
		{
			name:    "response without method",
			message: NewResponse(123, []byte{5, 6, 7}),
		},
		{
			name:    "error",
			message: NewError(456, "Something went wrong"),
		},
		{
			name:    "event",
			message: NewEvent(7, []byte(`{"status":"ready"}`)),
		},
		{
			name:    "ping",
			message: NewPing(1),
		},
		{
			name:    "pong with max id",
			message: NewPong(^uint64(0)),
		},
		{
			name:    "empty response",
			message: NewResponse(9, nil),
		},
		{
			name:    "non-ascii method",
			message: NewCall(10, "größe/計算", []byte("payload")),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			encoded, err := Encode(test.message)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if len(encoded) != test.message.EncodedSize() {
				t.Errorf("encoded length = %d, EncodedSize = %d", len(encoded), test.message.EncodedSize())
			}

			got, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			assertMessageEqual(t, got, test.message)
		})
	}
}

func TestDecodeResponseHasNoMethod(t *testing.T) {
	t.Parallel()
	encoded, err := Encode(NewResponse(123, []byte{5, 6, 7}))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Kind != KindResponse {
		t.Errorf("kind = %s, want response", got.Kind)
	}
	if got.Method != "" {
		t.Errorf("method = %q, want absent", got.Method)
	}
}

func TestEncodeWireLayout(t *testing.T) {
	t.Parallel()
	encoded, err := Encode(NewCall(0x0102030405060708, "ab", []byte{0xff}))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{
		0x00,                                           // kind = call
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01, // id, little-endian
		0x02, 0x00, // method length
		'a', 'b',
		0x01, 0x00, 0x00, 0x00, // payload length
		0xff,
		0x00, 0x00, // error length
	}
	if !bytes.Equal(encoded, want) {
		t.Errorf("encoded = % x\nwant      % x", encoded, want)
	}
}

func TestDecodeShortBuffers(t *testing.T) {
	t.Parallel()
	valid, err := Encode(NewError(456, "Something went wrong"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Every strict prefix of a valid message must fail cleanly.
	for length := 0; length < len(valid); length++ {
		_, err := Decode(valid[:length])
		if err == nil {
			t.Fatalf("Decode(%d-byte prefix) succeeded, want error", length)
		}
		if !errors.Is(err, ErrMalformedMessage) {
			t.Fatalf("Decode(%d-byte prefix) error = %v, want ErrMalformedMessage", length, err)
		}
	}
}

func TestDecodeLengthFieldsPastEnd(t *testing.T) {
	t.Parallel()
	header := func(kind byte) []byte {
		buffer := []byte{kind}
		return binary.LittleEndian.AppendUint64(buffer, 1)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "method length past end",
			data: binary.LittleEndian.AppendUint16(header(0), 0xffff),
		},
		{
			name: "payload length past end",
			data: binary.LittleEndian.AppendUint32(binary.LittleEndian.AppendUint16(header(1), 0), 0xffffffff),
		},
		{
			name: "error length past end",
			data: binary.LittleEndian.AppendUint16(
				binary.LittleEndian.AppendUint32(binary.LittleEndian.AppendUint16(header(2), 0), 0),
				500),
		},
		{
			name: "unknown kind",
			data: append(header(6), make([]byte, 8)...),
		},
		{
			name: "kind 255",
			data: append(header(255), make([]byte, 8)...),
		},
		{
			name: "trailing bytes",
			data: append(append(header(1), make([]byte, 8)...), 0x00),
		},
		{
			name: "invalid utf-8 method",
			data: append(append(binary.LittleEndian.AppendUint16(header(0), 2), 0xc3, 0x28), make([]byte, 6)...),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(test.data)
			if !errors.Is(err, ErrMalformedMessage) {
				t.Fatalf("Decode error = %v, want ErrMalformedMessage", err)
			}
		})
	}
}

func TestDecodeAdversarialInputDoesNotPanic(t *testing.T) {
	t.Parallel()
	// Deterministic pseudo-random buffers of every length up to 64
	// bytes. The property under test is only "returns, never panics".
	state := uint32(2463534242)
	next := func() byte {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		return byte(state)
	}
	for length := 0; length <= 64; length++ {
		for round := 0; round < 32; round++ {
			data := make([]byte, length)
			for index := range data {
				data[index] = next()
			}
			// Keep the kind in range half the time so decoding gets
			// past the first check.
			if length > 0 && round%2 == 0 {
				data[0] %= 6
			}
			Decode(data)
		}
	}
}

func TestDecodePayloadDoesNotAliasInput(t *testing.T) {
	t.Parallel()
	encoded, err := Encode(NewResponse(1, []byte("original")))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for index := range encoded {
		encoded[index] = 0
	}
	if string(got.Payload) != "original" {
		t.Errorf("payload changed after input was overwritten: %q", got.Payload)
	}
}

func TestValidateRejectsFieldInvariantViolations(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		message Message
	}{
		{"call without method", Message{ID: 1, Kind: KindCall}},
		{"response with method", Message{ID: 1, Kind: KindResponse, Method: "x"}},
		{"event with error", Message{ID: 1, Kind: KindEvent, Error: "x"}},
		{"unknown kind", Message{ID: 1, Kind: Kind(9)}},
		{"oversized method", Message{ID: 1, Kind: KindCall, Method: strings.Repeat("m", 1<<16)}},
		{"oversized error", Message{ID: 1, Kind: KindError, Error: strings.Repeat("e", 1<<16)}},
		{"invalid utf-8 error", Message{ID: 1, Kind: KindError, Error: "\xff"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Encode(test.message); !errors.Is(err, ErrInvalidMessage) {
				t.Fatalf("Encode error = %v, want ErrInvalidMessage", err)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()
	if got := KindPong.String(); got != "pong" {
		t.Errorf("KindPong.String() = %q", got)
	}
	if got := Kind(42).String(); got != "unknown(42)" {
		t.Errorf("Kind(42).String() = %q", got)
	}
	if !KindError.Resolves() || KindEvent.Resolves() {
		t.Error("only response and error kinds resolve calls")
	}
}

func assertMessageEqual(t *testing.T, got, want Message) {
	t.Helper()
	if got.ID != want.ID {
		t.Errorf("id = %d, want %d", got.ID, want.ID)
	}
	if got.Kind != want.Kind {
		t.Errorf("kind = %s, want %s", got.Kind, want.Kind)
	}
	if got.Method != want.Method {
		t.Errorf("method = %q, want %q", got.Method, want.Method)
	}
	if !bytes.Equal(got.Payload, want.Payload) {
		t.Errorf("payload = %v, want %v", got.Payload, want.Payload)
	}
	if got.Error != want.Error {
		t.Errorf("error = %q, want %q", got.Error, want.Error)
	}
}
