// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Digests and keys implement encoding.TextMarshaler; encode them as
	// their text form instead of an empty map.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Plugins written against encoding/json conventions expect
		// map[string]any, not map[any]any, for untyped values.
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
		// A payload rides in a single frame; cap nesting well below
		// what a frame could express.
		MaxNestedLevels: 64,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v. An empty payload leaves v unchanged.
func Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return decMode.Unmarshal(data, v)
}

// RawMessage is an encoded CBOR value whose decoding is deferred.
type RawMessage = cbor.RawMessage

// Encoder and Decoder are aliases so callers import only this package.
type (
	Encoder = cbor.Encoder
	Decoder = cbor.Decoder
)

func NewEncoder(w io.Writer) *Encoder { return encMode.NewEncoder(w) }

func NewDecoder(r io.Reader) *Decoder { return decMode.NewDecoder(r) }

// Diagnose renders data in CBOR diagnostic notation (RFC 8949 §8). The
// CLI uses it to print structured responses.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}

// Valid reports whether data is exactly one well-formed CBOR item.
func Valid(data []byte) bool {
	return decMode.Wellformed(data) == nil
}
