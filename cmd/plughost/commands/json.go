// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// decodeJSONValue parses text as a single JSON value. Integral numbers
// become int64 so they encode as CBOR integers and decode into Go
// integer fields on the plugin side.
func decodeJSONValue(text string) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader([]byte(text)))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return normalizeNumbers(value), nil
}

func normalizeNumbers(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if integer, err := typed.Int64(); err == nil {
			return integer
		}
		float, _ := typed.Float64()
		return float
	case []any:
		for index, element := range typed {
			typed[index] = normalizeNumbers(element)
		}
		return typed
	case map[string]any:
		for key, element := range typed {
			typed[key] = normalizeNumbers(element)
		}
		return typed
	default:
		return value
	}
}
