// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package payload wraps structured call payloads in a small envelope
// that records how the body was compressed:
//
//	[compression tag: 1 byte] [uncompressed length: u32 LE] [body]
//
// Large arguments (file contents, batches of records) shrink before
// they hit the pipe; small ones are sent uncompressed because the
// envelope is cheaper than the compressor's framing. The typed helpers
// [Marshal] and [Unmarshal] combine the envelope with lib/codec CBOR
// and are what pluginhost.Registry.CallValue and
// pluginsdk.HandleValue use on either end.
package payload

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/plughost/lib/codec"
)

// Compression identifies the algorithm applied to an envelope body.
// The values are wire constants.
type Compression uint8

const (
	None Compression = 0
	LZ4  Compression = 1
	Zstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses the String form.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("unknown payload compression %q", name)
	}
}

const headerLength = 5

// MinCompressSize is the smallest body Pack will try to compress.
const MinCompressSize = 256

// MaxSize bounds the uncompressed length an envelope may claim, so a
// hostile peer cannot make Unpack allocate without limit. It matches
// the stream frame limit.
const MaxSize = 16 * 1024 * 1024

// ErrMalformedEnvelope is returned by Unpack for any envelope that
// cannot be decoded.
var ErrMalformedEnvelope = errors.New("payload: malformed envelope")

var errIncompressible = errors.New("payload: incompressible")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("payload: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxSize))
	if err != nil {
		panic("payload: zstd decoder initialization failed: " + err.Error())
	}
}

// Pack wraps data in an envelope, compressing with preferred when the
// data is at least MinCompressSize bytes and compression makes it
// smaller. Otherwise the body is stored uncompressed.
func Pack(data []byte, preferred Compression) ([]byte, error) {
	if len(data) > MaxSize {
		return nil, fmt.Errorf("payload: %d bytes exceeds maximum %d", len(data), MaxSize)
	}

	tag := None
	body := data
	if preferred != None && len(data) >= MinCompressSize {
		var compressed []byte
		var err error
		switch preferred {
		case LZ4:
			compressed, err = compressLZ4(data)
		case Zstd:
			compressed, err = compressZstd(data)
		default:
			return nil, fmt.Errorf("payload: unsupported compression %s", preferred)
		}
		switch {
		case err == nil:
			tag, body = preferred, compressed
		case !errors.Is(err, errIncompressible):
			return nil, err
		}
	}

	envelope := make([]byte, headerLength, headerLength+len(body))
	envelope[0] = byte(tag)
	binary.LittleEndian.PutUint32(envelope[1:], uint32(len(data)))
	return append(envelope, body...), nil
}

// Unpack returns the uncompressed body of envelope. An empty envelope
// yields an empty body.
func Unpack(envelope []byte) ([]byte, error) {
	if len(envelope) == 0 {
		return nil, nil
	}
	if len(envelope) < headerLength {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrMalformedEnvelope, len(envelope))
	}
	tag := Compression(envelope[0])
	size := binary.LittleEndian.Uint32(envelope[1:headerLength])
	if size > MaxSize {
		return nil, fmt.Errorf("%w: claims %d bytes, maximum %d", ErrMalformedEnvelope, size, MaxSize)
	}
	body := envelope[headerLength:]

	switch tag {
	case None:
		if len(body) != int(size) {
			return nil, fmt.Errorf("%w: body is %d bytes, header says %d", ErrMalformedEnvelope, len(body), size)
		}
		return body, nil
	case LZ4:
		return decompressLZ4(body, int(size))
	case Zstd:
		return decompressZstd(body, int(size))
	default:
		return nil, fmt.Errorf("%w: unknown compression tag %d", ErrMalformedEnvelope, uint8(tag))
	}
}

// Marshal CBOR-encodes v and packs it.
func Marshal(v any, preferred Compression) ([]byte, error) {
	data, err := codec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("payload: encoding value: %w", err)
	}
	return Pack(data, preferred)
}

// Unmarshal unpacks envelope and CBOR-decodes it into v. An empty
// envelope leaves v unchanged.
func Unmarshal(envelope []byte, v any) error {
	data, err := Unpack(envelope)
	if err != nil {
		return err
	}
	if err := codec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("payload: decoding value: %w", err)
	}
	return nil
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock reports 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %v", ErrMalformedEnvelope, err)
	}
	if read != size {
		return nil, fmt.Errorf("%w: lz4 produced %d bytes, header says %d", ErrMalformedEnvelope, read, size)
	}
	return destination, nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, size int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrMalformedEnvelope, err)
	}
	if len(result) != size {
		return nil, fmt.Errorf("%w: zstd produced %d bytes, header says %d", ErrMalformedEnvelope, len(result), size)
	}
	return result, nil
}
