// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// frameHeaderLength is the size of the length prefix: a little-endian
// uint32 counting the body bytes that follow.
const frameHeaderLength = 4

// MaxFrameSize bounds a single frame body. A plugin claiming a larger
// frame gets that frame discarded rather than an unbounded allocation.
const MaxFrameSize = 16 * 1024 * 1024

// FrameTooLargeError reports a length prefix above MaxFrameSize. The
// body has already been consumed from the stream when ReadFrame returns
// it, so the caller may keep reading at the next frame boundary.
type FrameTooLargeError struct {
	Length uint32
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("frame length %d exceeds maximum %d", e.Length, MaxFrameSize)
}

// WriteFrame writes body to w as [4-byte little-endian length][body].
// Header and body are separate writes; callers writing to a pipe wrap
// w in a bufio.Writer and flush once per frame (see Framer).
func WriteFrame(w io.Writer, body []byte) error {
	if err := CheckFrameSize(body); err != nil {
		return err
	}
	var header [frameHeaderLength]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("write frame body: %w", err)
		}
	}
	return nil
}

// CheckFrameSize returns a *FrameTooLargeError when body cannot be
// written as a single frame.
func CheckFrameSize(body []byte) error {
	if len(body) > MaxFrameSize {
		return &FrameTooLargeError{Length: uint32(min(uint64(len(body)), math.MaxUint32))}
	}
	return nil
}

// ReadFrame reads exactly one frame body from r. A clean end of stream
// before any header byte returns io.EOF unwrapped; a stream that ends
// mid-frame returns an error wrapping io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	length := binary.LittleEndian.Uint32(header[:])
	if length > MaxFrameSize {
		if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
			return nil, fmt.Errorf("discard oversized frame: %w", noEOF(err))
		}
		return nil, &FrameTooLargeError{Length: length}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", noEOF(err))
	}
	return body, nil
}

// noEOF converts io.EOF into io.ErrUnexpectedEOF: once a header has
// been read, running out of bytes is a truncated frame.
func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
