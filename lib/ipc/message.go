// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// Kind discriminates how a message is handled. Only [KindCall] opens a
// correlation entry; [KindResponse] and [KindError] close one; the
// remaining kinds are fire-and-forget.
type Kind uint8

// Kind values are protocol constants. Changing them breaks every
// plugin binary built against the previous layout.
const (
	KindCall     Kind = 0
	KindResponse Kind = 1
	KindError    Kind = 2
	KindEvent    Kind = 3
	KindPing     Kind = 4
	KindPong     Kind = 5
)

// String returns the lowercase name of the kind for logs.
func (kind Kind) String() string {
	switch kind {
	case KindCall:
		return "call"
	case KindResponse:
		return "response"
	case KindError:
		return "error"
	case KindEvent:
		return "event"
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(kind))
	}
}

// Valid reports whether kind is one of the six defined kinds.
func (kind Kind) Valid() bool {
	return kind <= KindPong
}

// Resolves reports whether a message of this kind completes an
// outstanding call.
func (kind Kind) Resolves() bool {
	return kind == KindResponse || kind == KindError
}

// Message is one logical IPC record.
//
// Method and Error use the empty string for "absent": the wire format
// cannot distinguish an empty method from a missing one.
type Message struct {
	// ID correlates a Call with its Response or Error. The sender
	// assigns it; it is unique among outstanding calls on one process.
	ID uint64

	Kind Kind

	// Method names the remote operation. Only meaningful on Call.
	Method string

	// Payload is opaque operation data. Caller and callee agree on its
	// encoding (see lib/payload for the conventional one).
	Payload []byte

	// Error is the failure text. Only meaningful on Error.
	Error string
}

// ErrMalformedMessage is wrapped by every decode failure.
var ErrMalformedMessage = errors.New("ipc: malformed message")

// ErrInvalidMessage is wrapped by encode-side validation failures.
var ErrInvalidMessage = errors.New("ipc: invalid message")

const (
	kindSize          = 1
	idSize            = 8
	methodLengthSize  = 2
	payloadLengthSize = 4
	errorLengthSize   = 2

	// MinEncodedSize is the size of a message with no method, payload,
	// or error text. Anything shorter cannot decode.
	MinEncodedSize = kindSize + idSize + methodLengthSize + payloadLengthSize + errorLengthSize
)

// NewCall returns a Call message.
func NewCall(id uint64, method string, payload []byte) Message {
	return Message{ID: id, Kind: KindCall, Method: method, Payload: payload}
}

// NewResponse returns a successful reply to call id.
func NewResponse(id uint64, payload []byte) Message {
	return Message{ID: id, Kind: KindResponse, Payload: payload}
}

// NewError returns a failed reply to call id.
func NewError(id uint64, text string) Message {
	return Message{ID: id, Kind: KindError, Error: text}
}

// NewEvent returns an uncorrelated notification.
func NewEvent(id uint64, payload []byte) Message {
	return Message{ID: id, Kind: KindEvent, Payload: payload}
}

// NewPing returns a heartbeat probe.
func NewPing(id uint64) Message {
	return Message{ID: id, Kind: KindPing}
}

// NewPong returns the answer to the Ping with the same id.
func NewPong(id uint64) Message {
	return Message{ID: id, Kind: KindPong}
}

// Validate checks the per-kind field invariant: a Call carries a
// method, only a Call carries a method, and only an Error carries error
// text. It also checks that every variable-length field fits its length
// prefix.
func (message Message) Validate() error {
	if !message.Kind.Valid() {
		return fmt.Errorf("%w: kind %d", ErrInvalidMessage, uint8(message.Kind))
	}
	if message.Kind == KindCall && message.Method == "" {
		return fmt.Errorf("%w: call %d has no method", ErrInvalidMessage, message.ID)
	}
	if message.Kind != KindCall && message.Method != "" {
		return fmt.Errorf("%w: %s %d carries a method", ErrInvalidMessage, message.Kind, message.ID)
	}
	if message.Kind != KindError && message.Error != "" {
		return fmt.Errorf("%w: %s %d carries error text", ErrInvalidMessage, message.Kind, message.ID)
	}
	if len(message.Method) > math.MaxUint16 {
		return fmt.Errorf("%w: method is %d bytes, limit %d", ErrInvalidMessage, len(message.Method), math.MaxUint16)
	}
	if len(message.Error) > math.MaxUint16 {
		return fmt.Errorf("%w: error text is %d bytes, limit %d", ErrInvalidMessage, len(message.Error), math.MaxUint16)
	}
	if uint64(len(message.Payload)) > math.MaxUint32 {
		return fmt.Errorf("%w: payload is %d bytes, limit %d", ErrInvalidMessage, len(message.Payload), uint64(math.MaxUint32))
	}
	if !utf8.ValidString(message.Method) || !utf8.ValidString(message.Error) {
		return fmt.Errorf("%w: method or error text is not UTF-8", ErrInvalidMessage)
	}
	return nil
}

// EncodedSize returns the number of bytes Encode produces for message.
func (message Message) EncodedSize() int {
	return MinEncodedSize + len(message.Method) + len(message.Payload) + len(message.Error)
}

// Encode validates message and serializes it to the wire layout.
func Encode(message Message) ([]byte, error) {
	if err := message.Validate(); err != nil {
		return nil, err
	}
	return AppendEncoded(make([]byte, 0, message.EncodedSize()), message), nil
}

// AppendEncoded appends the wire layout of message to buffer without
// validating it. Callers that have not run Validate must not pass
// fields longer than their length prefixes.
func AppendEncoded(buffer []byte, message Message) []byte {
	buffer = append(buffer, byte(message.Kind))
	buffer = binary.LittleEndian.AppendUint64(buffer, message.ID)
	buffer = binary.LittleEndian.AppendUint16(buffer, uint16(len(message.Method)))
	buffer = append(buffer, message.Method...)
	buffer = binary.LittleEndian.AppendUint32(buffer, uint32(len(message.Payload)))
	buffer = append(buffer, message.Payload...)
	buffer = binary.LittleEndian.AppendUint16(buffer, uint16(len(message.Error)))
	buffer = append(buffer, message.Error...)
	return buffer
}

// Decode parses one message from data. The returned Payload does not
// alias data. A zero-length payload decodes as nil.
//
// Decode is stricter than the bare layout requires: trailing bytes after
// the error field and method or error text that is not UTF-8 are also
// ErrMalformedMessage.
func Decode(data []byte) (Message, error) {
	reader := decoder{data: data}

	kindByte, err := reader.readByte("kind")
	if err != nil {
		return Message{}, err
	}
	kind := Kind(kindByte)
	if !kind.Valid() {
		return Message{}, fmt.Errorf("%w: unknown kind %d", ErrMalformedMessage, kindByte)
	}

	id, err := reader.readUint64("id")
	if err != nil {
		return Message{}, err
	}

	methodLength, err := reader.readUint16("method length")
	if err != nil {
		return Message{}, err
	}
	method, err := reader.readText("method", int(methodLength))
	if err != nil {
		return Message{}, err
	}

	payloadLength, err := reader.readUint32("payload length")
	if err != nil {
		return Message{}, err
	}
	payload, err := reader.readBytes("payload", uint64(payloadLength))
	if err != nil {
		return Message{}, err
	}

	errorLength, err := reader.readUint16("error length")
	if err != nil {
		return Message{}, err
	}
	errorText, err := reader.readText("error", int(errorLength))
	if err != nil {
		return Message{}, err
	}

	if remaining := reader.remaining(); remaining != 0 {
		return Message{}, fmt.Errorf("%w: %d trailing bytes", ErrMalformedMessage, remaining)
	}

	var payloadCopy []byte
	if len(payload) > 0 {
		payloadCopy = make([]byte, len(payload))
		copy(payloadCopy, payload)
	}

	return Message{
		ID:      id,
		Kind:    kind,
		Method:  method,
		Payload: payloadCopy,
		Error:   errorText,
	}, nil
}

// decoder is a bounds-checked cursor over an untrusted buffer. Every
// read checks the remaining length before slicing.
type decoder struct {
	data   []byte
	offset int
}

func (reader *decoder) remaining() int {
	return len(reader.data) - reader.offset
}

func (reader *decoder) readBytes(field string, length uint64) ([]byte, error) {
	if length > uint64(reader.remaining()) {
		return nil, fmt.Errorf("%w: %s needs %d bytes, %d remain", ErrMalformedMessage, field, length, reader.remaining())
	}
	start := reader.offset
	reader.offset += int(length)
	return reader.data[start:reader.offset], nil
}

func (reader *decoder) readByte(field string) (uint8, error) {
	raw, err := reader.readBytes(field, 1)
	if err != nil {
		return 0, err
	}
	return raw[0], nil
}

func (reader *decoder) readUint16(field string) (uint16, error) {
	raw, err := reader.readBytes(field, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(raw), nil
}

func (reader *decoder) readUint32(field string) (uint32, error) {
	raw, err := reader.readBytes(field, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(raw), nil
}

func (reader *decoder) readUint64(field string) (uint64, error) {
	raw, err := reader.readBytes(field, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(raw), nil
}

func (reader *decoder) readText(field string, length int) (string, error) {
	raw, err := reader.readBytes(field, uint64(length))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrMalformedMessage, field)
	}
	return string(raw), nil
}
