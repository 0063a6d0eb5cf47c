// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package correlate

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is matched by errors.Is for every *TimeoutError.
var ErrTimeout = errors.New("correlate: call timed out")

// ErrChannelClosed reports that the connection was torn down, or its
// outbound side stopped, while a call was outstanding.
var ErrChannelClosed = errors.New("correlate: response channel closed")

// TimeoutError is returned by Call when no response arrived within the
// call's timeout.
type TimeoutError struct {
	ID       uint64
	Method   string
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call %q (id %d) timed out after %s", e.Method, e.ID, e.Duration)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// RemoteError carries the text of an Error frame sent by the peer in
// answer to a call. It is the peer's failure, not a transport failure.
type RemoteError struct {
	ID      uint64
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("call %q (id %d) failed: %s", e.Method, e.ID, e.Message)
}
