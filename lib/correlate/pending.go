// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package correlate

import (
	"sync"

	"github.com/bureau-foundation/plughost/lib/ipc"
)

type callState uint8

const (
	statePending callState = iota
	stateResolved
	stateCancelled
)

// pendingCall is the single-use resolution slot for one outstanding
// call. settle moves it out of statePending exactly once; done is
// closed on that transition.
type pendingCall struct {
	id     uint64
	method string

	mu       sync.Mutex
	state    callState
	response ipc.Message
	cause    error
	done     chan struct{}
}

func newPendingCall(id uint64, method string) *pendingCall {
	return &pendingCall{id: id, method: method, done: make(chan struct{})}
}

// resolve fills the slot with a Response or Error frame. It reports
// whether this attempt won.
func (call *pendingCall) resolve(message ipc.Message) bool {
	return call.settle(stateResolved, message, nil)
}

// cancel fails the slot with cause. It reports whether this attempt won.
func (call *pendingCall) cancel(cause error) bool {
	return call.settle(stateCancelled, ipc.Message{}, cause)
}

func (call *pendingCall) settle(state callState, message ipc.Message, cause error) bool {
	call.mu.Lock()
	defer call.mu.Unlock()
	if call.state != statePending {
		return false
	}
	call.state = state
	call.response = message
	call.cause = cause
	close(call.done)
	return true
}

// outcome returns the settled result. Only valid after done is closed.
func (call *pendingCall) outcome() ([]byte, error) {
	call.mu.Lock()
	defer call.mu.Unlock()
	if call.state == stateCancelled {
		return nil, call.cause
	}
	if call.response.Kind == ipc.KindError {
		return nil, &RemoteError{ID: call.id, Method: call.method, Message: call.response.Error}
	}
	return call.response.Payload, nil
}
