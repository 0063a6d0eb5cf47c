// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package correlate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/plughost/lib/clock"
	"github.com/bureau-foundation/plughost/lib/ipc"
	"github.com/bureau-foundation/plughost/lib/stream"
)

// Sender accepts encoded message bodies for delivery to the peer.
// *stream.Framer implements it.
type Sender interface {
	Enqueue(ctx context.Context, body []byte) error
}

// Correlator tracks the outstanding calls to one peer. It is safe for
// concurrent use.
type Correlator struct {
	sender Sender
	clock  clock.Clock

	nextID atomic.Uint64

	mu      sync.RWMutex
	pending map[uint64]*pendingCall
	closed  bool
}

// New returns a Correlator that sends through sender and measures
// timeouts on clk. A nil clk uses the real clock.
func New(sender Sender, clk clock.Clock) *Correlator {
	if clk == nil {
		clk = clock.Real()
	}
	return &Correlator{
		sender:  sender,
		clock:   clk,
		pending: make(map[uint64]*pendingCall),
	}
}

// NextID returns a fresh id from the same counter Call uses. Other
// frames sent to the peer (events, pings) draw from it so ids stay
// unique per connection.
func (c *Correlator) NextID() uint64 {
	return c.nextID.Add(1)
}

// Call sends a Call frame for method and waits for its outcome. A
// timeout <= 0 means no deadline; only ctx bounds the wait.
func (c *Correlator) Call(ctx context.Context, method string, payload []byte, timeout time.Duration) ([]byte, error) {
	id := c.NextID()
	message := ipc.NewCall(id, method, payload)
	if size := message.EncodedSize(); size > stream.MaxFrameSize {
		return nil, fmt.Errorf("%w: call %q encodes to %d bytes, frame limit is %d",
			ipc.ErrInvalidMessage, method, size, stream.MaxFrameSize)
	}
	body, err := ipc.Encode(message)
	if err != nil {
		return nil, err
	}

	call := newPendingCall(id, method)
	if err := c.register(call); err != nil {
		return nil, err
	}

	// Registered before the frame is queued, so a response can never
	// arrive ahead of its entry.
	if err := c.sender.Enqueue(ctx, body); err != nil {
		c.remove(id)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ipc.ErrInvalidMessage) {
			return nil, err
		}
		return nil, fmt.Errorf("sending call %q: %w: %w", method, ErrChannelClosed, err)
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := c.clock.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-call.done:
	case <-expired:
		c.remove(id)
		call.cancel(&TimeoutError{ID: id, Method: method, Duration: timeout})
	case <-ctx.Done():
		c.remove(id)
		call.cancel(ctx.Err())
	}
	// Whichever attempt won above, the slot is settled now.
	<-call.done
	return call.outcome()
}

// Resolve delivers a Response or Error frame to the call waiting on its
// id. It returns false if no call is waiting, for example because it
// already timed out.
func (c *Correlator) Resolve(message ipc.Message) bool {
	if !message.Kind.Resolves() {
		return false
	}
	c.mu.Lock()
	call, ok := c.pending[message.ID]
	if ok {
		delete(c.pending, message.ID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	return call.resolve(message)
}

// Close fails every outstanding call with ErrChannelClosed and makes
// later calls fail the same way. Calling Close again has no effect.
func (c *Correlator) Close() {
	c.mu.Lock()
	c.closed = true
	calls := c.pending
	c.pending = make(map[uint64]*pendingCall)
	c.mu.Unlock()

	for _, call := range calls {
		call.cancel(ErrChannelClosed)
	}
}

// Pending returns the number of outstanding calls.
func (c *Correlator) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

func (c *Correlator) register(call *pendingCall) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	c.pending[call.id] = call
	return nil
}

func (c *Correlator) remove(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
