// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/bureau-foundation/plughost/lib/ipc"
)

// ErrWriterStopped is returned by Enqueue once the outbound loop has
// exited, either because Close was called or because a pipe write
// failed.
var ErrWriterStopped = errors.New("stream: outbound loop has stopped")

// DefaultQueueLength is the outbound queue capacity when Config leaves
// it zero. Enqueue blocks while the queue is full.
const DefaultQueueLength = 64

// Handler receives decoded inbound messages. Both methods run on the
// inbound loop goroutine; a slow handler stalls reading from the pipe.
type Handler interface {
	// HandleResponse routes a Response or Error frame to the call
	// waiting on its id. It returns false when no call was waiting
	// (already timed out, or never issued), in which case the frame is
	// dropped.
	HandleResponse(message ipc.Message) bool

	// HandleEvent receives every other kind: Event, Ping, Pong, and
	// Calls originating from the peer.
	HandleEvent(message ipc.Message)
}

// Config configures a Framer.
type Config struct {
	// Reader is the peer's output stream (a plugin's stdout).
	Reader io.Reader

	// Writer is the peer's input stream (a plugin's stdin).
	Writer io.Writer

	Handler Handler

	// Logger receives dropped-frame and loop-exit diagnostics. Nil
	// discards.
	Logger *slog.Logger

	// QueueLength is the outbound queue capacity. Zero selects
	// DefaultQueueLength.
	QueueLength int
}

// Framer turns a duplex byte pipe into a sequence of ipc.Message frames
// for exactly one peer. Start launches two goroutines: the outbound
// loop drains the queue and writes one length-prefixed frame per
// buffer, flushing after each; the inbound loop reads frames, decodes
// them, and dispatches to the Handler. The loops share no state except
// through the Handler.
type Framer struct {
	reader  io.Reader
	writer  io.Writer
	handler Handler
	logger  *slog.Logger

	queue   chan []byte
	closing chan struct{}

	startOnce sync.Once
	closeOnce sync.Once

	writerDone chan struct{}
	readerDone chan struct{}

	mu       sync.Mutex
	readErr  error
	writeErr error
}

// New returns a Framer. Nothing is read or written until Start.
func New(config Config) *Framer {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	queueLength := config.QueueLength
	if queueLength <= 0 {
		queueLength = DefaultQueueLength
	}
	return &Framer{
		reader:     config.Reader,
		writer:     config.Writer,
		handler:    config.Handler,
		logger:     logger,
		queue:      make(chan []byte, queueLength),
		closing:    make(chan struct{}),
		writerDone: make(chan struct{}),
		readerDone: make(chan struct{}),
	}
}

// Start launches the outbound and inbound loops. Calling Start more
// than once has no further effect.
func (f *Framer) Start() {
	f.startOnce.Do(func() {
		go f.writeLoop()
		go f.readLoop()
	})
}

// Enqueue hands an already-encoded message body to the outbound loop.
// It blocks while the queue is full, until ctx is done, or until the
// outbound loop stops. A nil return means the body was queued, not that
// it reached the peer. A body above MaxFrameSize is refused with an
// error matching ipc.ErrInvalidMessage and the framer stays usable.
func (f *Framer) Enqueue(ctx context.Context, body []byte) error {
	if err := CheckFrameSize(body); err != nil {
		return fmt.Errorf("%w: %w", ipc.ErrInvalidMessage, err)
	}
	select {
	case <-f.writerDone:
		return ErrWriterStopped
	default:
	}
	select {
	case f.queue <- body:
		return nil
	case <-f.writerDone:
		return ErrWriterStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send encodes message and enqueues it.
func (f *Framer) Send(ctx context.Context, message ipc.Message) error {
	body, err := ipc.Encode(message)
	if err != nil {
		return err
	}
	return f.Enqueue(ctx, body)
}

// Close stops the outbound loop. Queued bodies that have not been
// written are discarded. Close does not close the underlying pipes;
// the owner of the pipes closes them, which ends the inbound loop.
func (f *Framer) Close() {
	f.closeOnce.Do(func() { close(f.closing) })
}

// Done is closed when the inbound loop exits (end of stream, read
// error, or closed pipe).
func (f *Framer) Done() <-chan struct{} {
	return f.readerDone
}

// WriterDone is closed when the outbound loop exits.
func (f *Framer) WriterDone() <-chan struct{} {
	return f.writerDone
}

// Err returns the error that ended the inbound loop, or the write error
// that ended the outbound loop. A clean end of stream is not an error.
func (f *Framer) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return f.readErr
	}
	return f.writeErr
}

func (f *Framer) writeLoop() {
	defer close(f.writerDone)

	buffered := bufio.NewWriter(f.writer)
	for {
		select {
		case <-f.closing:
			return
		case body := <-f.queue:
			err := WriteFrame(buffered, body)
			if err == nil {
				err = buffered.Flush()
			}
			// Nothing was written for an oversized body; the pipe is
			// still in sync.
			var tooLarge *FrameTooLargeError
			if errors.As(err, &tooLarge) {
				f.logger.Warn("dropping oversized outbound frame", "length", tooLarge.Length)
				continue
			}
			if err != nil {
				f.mu.Lock()
				f.writeErr = fmt.Errorf("outbound: %w", err)
				f.mu.Unlock()
				f.logger.Warn("outbound frame write failed, no further messages can be sent",
					"error", err,
				)
				return
			}
		}
	}
}

func (f *Framer) readLoop() {
	defer close(f.readerDone)

	for {
		body, err := ReadFrame(f.reader)
		if err != nil {
			var tooLarge *FrameTooLargeError
			if errors.As(err, &tooLarge) {
				f.logger.Warn("dropping oversized frame", "length", tooLarge.Length)
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				f.logger.Debug("inbound stream closed")
				return
			}
			f.mu.Lock()
			f.readErr = fmt.Errorf("inbound: %w", err)
			f.mu.Unlock()
			f.logger.Warn("inbound frame read failed", "error", err)
			return
		}

		message, err := ipc.Decode(body)
		if err != nil {
			f.logger.Warn("dropping malformed frame",
				"length", len(body),
				"error", err,
			)
			continue
		}

		if message.Kind.Resolves() {
			if !f.handler.HandleResponse(message) {
				f.logger.Debug("dropping response with no waiting call",
					"message_id", message.ID,
					"kind", message.Kind.String(),
				)
			}
			continue
		}
		f.handler.HandleEvent(message)
	}
}
