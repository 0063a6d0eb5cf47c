// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pluginsdk

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/bureau-foundation/plughost/lib/ipc"
	"github.com/bureau-foundation/plughost/lib/payload"
	"github.com/bureau-foundation/plughost/lib/stream"
)

// ErrNotServing is returned by Emit before Serve starts or after it
// returns.
var ErrNotServing = errors.New("pluginsdk: server is not serving")

// HandlerFunc answers one Call. The returned bytes become the Response
// payload; a non-nil error becomes an Error frame carrying its text.
// ctx is cancelled when the host closes the connection.
type HandlerFunc func(ctx context.Context, payload []byte) ([]byte, error)

// EventFunc receives Event frames sent by the host.
type EventFunc func(ctx context.Context, payload []byte)

// Config configures a Server.
type Config struct {
	// Logger receives diagnostics. Plugins typically pass a logger
	// writing to stderr, which the host captures. Nil discards.
	Logger *slog.Logger

	// Compression is used by HandleValue responses. The zero value
	// sends them uncompressed.
	Compression payload.Compression

	// OnEvent, if set, receives host Events.
	OnEvent EventFunc
}

// Server dispatches host Calls to registered handlers.
type Server struct {
	logger      *slog.Logger
	compression payload.Compression
	onEvent     EventFunc

	handlersMu sync.RWMutex
	handlers   map[string]HandlerFunc

	writeMu sync.Mutex
	writer  *bufio.Writer

	nextEventID atomic.Uint64
}

// NewServer returns a Server with no handlers.
func NewServer(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		logger:      logger,
		compression: config.Compression,
		onEvent:     config.OnEvent,
		handlers:    make(map[string]HandlerFunc),
	}
}

// Handle registers handler for method, replacing any earlier one.
func (s *Server) Handle(method string, handler HandlerFunc) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[method] = handler
}

// HandleValue registers a typed handler. The Call payload is decoded
// from a lib/payload envelope into Request and the result is encoded
// the same way.
func HandleValue[Request, Response any](s *Server, method string, handler func(context.Context, Request) (Response, error)) {
	s.Handle(method, func(ctx context.Context, data []byte) ([]byte, error) {
		var request Request
		if err := payload.Unmarshal(data, &request); err != nil {
			return nil, fmt.Errorf("decoding %s request: %w", method, err)
		}
		response, err := handler(ctx, request)
		if err != nil {
			return nil, err
		}
		return payload.Marshal(response, s.compression)
	})
}

// Emit sends an unsolicited Event to the host.
func (s *Server) Emit(data []byte) error {
	return s.send(ipc.NewEvent(s.nextEventID.Add(1), data))
}

// Serve reads frames from r and writes replies to w until r reaches end
// of stream or ctx is cancelled. In-flight handlers see their context
// cancelled and Serve waits for them before returning. A clean end of
// stream returns nil.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.writeMu.Lock()
	s.writer = bufio.NewWriter(w)
	s.writeMu.Unlock()
	defer func() {
		s.writeMu.Lock()
		s.writer = nil
		s.writeMu.Unlock()
	}()

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type inbound struct {
		message ipc.Message
		err     error
	}
	frames := make(chan inbound)
	go func() {
		defer close(frames)
		for {
			body, err := stream.ReadFrame(r)
			if err != nil {
				var tooLarge *stream.FrameTooLargeError
				if errors.As(err, &tooLarge) {
					s.logger.Warn("dropping oversized frame", "length", tooLarge.Length)
					continue
				}
				select {
				case frames <- inbound{err: err}:
				case <-serveCtx.Done():
				}
				return
			}
			message, err := ipc.Decode(body)
			if err != nil {
				s.logger.Warn("dropping malformed frame", "length", len(body), "error", err)
				continue
			}
			select {
			case frames <- inbound{message: message}:
			case <-serveCtx.Done():
				return
			}
		}
	}()

	var handlers sync.WaitGroup
	defer handlers.Wait()
	defer cancel()

	for {
		select {
		case <-serveCtx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if frame.err != nil {
				if errors.Is(frame.err, io.EOF) {
					s.logger.Debug("host closed the connection")
					return nil
				}
				return fmt.Errorf("reading from host: %w", frame.err)
			}
			s.dispatch(serveCtx, &handlers, frame.message)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, handlers *sync.WaitGroup, message ipc.Message) {
	switch message.Kind {
	case ipc.KindCall:
		handlers.Add(1)
		go func() {
			defer handlers.Done()
			s.answer(ctx, message)
		}()
	case ipc.KindPing:
		if err := s.send(ipc.NewPong(message.ID)); err != nil {
			s.logger.Warn("sending pong failed", "error", err)
		}
	case ipc.KindEvent:
		if s.onEvent != nil {
			s.onEvent(ctx, message.Payload)
		}
	default:
		s.logger.Debug("ignoring frame", "message_id", message.ID, "kind", message.Kind.String())
	}
}

func (s *Server) answer(ctx context.Context, call ipc.Message) {
	s.handlersMu.RLock()
	handler, ok := s.handlers[call.Method]
	s.handlersMu.RUnlock()

	var reply ipc.Message
	if !ok {
		reply = ipc.NewError(call.ID, truncateText(fmt.Sprintf("unknown method %q", call.Method), math.MaxUint16))
	} else {
		result, err := s.invoke(ctx, handler, call)
		if err != nil {
			reply = ipc.NewError(call.ID, truncateText(err.Error(), math.MaxUint16))
		} else {
			reply = ipc.NewResponse(call.ID, result)
		}
	}

	// The host has gone; nobody is waiting for the reply.
	if ctx.Err() != nil {
		return
	}
	body, err := s.encodeReply(call, reply)
	if err == nil {
		err = s.writeFrame(body)
	}
	if err != nil {
		s.logger.Warn("sending reply failed",
			"message_id", call.ID,
			"method", call.Method,
			"error", err,
		)
	}
}

// encodeReply encodes reply, substituting an Error frame when the reply
// cannot travel as one frame, so the host's call always settles.
func (s *Server) encodeReply(call, reply ipc.Message) ([]byte, error) {
	body, err := ipc.Encode(reply)
	if err == nil {
		err = stream.CheckFrameSize(body)
	}
	if err == nil {
		return body, nil
	}
	s.logger.Warn("reply cannot be sent, answering with an error",
		"message_id", call.ID,
		"method", call.Method,
		"error", err,
	)
	text := truncateText(fmt.Sprintf("reply to %q cannot be sent: %v", call.Method, err), math.MaxUint16)
	return ipc.Encode(ipc.NewError(call.ID, text))
}

// truncateText cuts text to at most limit bytes of valid UTF-8.
func truncateText(text string, limit int) string {
	text = strings.ToValidUTF8(text, "\uFFFD")
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func (s *Server) invoke(ctx context.Context, handler HandlerFunc, call ipc.Message) (result []byte, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error("handler panicked", "method", call.Method, "panic", recovered)
			err = fmt.Errorf("method %q panicked: %v", call.Method, recovered)
		}
	}()
	return handler(ctx, call.Payload)
}

func (s *Server) send(message ipc.Message) error {
	body, err := ipc.Encode(message)
	if err != nil {
		return err
	}
	return s.writeFrame(body)
}

func (s *Server) writeFrame(body []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writer == nil {
		return ErrNotServing
	}
	if err := stream.WriteFrame(s.writer, body); err != nil {
		return err
	}
	return s.writer.Flush()
}
