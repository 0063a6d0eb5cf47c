// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pluginhost

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bureau-foundation/plughost/lib/ipc"
	"github.com/bureau-foundation/plughost/lib/pluginsdk"
	"github.com/bureau-foundation/plughost/lib/stream"
)

type sumRequest struct {
	Values []int `cbor:"values"`
}

type sumResponse struct {
	Total int `cbor:"total"`
}

// runHelperPlugin is the body of the re-executed test binary. Each mode
// is a small plugin with one behavior the tests need.
func runHelperPlugin(mode string) int {
	server := newHelperServer()

	switch mode {
	case "echo":
	case "stderr":
		fmt.Fprintln(os.Stderr, "warming up the cache")
	case "silent":
		// Acknowledge each call with an Event, then never answer it.
		server.Handle("hang", func(ctx context.Context, data []byte) ([]byte, error) {
			server.Emit(data)
			<-ctx.Done()
			return nil, ctx.Err()
		})
	case "crash":
		server.Handle("crash", func(ctx context.Context, data []byte) ([]byte, error) {
			os.Exit(3)
			return nil, nil
		})
	case "stubborn":
		signal.Ignore(syscall.SIGTERM)
	case "pinger":
		if !exchangePing() {
			return 1
		}
		server.Handle("pong-received", func(ctx context.Context, data []byte) ([]byte, error) {
			return []byte("true"), nil
		})
	default:
		fmt.Fprintf(os.Stderr, "unknown helper plugin mode %q\n", mode)
		return 2
	}

	if err := server.Serve(context.Background(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		return 1
	}
	if mode == "stubborn" {
		time.Sleep(time.Hour)
	}
	return 0
}

func newHelperServer() *pluginsdk.Server {
	var server *pluginsdk.Server
	server = pluginsdk.NewServer(pluginsdk.Config{
		OnEvent: func(ctx context.Context, data []byte) {
			server.Emit(append([]byte("ack:"), data...))
		},
	})
	server.Handle("echo", func(ctx context.Context, data []byte) ([]byte, error) {
		return data, nil
	})
	pluginsdk.HandleValue(server, "sum", func(ctx context.Context, request sumRequest) (sumResponse, error) {
		total := 0
		for _, value := range request.Values {
			total += value
		}
		return sumResponse{Total: total}, nil
	})
	return server
}

// exchangePing sends a Ping to the host and reports whether the
// matching Pong came back.
func exchangePing() bool {
	body, err := ipc.Encode(ipc.NewPing(77))
	if err != nil {
		return false
	}
	if err := stream.WriteFrame(os.Stdout, body); err != nil {
		return false
	}
	reply, err := stream.ReadFrame(os.Stdin)
	if err != nil {
		return false
	}
	message, err := ipc.Decode(reply)
	return err == nil && message.Kind == ipc.KindPong && message.ID == 77
}
