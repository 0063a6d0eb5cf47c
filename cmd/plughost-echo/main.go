// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Plughost-echo is a minimal plugin for exercising a plugin host end
// to end. It serves three methods on stdin/stdout:
//   - echo: returns the call payload unchanged
//   - sum: adds a list of integers (payload envelope in and out)
//   - describe: reports the plugin's pid and the methods it serves
//
// Diagnostics go to stderr as JSON, where the host captures them. Host
// events are logged and acknowledged with an "ack" event carrying the
// same bytes.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/bureau-foundation/plughost/lib/pluginsdk"
	"github.com/bureau-foundation/plughost/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

type sumRequest struct {
	Values []int64 `cbor:"values"`
}

type sumResponse struct {
	Total int64 `cbor:"total"`
	Count int   `cbor:"count"`
}

type describeResponse struct {
	PID     int      `cbor:"pid"`
	Methods []string `cbor:"methods"`
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	var server *pluginsdk.Server
	server = pluginsdk.NewServer(pluginsdk.Config{
		Logger: logger,
		OnEvent: func(_ context.Context, data []byte) {
			logger.Info("host event", "length", len(data))
			if err := server.Emit(append([]byte("ack:"), data...)); err != nil {
				logger.Warn("acknowledging event failed", "error", err)
			}
		},
	})

	methods := []string{"describe", "echo", "sum"}
	server.Handle("echo", func(_ context.Context, data []byte) ([]byte, error) {
		return data, nil
	})
	pluginsdk.HandleValue(server, "sum", func(_ context.Context, request sumRequest) (sumResponse, error) {
		var total int64
		for _, value := range request.Values {
			total += value
		}
		return sumResponse{Total: total, Count: len(request.Values)}, nil
	})
	pluginsdk.HandleValue(server, "describe", func(_ context.Context, _ struct{}) (describeResponse, error) {
		return describeResponse{PID: os.Getpid(), Methods: slices.Clone(methods)}, nil
	})

	logger.Info("serving", "pid", os.Getpid())
	return server.Serve(ctx, os.Stdin, os.Stdout)
}
