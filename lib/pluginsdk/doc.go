// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pluginsdk is the plugin side of the host protocol.
//
// A native plugin is an ordinary executable. The host writes framed
// ipc messages to its stdin and reads framed messages from its stdout;
// stderr is free-form text that the host logs line by line. A plugin
// built on this package registers handlers and calls Serve:
//
//	func main() {
//		server := pluginsdk.NewServer(pluginsdk.Config{})
//		server.Handle("echo", func(ctx context.Context, payload []byte) ([]byte, error) {
//			return payload, nil
//		})
//		if err := server.Serve(context.Background(), os.Stdin, os.Stdout); err != nil {
//			process.Fatal(err)
//		}
//	}
//
// Every Call runs on its own goroutine, so a slow method does not hold
// up the others and responses may leave in a different order than the
// calls arrived. Pings are answered with Pongs. A Call naming an
// unregistered method is answered with an Error frame.
//
// Nothing but frames may be written to stdout while Serve runs.
package pluginsdk
