// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers shared by the plughost
// binaries: [Fatal] for the error returned from run(), and [ExitError]
// for commands that have already printed their outcome and only need
// to set the exit status.
package process
