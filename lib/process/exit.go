// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitCoder is implemented by errors that choose their own exit status,
// typically because the command already printed its result.
type ExitCoder interface {
	ExitCode() int
}

// ExitError is an error carrying an exit status and no message of its
// own.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

func (e *ExitError) ExitCode() int { return e.Code }

// Fatal reports err and exits. It is the entrypoint error handler for
// this module's binaries: main() calls run() and hands any error here,
// before or after the structured logger exists.
func Fatal(err error) {
	os.Exit(report(os.Stderr, err))
}

// report writes err to w unless it carries its own exit code, and
// returns the status to exit with.
func report(w io.Writer, err error) int {
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
