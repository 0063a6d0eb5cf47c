// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package pluginhost

import (
	"errors"
	"os"
	"os/exec"
)

const (
	terminateSignal = 0
	killSignal      = 1
)

func setProcessGroup(*exec.Cmd) {}

// signalGroup has no process groups to work with here; both signals
// kill the plugin process itself.
func signalGroup(cmd *exec.Cmd, _ int) error {
	err := cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
