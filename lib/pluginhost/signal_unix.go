// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package pluginhost

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

const (
	terminateSignal = unix.SIGTERM
	killSignal      = unix.SIGKILL
)

// setProcessGroup puts the plugin in its own process group so a signal
// reaches any children it spawned too.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup signals the plugin's process group. A group that is
// already gone is not an error.
func signalGroup(cmd *exec.Cmd, signal syscall.Signal) error {
	err := unix.Kill(-cmd.Process.Pid, signal)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
