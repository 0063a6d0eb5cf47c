// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"testing"
)

// HelperPluginEnv is the environment variable a re-executed test
// binary checks in TestMain to decide which plugin loop to run.
const HelperPluginEnv = "PLUGHOST_TEST_HELPER_PLUGIN"

// HelperPlugin returns the path of the running test binary and the
// environment to spawn it with so that its TestMain runs the helper
// plugin named mode.
//
//	path, env := testutil.HelperPlugin(t, "echo")
//	handle, err := registry.Spawn(path, pluginhost.SpawnOptions{Env: env})
func HelperPlugin(t *testing.T, mode string) (string, map[string]string) {
	t.Helper()
	path, err := os.Executable()
	if err != nil {
		t.Fatalf("locating test binary: %v", err)
	}
	return path, map[string]string{HelperPluginEnv: mode}
}

// HelperPluginMode returns the helper mode requested for this process,
// or "" when the binary is running as a normal test suite.
func HelperPluginMode() string {
	return os.Getenv(HelperPluginEnv)
}
