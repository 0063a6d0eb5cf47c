// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the
// select-with-timeout safety valve so that a hung goroutine fails the
// test with a message instead of stalling the whole run. They are the
// only place tests use a real wall-clock timeout; anything that tests
// timing behavior injects lib/clock's fake instead.
//
// [HelperPlugin] supports the re-exec pattern for process tests: the
// test binary is spawned as a child with an environment variable that
// tells its TestMain to run a plugin loop instead of the test suite.
// This exercises real pipes and real process lifecycles without
// building separate binaries.
//
// All helpers call Fatalf on failure.
//
// This package depends on no other packages in this module.
package testutil
