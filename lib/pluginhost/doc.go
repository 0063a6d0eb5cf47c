// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pluginhost runs native plugins as child processes and calls
// into them.
//
// A [Registry] owns every plugin process it spawns. Each process gets a
// stream.Framer on its stdin/stdout pipes and a correlate.Correlator
// for its outstanding calls; its stderr is drained line by line into
// the registry's logger. Callers address processes by the numeric
// [Handle] that [Registry.Spawn] returns:
//
//	registry := pluginhost.NewRegistry(pluginhost.Config{Logger: logger})
//	defer registry.Close()
//
//	handle, err := registry.Spawn("/opt/plugins/thumbnailer", pluginhost.SpawnOptions{})
//	...
//	result, err := registry.Call(ctx, handle, "resize", arguments, 5*time.Second)
//
// [Registry.Open] returns a [*Plugin] instead, for callers that want
// the process tied to a value whose Close terminates it.
//
// When the registry is configured with a trust.Verifier, a spawn that
// carries a signature is verified before the binary is executed, and
// with RequireVerification set an unsigned or unverified binary is
// refused with [ErrUnverified].
//
// A plugin that exits on its own (its stdout reaches end of stream)
// fails its outstanding calls with correlate.ErrChannelClosed at once.
// Its record stays in [Registry.List], marked exited, until
// [Registry.Terminate] removes it.
package pluginhost
