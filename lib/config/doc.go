// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the plugin host's YAML configuration.
//
// Configuration comes from exactly one file, named either by the
// PLUGHOST_CONFIG environment variable ([Load]) or by a --config flag
// ([LoadFile]). There is no discovery and no fallback search path.
//
// The file may carry development, staging, and production sections
// that override base values when [Config].Environment matches. The
// production environment always requires plugin verification, whatever
// the file says.
//
// ${VAR} and ${VAR:-default} are expanded in path fields (manifest,
// trusted key files, plugin paths) and nowhere else. Durations are
// strings in time.ParseDuration syntax and are checked by
// [Config.Validate].
package config
