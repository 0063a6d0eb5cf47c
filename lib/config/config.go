// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/plughost/lib/payload"
	"github.com/bureau-foundation/plughost/lib/trust"
)

// EnvVar names the environment variable Load reads.
const EnvVar = "PLUGHOST_CONFIG"

// Environment is the deployment type.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the plugin host configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	// TrustedKeys are Ed25519 public keys, each either 64 hex
	// characters or an OpenSSH "ssh-ed25519 ..." line.
	TrustedKeys []string `yaml:"trusted_keys"`

	// TrustedKeyFiles are files holding one such key per line.
	TrustedKeyFiles []string `yaml:"trusted_key_files"`

	// Manifest is the path of the JSONC signature manifest.
	Manifest string `yaml:"manifest"`

	// CallTimeout is the default per-call timeout. "0" disables it.
	CallTimeout string `yaml:"call_timeout"`

	// TerminateGrace is the delay between SIGTERM and SIGKILL.
	TerminateGrace string `yaml:"terminate_grace"`

	// RequireVerification refuses to spawn plugins without a valid
	// manifest signature.
	RequireVerification bool `yaml:"require_verification"`

	// Compression applies to structured call arguments: none, lz4, or
	// zstd.
	Compression string `yaml:"compression"`

	Plugins []PluginConfig `yaml:"plugins"`

	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides are the fields an environment section may replace.
type Overrides struct {
	Manifest            string `yaml:"manifest,omitempty"`
	CallTimeout         string `yaml:"call_timeout,omitempty"`
	TerminateGrace      string `yaml:"terminate_grace,omitempty"`
	RequireVerification *bool  `yaml:"require_verification,omitempty"`
	Compression         string `yaml:"compression,omitempty"`
}

// PluginConfig describes one plugin the host may spawn by name.
type PluginConfig struct {
	Name string            `yaml:"name"`
	Path string            `yaml:"path"`
	Args []string          `yaml:"args"`
	Env  map[string]string `yaml:"env"`
}

// Default returns the base values a config file is merged over.
func Default() *Config {
	return &Config{
		Environment:    Development,
		CallTimeout:    "30s",
		TerminateGrace: "5s",
		Compression:    "none",
	}
}

// Load loads the file named by PLUGHOST_CONFIG. It fails when the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your plughost.yaml or use --config", EnvVar)
	}
	return LoadFile(path)
}

// LoadFile loads and validates the configuration at path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides != nil {
		if overrides.Manifest != "" {
			c.Manifest = overrides.Manifest
		}
		if overrides.CallTimeout != "" {
			c.CallTimeout = overrides.CallTimeout
		}
		if overrides.TerminateGrace != "" {
			c.TerminateGrace = overrides.TerminateGrace
		}
		if overrides.RequireVerification != nil {
			c.RequireVerification = *overrides.RequireVerification
		}
		if overrides.Compression != "" {
			c.Compression = overrides.Compression
		}
	}

	if c.Environment == Production {
		c.RequireVerification = true
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.Manifest = expandVars(c.Manifest, vars)
	for index := range c.TrustedKeyFiles {
		c.TrustedKeyFiles[index] = expandVars(c.TrustedKeyFiles[index], vars)
	}
	for index := range c.Plugins {
		c.Plugins[index].Path = expandVars(c.Plugins[index].Path, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}. vars is consulted
// before the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case Development, Staging, Production:
	default:
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}
	if _, err := time.ParseDuration(c.CallTimeout); err != nil {
		errs = append(errs, fmt.Errorf("call_timeout: %w", err))
	}
	if grace, err := time.ParseDuration(c.TerminateGrace); err != nil {
		errs = append(errs, fmt.Errorf("terminate_grace: %w", err))
	} else if grace <= 0 {
		errs = append(errs, fmt.Errorf("terminate_grace must be positive, got %s", c.TerminateGrace))
	}
	if _, err := payload.ParseCompression(c.Compression); err != nil {
		errs = append(errs, fmt.Errorf("compression: %w", err))
	}
	if c.RequireVerification && c.Manifest == "" {
		errs = append(errs, errors.New("manifest is required when require_verification is set"))
	}

	seen := make(map[string]bool)
	for index, plugin := range c.Plugins {
		if plugin.Name == "" {
			errs = append(errs, fmt.Errorf("plugins[%d]: name is required", index))
			continue
		}
		if seen[plugin.Name] {
			errs = append(errs, fmt.Errorf("plugins[%d]: duplicate name %q", index, plugin.Name))
		}
		seen[plugin.Name] = true
		if plugin.Path == "" {
			errs = append(errs, fmt.Errorf("plugins[%d] (%s): path is required", index, plugin.Name))
		}
	}

	return errors.Join(errs...)
}

// CallTimeoutDuration returns the parsed call_timeout. Call only on a
// validated Config.
func (c *Config) CallTimeoutDuration() time.Duration {
	duration, _ := time.ParseDuration(c.CallTimeout)
	return duration
}

// TerminateGraceDuration returns the parsed terminate_grace. Call only
// on a validated Config.
func (c *Config) TerminateGraceDuration() time.Duration {
	duration, _ := time.ParseDuration(c.TerminateGrace)
	return duration
}

// PayloadCompression returns the parsed compression. Call only on a
// validated Config.
func (c *Config) PayloadCompression() payload.Compression {
	compression, _ := payload.ParseCompression(c.Compression)
	return compression
}

// Plugin returns the plugin entry named name.
func (c *Config) Plugin(name string) (PluginConfig, bool) {
	for _, plugin := range c.Plugins {
		if plugin.Name == name {
			return plugin, true
		}
	}
	return PluginConfig{}, false
}

// KeySet builds the trust store from trusted_keys and
// trusted_key_files. Any malformed key fails the whole load.
func (c *Config) KeySet() (*trust.KeySet, error) {
	keys := trust.NewKeySet()
	for index, text := range c.TrustedKeys {
		if err := trust.AddKeyText(keys, text); err != nil {
			return nil, fmt.Errorf("trusted_keys[%d]: %w", index, err)
		}
	}
	for _, path := range c.TrustedKeyFiles {
		if err := trust.LoadPublicKeyFile(keys, path); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
