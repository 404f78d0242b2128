// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Mode selects how much the server reveals about itself.
type Mode string

const (
	// ModeDevelopment enables the introspection page and verbose errors.
	ModeDevelopment Mode = "development"
	// ModeProduction suppresses endpoint listings and stack traces.
	ModeProduction Mode = "production"
)

// EnvMode is the environment variable the default Mode is read from.
const EnvMode = "WILDCARD_ENV"

const (
	// DefaultBaseURL is the path prefix endpoints are served under.
	DefaultBaseURL = "/_api/"

	// DefaultMaxBodyBytes bounds request bodies read by ServeHTTP.
	DefaultMaxBodyBytes = 10 << 20

	// DefaultDiscoveryPattern matches endpoint plugins below DiscoveryRoot.
	DefaultDiscoveryPattern = "**/*.endpoints.so"
)

// Config holds the server settings. The zero value of each field means its
// default.
type Config struct {
	BaseURL          string `yaml:"base_url"`
	DisableEtag      bool   `yaml:"disable_etag"`
	Mode             Mode   `yaml:"mode"`
	SecretKey        string `yaml:"secret_key"`
	MaxBodyBytes     int64  `yaml:"max_body_bytes"`
	DiscoveryRoot    string `yaml:"discovery_root"`
	DiscoveryPattern string `yaml:"discovery_pattern"`
}

// DefaultConfig returns the defaults, with Mode taken from WILDCARD_ENV.
func DefaultConfig() Config {
	return Config{
		BaseURL:          DefaultBaseURL,
		Mode:             Mode(strings.ToLower(os.Getenv(EnvMode))),
		MaxBodyBytes:     DefaultMaxBodyBytes,
		DiscoveryPattern: DefaultDiscoveryPattern,
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML on top of DefaultConfig. Unknown keys are a
// *UsageError.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
		return Config{}, &UsageError{Msg: "invalid wildcard config", Err: errors.New(yaml.FormatError(err, false, true))}
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.DiscoveryPattern == "" {
		c.DiscoveryPattern = DefaultDiscoveryPattern
	}
}

func (c *Config) validate() error {
	c.applyDefaults()
	if !strings.HasPrefix(c.BaseURL, "/") || !strings.HasSuffix(c.BaseURL, "/") {
		return usageErrorf("config base_url must start and end with `/`, got `%s`", c.BaseURL)
	}
	switch c.Mode {
	case "", ModeDevelopment, ModeProduction:
	default:
		return usageErrorf("config mode must be `%s` or `%s`, got `%s`", ModeDevelopment, ModeProduction, c.Mode)
	}
	if c.MaxBodyBytes < 0 {
		return usageErrorf("config max_body_bytes must not be negative")
	}
	if c.SecretKey != "" && len(c.SecretKey) < MinSecretKeyLen {
		return usageErrorf("config secret_key must have at least %d characters", MinSecretKeyLen)
	}
	return nil
}

func (c Config) isDev() bool        { return c.Mode == ModeDevelopment }
func (c Config) isProduction() bool { return c.Mode == ModeProduction }
