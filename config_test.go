// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
base_url: /rpc/
mode: production
disable_etag: true
secret_key: correct horse battery staple
max_body_bytes: 1024
`))
	require.NoError(t, err)
	assert.Equal(t, "/rpc/", cfg.BaseURL)
	assert.Equal(t, ModeProduction, cfg.Mode)
	assert.True(t, cfg.DisableEtag)
	assert.Equal(t, testSecret, cfg.SecretKey)
	assert.Equal(t, int64(1024), cfg.MaxBodyBytes)
	assert.Equal(t, DefaultDiscoveryPattern, cfg.DiscoveryPattern)
}

func TestParseConfigDefaults(t *testing.T) {
	t.Setenv(EnvMode, "Development")
	cfg, err := ParseConfig([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, ModeDevelopment, cfg.Mode)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.MaxBodyBytes)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "base_url: /x/\nbase_ulr: /y/\n", "base_ulr"},
		{"base url", "base_url: api\n", "base_url"},
		{"mode", "mode: staging\n", "staging"},
		{"short secret", "secret_key: abc\n", "secret_key"},
		{"negative body", "max_body_bytes: -1\n", "max_body_bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvMode, "")
			_, err := ParseConfig([]byte(tt.yaml))
			var uerr *UsageError
			require.ErrorAs(t, err, &uerr)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wildcard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: /_rpc/\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/_rpc/", cfg.BaseURL)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestServerConfig(t *testing.T) {
	s, err := NewServer(WithConfig(Config{SecretKey: testSecret, BaseURL: "/rpc/"}))
	require.NoError(t, err)
	assert.Empty(t, s.Config().SecretKey)
	assert.Equal(t, "/rpc/", s.Config().BaseURL)
	_, ok := s.key()
	assert.True(t, ok)

	_, err = NewServer(WithBaseURL("rpc"))
	require.Error(t, err)
}
