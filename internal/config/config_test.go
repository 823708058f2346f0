package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "PORT", "JWT_SECRET", "FEE_RATE_BPS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, int64(DefaultFeeRateBps), cfg.FeeRateBps)
	assert.Equal(t, DefaultLockWait, cfg.LockWait)
}

func TestLoadFromFile(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "PORT", "JWT_SECRET", "FEE_RATE_BPS"} {
		t.Setenv(k, "")
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
fee_rate_bps: 250
lock_wait: 10s
allowed_origins:
  - https://app.example.com
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, int64(250), cfg.FeeRateBps)
	assert.Equal(t, 10*time.Second, cfg.LockWait)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowedOrigins)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fee_rate_bps: 250\n"), 0o644))

	t.Setenv("FEE_RATE_BPS", "750")
	t.Setenv("PORT", "7000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(750), cfg.FeeRateBps)
	assert.Equal(t, "7000", cfg.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "missing database url", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: true},
		{name: "missing port", mutate: func(c *Config) { c.Port = "" }, wantErr: true},
		{name: "negative fee rate", mutate: func(c *Config) { c.FeeRateBps = -1 }, wantErr: true},
		{name: "fee rate at 100%", mutate: func(c *Config) { c.FeeRateBps = 10000 }, wantErr: true},
		{name: "zero lock wait", mutate: func(c *Config) { c.LockWait = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				DatabaseURL: DefaultDatabaseURL,
				Port:        DefaultPort,
				JWTSecret:   DefaultJWTSecret,
				FeeRateBps:  DefaultFeeRateBps,
				LockWait:    DefaultLockWait,
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
