package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "memory", cfg.Session.CacheDriver)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL())
	assert.Equal(t, 168*time.Hour, cfg.Auth.RefreshTokenTTL())
	assert.NotEqual(t, cfg.Auth.AccessTokenSecret, cfg.Auth.RefreshTokenSecret)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.False(t, cfg.Seed.Enabled())
}

func TestLoad_ProductionRejectsDefaultSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "production")
}

func TestLoad_ProductionWithSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("ACCESS_TOKEN_SECRET", "a-long-access-secret")
	t.Setenv("REFRESH_TOKEN_SECRET", "a-long-refresh-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.App.IsProduction())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Store:   StoreConfig{Driver: "memory"},
			Session: SessionConfig{CacheDriver: "memory"},
			Auth: AuthConfig{
				AccessTokenSecret:     "a",
				RefreshTokenSecret:    "b",
				AccessTokenTTLMinutes: 15,
				RefreshTokenTTLHours:  1,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "same secrets",
			mutate:  func(c *Config) { c.Auth.RefreshTokenSecret = "a" },
			wantErr: "must differ",
		},
		{
			name:    "refresh not longer than access",
			mutate:  func(c *Config) { c.Auth.AccessTokenTTLMinutes = 60 },
			wantErr: "must exceed",
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.Store.Driver = "sqlite" },
			wantErr: "STORE_DRIVER",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: "POSTGRES_DSN",
		},
		{
			name:    "unknown cache",
			mutate:  func(c *Config) { c.Session.CacheDriver = "memcached" },
			wantErr: "SESSION_CACHE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
