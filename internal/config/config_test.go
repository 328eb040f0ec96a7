package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 12*time.Hour, cfg.TokenTTL)
	assert.Equal(t, MatchingOff, cfg.TeamMatching)
	assert.False(t, cfg.EagerMatching())
	assert.Zero(t, cfg.TeamRequestTTL)
	assert.Equal(t, 100, cfg.TeamRequestPageLen)
	assert.Equal(t, "pdf", cfg.S3KeyPrefix)
	assert.Equal(t, int64(20<<20), cfg.PDFMaxBytes)
	assert.Equal(t, 15*time.Minute, cfg.PresignTTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TOKEN_TTL", "90m")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("TEAM_MATCHING", "eager")
	t.Setenv("TEAM_REQUEST_TTL", "168h")
	t.Setenv("S3_KEY_PREFIX", "/uploads/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.True(t, cfg.EagerMatching())
	assert.Equal(t, 168*time.Hour, cfg.TeamRequestTTL)
	assert.Equal(t, "uploads", cfg.S3KeyPrefix)
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			JWTSecret:          "s",
			TokenTTL:           time.Hour,
			DBDriver:           "mysql",
			TeamMatching:       MatchingOff,
			SweepInterval:      time.Minute,
			TeamRequestPageLen: 10,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero ttl", func(c *Config) { c.TokenTTL = 0 }, "TOKEN_TTL"},
		{"unknown driver", func(c *Config) { c.DBDriver = "oracle" }, "DB_DRIVER"},
		{"unknown matching", func(c *Config) { c.TeamMatching = "lazy" }, "TEAM_MATCHING"},
		{"negative request ttl", func(c *Config) { c.TeamRequestTTL = -time.Second }, "TEAM_REQUEST_TTL"},
		{"sweep without interval", func(c *Config) {
			c.TeamRequestTTL = time.Hour
			c.SweepInterval = 0
		}, "TEAM_REQUEST_SWEEP_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
