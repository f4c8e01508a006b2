package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for key := range defaults {
		t.Setenv(key, "")
	}
	t.Setenv("CONFIG", "")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", cfg.ServerAddress)
	assert.Equal(t, "localhost:3200", cfg.GRPCAddress)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.EnableHTTPS)
	assert.Equal(t, ModeMemory, cfg.Mode)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Priority(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server_address": "json:1",
		"grpc_address": "json:2",
		"token_ttl": "2h",
		"favicon_service_url": "https://icons.example.com/"
	}`), 0o600))

	t.Setenv("GRPC_ADDRESS", "env:2")
	t.Setenv("SERVER_ADDRESS", "env:1")

	cfg, err := Load([]string{"-c", path, "-a", "flag:1"}, "")
	require.NoError(t, err)
	assert.Equal(t, "flag:1", cfg.ServerAddress)
	assert.Equal(t, "env:2", cfg.GRPCAddress)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "https://icons.example.com/", cfg.FaviconServiceURL)
}

func TestLoad_ConfigFromEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log_level":"debug"}`), 0o600))
	t.Setenv("CONFIG", path)

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("JWT_SECRET=from-dotenv\nLOG_LEVEL=warn\n"), 0o600))
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load(nil, envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.JWTSecret)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load([]string{"-unknown"}, "")
	assert.Error(t, err)

	_, err = Load([]string{"-c", filepath.Join(t.TempDir(), "missing.json")}, "")
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o600))
	_, err = Load([]string{"-c", bad}, "")
	assert.Error(t, err)
}

func TestLoad_Mode(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"memory", nil, ModeMemory},
		{"file", []string{"-f", "links.json"}, ModeFile},
		{"sqlite", []string{"-sqlite", "launcher.db", "-f", "links.json"}, ModeSQLite},
		{"database", []string{"-d", "postgres://localhost/launcher", "-sqlite", "launcher.db"}, ModeDatabase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := Load(tt.args, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Mode)
		})
	}
}

func TestLoad_HTTPSFlag(t *testing.T) {
	clearEnv(t)
	cfg, err := Load([]string{"-s", "-cert", "c.pem", "-key", "k.pem", "-ttl", "30m"}, "")
	require.NoError(t, err)
	assert.True(t, cfg.EnableHTTPS)
	assert.Equal(t, "c.pem", cfg.TLSCertPath)
	assert.Equal(t, "k.pem", cfg.TLSKeyPath)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
}

func TestValidate(t *testing.T) {
	base := Config{ServerAddress: "localhost:8080", TokenTTL: time.Hour, LogLevel: "info"}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty address", func(c *Config) { c.ServerAddress = "" }},
		{"zero ttl", func(c *Config) { c.TokenTTL = 0 }},
		{"https without cert", func(c *Config) { c.EnableHTTPS = true }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, base.Validate())
}
