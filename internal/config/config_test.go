package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SMARTFILE_API_URL", "SMARTFILE_OAUTH_URL", "SMARTFILE_DOWNLOAD_DIR",
		"API_KEY", "API_PASS", "SMARTFILE_AUTH", "SMARTFILE_LOG_LEVEL", "SMARTFILE_MAX_RETRIES",
		"SMARTFILE_CLIENT_TOKEN", "SMARTFILE_CLIENT_SECRET", "SMARTFILE_ACCESS_TOKEN", "SMARTFILE_ACCESS_SECRET",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
api:
  url: "https://example.smartfile.com/api/2"
auth:
  mode: basic
  key: "file-key"
  password: "file-pass"
http:
  connect_timeout: 5s
  rate_limit: 2.5
  burst: 4
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))

	t.Setenv("API_KEY", "env-key")
	t.Setenv("SMARTFILE_MAX_RETRIES", "3")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "https://example.smartfile.com/api/2", cfg.API.URL)
	assert.Equal(t, "env-key", cfg.Auth.Key)
	assert.Equal(t, "file-pass", cfg.Auth.Password)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ConnectTimeout)
	assert.Equal(t, 2.5, cfg.HTTP.RateLimit)
	assert.Equal(t, 4, cfg.HTTP.Burst)
	assert.Equal(t, 3, cfg.HTTP.MaxRetries)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadNoFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEY", "k")
	t.Setenv("API_PASS", "p")
	t.Setenv("SMARTFILE_API_URL", "http://127.0.0.1:8080/api/2")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8080/api/2", cfg.API.URL)
	assert.Equal(t, AuthBasic, cfg.Auth.Mode)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ConnectTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("api: [unterminated"), 0o600))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoadInvalidRetryEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMARTFILE_MAX_RETRIES", "many")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "basic complete", mutate: func(c *Config) { c.Auth.Key, c.Auth.Password = "k", "p" }},
		{name: "basic missing password", mutate: func(c *Config) { c.Auth.Key = "k" }, wantErr: true},
		{name: "oauth complete", mutate: func(c *Config) {
			c.Auth.Mode = AuthOAuth
			c.Auth.ClientToken, c.Auth.ClientSecret = "ct", "cs"
		}},
		{name: "oauth missing secret", mutate: func(c *Config) {
			c.Auth.Mode = AuthOAuth
			c.Auth.ClientToken = "ct"
		}, wantErr: true},
		{name: "unknown mode", mutate: func(c *Config) { c.Auth.Mode = "kerberos" }, wantErr: true},
		{name: "empty url", mutate: func(c *Config) {
			c.API.URL = " "
			c.Auth.Key, c.Auth.Password = "k", "p"
		}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Auth.Mode = AuthOAuth
	cfg.Auth.ClientToken = "ct"
	cfg.Auth.ClientSecret = "cs"
	cfg.Auth.AccessToken = "at"
	cfg.Auth.AccessSecret = "as"
	require.NoError(t, Save(configPath, cfg))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Auth, loaded.Auth)
	assert.Equal(t, cfg.HTTP.ConnectTimeout, loaded.HTTP.ConnectTimeout)
}

func TestSaveAccessTokenKeepsEnvironmentOut(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	onDisk := Default()
	onDisk.API.URL = "https://files.example.com/api/2"
	onDisk.Auth.Mode = AuthOAuth
	onDisk.Auth.ClientToken = "file-ct"
	require.NoError(t, Save(configPath, onDisk))

	t.Setenv("API_PASS", "env-pass")
	t.Setenv("SMARTFILE_CLIENT_SECRET", "env-secret")
	require.NoError(t, SaveAccessToken(configPath, "at", "as"))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "env-pass")
	assert.NotContains(t, string(data), "env-secret")

	clearEnv(t)
	loaded, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/api/2", loaded.API.URL)
	assert.Equal(t, "file-ct", loaded.Auth.ClientToken)
	assert.Empty(t, loaded.Auth.ClientSecret)
	assert.Equal(t, AuthOAuth, loaded.Auth.Mode)
	assert.Equal(t, "at", loaded.Auth.AccessToken)
	assert.Equal(t, "as", loaded.Auth.AccessSecret)
}
