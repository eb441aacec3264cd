package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAPIURL is the hosted SmartFile API root.
const DefaultAPIURL = "https://app.smartfile.com/api/2"

// Authentication modes.
const (
	AuthBasic = "basic"
	AuthOAuth = "oauth"
)

type Config struct {
	API  APIConfig  `yaml:"api" json:"api"`
	Auth AuthConfig `yaml:"auth" json:"auth"`
	HTTP HTTPConfig `yaml:"http" json:"http"`
	Log  LogConfig  `yaml:"log" json:"log"`
}

type APIConfig struct {
	URL         string `yaml:"url" json:"url"`
	OAuthURL    string `yaml:"oauth_url,omitempty" json:"oauth_url,omitempty"`
	DownloadDir string `yaml:"download_dir,omitempty" json:"download_dir,omitempty"`
}

type AuthConfig struct {
	Mode string `yaml:"mode" json:"mode"` // "basic" or "oauth"

	// Basic
	Key      string `yaml:"key,omitempty" json:"key,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// OAuth 1.0a
	ClientToken  string `yaml:"client_token,omitempty" json:"client_token,omitempty"`
	ClientSecret string `yaml:"client_secret,omitempty" json:"client_secret,omitempty"`
	AccessToken  string `yaml:"access_token,omitempty" json:"access_token,omitempty"`
	AccessSecret string `yaml:"access_secret,omitempty" json:"access_secret,omitempty"`
}

type HTTPConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty" json:"connect_timeout,omitempty"`
	UserAgent      string        `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	MaxRetries     int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	RateLimit      float64       `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"` // requests per second, 0 disables
	Burst          int           `yaml:"burst,omitempty" json:"burst,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		API:  APIConfig{URL: DefaultAPIURL},
		Auth: AuthConfig{Mode: AuthBasic},
		HTTP: HTTPConfig{ConnectTimeout: 30 * time.Second},
		Log:  LogConfig{Level: "info", Format: "console"},
	}
}

// DefaultPath returns $HOME/.smartfile/config.yaml, or a relative path when
// the home directory cannot be determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".smartfile", "config.yaml")
	}
	return filepath.Join(home, ".smartfile", "config.yaml")
}

// Load reads the YAML file at path on top of Default. A missing file is not
// an error. Environment variables always override file values.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if err := processEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

func processEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SMARTFILE_API_URL"); v != "" {
		cfg.API.URL = v
	}
	if v := os.Getenv("SMARTFILE_OAUTH_URL"); v != "" {
		cfg.API.OAuthURL = v
	}
	if v := os.Getenv("SMARTFILE_DOWNLOAD_DIR"); v != "" {
		cfg.API.DownloadDir = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.Auth.Key = v
	}
	if v := os.Getenv("API_PASS"); v != "" {
		cfg.Auth.Password = v
	}
	if v := os.Getenv("SMARTFILE_CLIENT_TOKEN"); v != "" {
		cfg.Auth.ClientToken = v
	}
	if v := os.Getenv("SMARTFILE_CLIENT_SECRET"); v != "" {
		cfg.Auth.ClientSecret = v
	}
	if v := os.Getenv("SMARTFILE_ACCESS_TOKEN"); v != "" {
		cfg.Auth.AccessToken = v
	}
	if v := os.Getenv("SMARTFILE_ACCESS_SECRET"); v != "" {
		cfg.Auth.AccessSecret = v
	}
	if v := os.Getenv("SMARTFILE_AUTH"); v != "" {
		cfg.Auth.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("SMARTFILE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SMARTFILE_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: SMARTFILE_MAX_RETRIES: %w", err)
		}
		cfg.HTTP.MaxRetries = n
	}
	return nil
}

// Validate checks that the selected authentication mode has what it needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.URL) == "" {
		return fmt.Errorf("config: api.url is required")
	}
	switch c.Auth.Mode {
	case "", AuthBasic:
		if c.Auth.Key == "" || c.Auth.Password == "" {
			return fmt.Errorf("config: basic auth requires auth.key and auth.password (or API_KEY and API_PASS)")
		}
	case AuthOAuth:
		if c.Auth.ClientToken == "" || c.Auth.ClientSecret == "" {
			return fmt.Errorf("config: oauth requires auth.client_token and auth.client_secret")
		}
	default:
		return fmt.Errorf("config: unknown auth mode %q", c.Auth.Mode)
	}
	return nil
}

// Save writes cfg to path with owner-only permissions, creating the parent
// directory when needed.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// SaveAccessToken merges an OAuth access pair into the file at path and
// switches it to OAuth mode. Only the file's own contents are rewritten;
// environment overrides never reach disk.
func SaveAccessToken(path, token, secret string) error {
	cfg, err := loadFile(path)
	if err != nil {
		return err
	}
	cfg.Auth.Mode = AuthOAuth
	cfg.Auth.AccessToken = token
	cfg.Auth.AccessSecret = secret
	return Save(path, cfg)
}
