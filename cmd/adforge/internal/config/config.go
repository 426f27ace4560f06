// Package config loads the adforge server configuration.
//
// Configuration lives in a single YAML file, by default under
// os.UserConfigDir()/adforge/config.yaml:
//
//	~/Library/Application Support/adforge/config.yaml   (macOS)
//	~/.config/adforge/config.yaml                       (Linux)
//	%AppData%/adforge/config.yaml                       (Windows)
//
// API keys may also come from the environment (ADFORGE_OPENAI_API_KEY,
// ADFORGE_GEMINI_API_KEY), which takes precedence over the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

const (
	appDir     = "adforge"
	configFile = "config.yaml"
)

// Config is the full server configuration.
type Config struct {
	// Listen is the HTTP listen address, e.g. ":8080".
	Listen string `yaml:"listen"`

	// Provider selects the generation backend: "openai" or "gemini".
	Provider string `yaml:"provider"`

	OpenAI struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"openai"`

	Gemini struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"gemini"`

	Models struct {
		Chat  string `yaml:"chat"`
		Image string `yaml:"image"`
	} `yaml:"models"`

	// DataDir is the Badger database directory holding sessions and the
	// template catalog. Empty means in-memory only.
	DataDir string `yaml:"data_dir"`

	Archive ArchiveConfig `yaml:"archive"`

	Chat ChatConfig `yaml:"chat"`

	// Users are the accepted credential tokens. Tokens are opaque to the
	// server; each maps to a fixed user record.
	Users []UserConfig `yaml:"users"`

	// SessionTTLSeconds bounds session lifetime. Zero means one hour.
	SessionTTLSeconds int `yaml:"session_ttl_seconds"`
}

// ArchiveConfig selects where generated images are persisted.
type ArchiveConfig struct {
	// Backend is "local", "s3", or "" to disable archiving.
	Backend string `yaml:"backend"`

	// Dir is the root directory for the local backend.
	Dir string `yaml:"dir"`

	// S3 backend settings. Endpoint is optional, for S3-compatible
	// stores (MinIO, R2).
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// ChatConfig tunes the conversation orchestrator.
type ChatConfig struct {
	SuggestionLimit     int `yaml:"suggestion_limit"`
	GenTimeoutSeconds   int `yaml:"gen_timeout_seconds"`
	StoreTimeoutSeconds int `yaml:"store_timeout_seconds"`
	RetentionSeconds    int `yaml:"retention_seconds"`
}

// UserConfig maps one credential token to a user record.
type UserConfig struct {
	Token    string `yaml:"token"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Identity string `yaml:"identity"`
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, configFile), nil
}

// Load reads the configuration from path, or from the default location
// when path is empty. A missing default file yields a zero config so the
// server can run from environment variables alone.
func Load(path string) (*Config, error) {
	usingDefault := path == ""
	if usingDefault {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if usingDefault && os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ADFORGE_OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("ADFORGE_GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
}

// Validate checks the fields serve requires.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("openai.api_key (or ADFORGE_OPENAI_API_KEY) is required")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("gemini.api_key (or ADFORGE_GEMINI_API_KEY) is required")
		}
	case "":
		return fmt.Errorf("provider is required (openai or gemini)")
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	switch c.Archive.Backend {
	case "", "local", "s3":
	default:
		return fmt.Errorf("unknown archive backend %q", c.Archive.Backend)
	}
	if c.Archive.Backend == "s3" && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required for the s3 backend")
	}
	return nil
}
