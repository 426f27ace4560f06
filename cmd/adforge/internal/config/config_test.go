package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
listen: ":9090"
provider: openai
openai:
  api_key: sk-test
models:
  chat: gpt-4o
  image: gpt-image-1
archive:
  backend: local
  dir: /tmp/images
chat:
  suggestion_limit: 5
  gen_timeout_seconds: 60
users:
  - token: tok-1
    name: Ada
    email: ada@example.com
    identity: u1
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9090" || cfg.Provider != "openai" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Fatalf("api key = %q", cfg.OpenAI.APIKey)
	}
	if cfg.Chat.GenTimeoutSeconds != 60 {
		t.Fatalf("gen timeout = %d", cfg.Chat.GenTimeoutSeconds)
	}
	if len(cfg.Users) != 1 || cfg.Users[0].Identity != "u1" {
		t.Fatalf("users = %+v", cfg.Users)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("provider: openai\nopenai:\n  api_key: from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ADFORGE_OPENAI_API_KEY", "from-env")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OpenAI.APIKey != "from-env" {
		t.Fatalf("api key = %q, want env override", cfg.OpenAI.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"no provider", func(c *Config) {}, true},
		{"openai without key", func(c *Config) { c.Provider = "openai" }, true},
		{"gemini with key", func(c *Config) {
			c.Provider = "gemini"
			c.Gemini.APIKey = "k"
		}, false},
		{"bad archive backend", func(c *Config) {
			c.Provider = "gemini"
			c.Gemini.APIKey = "k"
			c.Archive.Backend = "ftp"
		}, true},
		{"s3 without bucket", func(c *Config) {
			c.Provider = "gemini"
			c.Gemini.APIKey = "k"
			c.Archive.Backend = "s3"
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
