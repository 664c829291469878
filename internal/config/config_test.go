package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	writeConfig(t, `
http:
  port: 8080
`)

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.Driver != "bolt" {
		t.Errorf("expected default driver bolt, got %q", cfg.Storage.Driver)
	}
	if cfg.Chat.MainCollection != "main" {
		t.Errorf("expected default main collection, got %q", cfg.Chat.MainCollection)
	}
	if cfg.Chat.MaxTurns != 10 {
		t.Errorf("expected default max_turns 10, got %d", cfg.Chat.MaxTurns)
	}
	if cfg.Ingest.ChunkSize != 1000 || cfg.Ingest.ChunkOverlap != 100 {
		t.Errorf("expected default chunking 1000/100, got %d/%d",
			cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("ATLAS_TEST_KEY", "sk-from-env")
	writeConfig(t, `
http:
  port: 8080
embedding:
  api_key: ${ATLAS_TEST_KEY}
  base_url: ${ATLAS_TEST_MISSING:-http://localhost:11434/v1}
`)

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embedding.APIKey != "sk-from-env" {
		t.Errorf("expected api key from env, got %q", cfg.Embedding.APIKey)
	}
	if cfg.Embedding.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("expected default base url, got %q", cfg.Embedding.BaseURL)
	}
}

func TestValidate_RejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }},
		{"redis without addrs", func(c *Config) {
			c.Storage.Driver = "redis"
			c.Storage.Addrs = nil
		}},
		{"overlap >= chunk size", func(c *Config) {
			c.Ingest.ChunkSize = 100
			c.Ingest.ChunkOverlap = 100
		}},
		{"unknown provider", func(c *Config) {
			c.LLM.Providers = []ProviderConfig{{Name: "gemini", Model: "x"}}
		}},
		{"provider without model", func(c *Config) {
			c.LLM.Providers = []ProviderConfig{{Name: "openai"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{HTTP: HTTPConfig{Port: 8080}}
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidate_AcceptsRedisDriver(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{Port: 8080},
		Storage: StorageConfig{Driver: "redis", Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
