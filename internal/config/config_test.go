package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":9600" {
		t.Errorf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.Agents.IndexTypeDetect != "os_index_type_detect" {
		t.Errorf("unexpected detect agent: %s", cfg.Agents.IndexTypeDetect)
	}
	if cfg.SearchEndpoints[""] == "" {
		t.Error("default search endpoint missing")
	}
	if cfg.DetectionCacheSize != 4096 {
		t.Errorf("unexpected cache size: %d", cfg.DetectionCacheSize)
	}
}

func TestYAMLFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assistant.yaml")
	content := []byte(`
listen_addr: ":8080"
agent_base_url: "http://agents:9200"
search_endpoints:
  "": "http://search:9200"
  ds2: "http://other:9200"
agents:
  index_type_detect: custom_detect
detection_cache_size: 32
answer_cache_ttl: 90s
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("ASSISTANT_LISTEN_ADDR", ":9999")
	t.Setenv("REDIS_URL", "redis:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != ":9999" {
		t.Errorf("env must override file, got %s", cfg.ListenAddr)
	}
	if cfg.AgentBaseURL != "http://agents:9200" {
		t.Errorf("unexpected agent base: %s", cfg.AgentBaseURL)
	}
	if cfg.SearchEndpoints["ds2"] != "http://other:9200" {
		t.Errorf("data-source endpoints not loaded: %v", cfg.SearchEndpoints)
	}
	if cfg.Agents.IndexTypeDetect != "custom_detect" {
		t.Errorf("agent names not loaded: %+v", cfg.Agents)
	}
	if cfg.DetectionCacheSize != 32 {
		t.Errorf("unexpected cache size: %d", cfg.DetectionCacheSize)
	}
	if cfg.AnswerCacheTTL.Std() != 90*time.Second {
		t.Errorf("unexpected answer TTL: %s", cfg.AnswerCacheTTL.Std())
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Errorf("redis env not applied: %s", cfg.RedisAddr)
	}
}

func TestValidation(t *testing.T) {
	t.Setenv("DETECTION_CACHE_SIZE", "not-a-number")
	if _, err := Load(""); err == nil {
		t.Error("expected error for bad cache size")
	}
	t.Setenv("DETECTION_CACHE_SIZE", "-1")
	if _, err := Load(""); err == nil {
		t.Error("expected error for negative cache size")
	}
}

func TestMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
