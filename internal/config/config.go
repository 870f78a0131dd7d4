// Package config loads service configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "90s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all assistant service configuration.
type Config struct {
	// ListenAddr is the HTTP listen address, e.g. ":9600".
	ListenAddr string `yaml:"listen_addr"`

	// SearchEndpoints maps data-source ids to search backend base URLs.
	// The empty-string key is the default cluster.
	SearchEndpoints map[string]string `yaml:"search_endpoints"`

	// AgentBaseURL is the base URL of the agent execution backend.
	AgentBaseURL string `yaml:"agent_base_url"`

	// Agents names the server-side agent configurations the service invokes.
	Agents AgentNames `yaml:"agents"`

	// DetectionCacheSize bounds the index-type detection cache (entries).
	DetectionCacheSize int `yaml:"detection_cache_size"`

	// AnswerCacheTTL bounds how long summary answers are reused.
	AnswerCacheTTL Duration `yaml:"answer_cache_ttl"`

	// RedisAddr enables the shared cache/storage layer when non-empty.
	RedisAddr string `yaml:"redis_addr"`

	// NATSURL enables telemetry event publishing when non-empty.
	NATSURL string `yaml:"nats_url"`

	// JWTSecret validates Bearer tokens issued by the host platform.
	JWTSecret string `yaml:"jwt_secret"`

	// AllowedOrigins lists CORS origins for the dashboard front-end.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AgentNames identifies the named agent configurations by purpose.
type AgentNames struct {
	IndexTypeDetect string `yaml:"index_type_detect"`
	Summary         string `yaml:"summary"`
	Visualization   string `yaml:"visualization"`
	Chat            string `yaml:"chat"`
	IntentClassify  string `yaml:"intent_classify"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr: ":9600",
		SearchEndpoints: map[string]string{
			"": "http://localhost:9200",
		},
		AgentBaseURL: "http://localhost:9200",
		Agents: AgentNames{
			IndexTypeDetect: "os_index_type_detect",
			Summary:         "os_query_assist_summary",
			Visualization:   "os_query_assist_viz",
			Chat:            "os_chat",
			IntentClassify:  "os_intent_classify",
		},
		DetectionCacheSize: 4096,
		AnswerCacheTTL:     Duration(5 * time.Minute),
		AllowedOrigins:     []string{"*"},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, in increasing order of precedence. An empty path
// skips the file step.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.ListenAddr = getEnv("ASSISTANT_LISTEN_ADDR", cfg.ListenAddr)
	cfg.AgentBaseURL = getEnv("AGENT_BASE_URL", cfg.AgentBaseURL)
	cfg.RedisAddr = getEnv("REDIS_URL", cfg.RedisAddr)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	if v := os.Getenv("SEARCH_URL"); v != "" {
		cfg.SearchEndpoints[""] = v
	}
	if v := os.Getenv("DETECTION_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid DETECTION_CACHE_SIZE %q: %w", v, err)
		}
		cfg.DetectionCacheSize = n
	}
	if v := os.Getenv("ANSWER_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid ANSWER_CACHE_TTL %q: %w", v, err)
		}
		cfg.AnswerCacheTTL = Duration(d)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.SearchEndpoints[""] == "" {
		return fmt.Errorf("search_endpoints must include a default (empty-key) cluster")
	}
	if c.AgentBaseURL == "" {
		return fmt.Errorf("agent_base_url must not be empty")
	}
	if c.DetectionCacheSize <= 0 {
		return fmt.Errorf("detection_cache_size must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
