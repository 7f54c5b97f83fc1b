package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		if strings.TrimSpace(u) == "" {
			d.Duration = 0
			return nil
		}
		dd, err := time.ParseDuration(u)
		if err != nil {
			return err
		}
		d.Duration = dd
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a JSON string like \"5s\" or an int nanoseconds: %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

// Default models used when no config file is present: a mock chat model and
// a mock embedding model, enough to run the service locally.
const (
	DefaultChatModel  = "mock-chat"
	DefaultEmbedModel = "mock-embed"
)

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		Models: []ModelConfig{
			{ID: DefaultChatModel, Engine: EngineConfig{Type: "mock"}},
			{ID: DefaultEmbedModel, Engine: EngineConfig{Type: "mock", EmbeddingDims: 8}},
		},
	}
}

// Load reads INFERENCE_CONFIG_PATH (or ./config/inference.json) and applies
// defaults. Without a file the mock models are used.
func Load() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("INFERENCE_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "inference.json")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}

	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, err
		}
		var loaded Config
		if err := json.Unmarshal(b, &loaded); err != nil {
			return nil, err
		}
		*cfg = loaded
	}

	if v := strings.TrimSpace(os.Getenv("INFERENCE_BASE_URL")); v != "" {
		// Point every HTTP model at one upstream, e.g. a local vLLM.
		for i := range cfg.Models {
			if isHTTPEngine(cfg.Models[i].Engine.Type) {
				cfg.Models[i].Engine.BaseURL = v
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv("INFERENCE_API_KEY")); v != "" {
		for i := range cfg.Models {
			if isHTTPEngine(cfg.Models[i].Engine.Type) && cfg.Models[i].Engine.APIKey == "" {
				cfg.Models[i].Engine.APIKey = v
			}
		}
	}

	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if err := normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func normalize(cfg *Config) error {
	if len(cfg.Models) == 0 {
		return errors.New("config must define at least one model")
	}
	for i := range cfg.Models {
		m := &cfg.Models[i]
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return errors.New("model id is required")
		}
		if strings.TrimSpace(m.Engine.Type) == "" {
			return fmt.Errorf("model %q missing engine.type", m.ID)
		}
		if strings.TrimSpace(m.UpstreamModel) == "" {
			m.UpstreamModel = m.ID
		}

		m.Engine.Type = strings.ToLower(strings.TrimSpace(m.Engine.Type))
		m.Engine.BaseURL = strings.TrimRight(strings.TrimSpace(m.Engine.BaseURL), "/")
		m.Engine.ChatCompletionsPath = strings.TrimSpace(m.Engine.ChatCompletionsPath)
		m.Engine.EmbeddingsPath = strings.TrimSpace(m.Engine.EmbeddingsPath)

		if isHTTPEngine(m.Engine.Type) {
			m.Engine.Type = "oai_http"
			if m.Engine.BaseURL == "" {
				return fmt.Errorf("model %q (oai_http) missing engine.base_url", m.ID)
			}
			if m.Engine.ChatCompletionsPath == "" {
				m.Engine.ChatCompletionsPath = "/v1/chat/completions"
			}
			if m.Engine.EmbeddingsPath == "" {
				m.Engine.EmbeddingsPath = "/v1/embeddings"
			}
			if m.Engine.Timeout.Duration <= 0 {
				m.Engine.Timeout = Duration{Duration: 60 * time.Second}
			}
		}
		if m.Engine.EmbeddingDims < 0 {
			return fmt.Errorf("model %q invalid engine.embedding_dims", m.ID)
		}

		if m.Breaker.FailureThreshold == 0 {
			m.Breaker.FailureThreshold = 5
		}
		if m.Breaker.MaxRequests == 0 {
			m.Breaker.MaxRequests = 1
		}
		if m.Breaker.OpenTimeout.Duration <= 0 {
			m.Breaker.OpenTimeout = Duration{Duration: 30 * time.Second}
		}
	}
	return nil
}

func isHTTPEngine(t string) bool {
	t = strings.ToLower(strings.TrimSpace(t))
	return t == "oai_http" || t == "openai_http"
}
