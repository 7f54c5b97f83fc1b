package config

import "time"

type Duration struct {
	Duration time.Duration
}

type EngineConfig struct {
	// Type is "mock" or "oai_http".
	Type string `json:"type"`

	// BaseURL is the upstream engine base URL (for "oai_http" engines).
	BaseURL string `json:"base_url,omitempty"`

	// APIKey is optional; when set, requests carry `Authorization: Bearer <api_key>`.
	APIKey string `json:"api_key,omitempty"`

	// OpenAI-compatible endpoint paths (defaults are used if empty).
	ChatCompletionsPath string `json:"chat_completions_path,omitempty"`
	EmbeddingsPath      string `json:"embeddings_path,omitempty"`

	// Timeout bounds a single upstream call. Callers may impose a shorter deadline.
	Timeout Duration `json:"timeout,omitempty"`

	// EmbeddingDims sizes mock embeddings.
	EmbeddingDims int `json:"embedding_dims,omitempty"`
}

// BreakerConfig tunes the circuit breaker placed in front of generation.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive upstream failures that opens the breaker.
	FailureThreshold uint32   `json:"failure_threshold,omitempty"`
	MaxRequests      uint32   `json:"max_requests,omitempty"`
	Interval         Duration `json:"interval,omitempty"`
	OpenTimeout      Duration `json:"open_timeout,omitempty"`
}

type ModelConfig struct {
	ID string `json:"id"`

	// UpstreamModel overrides the model name sent to the engine. Defaults to ID.
	UpstreamModel string `json:"upstream_model,omitempty"`

	Engine  EngineConfig  `json:"engine"`
	Breaker BreakerConfig `json:"breaker,omitempty"`
}

type Config struct {
	Env    string        `json:"env"`
	Models []ModelConfig `json:"models"`
}
