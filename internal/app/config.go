package app

import (
	"encoding/json"
	"time"

	"github.com/yungbote/cukee-curation/internal/inference/config"
	"github.com/yungbote/cukee-curation/internal/inference/engine"
	"github.com/yungbote/cukee-curation/internal/modules/curation/steps"
	"github.com/yungbote/cukee-curation/internal/platform/envutil"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
)

const defaultDesign = `{"font":"Pretendard","colorScheme":"dark","layoutType":"grid","frameStyle":"modern","background":"#1a1a1a","backgroundImage":""}`

type Config struct {
	Port           string
	Env            string
	ServiceName    string
	AllowedOrigins []string
	MetricsEnabled bool

	DBAutoMigrate bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	GenerateModel  string
	EmbedModel     string
	GuardrailModel string

	GuardrailEnabled bool
	GuardrailTimeout time.Duration

	RetrievalTimeout time.Duration

	PersonaCatalogPath string
	TruncatePolicy     steps.TruncatePolicy

	Curation steps.Settings
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:           envutil.String("PORT", "8080"),
		Env:            envutil.String("APP_ENV", "development"),
		ServiceName:    envutil.String("OTEL_SERVICE_NAME", "cukee-curation"),
		AllowedOrigins: envutil.List("CORS_ALLOWED_ORIGINS", nil),
		MetricsEnabled: envutil.Bool("METRICS_ENABLED", true),

		DBAutoMigrate: envutil.Bool("DB_AUTOMIGRATE", true),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),

		GenerateModel:  envutil.String("CURATION_GENERATE_MODEL", config.DefaultChatModel),
		EmbedModel:     envutil.String("CURATION_EMBED_MODEL", config.DefaultEmbedModel),
		GuardrailModel: envutil.String("GUARDRAIL_MODEL", ""),

		GuardrailEnabled: envutil.Bool("GUARDRAIL_ENABLED", true),
		GuardrailTimeout: envutil.Duration("GUARDRAIL_TIMEOUT", 5*time.Second),

		RetrievalTimeout: envutil.Duration("CURATION_RETRIEVAL_TIMEOUT", 10*time.Second),

		PersonaCatalogPath: envutil.String("PERSONA_CATALOG_PATH", ""),
		TruncatePolicy:     steps.ParseTruncatePolicy(envutil.String("SANITIZE_TRUNCATE_POLICY", "")),

		Curation: steps.Settings{
			TargetCount:     envutil.Int("CURATION_TARGET_COUNT", 5),
			GenerateTimeout: envutil.Duration("CURATION_GENERATE_TIMEOUT", 60*time.Second),
			Sampling: engine.GenerateOptions{
				Temperature: engine.Float(envutil.Float("GEN_TEMPERATURE", 0.7)),
				TopP:        engine.Float(envutil.Float("GEN_TOP_P", 0.9)),
				TopK:        envutil.Int("GEN_TOP_K", 50),
				MaxTokens:   envutil.Int("GEN_MAX_NEW_TOKENS", 512),
			},
			DetailMaxTokens: envutil.Int("DETAIL_MAX_NEW_TOKENS", 300),
			PosterBaseURL:   envutil.String("POSTER_BASE_URL", "https://image.tmdb.org/t/p/w500"),
			DefaultDesign:   json.RawMessage(defaultDesign),
			CacheTTL:        envutil.Duration("PERSONA_CACHE_TTL", 30*time.Minute),
		},
	}
	if cfg.Curation.TargetCount <= 0 {
		log.Warn("CURATION_TARGET_COUNT must be positive, using 5", "value", cfg.Curation.TargetCount)
		cfg.Curation.TargetCount = 5
	}
	// Guardrail falls back to the generation model when none is named.
	if cfg.GuardrailModel == "" {
		cfg.GuardrailModel = cfg.GenerateModel
	}
	return cfg
}
