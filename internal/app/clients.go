package app

import (
	"fmt"
	"time"

	"github.com/yungbote/cukee-curation/internal/inference/config"
	"github.com/yungbote/cukee-curation/internal/inference/router"
	"github.com/yungbote/cukee-curation/internal/modules/curation/persona"
	"github.com/yungbote/cukee-curation/internal/modules/curation/steps"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
	"github.com/yungbote/cukee-curation/internal/platform/personacache"
)

type Clients struct {
	Inference *router.Router

	Generate *router.Route
	Embed    *router.Route
	Guard    *router.Route

	// Adapters holds the theme-specific routes named in the persona catalog.
	Adapters map[string]steps.TextGenerator

	Cache personacache.Cache
}

func wireClients(log *logger.Logger, cfg Config, personas *persona.Catalog) (Clients, error) {
	log.Info("Wiring clients...")

	icfg, err := config.Load()
	if err != nil {
		return Clients{}, fmt.Errorf("load inference config: %w", err)
	}
	inf, err := router.New(icfg, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init inference router: %w", err)
	}

	out := Clients{Inference: inf, Adapters: map[string]steps.TextGenerator{}}
	if out.Generate, err = inf.Resolve(cfg.GenerateModel); err != nil {
		return Clients{}, fmt.Errorf("generate model: %w", err)
	}
	if out.Embed, err = inf.Resolve(cfg.EmbedModel); err != nil {
		return Clients{}, fmt.Errorf("embed model: %w", err)
	}
	if cfg.GuardrailEnabled {
		if out.Guard, err = inf.Resolve(cfg.GuardrailModel); err != nil {
			return Clients{}, fmt.Errorf("guardrail model: %w", err)
		}
	}

	for _, theme := range personas.Themes() {
		d, err := personas.Lookup(string(theme))
		if err != nil || d.Adapter == "" {
			continue
		}
		if _, seen := out.Adapters[d.Adapter]; seen {
			continue
		}
		rt, err := inf.Resolve(d.Adapter)
		if err != nil {
			// Unknown adapters fall back to the base model at generation time.
			log.Warn("persona adapter not routable, using base model", "theme", string(theme), "adapter", d.Adapter, "error", err)
			continue
		}
		out.Adapters[d.Adapter] = rt
	}

	out.Cache = wirePersonaCache(log, cfg)
	return out, nil
}

// wirePersonaCache prefers redis and falls back to the in-process cache when
// redis is not configured or unreachable.
func wirePersonaCache(log *logger.Logger, cfg Config) personacache.Cache {
	if cfg.RedisAddr != "" {
		c, err := personacache.NewRedis(log, personacache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err == nil {
			return c
		}
		log.Warn("redis persona cache unavailable, using memory", "addr", cfg.RedisAddr, "error", err)
	}
	return personacache.NewMemory(log, time.Minute)
}

func loadPersonas(log *logger.Logger, cfg Config) (*persona.Catalog, error) {
	if cfg.PersonaCatalogPath == "" {
		return persona.Default()
	}
	log.Info("Loading persona catalog", "path", cfg.PersonaCatalogPath)
	return persona.LoadFile(cfg.PersonaCatalogPath)
}

func (c Clients) Close() {
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
}
