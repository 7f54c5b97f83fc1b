package app

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gorm.io/gorm"

	"github.com/yungbote/cukee-curation/internal/data/db"
	repos "github.com/yungbote/cukee-curation/internal/data/repos/catalog"
	apphttp "github.com/yungbote/cukee-curation/internal/http"
	httpH "github.com/yungbote/cukee-curation/internal/http/handlers"
	"github.com/yungbote/cukee-curation/internal/modules/curation"
	"github.com/yungbote/cukee-curation/internal/modules/curation/persona"
	"github.com/yungbote/cukee-curation/internal/modules/curation/steps"
	"github.com/yungbote/cukee-curation/internal/observability"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Clients  Clients
	Personas *persona.Catalog
	Curation curation.Usecases
	Server   *apphttp.Server

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
	closeOnce    sync.Once
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
	})

	var pg *db.PostgresService
	fail := func(err error) (*App, error) {
		releaseStartup(log, pg, otelShutdown)
		return nil, err
	}

	pg, err = db.NewPostgresService(log, db.PostgresDSN())
	if err != nil {
		return fail(fmt.Errorf("init postgres: %w", err))
	}
	if cfg.DBAutoMigrate {
		if err := pg.AutoMigrateAll(); err != nil {
			return fail(fmt.Errorf("postgres automigrate: %w", err))
		}
	}

	personas, err := loadPersonas(log, cfg)
	if err != nil {
		return fail(fmt.Errorf("persona catalog: %w", err))
	}

	clients, err := wireClients(log, cfg, personas)
	if err != nil {
		return fail(err)
	}

	uc := wireCuration(log, cfg, pg.DB(), personas, clients)
	server := wireServer(log, cfg, personas, uc)

	return &App{
		Log:          log,
		DB:           pg.DB(),
		Cfg:          cfg,
		Clients:      clients,
		Personas:     personas,
		Curation:     uc,
		Server:       server,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

func wireCuration(log *logger.Logger, cfg Config, theDB *gorm.DB, personas *persona.Catalog, clients Clients) curation.Usecases {
	log.Info("Wiring curation usecases...")

	guard := steps.FailOpenGuard{Inner: steps.NoopGuard{}, Timeout: cfg.GuardrailTimeout, Log: log}
	if clients.Guard != nil {
		guard.Inner = steps.LLMGuard{Model: clients.Guard}
	}

	return curation.New(curation.UsecasesDeps{
		Log:              log,
		Personas:         personas,
		Movies:           repos.NewMovieRepo(theDB, log),
		Cache:            clients.Cache,
		Embedder:         clients.Embed,
		Generator:        clients.Generate,
		Adapters:         clients.Adapters,
		Guard:            guard,
		Sanitizer:        steps.NewSanitizer(cfg.TruncatePolicy),
		Settings:         cfg.Curation,
		RetrievalTimeout: cfg.RetrievalTimeout,
	})
}

func wireServer(log *logger.Logger, cfg Config, personas *persona.Catalog, uc curation.Usecases) *apphttp.Server {
	log.Info("Wiring handlers and router...")
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:             log,
		ServiceName:     cfg.ServiceName,
		AllowedOrigins:  cfg.AllowedOrigins,
		CurationHandler: httpH.NewCurationHandler(log, uc),
		HealthHandler:   httpH.NewHealthHandler(func() int { return len(personas.Themes()) }),
		MetricsEnabled:  cfg.MetricsEnabled,
	})
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("Server listening", "addr", addr, "cache_backend", a.Clients.Cache.Backend())
	return a.Server.Run(ctx, addr)
}

// Close is safe to call more than once.
func (a *App) Close() {
	if a == nil {
		return
	}
	a.closeOnce.Do(a.close)
}

func (a *App) close() {
	a.Clients.Close()
	if a.pg != nil {
		if err := a.pg.Close(); err != nil {
			a.Log.Warn("postgres close failed", "error", err)
		}
	}
	shutdownOTel(a.Log, a.otelShutdown)
	if a.Log != nil {
		a.Log.Sync()
	}
}

// releaseStartup undoes a partial New: postgres (if opened), then tracing.
func releaseStartup(log *logger.Logger, pg *db.PostgresService, otelShutdown func(context.Context) error) {
	if pg != nil {
		if err := pg.Close(); err != nil {
			log.Warn("postgres close failed", "error", err)
		}
	}
	shutdownOTel(log, otelShutdown)
	log.Sync()
}

func shutdownOTel(log *logger.Logger, shutdown func(context.Context) error) {
	if shutdown == nil {
		return
	}
	if err := shutdown(context.Background()); err != nil && log != nil {
		log.Warn("otel shutdown failed", "error", err)
	}
}
