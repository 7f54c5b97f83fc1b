package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/cukee-curation/internal/http/handlers"
	httpMW "github.com/yungbote/cukee-curation/internal/http/middleware"
	"github.com/yungbote/cukee-curation/internal/observability"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string

	CurationHandler *httpH.CurationHandler
	HealthHandler   *httpH.HealthHandler

	// MetricsEnabled mounts /metrics and the request metrics middleware.
	MetricsEnabled bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	if cfg.MetricsEnabled {
		r.Use(httpMW.Metrics())
	}
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(observability.Handler()))
	}

	api := r.Group("/api/v1")
	{
		if cfg.CurationHandler != nil {
			api.GET("/themes", cfg.CurationHandler.Themes)

			api.POST("/generate", cfg.CurationHandler.Generate)
			api.POST("/movie-detail", cfg.CurationHandler.MovieDetail)
			api.POST("/curate-movies", cfg.CurationHandler.CurateMovies)

			// Persona cache teardown when a client abandons its session.
			api.GET("/sessions/:sessionId/persona-cache", cfg.CurationHandler.ListSessionCache)
			api.DELETE("/sessions/:sessionId/persona-cache", cfg.CurationHandler.ClearSessionCache)
		}
	}

	return r
}
