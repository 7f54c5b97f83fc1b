package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/yungbote/cukee-curation/internal/inference/config"
	"github.com/yungbote/cukee-curation/internal/inference/engine"
	"github.com/yungbote/cukee-curation/internal/inference/engine/mock"
	"github.com/yungbote/cukee-curation/internal/inference/engine/oaihttp"
	"github.com/yungbote/cukee-curation/internal/observability"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
)

// Route binds a public model id to an engine and upstream model name.
// Generation runs behind a circuit breaker; embeddings do not, since
// retrieval already degrades to an empty result on failure.
type Route struct {
	PublicModel   string
	UpstreamModel string
	Engine        engine.Engine

	breaker *gobreaker.CircuitBreaker[string]
}

type Router struct {
	routes map[string]*Route
}

func New(cfg *config.Config, log *logger.Logger) (*Router, error) {
	r := &Router{routes: map[string]*Route{}}
	for _, m := range cfg.Models {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return nil, fmt.Errorf("model id required")
		}
		if _, exists := r.routes[id]; exists {
			return nil, fmt.Errorf("duplicate model id: %s", id)
		}

		var eng engine.Engine
		switch strings.ToLower(strings.TrimSpace(m.Engine.Type)) {
		case "mock":
			eng = mock.New(m.Engine.EmbeddingDims)
		case "openai_http", "oai_http":
			e, err := oaihttp.New(m.Engine)
			if err != nil {
				return nil, err
			}
			eng = e
		default:
			return nil, fmt.Errorf("unsupported engine type %q for model %q", m.Engine.Type, id)
		}

		r.routes[id] = NewRoute(id, m.UpstreamModel, eng, m.Breaker, log)
	}
	return r, nil
}

// NewRoute wraps eng for one model. Exposed so tests can route to fakes.
func NewRoute(publicModel, upstreamModel string, eng engine.Engine, bc config.BreakerConfig, log *logger.Logger) *Route {
	if strings.TrimSpace(upstreamModel) == "" {
		upstreamModel = publicModel
	}
	threshold := bc.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := bc.OpenTimeout.Duration
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	routeLog := log.With("component", "InferenceRoute", "model", publicModel)

	settings := gobreaker.Settings{
		Name:        publicModel,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval.Duration,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Caller cancellations and malformed requests say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || !engine.IsUpstream(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			routeLog.Warn("inference breaker state change", "from", from.String(), "to", to.String())
			observability.SetBreakerState(name, breakerGauge(to))
		},
	}
	observability.SetBreakerState(publicModel, 0)

	return &Route{
		PublicModel:   publicModel,
		UpstreamModel: upstreamModel,
		Engine:        eng,
		breaker:       gobreaker.NewCircuitBreaker[string](settings),
	}
}

// Generate runs one chat completion. An open breaker fails fast with
// engine.ErrUnavailable.
func (rt *Route) Generate(ctx context.Context, messages []engine.Message, opts engine.GenerateOptions) (string, error) {
	start := time.Now()
	out, err := rt.breaker.Execute(func() (string, error) {
		return rt.Engine.GenerateText(ctx, rt.UpstreamModel, messages, opts)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &engine.UpstreamError{Kind: engine.ErrUnavailable, Op: "breaker." + rt.PublicModel, Err: err}
	}
	observability.ObserveInference(rt.PublicModel, "generate", err, time.Since(start))
	return out, err
}

func (rt *Route) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	start := time.Now()
	out, err := rt.Engine.Embed(ctx, rt.UpstreamModel, inputs)
	observability.ObserveInference(rt.PublicModel, "embed", err, time.Since(start))
	return out, err
}

func (rt *Route) BreakerState() string {
	return rt.breaker.State().String()
}

func breakerGauge(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (r *Router) ListModels() []string {
	out := make([]string, 0, len(r.routes))
	for id := range r.routes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Router) RouteForModel(model string) (*Route, bool) {
	route, ok := r.routes[strings.TrimSpace(model)]
	return route, ok
}

// Resolve looks up model or returns a descriptive error.
func (r *Router) Resolve(model string) (*Route, error) {
	route, ok := r.RouteForModel(model)
	if !ok {
		return nil, fmt.Errorf("unknown model %q (configured: %s)", model, strings.Join(r.ListModels(), ", "))
	}
	return route, nil
}
