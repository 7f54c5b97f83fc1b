package curation

import (
	"context"
	"time"

	"github.com/yungbote/cukee-curation/internal/modules/curation/persona"
	"github.com/yungbote/cukee-curation/internal/modules/curation/steps"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
	"github.com/yungbote/cukee-curation/internal/platform/personacache"
)

type UsecasesDeps struct {
	Log *logger.Logger

	Personas *persona.Catalog
	Movies   steps.MovieStore
	Cache    personacache.Cache

	Embedder  steps.QueryEmbedder
	Generator steps.TextGenerator
	Adapters  map[string]steps.TextGenerator
	Guard     steps.GuardChecker

	Sanitizer steps.Sanitizer
	Settings  steps.Settings

	// RetrievalTimeout bounds the embed + rank stage of one curation.
	RetrievalTimeout time.Duration
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type (
	CurateInput  = steps.CurateInput
	CurateOutput = steps.CurateOutput
	CuratedMovie = steps.CuratedMovie

	SamplingOverride = steps.SamplingOverride

	DetailInput  = steps.DetailInput
	DetailOutput = steps.DetailOutput

	RandomInput  = steps.RandomInput
	RandomOutput = steps.RandomOutput

	Stage      = steps.Stage
	StageError = steps.StageError
)

const (
	StageInit           = steps.StageInit
	StageGuarded        = steps.StageGuarded
	StageRetrieving     = steps.StageRetrieving
	StageComposing      = steps.StageComposing
	StageGenerating     = steps.StageGenerating
	StageSanitizing     = steps.StageSanitizing
	StageAssembled      = steps.StageAssembled
	StageRejected       = steps.StageRejected
	StageUpstreamFailed = steps.StageUpstreamFailed
)

var (
	ErrInvalidRequest  = steps.ErrInvalidRequest
	ErrNoCandidates    = steps.ErrNoCandidates
	ErrMovieNotFound   = steps.ErrMovieNotFound
	ErrEmptyGeneration = steps.ErrEmptyGeneration
)

func (u Usecases) retriever() steps.Retriever {
	return steps.Retriever{
		Embedder: u.deps.Embedder,
		Store:    u.deps.Movies,
		Log:      u.deps.Log,
		Timeout:  u.deps.RetrievalTimeout,
	}
}

func (u Usecases) Curate(ctx context.Context, in CurateInput) (CurateOutput, error) {
	return steps.Curate(ctx, steps.CurateDeps{
		Log:       u.deps.Log,
		Personas:  u.deps.Personas,
		Guard:     u.deps.Guard,
		Retriever: u.retriever(),
		Generator: u.deps.Generator,
		Adapters:  u.deps.Adapters,
		Sanitizer: u.deps.Sanitizer,
		Settings:  u.deps.Settings,
	}, in)
}

func (u Usecases) MovieDetail(ctx context.Context, in DetailInput) (DetailOutput, error) {
	return steps.MovieDetail(ctx, steps.DetailDeps{
		Log:       u.deps.Log,
		Personas:  u.deps.Personas,
		Movies:    u.deps.Movies,
		Cache:     u.deps.Cache,
		Generator: u.deps.Generator,
		Adapters:  u.deps.Adapters,
		Sanitizer: u.deps.Sanitizer,
		Settings:  u.deps.Settings,
	}, in)
}

func (u Usecases) ClearSession(ctx context.Context, sessionID string) (int, error) {
	return steps.ClearSession(ctx, steps.SessionDeps{Log: u.deps.Log, Cache: u.deps.Cache}, sessionID)
}

func (u Usecases) SessionEntries(ctx context.Context, sessionID string) ([]personacache.Entry, error) {
	return steps.SessionEntries(ctx, steps.SessionDeps{Log: u.deps.Log, Cache: u.deps.Cache}, sessionID)
}

func (u Usecases) RandomByTicket(ctx context.Context, in RandomInput) (RandomOutput, error) {
	return steps.RandomByTicket(ctx, steps.RandomDeps{
		Log:      u.deps.Log,
		Personas: u.deps.Personas,
		Movies:   u.deps.Movies,
		Settings: u.deps.Settings,
	}, in)
}

// Themes lists the configured themes in ticket order.
func (u Usecases) Themes() []persona.Theme {
	return u.deps.Personas.Themes()
}

// Outcome maps an operation error to its terminal pipeline state.
func Outcome(err error) Stage { return steps.Outcome(err) }
