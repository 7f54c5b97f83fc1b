package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	repos "github.com/yungbote/cukee-curation/internal/data/repos/catalog"
	types "github.com/yungbote/cukee-curation/internal/domain/catalog"
	"github.com/yungbote/cukee-curation/internal/inference/engine"
	"github.com/yungbote/cukee-curation/internal/observability"
	"github.com/yungbote/cukee-curation/internal/platform/dbctx"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
)

// Stage is a state of the curation pipeline.
type Stage string

const (
	StageInit           Stage = "INIT"
	StageGuarded        Stage = "GUARDED"
	StageRetrieving     Stage = "RETRIEVING"
	StageComposing      Stage = "COMPOSING"
	StageGenerating     Stage = "GENERATING"
	StageSanitizing     Stage = "SANITIZING"
	StageAssembled      Stage = "ASSEMBLED"
	StageRejected       Stage = "REJECTED"
	StageUpstreamFailed Stage = "UPSTREAM_FAILED"
)

var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrNoCandidates    = errors.New("no candidate movies")
	ErrMovieNotFound   = errors.New("movie not found")
	ErrEmptyGeneration = errors.New("generation was empty after sanitizing")
)

// StageError records which stage failed and the terminal state it led to.
type StageError struct {
	Stage   Stage
	Outcome Stage
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s -> %s: %v", e.Stage, e.Outcome, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func reject(stage Stage, err error) error {
	return &StageError{Stage: stage, Outcome: StageRejected, Err: err}
}

func upstreamFailed(stage Stage, err error) error {
	return &StageError{Stage: stage, Outcome: StageUpstreamFailed, Err: err}
}

func invalid(format string, args ...any) error {
	return reject(StageInit, fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...)))
}

// Outcome returns the terminal state err leads to. nil is ASSEMBLED.
func Outcome(err error) Stage {
	if err == nil {
		return StageAssembled
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Outcome
	}
	if engine.IsUpstream(err) {
		return StageUpstreamFailed
	}
	return StageRejected
}

// MovieStore is the catalog access the pipeline needs.
type MovieStore interface {
	CandidateStore
	GetByID(dbc dbctx.Context, id int64) (*types.Movie, error)
	RandomByTicket(dbc dbctx.Context, ticketGroupID int64, limit int, excludeRestricted bool) ([]*types.Movie, error)
}

var _ MovieStore = repos.MovieRepo(nil)

// Settings are process-wide pipeline knobs.
type Settings struct {
	TargetCount     int
	GenerateTimeout time.Duration
	Sampling        engine.GenerateOptions
	DetailMaxTokens int
	PosterBaseURL   string
	DefaultDesign   json.RawMessage
	CacheTTL        time.Duration
}

// SamplingOverride replaces individual sampling parameters for one request.
type SamplingOverride struct {
	Temperature  *float64
	TopP         *float64
	TopK         *int
	MaxNewTokens *int
}

func (o *SamplingOverride) apply(base engine.GenerateOptions) engine.GenerateOptions {
	if o == nil {
		return base
	}
	if o.Temperature != nil {
		base.Temperature = engine.Float(*o.Temperature)
	}
	if o.TopP != nil {
		base.TopP = engine.Float(*o.TopP)
	}
	if o.TopK != nil {
		base.TopK = *o.TopK
	}
	if o.MaxNewTokens != nil {
		base.MaxTokens = *o.MaxNewTokens
	}
	return base
}

// PosterURL joins the image host and a relative poster path. No path means
// no URL.
func PosterURL(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// startStage opens a span and returns a func that closes it and records the
// stage latency.
func startStage(ctx context.Context, op string, s Stage) (context.Context, func(error)) {
	ctx, span := observability.Tracer().Start(ctx, "curation."+strings.ToLower(string(s)),
		trace.WithAttributes(attribute.String("curation.operation", op)))
	start := time.Now()
	return ctx, func(err error) {
		observability.ObserveStage(string(s), time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// finish logs and counts the terminal state of one operation.
func finish(log *logger.Logger, op string, err error) {
	outcome := Outcome(err)
	observability.RecordOutcome(op, string(outcome))
	if log == nil {
		return
	}
	if err != nil {
		log.Warn("curation operation failed", "operation", op, "outcome", outcome, "error", err)
		return
	}
	log.Info("curation operation assembled", "operation", op)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
