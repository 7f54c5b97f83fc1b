package steps

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/cukee-curation/internal/inference/engine"
	"github.com/yungbote/cukee-curation/internal/modules/curation/persona"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
)

// GuardChecker is a guardrail that never fails.
type GuardChecker interface {
	Check(ctx context.Context, prompt string) Verdict
}

type CurateDeps struct {
	Log       *logger.Logger
	Personas  *persona.Catalog
	Guard     GuardChecker
	Retriever Retriever
	Generator TextGenerator
	// Adapters maps a persona adapter id to its generator. Themes without a
	// registered adapter use Generator.
	Adapters  map[string]TextGenerator
	Sanitizer Sanitizer
	Settings  Settings
}

type CurateInput struct {
	Prompt              string
	Theme               string
	TicketID            int64
	PinnedIDs           []int64
	AdultContentAllowed bool
	Sampling            *SamplingOverride
	Design              json.RawMessage
}

type CuratedMovie struct {
	MovieID    int64   `json:"movieId"`
	PosterURL  string  `json:"posterUrl"`
	Title      string  `json:"-"`
	Similarity float64 `json:"-"`
}

type CurateOutput struct {
	Title          string          `json:"title"`
	CuratorComment string          `json:"curatorComment"`
	Movies         []CuratedMovie  `json:"movies"`
	Design         json.RawMessage `json:"design"`
	Keywords       []string        `json:"keywords"`
	// Blocked is set when the guardrail answered with guidance instead.
	Blocked bool `json:"-"`
}

const keywordQueryRunes = 20

func generatorFor(d persona.Descriptor, def TextGenerator, adapters map[string]TextGenerator) TextGenerator {
	if d.Adapter != "" {
		if g, ok := adapters[d.Adapter]; ok && g != nil {
			return g
		}
	}
	return def
}

// Curate runs INIT -> GUARDED -> RETRIEVING -> COMPOSING -> GENERATING ->
// SANITIZING -> ASSEMBLED. Failures end in REJECTED or UPSTREAM_FAILED and
// come back as *StageError.
func Curate(ctx context.Context, deps CurateDeps, in CurateInput) (out CurateOutput, err error) {
	const op = "curate"
	log := deps.Log
	if log != nil {
		log = log.With("operation", op)
	}
	defer func() { finish(log, op, err) }()

	// INIT: everything here is input validation and must not touch the network.
	query := strings.TrimSpace(in.Prompt)
	if query == "" {
		return out, invalid("prompt is required")
	}
	d, err := deps.Personas.Resolve(in.Theme, in.TicketID)
	if err != nil {
		return out, reject(StageInit, err)
	}
	pinned := uniqueIDs(in.PinnedIDs)
	target := deps.Settings.TargetCount
	if target <= 0 {
		target = 5
	}
	if len(pinned) > target {
		return out, invalid("%d pinned movies exceed the target of %d", len(pinned), target)
	}
	scope := in.TicketID
	if scope <= 0 {
		scope = d.TicketID
	}
	design := in.Design
	if len(design) == 0 {
		design = deps.Settings.DefaultDesign
	}
	if log != nil {
		log.Debug("curation stage", "stage", StageInit, "theme", d.Theme, "ticket_id", scope, "pinned", len(pinned), "query", query)
	}

	// GUARDED
	if deps.Guard != nil {
		sctx, end := startStage(ctx, op, StageGuarded)
		v := deps.Guard.Check(sctx, query)
		end(nil)
		if !v.Allowed {
			return CurateOutput{
				Title:          string(d.Theme) + " 큐레이션",
				CuratorComment: v.RefusalMessage,
				Movies:         []CuratedMovie{},
				Design:         design,
				Keywords:       []string{string(d.Theme)},
				Blocked:        true,
			}, nil
		}
	}

	// RETRIEVING
	sctx, end := startStage(ctx, op, StageRetrieving)
	pinnedItems, err := deps.Retriever.ByIDs(sctx, pinned)
	if err != nil {
		end(err)
		return out, upstreamFailed(StageRetrieving, err)
	}
	quota := target - len(pinnedItems)
	if quota < 0 {
		quota = 0
	}
	res := deps.Retriever.Retrieve(sctx, RetrievalQuery{
		Text:          query,
		ScopeKey:      scope,
		ExcludeIDs:    pinned,
		ContentFilter: !in.AdultContentAllowed,
		Limit:         quota,
	})
	merged := make([]RetrievedItem, 0, len(pinnedItems)+len(res.Items))
	merged = append(merged, pinnedItems...)
	merged = append(merged, res.Items...)
	if len(merged) == 0 {
		if errors.Is(res.Cause, engine.ErrTimeout) {
			err = upstreamFailed(StageRetrieving, res.Cause)
		} else {
			err = reject(StageRetrieving, ErrNoCandidates)
		}
		end(err)
		return out, err
	}
	end(nil)
	if log != nil {
		log.Debug("curation stage", "stage", StageRetrieving, "pinned", len(pinnedItems), "retrieved", len(res.Items), "quota", quota)
	}

	// COMPOSING
	titles := make([]string, 0, len(merged))
	for _, it := range merged {
		titles = append(titles, it.Movie.TitleKo)
	}
	_, end = startStage(ctx, op, StageComposing)
	prompt := ComposeCuration(d, query, titles)
	end(nil)

	// GENERATING
	gctx, end := startStage(ctx, op, StageGenerating)
	gctx, cancel := withTimeout(gctx, deps.Settings.GenerateTimeout)
	raw, err := generatorFor(d, deps.Generator, deps.Adapters).Generate(gctx, prompt.Messages(), in.Sampling.apply(deps.Settings.Sampling))
	cancel()
	if err != nil {
		err = upstreamFailed(StageGenerating, engine.Classify("generate", err))
		end(err)
		return out, err
	}
	end(nil)

	// SANITIZING
	_, end = startStage(ctx, op, StageSanitizing)
	comment := deps.Sanitizer.Sanitize(raw, SanitizeOptions{BannedMarkers: d.BannedMarkers, Titles: titles})
	if comment == "" {
		err = upstreamFailed(StageSanitizing, ErrEmptyGeneration)
		end(err)
		return out, err
	}
	end(nil)

	// ASSEMBLED
	movies := make([]CuratedMovie, 0, len(merged))
	for _, it := range merged {
		movies = append(movies, CuratedMovie{
			MovieID:    it.Movie.ID,
			PosterURL:  PosterURL(deps.Settings.PosterBaseURL, it.Movie.Poster()),
			Title:      it.Movie.TitleKo,
			Similarity: it.Similarity,
		})
	}
	return CurateOutput{
		Title:          string(d.Theme) + " 큐레이션",
		CuratorComment: comment,
		Movies:         movies,
		Design:         design,
		Keywords:       keywords(string(d.Theme), query),
	}, nil
}

func keywords(theme, query string) []string {
	prefix := query
	if utf8.RuneCountInString(prefix) > keywordQueryRunes {
		prefix = strings.TrimSpace(string([]rune(prefix)[:keywordQueryRunes]))
	}
	if prefix == "" || prefix == theme {
		return []string{theme}
	}
	return []string{theme, prefix}
}
