package steps

import (
	"context"
	"strings"
	"time"

	"github.com/yungbote/cukee-curation/internal/inference/engine"
	"github.com/yungbote/cukee-curation/internal/modules/curation/persona"
	"github.com/yungbote/cukee-curation/internal/platform/dbctx"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
	"github.com/yungbote/cukee-curation/internal/platform/personacache"
)

type DetailDeps struct {
	Log       *logger.Logger
	Personas  *persona.Catalog
	Movies    MovieStore
	Cache     personacache.Cache
	Generator TextGenerator
	Adapters  map[string]TextGenerator
	Sanitizer Sanitizer
	Settings  Settings
}

type DetailInput struct {
	MovieID   int64
	Theme     string
	TicketID  int64
	SessionID string
}

type DetailOutput struct {
	MovieID int64  `json:"movieId"`
	Title   string `json:"title"`
	Detail  string `json:"detail"`
	Cached  bool   `json:"-"`
}

// MovieDetail generates a persona-voiced description of one movie. With a
// session id the result is cached per (session, movie, ticket).
func MovieDetail(ctx context.Context, deps DetailDeps, in DetailInput) (out DetailOutput, err error) {
	const op = "movie_detail"
	log := deps.Log
	if log != nil {
		log = log.With("operation", op)
	}
	defer func() { finish(log, op, err) }()

	if in.MovieID <= 0 {
		return out, invalid("movieId must be positive")
	}
	d, err := deps.Personas.Resolve(in.Theme, in.TicketID)
	if err != nil {
		return out, reject(StageInit, err)
	}
	session := strings.TrimSpace(in.SessionID)
	useCache := session != "" && deps.Cache != nil

	if useCache {
		if v, ok := deps.Cache.Get(ctx, session, in.MovieID, d.TicketID); ok {
			if title, detail, ok := personacache.DecodeValue(v); ok && detail != "" {
				return DetailOutput{MovieID: in.MovieID, Title: title, Detail: detail, Cached: true}, nil
			}
		}
	}

	sctx, end := startStage(ctx, op, StageRetrieving)
	movie, err := deps.Movies.GetByID(dbctx.Context{Ctx: sctx}, in.MovieID)
	switch {
	case err != nil:
		err = upstreamFailed(StageRetrieving, err)
	case movie == nil:
		err = reject(StageRetrieving, ErrMovieNotFound)
	}
	end(err)
	if err != nil {
		return out, err
	}

	prompt := ComposeDetail(d, DetailFacts{
		Title:       movie.TitleKo,
		Overview:    movie.Overview(),
		Genres:      movie.GenreNames(),
		Directors:   movie.DirectorNames(),
		ReleaseDate: movie.ReleaseDate(),
		Runtime:     derefInt(movie.Runtime),
	})

	opts := deps.Settings.Sampling
	if deps.Settings.DetailMaxTokens > 0 {
		opts.MaxTokens = deps.Settings.DetailMaxTokens
	}
	gctx, end := startStage(ctx, op, StageGenerating)
	gctx, cancel := withTimeout(gctx, deps.Settings.GenerateTimeout)
	raw, err := generatorFor(d, deps.Generator, deps.Adapters).Generate(gctx, prompt.Messages(), opts)
	cancel()
	if err != nil {
		err = upstreamFailed(StageGenerating, engine.Classify("generate", err))
		end(err)
		return out, err
	}
	end(nil)

	detail := deps.Sanitizer.Sanitize(raw, SanitizeOptions{BannedMarkers: d.BannedMarkers, Titles: []string{movie.TitleKo}})
	if detail == "" {
		return out, upstreamFailed(StageSanitizing, ErrEmptyGeneration)
	}

	out = DetailOutput{MovieID: movie.ID, Title: movie.TitleKo, Detail: detail}
	if useCache {
		value := personacache.EncodeValue(out.Title, out.Detail)
		if perr := deps.Cache.Put(ctx, session, in.MovieID, d.TicketID, value, cacheTTL(deps.Settings)); perr != nil && log != nil {
			log.Warn("persona cache put failed", "session_id", session, "movie_id", in.MovieID, "error", perr)
		}
	}
	return out, nil
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

type SessionDeps struct {
	Log   *logger.Logger
	Cache personacache.Cache
}

// ClearSession drops every cached description of a session.
func ClearSession(ctx context.Context, deps SessionDeps, sessionID string) (int, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return 0, invalid("sessionId is required")
	}
	if deps.Cache == nil {
		return 0, nil
	}
	return deps.Cache.ClearSession(ctx, sessionID)
}

// SessionEntries lists the cached descriptions of a session.
func SessionEntries(ctx context.Context, deps SessionDeps, sessionID string) ([]personacache.Entry, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, invalid("sessionId is required")
	}
	if deps.Cache == nil {
		return nil, nil
	}
	return deps.Cache.SessionEntries(ctx, sessionID)
}

type RandomDeps struct {
	Log      *logger.Logger
	Personas *persona.Catalog
	Movies   MovieStore
	Settings Settings
}

type RandomInput struct {
	TicketID     int64
	Limit        int
	AdultExclude bool
}

type RandomMovie struct {
	MovieID   int64  `json:"movieId"`
	Title     string `json:"title"`
	PosterURL string `json:"posterUrl"`
}

type RandomOutput struct {
	TicketID int64         `json:"ticketId"`
	Movies   []RandomMovie `json:"movies"`
}

const (
	defaultRandomLimit = 5
	maxRandomLimit     = 20
)

// RandomByTicket samples movies of a ticket group without generation.
func RandomByTicket(ctx context.Context, deps RandomDeps, in RandomInput) (out RandomOutput, err error) {
	const op = "random_by_ticket"
	defer func() { finish(deps.Log, op, err) }()

	limit := in.Limit
	if limit == 0 {
		limit = defaultRandomLimit
	}
	if limit < 1 || limit > maxRandomLimit {
		return out, invalid("limit must be between 1 and %d", maxRandomLimit)
	}
	if _, err := deps.Personas.ByTicket(in.TicketID); err != nil {
		return out, reject(StageInit, err)
	}

	sctx, end := startStage(ctx, op, StageRetrieving)
	rows, err := deps.Movies.RandomByTicket(dbctx.Context{Ctx: sctx}, in.TicketID, limit, in.AdultExclude)
	if err != nil {
		err = upstreamFailed(StageRetrieving, err)
	} else if len(rows) == 0 {
		err = reject(StageRetrieving, ErrNoCandidates)
	}
	end(err)
	if err != nil {
		return out, err
	}

	out = RandomOutput{TicketID: in.TicketID, Movies: make([]RandomMovie, 0, len(rows))}
	for _, m := range rows {
		out.Movies = append(out.Movies, RandomMovie{
			MovieID:   m.ID,
			Title:     m.TitleKo,
			PosterURL: PosterURL(deps.Settings.PosterBaseURL, m.Poster()),
		})
	}
	return out, nil
}

func cacheTTL(s Settings) time.Duration {
	if s.CacheTTL <= 0 {
		return personacache.DefaultTTL
	}
	return s.CacheTTL
}
