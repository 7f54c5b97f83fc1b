package steps

import (
	"context"
	"errors"
	"testing"
	"time"

	types "github.com/yungbote/cukee-curation/internal/domain/catalog"
	"github.com/yungbote/cukee-curation/internal/modules/curation/persona"
	"github.com/yungbote/cukee-curation/internal/platform/dbctx"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
	"github.com/yungbote/cukee-curation/internal/platform/personacache"
)

func (s *fakeStore) GetByID(_ dbctx.Context, id int64) (*types.Movie, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, c := range s.movies {
		if c.ID == id {
			m := c.Movie
			return &m, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) RandomByTicket(_ dbctx.Context, _ int64, limit int, _ bool) ([]*types.Movie, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*types.Movie
	for _, c := range s.movies {
		if len(out) == limit {
			break
		}
		m := c.Movie
		out = append(out, &m)
	}
	return out, nil
}

func newDetailDeps(t *testing.T) (DetailDeps, *fakeGenerator) {
	t.Helper()
	f := newCurateFixture(t)
	cache := personacache.NewMemory(logger.NewNop(), time.Hour)
	t.Cleanup(func() { _ = cache.Close() })
	return DetailDeps{
		Log:       f.deps.Log,
		Personas:  f.deps.Personas,
		Movies:    f.store,
		Cache:     cache,
		Generator: f.gen,
		Sanitizer: f.deps.Sanitizer,
		Settings:  f.deps.Settings,
	}, f.gen
}

func TestMovieDetailCachesPerSession(t *testing.T) {
	deps, gen := newDetailDeps(t)
	gen.out = "\"기생충, 반지하의 냄새가 스크린을 넘어와요.\""
	ctx := context.Background()
	in := DetailInput{MovieID: 201, Theme: string(persona.ThemeCinephile), SessionID: "s1"}

	first, err := MovieDetail(ctx, deps, in)
	if err != nil {
		t.Fatalf("MovieDetail: %v", err)
	}
	if first.Title != "기생충" || first.Detail != "반지하의 냄새가 스크린을 넘어와요." || first.Cached {
		t.Fatalf("first: got=%+v", first)
	}

	// ticket id resolves to the same persona and so the same cache key
	second, err := MovieDetail(ctx, deps, DetailInput{MovieID: 201, TicketID: 2, SessionID: "s1"})
	if err != nil {
		t.Fatalf("MovieDetail: %v", err)
	}
	if !second.Cached || second.Detail != first.Detail || second.Title != first.Title {
		t.Fatalf("second: got=%+v", second)
	}
	if gen.calls != 1 {
		t.Fatalf("generator calls: got=%d want=1", gen.calls)
	}

	entries, err := SessionEntries(ctx, SessionDeps{Cache: deps.Cache}, "s1")
	if err != nil || len(entries) != 1 || entries[0].MovieID != 201 || entries[0].TicketID != 2 {
		t.Fatalf("SessionEntries: got=%+v err=%v", entries, err)
	}
	n, err := ClearSession(ctx, SessionDeps{Cache: deps.Cache}, "s1")
	if err != nil || n != 1 {
		t.Fatalf("ClearSession: got=(%d,%v)", n, err)
	}

	if _, err := MovieDetail(ctx, deps, in); err != nil {
		t.Fatalf("MovieDetail after clear: %v", err)
	}
	if gen.calls != 2 {
		t.Fatalf("expected regeneration after clear: calls=%d", gen.calls)
	}
}

func TestMovieDetailWithoutSessionSkipsCache(t *testing.T) {
	deps, gen := newDetailDeps(t)
	gen.out = "좋은 영화예요."
	for i := 0; i < 2; i++ {
		if _, err := MovieDetail(context.Background(), deps, DetailInput{MovieID: 202, TicketID: 1}); err != nil {
			t.Fatalf("MovieDetail: %v", err)
		}
	}
	if gen.calls != 2 {
		t.Fatalf("generator calls: got=%d want=2", gen.calls)
	}
}

func TestMovieDetailFailures(t *testing.T) {
	tests := []struct {
		name   string
		in     DetailInput
		target error
	}{
		{"missing movie", DetailInput{MovieID: 999, TicketID: 1}, ErrMovieNotFound},
		{"bad id", DetailInput{MovieID: 0, TicketID: 1}, ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, gen := newDetailDeps(t)
			_, err := MovieDetail(context.Background(), deps, tt.in)
			if !errors.Is(err, tt.target) {
				t.Fatalf("error: got=%v want=%v", err, tt.target)
			}
			if Outcome(err) != StageRejected || gen.calls != 0 {
				t.Fatalf("outcome=%s calls=%d", Outcome(err), gen.calls)
			}
		})
	}

	deps, _ := newDetailDeps(t)
	if _, err := MovieDetail(context.Background(), deps, DetailInput{MovieID: 201, Theme: "없는 테마"}); !persona.IsUnknownTheme(err) {
		t.Fatalf("expected UnknownThemeError, got %v", err)
	}
}

func TestSessionOpsValidate(t *testing.T) {
	if _, err := ClearSession(context.Background(), SessionDeps{}, " "); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("ClearSession: got=%v", err)
	}
	if n, err := ClearSession(context.Background(), SessionDeps{}, "s"); err != nil || n != 0 {
		t.Fatalf("ClearSession without cache: got=(%d,%v)", n, err)
	}
}

func TestRandomByTicket(t *testing.T) {
	f := newCurateFixture(t)
	deps := RandomDeps{Log: f.deps.Log, Personas: f.deps.Personas, Movies: f.store, Settings: f.deps.Settings}

	out, err := RandomByTicket(context.Background(), deps, RandomInput{TicketID: 3})
	if err != nil {
		t.Fatalf("RandomByTicket: %v", err)
	}
	if out.TicketID != 3 || len(out.Movies) != defaultRandomLimit {
		t.Fatalf("RandomByTicket: got=%+v", out)
	}

	tests := []struct {
		name   string
		in     RandomInput
		empty  bool
		target error
	}{
		{"limit too big", RandomInput{TicketID: 3, Limit: 21}, false, ErrInvalidRequest},
		{"negative limit", RandomInput{TicketID: 3, Limit: -1}, false, ErrInvalidRequest},
		{"empty ticket", RandomInput{TicketID: 3, Limit: 2}, true, ErrNoCandidates},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.empty {
				deps.Movies = &fakeStore{}
			}
			if _, err := RandomByTicket(context.Background(), deps, tt.in); !errors.Is(err, tt.target) {
				t.Fatalf("error: got=%v want=%v", err, tt.target)
			}
		})
	}

	if _, err := RandomByTicket(context.Background(), deps, RandomInput{TicketID: 42}); !persona.IsUnknownTheme(err) {
		t.Fatalf("expected UnknownThemeError, got %v", err)
	}
}
