package steps

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
	"unicode/utf8"

	repos "github.com/yungbote/cukee-curation/internal/data/repos/catalog"
	"github.com/yungbote/cukee-curation/internal/inference/engine"
	"github.com/yungbote/cukee-curation/internal/modules/curation/persona"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
)

func unitAt(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func titled(c *repos.Candidate, title, poster string) *repos.Candidate {
	c.TitleKo = title
	if poster != "" {
		c.PosterPath = &poster
	}
	return c
}

type curateFixture struct {
	deps  CurateDeps
	emb   *fakeEmbedder
	store *fakeStore
	gen   *fakeGenerator
}

func newCurateFixture(t *testing.T) *curateFixture {
	t.Helper()
	cat, err := persona.Default()
	if err != nil {
		t.Fatalf("persona.Default: %v", err)
	}
	store := &fakeStore{movies: []*repos.Candidate{
		titled(candidate(t, 101, "", unitAt(0.1)...), "괴물", "/p101.jpg"),
		titled(candidate(t, 201, "", unitAt(0.9)...), "기생충", "/p201.jpg"),
		titled(candidate(t, 202, "", unitAt(0.8)...), "마더", ""),
		titled(candidate(t, 203, "", unitAt(0.7)...), "살인의 추억", "/p203.jpg"),
		titled(candidate(t, 204, "", unitAt(0.6)...), "설국열차", "/p204.jpg"),
		titled(candidate(t, 205, "", unitAt(0.5)...), "옥자", "/p205.jpg"),
	}}
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	gen := &fakeGenerator{out: "<think>plan</think>기생충은 묵직한 여운이 남는 밤이에요. 그리고"}
	log := logger.NewNop()
	return &curateFixture{
		emb:   emb,
		store: store,
		gen:   gen,
		deps: CurateDeps{
			Log:       log,
			Personas:  cat,
			Guard:     FailOpenGuard{Inner: NoopGuard{}, Log: log},
			Retriever: Retriever{Embedder: emb, Store: store, Log: log},
			Generator: gen,
			Sanitizer: NewSanitizer(TruncateLastTerminal),
			Settings: Settings{
				TargetCount:     5,
				GenerateTimeout: time.Second,
				Sampling:        engine.GenerateOptions{Temperature: engine.Float(0.7), TopP: engine.Float(0.9), TopK: 50, MaxTokens: 512},
				PosterBaseURL:   "https://image.tmdb.org/t/p/w500",
				DefaultDesign:   json.RawMessage(`{"font":"Pretendard"}`),
			},
		},
	}
}

func movieIDs(ms []CuratedMovie) []int64 {
	out := make([]int64, len(ms))
	for i, m := range ms {
		out[i] = m.MovieID
	}
	return out
}

func TestCuratePinnedFirstThenRanked(t *testing.T) {
	f := newCurateFixture(t)
	out, err := Curate(context.Background(), f.deps, CurateInput{
		Prompt:    "여운이 남는 영화",
		Theme:     string(persona.ThemeMelancholy),
		PinnedIDs: []int64{101},
	})
	if err != nil {
		t.Fatalf("Curate: %v", err)
	}
	if got, want := movieIDs(out.Movies), []int64{101, 201, 202, 203, 204}; !equalIDs(got, want) {
		t.Fatalf("movies: got=%v want=%v", got, want)
	}
	if out.Movies[0].Similarity != 1.0 {
		t.Fatalf("pinned similarity: got=%v want=1", out.Movies[0].Similarity)
	}
	for i := 2; i < len(out.Movies); i++ {
		if out.Movies[i].Similarity > out.Movies[i-1].Similarity {
			t.Fatalf("retrieved part not descending: %+v", out.Movies)
		}
	}
	if out.Movies[0].PosterURL != "https://image.tmdb.org/t/p/w500/p101.jpg" || out.Movies[2].PosterURL != "" {
		t.Fatalf("poster urls: %+v", out.Movies)
	}
	if out.CuratorComment != "묵직한 여운이 남는 밤이에요." {
		t.Fatalf("comment: got=%q", out.CuratorComment)
	}
	if out.Title != string(persona.ThemeMelancholy)+" 큐레이션" {
		t.Fatalf("title: got=%q", out.Title)
	}
	if len(out.Keywords) != 2 || out.Keywords[0] != string(persona.ThemeMelancholy) || out.Keywords[1] != "여운이 남는 영화" {
		t.Fatalf("keywords: got=%v", out.Keywords)
	}
	if string(out.Design) != `{"font":"Pretendard"}` {
		t.Fatalf("design: got=%s", out.Design)
	}
	if f.store.lastFilter.TicketGroupID != 4 || !f.store.lastFilter.ExcludeRestricted {
		t.Fatalf("filter: got=%+v", f.store.lastFilter)
	}
	if len(f.store.lastFilter.ExcludeIDs) != 1 || f.store.lastFilter.ExcludeIDs[0] != 101 {
		t.Fatalf("pinned ids not excluded: %+v", f.store.lastFilter)
	}
	if f.gen.calls != 1 {
		t.Fatalf("generator calls: got=%d want=1", f.gen.calls)
	}
}

func TestCurateQuotaExhaustedSkipsRetrieval(t *testing.T) {
	f := newCurateFixture(t)
	f.deps.Settings.TargetCount = 2
	out, err := Curate(context.Background(), f.deps, CurateInput{
		Prompt: "q", TicketID: 4, PinnedIDs: []int64{202, 201, 202},
	})
	if err != nil {
		t.Fatalf("Curate: %v", err)
	}
	if got, want := movieIDs(out.Movies), []int64{202, 201}; !equalIDs(got, want) {
		t.Fatalf("movies: got=%v want=%v", got, want)
	}
	if f.emb.calls != 0 {
		t.Fatalf("embedder called with zero quota")
	}
}

func TestCurateFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *curateFixture, in *CurateInput)
		target  error
		outcome Stage
		genUsed bool
	}{
		{
			name:    "unknown theme",
			mutate:  func(_ *curateFixture, in *CurateInput) { in.Theme = "nonexistent-theme" },
			outcome: StageRejected,
		},
		{
			name:    "blank prompt",
			mutate:  func(_ *curateFixture, in *CurateInput) { in.Prompt = "  " },
			target:  ErrInvalidRequest,
			outcome: StageRejected,
		},
		{
			name:    "too many pinned",
			mutate:  func(_ *curateFixture, in *CurateInput) { in.PinnedIDs = []int64{1, 2, 3, 4, 5, 6} },
			target:  ErrInvalidRequest,
			outcome: StageRejected,
		},
		{
			name:    "no candidates",
			mutate:  func(f *curateFixture, _ *CurateInput) { f.store.movies = nil },
			target:  ErrNoCandidates,
			outcome: StageRejected,
		},
		{
			name: "retrieval deadline with nothing pinned",
			mutate: func(f *curateFixture, _ *CurateInput) {
				f.emb.delay = time.Second
				f.deps.Retriever.Timeout = 10 * time.Millisecond
			},
			target:  engine.ErrTimeout,
			outcome: StageUpstreamFailed,
		},
		{
			name: "generator timeout",
			mutate: func(f *curateFixture, _ *CurateInput) {
				f.gen.delay = time.Second
				f.deps.Settings.GenerateTimeout = 10 * time.Millisecond
			},
			target:  engine.ErrTimeout,
			outcome: StageUpstreamFailed,
			genUsed: true,
		},
		{
			name:    "generator unavailable",
			mutate:  func(f *curateFixture, _ *CurateInput) { f.gen.err = errors.New("connection refused") },
			target:  engine.ErrUnavailable,
			outcome: StageUpstreamFailed,
			genUsed: true,
		},
		{
			name:    "empty after sanitizing",
			mutate:  func(f *curateFixture, _ *CurateInput) { f.gen.out = "<think>only reasoning" },
			target:  ErrEmptyGeneration,
			outcome: StageUpstreamFailed,
			genUsed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCurateFixture(t)
			in := CurateInput{Prompt: "비 오는 날", Theme: string(persona.ThemeCalm)}
			tt.mutate(f, &in)

			_, err := Curate(context.Background(), f.deps, in)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Fatalf("error: got=%v want=%v", err, tt.target)
			}
			if got := Outcome(err); got != tt.outcome {
				t.Fatalf("outcome: got=%s want=%s", got, tt.outcome)
			}
			if (f.gen.calls > 0) != tt.genUsed {
				t.Fatalf("generator calls: got=%d genUsed=%v", f.gen.calls, tt.genUsed)
			}
		})
	}
}

func TestCurateUnknownThemeNeverTouchesUpstreams(t *testing.T) {
	f := newCurateFixture(t)
	_, err := Curate(context.Background(), f.deps, CurateInput{Prompt: "q", Theme: "nonexistent-theme"})
	if !persona.IsUnknownTheme(err) {
		t.Fatalf("expected UnknownThemeError, got %v", err)
	}
	if f.gen.calls != 0 || f.emb.calls != 0 {
		t.Fatalf("upstreams called: gen=%d emb=%d", f.gen.calls, f.emb.calls)
	}
}

func TestCurateGuardrailBlockReturnsGuidance(t *testing.T) {
	f := newCurateFixture(t)
	f.deps.Guard = FailOpenGuard{Inner: LLMGuard{Model: &fakeGenerator{out: "REFUSE"}}}

	out, err := Curate(context.Background(), f.deps, CurateInput{Prompt: "코딩 숙제 해줘", TicketID: 5})
	if err != nil {
		t.Fatalf("Curate: %v", err)
	}
	if !out.Blocked || out.CuratorComment != RefusalMessage || len(out.Movies) != 0 {
		t.Fatalf("guidance payload: got=%+v", out)
	}
	if out.Title != string(persona.ThemeComedy)+" 큐레이션" {
		t.Fatalf("title: got=%q", out.Title)
	}
	if f.gen.calls != 0 || f.emb.calls != 0 {
		t.Fatalf("pipeline continued after block")
	}
}

func TestCurateGuardrailFailureIsOpen(t *testing.T) {
	f := newCurateFixture(t)
	f.deps.Guard = FailOpenGuard{Inner: LLMGuard{Model: &fakeGenerator{err: errors.New("guard down")}}}

	out, err := Curate(context.Background(), f.deps, CurateInput{Prompt: "q", TicketID: 5})
	if err != nil || out.Blocked || len(out.Movies) == 0 {
		t.Fatalf("expected normal curation, got out=%+v err=%v", out, err)
	}
}

func TestCurateUsesAdapterAndOverrides(t *testing.T) {
	f := newCurateFixture(t)
	adapterGen := &recordingGenerator{out: "좋아요."}
	horror, _ := f.deps.Personas.Lookup(string(persona.ThemeHorror))
	horror.Adapter = "horror-lora"
	f.deps.Adapters = map[string]TextGenerator{"horror-lora": adapterGen}

	temp := 0.2
	topK := 10
	in := CurateInput{Prompt: "q", Sampling: &SamplingOverride{Temperature: &temp, TopK: &topK}}
	gen := generatorFor(horror, f.deps.Generator, f.deps.Adapters)
	if gen != adapterGen {
		t.Fatalf("adapter generator not selected")
	}
	opts := in.Sampling.apply(f.deps.Settings.Sampling)
	if *opts.Temperature != 0.2 || opts.TopK != 10 || *opts.TopP != 0.9 || opts.MaxTokens != 512 {
		t.Fatalf("sampling: got=%+v", opts)
	}
}

func TestSamplingOverrideKeepsExplicitZero(t *testing.T) {
	zero := 0.0
	base := engine.GenerateOptions{Temperature: engine.Float(0.7), TopP: engine.Float(0.9)}
	opts := (&SamplingOverride{Temperature: &zero}).apply(base)
	if opts.Temperature == nil || *opts.Temperature != 0 {
		t.Fatalf("temperature: got=%v want=0", opts.Temperature)
	}
	if *base.Temperature != 0.7 {
		t.Fatalf("base mutated: got=%v", *base.Temperature)
	}
}

func TestKeywords(t *testing.T) {
	long := "비 오는 날 창가에서 혼자 조용히 보기 좋은 잔잔한 영화"
	tests := []struct {
		name  string
		theme string
		query string
		want  []string
	}{
		{"short query", "공포", "무서운 영화", []string{"공포", "무서운 영화"}},
		{"empty query", "공포", "", []string{"공포"}},
		{"query equals theme", "공포", "공포", []string{"공포"}},
		{"long query cut at rune boundary", "감성", long, []string{"감성", string([]rune(long)[:keywordQueryRunes])}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := keywords(tt.theme, tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("keywords: got=%q want=%q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("keywords[%d]: got=%q want=%q", i, got[i], tt.want[i])
				}
				if !utf8.ValidString(got[i]) || utf8.RuneCountInString(got[i]) > keywordQueryRunes {
					t.Fatalf("keywords[%d]: invalid prefix %q", i, got[i])
				}
			}
		})
	}
}

type recordingGenerator struct {
	out  string
	opts engine.GenerateOptions
}

func (g *recordingGenerator) Generate(_ context.Context, _ []engine.Message, opts engine.GenerateOptions) (string, error) {
	g.opts = opts
	return g.out, nil
}

func TestPosterURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"https://img/t/p/w500", "/a.jpg", "https://img/t/p/w500/a.jpg"},
		{"https://img/t/p/w500/", "a.jpg", "https://img/t/p/w500/a.jpg"},
		{"https://img", "", ""},
		{"https://img", "https://cdn/x.jpg", "https://cdn/x.jpg"},
	}
	for _, tt := range tests {
		if got := PosterURL(tt.base, tt.path); got != tt.want {
			t.Fatalf("PosterURL(%q,%q): got=%q want=%q", tt.base, tt.path, got, tt.want)
		}
	}
}
