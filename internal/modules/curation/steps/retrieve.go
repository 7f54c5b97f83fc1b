package steps

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	repos "github.com/yungbote/cukee-curation/internal/data/repos/catalog"
	types "github.com/yungbote/cukee-curation/internal/domain/catalog"
	"github.com/yungbote/cukee-curation/internal/inference/engine"
	"github.com/yungbote/cukee-curation/internal/observability"
	"github.com/yungbote/cukee-curation/internal/platform/dbctx"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
)

// QueryEmbedder embeds free text with the configured embedding model.
type QueryEmbedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// CandidateStore is the read side of the catalog used by retrieval.
type CandidateStore interface {
	GetByIDs(dbc dbctx.Context, ids []int64) ([]*types.Movie, error)
	ListCandidates(dbc dbctx.Context, f repos.CandidateFilter) ([]*repos.Candidate, error)
}

type RetrievalQuery struct {
	Text string
	// ScopeKey is the ticket group; <= 0 searches the whole catalog.
	ScopeKey      int64
	ExcludeIDs    []int64
	ContentFilter bool
	Limit         int
}

type RetrievedItem struct {
	Movie      *types.Movie
	Similarity float64
}

// RetrievalResult carries the ranked items. Cause is set when a failure was
// absorbed into an empty result; it is informational only.
type RetrievalResult struct {
	Items []RetrievedItem
	Cause error
}

type Retriever struct {
	Embedder QueryEmbedder
	Store    CandidateStore
	Log      *logger.Logger
	// Timeout bounds one Retrieve call; zero means no extra deadline.
	Timeout time.Duration
}

// Retrieve ranks eligible movies by cosine similarity to the query text,
// descending, ties by id ascending. It never fails: errors come back as an
// empty result with Cause set.
func (r Retriever) Retrieve(ctx context.Context, q RetrievalQuery) RetrievalResult {
	if q.Limit <= 0 {
		return RetrievalResult{}
	}
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return RetrievalResult{}
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	items, err := r.rank(ctx, text, q)
	if err != nil {
		cause := retrievalCause(ctx, err)
		label := "store"
		switch {
		case errors.Is(cause, engine.ErrTimeout):
			label = "timeout"
		case engine.IsUpstream(cause):
			label = "embed"
		}
		observability.RecordRetrievalFailure(label)
		if r.Log != nil {
			r.Log.Warn("retrieval absorbed failure", "cause", label, "scope", q.ScopeKey, "error", err)
		}
		return RetrievalResult{Cause: cause}
	}
	observability.RecordRetrieval(len(items))
	return RetrievalResult{Items: items}
}

func (r Retriever) rank(ctx context.Context, text string, q RetrievalQuery) ([]RetrievedItem, error) {
	vecs, err := r.Embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, engine.Classify("embed", fmt.Errorf("empty query embedding"))
	}
	query := vecs[0]

	candidates, err := r.Store.ListCandidates(dbctx.Context{Ctx: ctx}, repos.CandidateFilter{
		TicketGroupID:     q.ScopeKey,
		ExcludeIDs:        q.ExcludeIDs,
		ExcludeRestricted: q.ContentFilter,
	})
	if err != nil {
		return nil, err
	}

	excluded := make(map[int64]bool, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded[id] = true
	}

	skipped := 0
	scored := make([]RetrievedItem, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || excluded[c.ID] {
			continue
		}
		if q.ContentFilter && c.Certification != nil && types.IsRestricted(*c.Certification) {
			continue
		}
		vec, err := types.DecodeVector(c.Embedding)
		if err != nil || len(vec) != len(query) {
			skipped++
			continue
		}
		m := c.Movie
		scored = append(scored, RetrievedItem{Movie: &m, Similarity: cosine(query, vec)})
	}
	if skipped > 0 && r.Log != nil {
		r.Log.Debug("retrieval skipped unusable embeddings", "skipped", skipped, "dims", len(query))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Movie.ID < scored[j].Movie.ID
	})
	if len(scored) > q.Limit {
		scored = scored[:q.Limit]
	}
	return scored, nil
}

func retrievalCause(ctx context.Context, err error) error {
	if errors.Is(err, engine.ErrTimeout) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &engine.UpstreamError{Kind: engine.ErrTimeout, Op: "retrieve", Err: err}
	}
	return err
}

// ByIDs returns the movies for ids in input order with similarity 1.0.
// Unknown ids are dropped and duplicates collapse to their first position.
func (r Retriever) ByIDs(ctx context.Context, ids []int64) ([]RetrievedItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.Store.GetByIDs(dbctx.Context{Ctx: ctx}, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*types.Movie, len(rows))
	for _, m := range rows {
		if m != nil {
			byID[m.ID] = m
		}
	}
	out := make([]RetrievedItem, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, RetrievedItem{Movie: m, Similarity: 1.0})
	}
	return out, nil
}
