package steps

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	types "github.com/yungbote/cukee-curation/internal/domain/catalog"
	"github.com/yungbote/cukee-curation/internal/platform/dbctx"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
)

// EmbeddingWriter is the part of the movie store the backfill needs.
type EmbeddingWriter interface {
	ListMissingEmbeddings(dbc dbctx.Context, afterID int64, limit int) ([]*types.Movie, error)
	UpsertEmbeddings(dbc dbctx.Context, rows []*types.MovieEmbedding) error
}

type BackfillDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Movies   EmbeddingWriter
	Embedder QueryEmbedder
	// Model is recorded on every embedding row.
	Model string
	// Limiter gates embed calls; nil means unlimited.
	Limiter *rate.Limiter
}

type BackfillInput struct {
	BatchSize int
	Workers   int
	// Limit caps the number of movies processed; 0 means all.
	Limit  int
	DryRun bool
}

type BackfillOutput struct {
	Scanned  int
	Embedded int
	Batches  int
}

// BackfillEmbeddings embeds every movie that has no embedding row yet. Each
// batch is written in its own transaction, so a failure keeps earlier batches.
func BackfillEmbeddings(ctx context.Context, deps BackfillDeps, in BackfillInput) (BackfillOutput, error) {
	out := BackfillOutput{}
	if deps.DB == nil || deps.Log == nil || deps.Movies == nil || deps.Embedder == nil {
		return out, fmt.Errorf("backfill_embeddings: missing deps")
	}
	if in.BatchSize <= 0 {
		in.BatchSize = 64
	}
	if in.Workers <= 0 {
		in.Workers = 1
	}

	var embedded atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.Workers)

	var afterID int64
	for {
		if err := gctx.Err(); err != nil {
			break
		}
		size := in.BatchSize
		if in.Limit > 0 {
			if remaining := in.Limit - out.Scanned; remaining <= 0 {
				break
			} else if remaining < size {
				size = remaining
			}
		}
		batch, err := deps.Movies.ListMissingEmbeddings(dbctx.Context{Ctx: gctx}, afterID, size)
		if err != nil {
			_ = g.Wait()
			return out, fmt.Errorf("backfill_embeddings: list: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		afterID = batch[len(batch)-1].ID
		out.Scanned += len(batch)
		out.Batches++

		if in.DryRun {
			deps.Log.Info("backfill_embeddings: dry run batch", "first_id", batch[0].ID, "last_id", afterID, "count", len(batch))
			continue
		}

		g.Go(func() error {
			n, err := embedBatch(gctx, deps, batch)
			if err != nil {
				return err
			}
			embedded.Add(int64(n))
			return nil
		})
	}

	err := g.Wait()
	out.Embedded = int(embedded.Load())
	if err == nil {
		// errgroup cancels gctx on the first failure; a parent cancel still counts.
		err = ctx.Err()
	}
	if err != nil {
		return out, err
	}
	deps.Log.Info("backfill_embeddings: done", "scanned", out.Scanned, "embedded", out.Embedded, "batches", out.Batches)
	return out, nil
}

func embedBatch(ctx context.Context, deps BackfillDeps, batch []*types.Movie) (int, error) {
	texts := make([]string, 0, len(batch))
	for _, m := range batch {
		texts = append(texts, m.EmbeddingText())
	}
	if deps.Limiter != nil {
		if err := deps.Limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}
	vecs, err := deps.Embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("backfill_embeddings: embed: %w", err)
	}
	if len(vecs) != len(batch) {
		return 0, fmt.Errorf("backfill_embeddings: embedding count mismatch (got %d want %d)", len(vecs), len(batch))
	}

	rows := make([]*types.MovieEmbedding, 0, len(batch))
	for i, m := range batch {
		if len(vecs[i]) == 0 {
			deps.Log.Warn("backfill_embeddings: empty vector, skipping", "movie_id", m.ID)
			continue
		}
		raw, err := types.EncodeVector(vecs[i])
		if err != nil {
			return 0, err
		}
		rows = append(rows, &types.MovieEmbedding{
			MovieID:   m.ID,
			Model:     deps.Model,
			Dims:      len(vecs[i]),
			Embedding: raw,
		})
	}

	err = deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deps.Movies.UpsertEmbeddings(dbctx.Context{Ctx: ctx, Tx: tx}, rows)
	})
	if err != nil {
		return 0, fmt.Errorf("backfill_embeddings: write: %w", err)
	}
	return len(rows), nil
}
