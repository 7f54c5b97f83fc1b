package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/yungbote/cukee-curation/internal/app"
	repos "github.com/yungbote/cukee-curation/internal/data/repos/catalog"
	"github.com/yungbote/cukee-curation/internal/modules/curation/steps"
)

func main() {
	var (
		batch   int
		workers int
		rps     float64
		limit   int
		dryRun  bool
	)
	flag.IntVar(&batch, "batch", 64, "movies per embed call")
	flag.IntVar(&workers, "workers", 2, "concurrent embed batches")
	flag.Float64Var(&rps, "rps", 2, "max embed calls per second (0 = unlimited)")
	flag.IntVar(&limit, "limit", 0, "limit number of movies processed")
	flag.BoolVar(&dryRun, "dry-run", false, "list pending batches without embedding")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	out, err := steps.BackfillEmbeddings(ctx, steps.BackfillDeps{
		DB:       application.DB,
		Log:      application.Log.With("job", "backfill_embeddings"),
		Movies:   repos.NewMovieRepo(application.DB, application.Log),
		Embedder: application.Clients.Embed,
		Model:    application.Cfg.EmbedModel,
		Limiter:  limiter,
	}, steps.BackfillInput{
		BatchSize: batch,
		Workers:   workers,
		Limit:     limit,
		DryRun:    dryRun,
	})
	if err != nil {
		fmt.Printf("backfill failed after %d embedded: %v\n", out.Embedded, err)
		application.Close()
		os.Exit(1)
	}
	fmt.Printf("done; scanned=%d embedded=%d batches=%d\n", out.Scanned, out.Embedded, out.Batches)
}
