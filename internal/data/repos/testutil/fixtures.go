package testutil

import (
	"context"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/cukee-curation/internal/domain/catalog"
)

func SeedMovie(tb testing.TB, ctx context.Context, tx *gorm.DB, id int64, title string, certification *string) *types.Movie {
	tb.Helper()
	m := &types.Movie{
		ID:            id,
		TitleKo:       title,
		Certification: certification,
		Genres:        datatypes.JSON(`["드라마"]`),
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed movie: %v", err)
	}
	return m
}

func SeedTicket(tb testing.TB, ctx context.Context, tx *gorm.DB, ticketID int64, movieIDs ...int64) {
	tb.Helper()
	for _, id := range movieIDs {
		link := &types.TicketGroupMovie{TicketGroupID: ticketID, MovieID: id}
		if err := tx.WithContext(ctx).Create(link).Error; err != nil {
			tb.Fatalf("seed ticket group: %v", err)
		}
	}
}

func SeedEmbedding(tb testing.TB, ctx context.Context, tx *gorm.DB, movieID int64, vec []float32) {
	tb.Helper()
	raw, err := types.EncodeVector(vec)
	if err != nil {
		tb.Fatalf("encode vector: %v", err)
	}
	row := &types.MovieEmbedding{MovieID: movieID, Model: "test", Dims: len(vec), Embedding: raw}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed embedding: %v", err)
	}
}

func PtrString(v string) *string { return &v }
