package domain

import "github.com/yungbote/cukee-curation/internal/domain/catalog"

type (
	Movie            = catalog.Movie
	MovieEmbedding   = catalog.MovieEmbedding
	TicketGroupMovie = catalog.TicketGroupMovie
)

// Models lists every table the service migrates.
func Models() []any {
	return []any{
		&catalog.Movie{},
		&catalog.MovieEmbedding{},
		&catalog.TicketGroupMovie{},
	}
}
