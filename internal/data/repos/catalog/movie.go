package catalog

import (
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/cukee-curation/internal/domain/catalog"
	"github.com/yungbote/cukee-curation/internal/platform/dbctx"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
)

// CandidateFilter narrows the movies eligible for similarity ranking.
type CandidateFilter struct {
	// TicketGroupID scopes candidates to one ticket group; <= 0 means the whole catalog.
	TicketGroupID     int64
	ExcludeIDs        []int64
	ExcludeRestricted bool
}

// Candidate is a movie joined with its stored embedding.
type Candidate struct {
	types.Movie
	Embedding datatypes.JSON `gorm:"column:embedding"`
}

type MovieRepo interface {
	GetByID(dbc dbctx.Context, id int64) (*types.Movie, error)
	GetByIDs(dbc dbctx.Context, ids []int64) ([]*types.Movie, error)
	ListCandidates(dbc dbctx.Context, f CandidateFilter) ([]*Candidate, error)
	RandomByTicket(dbc dbctx.Context, ticketGroupID int64, limit int, excludeRestricted bool) ([]*types.Movie, error)
	ListMissingEmbeddings(dbc dbctx.Context, afterID int64, limit int) ([]*types.Movie, error)
	UpsertEmbeddings(dbc dbctx.Context, rows []*types.MovieEmbedding) error
}

type movieRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMovieRepo(db *gorm.DB, baseLog *logger.Logger) MovieRepo {
	return &movieRepo{db: db, log: baseLog.With("repo", "MovieRepo")}
}

// GetByID returns (nil, nil) when the movie does not exist.
func (r *movieRepo) GetByID(dbc dbctx.Context, id int64) (*types.Movie, error) {
	var m types.Movie
	err := dbc.DB(r.db).Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByIDs returns the movies that exist, in no particular order.
func (r *movieRepo) GetByIDs(dbc dbctx.Context, ids []int64) ([]*types.Movie, error) {
	var results []*types.Movie
	if len(ids) == 0 {
		return results, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *movieRepo) ListCandidates(dbc dbctx.Context, f CandidateFilter) ([]*Candidate, error) {
	q := dbc.DB(r.db).
		Model(&types.Movie{}).
		Select("movies.*, movie_embeddings.embedding AS embedding").
		Joins("JOIN movie_embeddings ON movie_embeddings.movie_id = movies.id").
		Where("movie_embeddings.embedding IS NOT NULL")
	if f.TicketGroupID > 0 {
		q = q.Joins("JOIN ticket_group_movies ON ticket_group_movies.movie_id = movies.id").
			Where("ticket_group_movies.ticket_group_id = ?", f.TicketGroupID)
	}
	if len(f.ExcludeIDs) > 0 {
		q = q.Where("movies.id NOT IN ?", f.ExcludeIDs)
	}
	if f.ExcludeRestricted {
		q = q.Where("(movies.certification IS NULL OR movies.certification NOT IN ?)", types.RestrictedRatings)
	}

	var rows []*Candidate
	if err := q.Order("movies.id ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *movieRepo) RandomByTicket(dbc dbctx.Context, ticketGroupID int64, limit int, excludeRestricted bool) ([]*types.Movie, error) {
	var results []*types.Movie
	if limit <= 0 {
		return results, nil
	}
	q := dbc.DB(r.db).
		Model(&types.Movie{}).
		Joins("JOIN ticket_group_movies ON ticket_group_movies.movie_id = movies.id").
		Where("ticket_group_movies.ticket_group_id = ?", ticketGroupID)
	if excludeRestricted {
		q = q.Where("(movies.certification IS NULL OR movies.certification NOT IN ?)", types.RestrictedRatings)
	}
	if err := q.Order("RANDOM()").Limit(limit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListMissingEmbeddings pages through movies with no embedding row, by id.
func (r *movieRepo) ListMissingEmbeddings(dbc dbctx.Context, afterID int64, limit int) ([]*types.Movie, error) {
	var results []*types.Movie
	if limit <= 0 {
		return results, nil
	}
	err := dbc.DB(r.db).
		Model(&types.Movie{}).
		Joins("LEFT JOIN movie_embeddings ON movie_embeddings.movie_id = movies.id").
		Where("movie_embeddings.movie_id IS NULL AND movies.id > ?", afterID).
		Order("movies.id ASC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *movieRepo) UpsertEmbeddings(dbc dbctx.Context, rows []*types.MovieEmbedding) error {
	if len(rows) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "movie_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"model", "dims", "embedding", "updated_at"}),
		}).
		CreateInBatches(rows, 100).Error
}
