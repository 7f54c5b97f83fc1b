package catalog

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Movie is a catalog item. The curation pipeline never writes it.
type Movie struct {
	ID            int64          `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	TitleKo       string         `gorm:"column:title_ko;type:text;not null" json:"title_ko"`
	OverviewKo    *string        `gorm:"column:overview_ko;type:text" json:"overview_ko,omitempty"`
	PosterPath    *string        `gorm:"column:poster_path" json:"poster_path,omitempty"`
	Certification *string        `gorm:"column:certification;index" json:"certification,omitempty"`
	Genres        datatypes.JSON `gorm:"column:genres;type:jsonb" json:"genres,omitempty"`
	Directors     datatypes.JSON `gorm:"column:directors;type:jsonb" json:"directors,omitempty"`
	ReleaseDateKr *string        `gorm:"column:release_date_kr" json:"release_date_kr,omitempty"`
	Runtime       *int           `gorm:"column:runtime" json:"runtime,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Movie) TableName() string { return "movies" }

func (m *Movie) Overview() string { return deref(m.OverviewKo) }
func (m *Movie) Poster() string { return deref(m.PosterPath) }
func (m *Movie) Rating() string { return deref(m.Certification) }
func (m *Movie) ReleaseDate() string { return deref(m.ReleaseDateKr) }
func (m *Movie) GenreNames() []string { return stringList(m.Genres) }
func (m *Movie) DirectorNames() []string { return stringList(m.Directors) }

// EmbeddingText is the text a movie is embedded from: title, genres, overview.
func (m *Movie) EmbeddingText() string {
	return m.TitleKo + "\n" + strings.Join(m.GenreNames(), " ") + "\n" + m.Overview()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// stringList accepts either a JSON array of strings or a bare JSON string.
func stringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil && one != "" {
		return []string{one}
	}
	return nil
}
