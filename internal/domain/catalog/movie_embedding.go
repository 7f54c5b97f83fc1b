package catalog

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// MovieEmbedding holds the vector for one movie. A movie without a row here
// is never retrievable.
type MovieEmbedding struct {
	MovieID   int64          `gorm:"column:movie_id;primaryKey;autoIncrement:false" json:"movie_id"`
	Model     string         `gorm:"column:model;index" json:"model"`
	Dims      int            `gorm:"column:dims" json:"dims"`
	Embedding datatypes.JSON `gorm:"column:embedding;type:jsonb;not null" json:"embedding"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MovieEmbedding) TableName() string { return "movie_embeddings" }

func EncodeVector(vec []float32) (datatypes.JSON, error) {
	b, err := json.Marshal(vec)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func DecodeVector(raw datatypes.JSON) ([]float32, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, err
	}
	return vec, nil
}
