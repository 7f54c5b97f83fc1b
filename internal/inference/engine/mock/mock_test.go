package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/yungbote/cukee-curation/internal/inference/engine"
)

func TestEmbedIsDeterministicAndNormalized(t *testing.T) {
	e := New(16)
	a, err := e.Embed(context.Background(), "m", []string{"기생충", "기생충", "라라랜드"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i := range a[0] {
		if a[0][i] != a[1][i] {
			t.Fatalf("same input produced different vectors at %d", i)
		}
	}
	var norm float64
	for _, v := range a[2] {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-4 {
		t.Fatalf("vector not normalized: norm=%f", norm)
	}
}

func TestGenerateHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(0).GenerateText(ctx, "m", []engine.Message{engine.User("x")}, engine.GenerateOptions{})
	if !errors.Is(err, engine.ErrUnavailable) {
		t.Fatalf("expected unavailable on canceled ctx: %v", err)
	}
}
