package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"

	"github.com/yungbote/cukee-curation/internal/inference/engine"
)

// Engine is a deterministic stand-in for a real model server. Embeddings are
// hashed from the input; generations are picked from a fixed set of lines.
type Engine struct {
	EmbeddingDims int
}

func New(dims int) *Engine {
	if dims <= 0 {
		dims = 8
	}
	return &Engine{EmbeddingDims: dims}
}

func (e *Engine) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, s := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, engine.Classify("mock.embed", err)
		}
		h := sha256.Sum256([]byte(model + "\n" + s))
		vec := make([]float32, e.EmbeddingDims)
		var norm float64
		for j := 0; j < e.EmbeddingDims; j++ {
			u := binary.LittleEndian.Uint32(h[(j*4)%(len(h)-3):])
			vec[j] = float32(u%10_000)/10_000.0 - 0.5
			norm += float64(vec[j]) * float64(vec[j])
		}
		if norm > 0 {
			inv := float32(1 / math.Sqrt(norm))
			for j := range vec {
				vec[j] *= inv
			}
		}
		out[i] = vec
	}
	return out, nil
}

var lines = []string{
	"오늘 밤 분위기에 딱 맞는 영화들로 골라봤어요.",
	"이 조합이면 주말이 순식간에 지나갈 거예요!",
	"잔잔하게 스며드는 여운이 있는 컬렉션이에요.",
	"한 편씩 보다 보면 어느새 다 보게 될걸요?",
}

func (e *Engine) GenerateText(ctx context.Context, model string, messages []engine.Message, opts engine.GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", engine.Classify("mock.generate", err)
	}
	var user string
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(messages[i].Role, "user") {
			user = messages[i].Content
			break
		}
	}
	h := sha256.Sum256([]byte(model + "\n" + user))
	return lines[int(h[0])%len(lines)], nil
}
