package steps

import (
	"context"
	"strings"
	"time"

	"github.com/yungbote/cukee-curation/internal/inference/engine"
	"github.com/yungbote/cukee-curation/internal/observability"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
)

// RefusalMessage is returned for prompts outside movie curation.
const RefusalMessage = "영화 추천과 관련된 질문에만 답변할 수 있습니다."

type Verdict struct {
	Allowed        bool
	RefusalMessage string
}

func allow() Verdict { return Verdict{Allowed: true} }

// Guard decides whether a user prompt is on topic.
type Guard interface {
	CheckInput(ctx context.Context, prompt string) (Verdict, error)
}

// TextGenerator is the slice of an inference route the pipeline needs.
type TextGenerator interface {
	Generate(ctx context.Context, messages []engine.Message, opts engine.GenerateOptions) (string, error)
}

// NoopGuard allows everything.
type NoopGuard struct{}

func (NoopGuard) CheckInput(context.Context, string) (Verdict, error) { return allow(), nil }

// LLMGuard asks a small classification model for ALLOW or REFUSE.
type LLMGuard struct {
	Model TextGenerator
}

const guardSystemPrompt = `You classify user requests for a Korean movie curation service.
Answer ALLOW if the request is about movies, moods for watching movies, genres, actors, directors, or recommendations.
Answer REFUSE for anything else (coding, homework, politics, personal advice, harmful content).
Reply with exactly one word: ALLOW or REFUSE.`

func (g LLMGuard) CheckInput(ctx context.Context, prompt string) (Verdict, error) {
	if strings.TrimSpace(prompt) == "" {
		return allow(), nil
	}
	out, err := g.Model.Generate(ctx, []engine.Message{
		engine.System(guardSystemPrompt),
		engine.User(prompt),
	}, engine.GenerateOptions{Temperature: engine.Float(0), MaxTokens: 4})
	if err != nil {
		return Verdict{}, err
	}
	answer := strings.ToUpper(strings.TrimSpace(Sanitize(out, SanitizeOptions{})))
	if strings.HasPrefix(answer, "REFUSE") {
		return Verdict{Allowed: false, RefusalMessage: RefusalMessage}, nil
	}
	return allow(), nil
}

// FailOpenGuard wraps a Guard so that errors, panics and timeouts all allow
// the prompt through.
type FailOpenGuard struct {
	Inner   Guard
	Timeout time.Duration
	Log     *logger.Logger
}

func (g FailOpenGuard) Check(ctx context.Context, prompt string) (v Verdict) {
	if g.Inner == nil {
		return allow()
	}
	defer func() {
		if r := recover(); r != nil {
			if g.Log != nil {
				g.Log.Error("guardrail panicked; allowing", "panic", r)
			}
			observability.RecordGuardrail("error")
			v = allow()
		}
	}()

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}
	v, err := g.Inner.CheckInput(ctx, prompt)
	if err != nil {
		if g.Log != nil {
			g.Log.Warn("guardrail failed; allowing", "error", err)
		}
		observability.RecordGuardrail("error")
		return allow()
	}
	if !v.Allowed {
		if strings.TrimSpace(v.RefusalMessage) == "" {
			v.RefusalMessage = RefusalMessage
		}
		observability.RecordGuardrail("blocked")
		return v
	}
	observability.RecordGuardrail("allowed")
	return v
}
