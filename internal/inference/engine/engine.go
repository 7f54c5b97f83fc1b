package engine

import "context"

type Message struct {
	Role    string
	Content string
}

func System(content string) Message { return Message{Role: "system", Content: content} }
func User(content string) Message   { return Message{Role: "user", Content: content} }

// Float returns a pointer to v for GenerateOptions fields.
func Float(v float64) *float64 { return &v }

// GenerateOptions are sampling parameters. Nil pointers and zero ints leave
// the upstream default in place; a non-nil Temperature of 0 is sent as is.
type GenerateOptions struct {
	Temperature *float64
	TopP        *float64
	TopK        int
	MaxTokens   int
	Stop        []string
}

type Embedder interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float32, error)
}

type Generator interface {
	GenerateText(ctx context.Context, model string, messages []Message, opts GenerateOptions) (string, error)
}

type Engine interface {
	Embedder
	Generator
}
