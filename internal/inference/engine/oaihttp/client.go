package oaihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/cukee-curation/internal/inference/config"
	"github.com/yungbote/cukee-curation/internal/inference/engine"
)

// Engine talks to an OpenAI-compatible server (vLLM, TGI, llama.cpp).
// Every returned error is an *engine.UpstreamError.
type Engine struct {
	baseURL string
	apiKey  string

	chatCompletionsPath string
	embeddingsPath      string

	timeout time.Duration

	httpClient *http.Client
}

func New(cfg config.EngineConfig) (*Engine, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("oai_http: base_url required")
	}

	chatPath := strings.TrimSpace(cfg.ChatCompletionsPath)
	if chatPath == "" {
		chatPath = "/v1/chat/completions"
	}
	embPath := strings.TrimSpace(cfg.EmbeddingsPath)
	if embPath == "" {
		embPath = "/v1/embeddings"
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Engine{
		baseURL:             baseURL,
		apiKey:              strings.TrimSpace(cfg.APIKey),
		chatCompletionsPath: chatPath,
		embeddingsPath:      embPath,
		timeout:             timeout,
		httpClient:          &http.Client{Transport: tr},
	}, nil
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(cfg config.EngineConfig, httpClient *http.Client) (*Engine, error) {
	e, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		e.httpClient = httpClient
	}
	return e, nil
}

// ---------------- Embeddings ----------------

type embeddingsRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (e *Engine) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	var resp embeddingsResponse
	if err := e.doJSON(ctx, http.MethodPost, e.embeddingsPath, embeddingsRequest{Model: model, Input: inputs}, &resp); err != nil {
		return nil, engine.Classify("oai_http.embed", err)
	}

	out := make([][]float32, len(inputs))
	for pos, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) || out[idx] != nil {
			// Some servers omit indices but keep ordering.
			idx = pos
		}
		if idx >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[idx] = vec
	}

	for i := range out {
		if len(out[i]) == 0 {
			return nil, engine.Classify("oai_http.embed", fmt.Errorf("embeddings missing index=%d (model=%s)", i, model))
		}
	}
	return out, nil
}

// ---------------- Text generation (Chat Completions) ----------------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`

	// top_k is a vLLM/SGLang extension to the OpenAI protocol.
	TopK int `json:"top_k,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content,omitempty"`
		} `json:"message,omitempty"`
		Text string `json:"text,omitempty"`
	} `json:"choices"`
}

func (e *Engine) GenerateText(ctx context.Context, model string, messages []engine.Message, opts engine.GenerateOptions) (string, error) {
	chatMsgs := toChatMessages(messages)
	if len(chatMsgs) == 0 {
		return "", engine.Classify("oai_http.generate", errors.New("no messages"))
	}

	reqBody := chatCompletionRequest{
		Model:       model,
		Messages:    chatMsgs,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		TopK:        opts.TopK,
		MaxTokens:   opts.MaxTokens,
		Stop:        opts.Stop,
	}

	var resp chatCompletionResponse
	if err := e.doJSON(ctx, http.MethodPost, e.chatCompletionsPath, reqBody, &resp); err != nil {
		return "", engine.Classify("oai_http.generate", err)
	}

	text := extractChatText(resp)
	if strings.TrimSpace(text) == "" {
		return "", engine.Classify("oai_http.generate", errors.New("empty upstream completion"))
	}
	return text, nil
}

func toChatMessages(messages []engine.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		role := strings.TrimSpace(m.Role)
		content := strings.TrimSpace(m.Content)
		if role == "" || content == "" {
			continue
		}
		out = append(out, chatMessage{Role: role, Content: content})
	}
	return out
}

func extractChatText(resp chatCompletionResponse) string {
	for _, c := range resp.Choices {
		if strings.TrimSpace(c.Message.Content) != "" {
			return c.Message.Content
		}
		if strings.TrimSpace(c.Text) != "" {
			return c.Text
		}
	}
	return ""
}

// ---------------- HTTP helpers ----------------

func (e *Engine) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
}

func (e *Engine) doJSON(ctx context.Context, method string, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	ctx2, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, method, e.baseURL+path, &buf)
	if err != nil {
		return err
	}
	e.setHeaders(req)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
