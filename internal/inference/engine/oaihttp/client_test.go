package oaihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/cukee-curation/internal/inference/config"
	"github.com/yungbote/cukee-curation/internal/inference/engine"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, v any) *http.Response {
	b, _ := json.Marshal(v)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(b)),
	}
}

func testConfig() config.EngineConfig {
	return config.EngineConfig{
		Type:    "oai_http",
		BaseURL: "http://upstream",
		APIKey:  "secret",
		Timeout: config.Duration{Duration: 2 * time.Second},
	}
}

func TestEmbeddings(t *testing.T) {
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.Path != "/v1/embeddings" {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			var in embeddingsRequest
			if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
				t.Fatalf("decode req: %v", err)
			}
			if in.Model != "upstream-model" {
				t.Fatalf("model=%q", in.Model)
			}
			// Reversed order with explicit indices.
			return jsonResponse(http.StatusOK, map[string]any{
				"data": []map[string]any{
					{"embedding": []float64{0.3, 0.4}, "index": 1},
					{"embedding": []float64{0.1, 0.2}, "index": 0},
				},
			}), nil
		}),
	}

	e, err := NewWithHTTPClient(testConfig(), client)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	vecs, err := e.Embed(context.Background(), "upstream-model", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != float32(0.1) || vecs[1][0] != float32(0.3) {
		t.Fatalf("unexpected vectors: %v", vecs)
	}
}

func TestGenerateTextSendsSamplingParams(t *testing.T) {
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if got := req.Header.Get("Authorization"); got != "Bearer secret" {
				t.Fatalf("authorization: got=%q", got)
			}
			var in chatCompletionRequest
			if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
				t.Fatalf("decode req: %v", err)
			}
			if in.TopK != 50 || in.TopP == nil || *in.TopP != 0.9 || in.MaxTokens != 128 || in.Temperature == nil || *in.Temperature != 0.7 {
				t.Fatalf("unexpected sampling params: %+v", in)
			}
			if len(in.Messages) != 2 || in.Messages[0].Role != "system" {
				t.Fatalf("unexpected messages: %+v", in.Messages)
			}
			return jsonResponse(http.StatusOK, map[string]any{
				"choices": []map[string]any{{"message": map[string]any{"content": "좋은 영화들이에요."}}},
			}), nil
		}),
	}

	e, err := NewWithHTTPClient(testConfig(), client)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	out, err := e.GenerateText(context.Background(), "m", []engine.Message{
		engine.System("sys"),
		engine.User("hi"),
		{Role: "user", Content: "   "},
	}, engine.GenerateOptions{Temperature: engine.Float(0.7), TopP: engine.Float(0.9), TopK: 50, MaxTokens: 128})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if out != "좋은 영화들이에요." {
		t.Fatalf("unexpected text: %q", out)
	}
}

func TestGenerateTextSendsZeroTemperature(t *testing.T) {
	tests := []struct {
		name     string
		opts     engine.GenerateOptions
		wantKey  bool
		wantBody string
	}{
		{"explicit zero", engine.GenerateOptions{Temperature: engine.Float(0), MaxTokens: 4}, true, `"temperature":0`},
		{"unset", engine.GenerateOptions{MaxTokens: 4}, false, `"temperature"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body string
			client := &http.Client{
				Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
					raw, _ := io.ReadAll(req.Body)
					body = string(raw)
					return jsonResponse(http.StatusOK, map[string]any{
						"choices": []map[string]any{{"message": map[string]any{"content": "ALLOW"}}},
					}), nil
				}),
			}
			e, err := NewWithHTTPClient(testConfig(), client)
			if err != nil {
				t.Fatalf("NewWithHTTPClient: %v", err)
			}
			if _, err := e.GenerateText(context.Background(), "m", []engine.Message{engine.User("hi")}, tt.opts); err != nil {
				t.Fatalf("GenerateText: %v", err)
			}
			if got := strings.Contains(body, tt.wantBody); got != tt.wantKey {
				t.Fatalf("body %q contains %s: got=%v want=%v", body, tt.wantBody, got, tt.wantKey)
			}
			if strings.Contains(body, `"top_p"`) {
				t.Fatalf("unset top_p should be omitted: %q", body)
			}
		})
	}
}

func TestGenerateTextWithoutMessagesIsUpstreamError(t *testing.T) {
	e, err := NewWithHTTPClient(testConfig(), &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			t.Fatalf("no request expected")
			return nil, nil
		}),
	})
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	_, err = e.GenerateText(context.Background(), "m", []engine.Message{engine.User("  ")}, engine.GenerateOptions{})
	var ue *engine.UpstreamError
	if !errors.As(err, &ue) || !errors.Is(err, engine.ErrUnavailable) {
		t.Fatalf("expected UpstreamError, got %T %v", err, err)
	}
}

func TestGenerateTextClassifiesFailures(t *testing.T) {
	tests := []struct {
		name string
		rt   roundTripperFunc
		want error
	}{
		{
			name: "service unavailable",
			rt: func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusServiceUnavailable, map[string]any{"error": "loading"}), nil
			},
			want: engine.ErrUnavailable,
		},
		{
			name: "gateway timeout",
			rt: func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusGatewayTimeout, map[string]any{}), nil
			},
			want: engine.ErrTimeout,
		},
		{
			name: "deadline",
			rt: func(req *http.Request) (*http.Response, error) {
				<-req.Context().Done()
				return nil, req.Context().Err()
			},
			want: engine.ErrTimeout,
		},
		{
			name: "empty completion",
			rt: func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, map[string]any{"choices": []any{}}), nil
			},
			want: engine.ErrUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Timeout = config.Duration{Duration: 50 * time.Millisecond}
			e, err := NewWithHTTPClient(cfg, &http.Client{Transport: tt.rt})
			if err != nil {
				t.Fatalf("NewWithHTTPClient: %v", err)
			}
			_, err = e.GenerateText(context.Background(), "m", []engine.Message{engine.User("hi")}, engine.GenerateOptions{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("unexpected error: got=%v want=%v", err, tt.want)
			}
			var ue *engine.UpstreamError
			if !errors.As(err, &ue) || !strings.HasPrefix(ue.Op, "oai_http.") {
				t.Fatalf("expected UpstreamError with op, got %T %v", err, err)
			}
		})
	}
}
