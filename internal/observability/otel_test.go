package observability

import "testing"

func TestOtelHeaders(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-api-key=abc, broken, =nokey,tenant=cukee")
	h := otelHeaders()
	if len(h) != 2 || h["x-api-key"] != "abc" || h["tenant"] != "cukee" {
		t.Fatalf("unexpected headers: %v", h)
	}
}

func TestSampleRatioClamped(t *testing.T) {
	t.Setenv("OTEL_SAMPLER_RATIO", "4")
	if got := sampleRatio(); got != 1 {
		t.Fatalf("sampleRatio: got=%f want=1", got)
	}
	t.Setenv("OTEL_SAMPLER_RATIO", "-1")
	if got := sampleRatio(); got != 0 {
		t.Fatalf("sampleRatio: got=%f want=0", got)
	}
}
