package envutil

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"", 5 * time.Second},
		{"90s", 90 * time.Second},
		{"30", 30 * time.Second},
		{"bogus", 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Setenv("ENVUTIL_TEST_DURATION", tt.raw)
			if got := Duration("ENVUTIL_TEST_DURATION", 5*time.Second); got != tt.want {
				t.Fatalf("Duration: got=%s want=%s", got, tt.want)
			}
		})
	}
}

func TestList(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_LIST", " a, ,b ,c")
	got := List("ENVUTIL_TEST_LIST", nil)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("List: got=%v", got)
	}
}

func TestBoolFallsBackOnGarbage(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_BOOL", "maybe")
	if got := Bool("ENVUTIL_TEST_BOOL", true); !got {
		t.Fatalf("Bool: got=%v want=true", got)
	}
}
