package engine

import (
	"errors"
	"fmt"

	"github.com/yungbote/cukee-curation/internal/platform/httpx"
)

var (
	// ErrTimeout means the upstream did not answer before the deadline.
	ErrTimeout = errors.New("upstream timeout")
	// ErrUnavailable means the upstream refused, failed, or is tripped open.
	ErrUnavailable = errors.New("upstream unavailable")
)

// UpstreamError tags an engine failure with its category while keeping the
// underlying cause reachable through errors.Is / errors.As.
type UpstreamError struct {
	Kind error
	Op   string
	Err  error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() []error { return []error{e.Kind, e.Err} }

// Classify wraps err as an UpstreamError. Deadlines become ErrTimeout,
// everything else ErrUnavailable. Already classified errors pass through.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	kind := ErrUnavailable
	if httpx.IsTimeout(err) {
		kind = ErrTimeout
	}
	return &UpstreamError{Kind: kind, Op: op, Err: err}
}

// IsUpstream reports whether err is a classified upstream failure.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable)
}
