package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error carries the HTTP status and machine-readable code a handler should
// answer with. Services return plain errors; Classify maps them.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Rule maps an error predicate to a status/code pair.
type Rule struct {
	Match  func(error) bool
	Status int
	Code   string
}

// Is builds a Rule matching errors.Is(err, target).
func Is(target error, status int, code string) Rule {
	return Rule{Match: func(err error) bool { return errors.Is(err, target) }, Status: status, Code: code}
}

// Classify resolves err against rules in order. An *Error already in the
// chain wins; anything unmatched is a 500.
func Classify(err error, rules ...Rule) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	for _, r := range rules {
		if r.Match != nil && r.Match(err) {
			return New(r.Status, r.Code, err)
		}
	}
	return New(http.StatusInternalServerError, "internal_error", err)
}
