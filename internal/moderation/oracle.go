// Package moderation adapts external text-safety classifiers to a two-valued verdict.
package moderation

import (
	"context"
	"errors"
)

type Verdict int

const (
	Unsafe Verdict = iota
	Safe
)

func (v Verdict) String() string {
	if v == Safe {
		return "safe"
	}
	return "unsafe"
}

// ErrUnavailable wraps every failure to obtain a verdict: timeouts, transport errors,
// throttling and malformed responses. Callers must treat it as "no verdict yet".
var ErrUnavailable = errors.New("moderation oracle unavailable")

// Oracle classifies user text. Implementations honour ctx deadlines and do not retry;
// retry policy belongs to the caller.
type Oracle interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, text string) (Verdict, error)

func (f OracleFunc) Classify(ctx context.Context, text string) (Verdict, error) {
	return f(ctx, text)
}
