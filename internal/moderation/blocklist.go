package moderation

import (
	"context"
	"strings"
	"unicode"
)

// Blocklist is a local oracle for development and tests: text containing any listed
// term as a whole word is Unsafe. It never fails.
type Blocklist struct {
	terms map[string]struct{}
}

func NewBlocklist(terms ...string) *Blocklist {
	b := &Blocklist{terms: make(map[string]struct{}, len(terms))}
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			b.terms[term] = struct{}{}
		}
	}
	return b
}

func (b *Blocklist) Classify(ctx context.Context, text string) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Unsafe, ErrUnavailable
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, word := range words {
		if _, blocked := b.terms[word]; blocked {
			return Unsafe, nil
		}
	}
	return Safe, nil
}
