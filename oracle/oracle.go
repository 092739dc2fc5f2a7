// Package oracle adapts external text classifiers that describe a piece of
// content with a single short word. The word seeds the semantic prefix of an alias.
package oracle

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable is wrapped by every adapter failure: transport errors,
// non-200 replies, unparsable payloads and timeouts.
var ErrUnavailable = errors.New("oracle: unavailable")

// Oracle describes content with one word.
type Oracle interface {
	Describe(ctx context.Context, content string) (string, error)
}

// Func adapts a plain function to Oracle.
type Func func(ctx context.Context, content string) (string, error)

// Describe calls f.
func (f Func) Describe(ctx context.Context, content string) (string, error) {
	return f(ctx, content)
}

// Static answers every request with the same word.
type Static string

// Describe returns the static word, or ErrUnavailable when it is blank.
func (s Static) Describe(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Join(ErrUnavailable, err)
	}
	word := strings.TrimSpace(string(s))
	if word == "" {
		return "", ErrUnavailable
	}
	return word, nil
}

// Disabled always fails, forcing callers onto their fallback label.
type Disabled struct{}

func (Disabled) Describe(context.Context, string) (string, error) {
	return "", ErrUnavailable
}
