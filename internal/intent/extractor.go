// Package intent extracts search keyword phrases from free-form user text.
package intent

import "context"

// Extractor returns the keyword phrases of a request. No phrases is a valid
// answer and means the caller should fall back to the raw text.
type Extractor interface {
	ExtractIntent(ctx context.Context, text string) ([]string, error)
}

// Func adapts a function to the Extractor interface.
type Func func(ctx context.Context, text string) ([]string, error)

// ExtractIntent implements Extractor.
func (f Func) ExtractIntent(ctx context.Context, text string) ([]string, error) {
	return f(ctx, text)
}
