package extractor

import (
	"context"
	"errors"
)

// Input is the document handed to an extractor.
type Input struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Extractor turns document bytes into structured findings.
// Calls may be slow and may fail; callers bound them with a context deadline.
type Extractor interface {
	Extract(ctx context.Context, in Input) (map[string]any, error)
}

var (
	// ErrNotConfigured is returned by Unavailable.
	ErrNotConfigured = errors.New("extractor not configured")
	// ErrNoText is returned when a document yields no readable text.
	ErrNoText = errors.New("document has no extractable text")
)

// Unavailable fails every call. It stands in when no provider is configured so
// uploads are still recorded, as failed, and can be re-analyzed later.
type Unavailable struct{}

func (Unavailable) Extract(ctx context.Context, _ Input) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNotConfigured
}

// Func adapts a plain function to Extractor.
type Func func(ctx context.Context, in Input) (map[string]any, error)

func (f Func) Extract(ctx context.Context, in Input) (map[string]any, error) {
	return f(ctx, in)
}

var (
	_ Extractor = Unavailable{}
	_ Extractor = Func(nil)
)
