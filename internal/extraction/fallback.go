package extraction

import (
	"context"
	"log/slog"
)

// FallbackExtractor tries the primary provider and, on a transient
// failure, the fallback. Permanent rejections are not worth a second
// provider's opinion on different terms, so they pass through.
type FallbackExtractor struct {
	primary  Extractor
	fallback Extractor
}

func NewFallbackExtractor(primary, fallback Extractor) *FallbackExtractor {
	return &FallbackExtractor{primary: primary, fallback: fallback}
}

func (e *FallbackExtractor) Name() string { return e.primary.Name() + "+" + e.fallback.Name() }

func (e *FallbackExtractor) Extract(ctx context.Context, req Request) (*Result, error) {
	res, err := e.primary.Extract(ctx, req)
	if err == nil || IsPermanent(err) || ctx.Err() != nil {
		return res, err
	}

	slog.Warn("primary extractor failed, trying fallback",
		"primary", e.primary.Name(), "fallback", e.fallback.Name(), "error", err)
	return e.fallback.Extract(ctx, req)
}
