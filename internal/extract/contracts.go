package extract

import (
	"context"
	"time"
)

// TextExtractor is Stage 1: pdf bytes -> text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (Result, error)
}

type Result struct {
	Text     string
	Pages    int
	Method   string // "pdf-text"
	Duration time.Duration
	Warnings []string
}
