package extract

import (
	"context"
	"errors"
	"time"
)

// TextExtractor is stage 1 of the pipeline: PDF bytes -> plain text.
type TextExtractor interface {
	Extract(ctx context.Context, pdf []byte) (Result, error)
}

type Result struct {
	Text     string
	Pages    int
	Method   string // "native" | "pdftotext"
	Duration time.Duration
	Warnings []string
}

var (
	// ErrNotPDF means the bytes do not carry a PDF header.
	ErrNotPDF = errors.New("not a pdf document")
	// ErrUnreadable means the document structure could not be parsed.
	ErrUnreadable = errors.New("pdf could not be parsed")
	// ErrEmptyContent means parsing succeeded but no text layer was found.
	ErrEmptyContent = errors.New("pdf contains no extractable text")
)
