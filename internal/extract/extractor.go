package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/order-analyzer/constants"
)

const (
	MethodNative    = "native"
	MethodPdftotext = "pdftotext"
)

type Config struct {
	Backend   string // "native" (default) | "pdftotext"
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	TempDir   string // scratch space for the pdftotext backend; empty = os.TempDir()
}

// Extractor pulls the text layers out of a PDF held in memory.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the command runner used by the pdftotext backend.
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Backend == "" {
		cfg.Backend = MethodNative
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	e := &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract returns the concatenated, normalized text of every page in document order.
// Bytes without a PDF header fail with ErrNotPDF, unparseable documents with
// ErrUnreadable, and documents without a text layer with ErrEmptyContent.
func (e *Extractor) Extract(ctx context.Context, pdf []byte) (Result, error) {
	start := time.Now()
	res := Result{Method: e.cfg.Backend}

	if !constants.HasPDFMagic(pdf) {
		e.logger.Warn("extract.not_pdf", "bytes", len(pdf))
		return res, ErrNotPDF
	}

	var (
		text  string
		pages int
		warns []string
		err   error
	)
	switch e.cfg.Backend {
	case MethodNative:
		text, pages, err = e.native(pdf)
	case MethodPdftotext:
		text, pages, warns, err = e.pdfToText(ctx, pdf)
	default:
		return res, fmt.Errorf("unsupported extract backend: %q", e.cfg.Backend)
	}
	res.Duration = time.Since(start)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		e.logger.Error("extract.failed", "method", e.cfg.Backend, "error", err, "elapsed_ms", res.Duration.Milliseconds())
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	if inspected, ierr := inspectPageCount(pdf); ierr != nil {
		res.Warnings = append(res.Warnings, "page inspection: "+ierr.Error())
	} else if pages == 0 {
		pages = inspected
	} else if inspected != pages {
		res.Warnings = append(res.Warnings, fmt.Sprintf("page count mismatch: %s=%d inspect=%d", e.cfg.Backend, pages, inspected))
	}
	res.Pages = pages
	res.Text = Normalize(text)

	if res.Text == "" {
		e.logger.Warn("extract.empty_content", "method", e.cfg.Backend, "pages", pages)
		return res, ErrEmptyContent
	}

	e.logger.Info("extract.ok",
		"method", e.cfg.Backend,
		"pages", res.Pages,
		"chars", len([]rune(res.Text)),
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
