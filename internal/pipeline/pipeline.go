package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-analyzer/constants"
	"github.com/joseph-ayodele/order-analyzer/internal/async"
	"github.com/joseph-ayodele/order-analyzer/internal/common"
	"github.com/joseph-ayodele/order-analyzer/internal/entity"
	"github.com/joseph-ayodele/order-analyzer/internal/extract"
	"github.com/joseph-ayodele/order-analyzer/internal/llm"
	"github.com/joseph-ayodele/order-analyzer/internal/repository"
)

// Pipeline runs extract -> prompt -> complete -> parse for one document.
// It holds no per-request state, so one instance serves concurrent calls.
type Pipeline struct {
	extractor extract.TextExtractor
	completer llm.Completer
	logger    *slog.Logger

	runs     repository.AnalysisRunRepository
	events   async.Queue
	provider string
	model    string
}

type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRunLog records run metadata for every Analyze call.
func WithRunLog(r repository.AnalysisRunRepository) Option {
	return func(p *Pipeline) { p.runs = r }
}

// WithEvents enqueues an analysis event after every Analyze call.
func WithEvents(q async.Queue) Option {
	return func(p *Pipeline) { p.events = q }
}

// WithModelInfo labels run records and events with the completion backend.
func WithModelInfo(provider, model string) Option {
	return func(p *Pipeline) {
		p.provider = provider
		p.model = model
	}
}

func New(ex extract.TextExtractor, c llm.Completer, opts ...Option) *Pipeline {
	p := &Pipeline{extractor: ex, completer: c, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Messages shown to clients. Diagnostics go into AppError.Details.
const (
	msgNoFile         = "No file uploaded"
	msgNoText         = "Could not extract text from PDF"
	msgNoTextDetails  = "The PDF might be empty or contain only images"
	msgAnalyzeFailed  = "Failed to analyze PDF"
	msgAnalyzeAborted = "Analysis was aborted"
)

// Bounds on how much of an unparseable model reply is kept for inspection.
const (
	rawLogRunes     = 8 << 10
	rawDetailsRunes = 2 << 10
)

// Analyze turns PDF bytes into an AnalysisResult. Stages run strictly in
// order; a failing stage ends the run and nothing partial is returned. Every
// error is a *common.AppError.
func (p *Pipeline) Analyze(ctx context.Context, pdf []byte) (*entity.AnalysisResult, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
	}
	start := time.Now()

	if len(pdf) == 0 {
		p.logger.Warn("pipeline.upload.empty", "req_id", rid)
		return nil, common.NewAppErrorWithDetails(common.CodeUpload, msgNoFile, "the uploaded document is empty", common.ErrInvalidInput)
	}

	sum := sha256.Sum256(pdf)
	tr := &trace{
		reqID:     rid,
		start:     start,
		sizeBytes: int64(len(pdf)),
		sha256:    hex.EncodeToString(sum[:]),
	}
	p.begin(ctx, tr)
	if tr.runID != uuid.Nil {
		ctx = common.WithRunID(ctx, tr.runID.String())
	}

	res, err := p.run(ctx, tr, pdf)
	p.finish(ctx, tr, res, err)
	return res, err
}

// trace collects what is known about a run as it progresses.
type trace struct {
	reqID     string
	runID     uuid.UUID
	start     time.Time
	sizeBytes int64
	sha256    string
	pages     int
	textChars int
}

func (p *Pipeline) run(ctx context.Context, tr *trace, pdf []byte) (*entity.AnalysisResult, error) {
	// 1) text extraction
	ex, err := p.extractor.Extract(ctx, pdf)
	tr.pages = ex.Pages
	if err != nil {
		return nil, p.extractError(tr, err)
	}
	tr.textChars = len([]rune(ex.Text))
	p.logger.Info("pipeline.extract.ok",
		"req_id", tr.reqID,
		"method", ex.Method,
		"pages", ex.Pages,
		"chars", tr.textChars,
		"warnings", ex.Warnings,
	)

	// 2) prompt
	prompt := llm.BuildPrompt(ex.Text)

	// 3) completion
	raw, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, p.completionError(tr, err)
	}

	// 4) parse
	parsed, err := llm.ParseResponse(raw)
	if err != nil {
		var me *llm.MalformedResponseError
		if errors.As(err, &me) {
			p.logger.Error("pipeline.parse.malformed",
				"req_id", tr.reqID,
				"reason", me.Reason,
				"raw_len", len(me.Raw),
				"raw", head(me.Raw, rawLogRunes),
			)
			details := me.Error() + "; raw reply: " + head(me.Raw, rawDetailsRunes)
			return nil, common.NewAppErrorWithDetails(common.CodeMalformedResponse, msgAnalyzeFailed, details, err)
		}
		p.logger.Error("pipeline.parse.failed", "req_id", tr.reqID, "error", err)
		return nil, common.NewAppError(common.CodeInternal, msgAnalyzeFailed, err)
	}
	if len(parsed.Dropped) > 0 {
		p.logger.Warn("pipeline.parse.lenient", "req_id", tr.reqID, "dropped", parsed.Dropped)
	}

	return entity.NewAnalysisResult(parsed.Header, parsed.Items, parsed.Confidence, head(ex.Text, constants.ProvenanceChars)), nil
}

func (p *Pipeline) extractError(tr *trace, err error) error {
	p.logger.Warn("pipeline.extract.failed", "req_id", tr.reqID, "error", err)
	switch {
	case errors.Is(err, extract.ErrEmptyContent):
		return common.NewAppErrorWithDetails(common.CodeEmptyContent, msgNoText, msgNoTextDetails, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return common.NewAppError(common.CodeInternal, msgAnalyzeAborted, err)
	default:
		return common.NewAppErrorWithDetails(common.CodeExtraction, msgNoText, err.Error(), err)
	}
}

func (p *Pipeline) completionError(tr *trace, err error) error {
	var ce *llm.CompletionError
	if !errors.As(err, &ce) {
		p.logger.Error("pipeline.complete.failed", "req_id", tr.reqID, "error", err)
		return common.NewAppError(common.CodeCompletionTransient, msgAnalyzeFailed, err)
	}
	code := common.CodeCompletionTransient
	if !ce.Transient() {
		code = common.CodeCompletionTerminal
	}
	p.logger.Error("pipeline.complete.failed",
		"req_id", tr.reqID,
		"provider", ce.Provider,
		"class", ce.Class,
		"reason", ce.Reason,
		"status", ce.Status,
	)
	return common.NewAppErrorWithDetails(code, msgAnalyzeFailed, ce.Error(), err)
}

// head returns at most n runes of s.
func head(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
