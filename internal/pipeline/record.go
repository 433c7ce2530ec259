package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-analyzer/internal/async"
	"github.com/joseph-ayodele/order-analyzer/internal/common"
	"github.com/joseph-ayodele/order-analyzer/internal/entity"
	"github.com/joseph-ayodele/order-analyzer/internal/events"
	"github.com/joseph-ayodele/order-analyzer/internal/repository"
)

// bookkeepingTimeout bounds run-log writes made after the request context
// may already be done.
const bookkeepingTimeout = 5 * time.Second

func (p *Pipeline) begin(ctx context.Context, tr *trace) {
	if p.runs == nil {
		tr.runID = uuid.New()
		return
	}
	run, err := p.runs.Start(ctx, repository.RunStart{
		Provider:  p.provider,
		Model:     p.model,
		SizeBytes: tr.sizeBytes,
		SHA256:    tr.sha256,
	})
	if err != nil {
		// the run log is auxiliary; analysis continues without it
		p.logger.Warn("pipeline.runlog.start_failed", "req_id", tr.reqID, "error", err)
		tr.runID = uuid.New()
		return
	}
	tr.runID = run.ID
}

// finish records the outcome in the run log and publishes the event. Neither
// can change the result returned to the caller.
func (p *Pipeline) finish(ctx context.Context, tr *trace, res *entity.AnalysisResult, runErr error) {
	elapsed := time.Since(tr.start)
	out := repository.RunOutcome{Pages: tr.pages, TextChars: tr.textChars, Elapsed: elapsed}
	if res != nil {
		out.LineItems = len(res.LineItems)
		out.Confidence = string(res.Confidence)
	}

	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	if runErr != nil {
		code := common.CodeOf(runErr)
		summary, details := common.Describe(runErr)
		p.logger.Warn("pipeline.analyze.failed",
			"req_id", tr.reqID,
			"run_id", tr.runID,
			"code", code,
			"error", summary,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		if p.runs != nil {
			if err := p.runs.FinishFailure(bctx, tr.runID, code, details, out); err != nil {
				p.logger.Warn("pipeline.runlog.finish_failed", "req_id", tr.reqID, "error", err)
			}
		}
		p.emit(bctx, tr, events.AnalysisEvent{
			Type:         events.TypeAnalysisFailed,
			ErrorCode:    code,
			ErrorMessage: summary,
		}, out)
		return
	}

	p.logger.Info("pipeline.analyze.ok",
		"req_id", tr.reqID,
		"run_id", tr.runID,
		"line_items", out.LineItems,
		"confidence", out.Confidence,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	if p.runs != nil {
		if err := p.runs.FinishSuccess(bctx, tr.runID, out); err != nil {
			p.logger.Warn("pipeline.runlog.finish_failed", "req_id", tr.reqID, "error", err)
		}
	}
	p.emit(bctx, tr, events.AnalysisEvent{
		Type:        events.TypeAnalysisCompleted,
		Confidence:  out.Confidence,
		LineItems:   out.LineItems,
		OrderNumber: res.Header.OrderNumber,
		GrossTotal:  res.Header.GrossTotal,
		Currency:    res.Header.Currency,
	}, out)
}

func (p *Pipeline) emit(ctx context.Context, tr *trace, ev events.AnalysisEvent, out repository.RunOutcome) {
	if p.events == nil {
		return
	}
	ev.EventID = uuid.New()
	ev.RunID = tr.runID
	ev.RequestID = tr.reqID
	ev.OccurredAt = time.Now().UTC()
	ev.Provider = p.provider
	ev.Model = p.model
	ev.SHA256 = tr.sha256
	ev.SizeBytes = tr.sizeBytes
	ev.Pages = out.Pages
	ev.ElapsedMs = out.Elapsed.Milliseconds()
	if err := p.events.Enqueue(ctx, async.Job{Event: ev, SubmittedAt: time.Now(), TraceID: tr.reqID}); err != nil {
		p.logger.Warn("pipeline.events.enqueue_failed", "req_id", tr.reqID, "type", ev.Type, "error", err)
	}
}
