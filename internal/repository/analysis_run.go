package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-analyzer/constants"
	"github.com/joseph-ayodele/order-analyzer/internal/entity"
)

// ErrRunNotFound is returned by Get for unknown ids.
var ErrRunNotFound = errors.New("analysis run not found")

// RunStart describes the input of a run before any stage executes.
type RunStart struct {
	Provider  string
	Model     string
	SizeBytes int64
	SHA256    string
}

// RunOutcome is what is known when a run ends, successfully or not.
type RunOutcome struct {
	Pages      int
	TextChars  int
	LineItems  int
	Confidence string
	Elapsed    time.Duration
}

type AnalysisRunRepository interface {
	Start(ctx context.Context, in RunStart) (*entity.AnalysisRun, error)
	FinishSuccess(ctx context.Context, runID uuid.UUID, out RunOutcome) error
	FinishFailure(ctx context.Context, runID uuid.UUID, code, message string, out RunOutcome) error
	Get(ctx context.Context, runID uuid.UUID) (*entity.AnalysisRun, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.AnalysisRun, error)
}

type analysisRunRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewAnalysisRunRepository(db *sql.DB, log *slog.Logger) AnalysisRunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &analysisRunRepo{db: db, log: log}
}

func (r *analysisRunRepo) Start(ctx context.Context, in RunStart) (*entity.AnalysisRun, error) {
	run := &entity.AnalysisRun{
		ID:        uuid.New(),
		StartedAt: time.Now().UTC(),
		Status:    string(constants.RunStatusRunning),
		Provider:  in.Provider,
		Model:     in.Model,
		SizeBytes: in.SizeBytes,
		SHA256:    in.SHA256,
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO analysis_run (id, started_at, status, provider, model, size_bytes, sha256)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), formatTime(run.StartedAt), run.Status, run.Provider, run.Model, run.SizeBytes, run.SHA256,
	)
	if err != nil {
		r.log.Error("analysis_run.start.failed", "error", err)
		return nil, fmt.Errorf("insert analysis_run: %w", err)
	}
	r.log.Debug("analysis_run.started", "run_id", run.ID, "size_bytes", run.SizeBytes)
	return run, nil
}

func (r *analysisRunRepo) FinishSuccess(ctx context.Context, runID uuid.UUID, out RunOutcome) error {
	err := r.finish(ctx, runID, constants.RunStatusOK, nil, nil, out)
	if err != nil {
		r.log.Error("analysis_run.finish_ok.failed", "run_id", runID, "error", err)
		return err
	}
	r.log.Debug("analysis_run.finished", "run_id", runID, "status", constants.RunStatusOK)
	return nil
}

func (r *analysisRunRepo) FinishFailure(ctx context.Context, runID uuid.UUID, code, message string, out RunOutcome) error {
	err := r.finish(ctx, runID, constants.RunStatusFailed, &code, &message, out)
	if err != nil {
		r.log.Error("analysis_run.finish_failed.failed", "run_id", runID, "error", err)
		return err
	}
	r.log.Debug("analysis_run.finished", "run_id", runID, "status", constants.RunStatusFailed, "error_code", code)
	return nil
}

func (r *analysisRunRepo) finish(ctx context.Context, runID uuid.UUID, status constants.RunStatus, code, message *string, out RunOutcome) error {
	var conf *string
	if out.Confidence != "" {
		conf = &out.Confidence
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE analysis_run
SET finished_at = ?, status = ?, error_code = ?, error_message = ?,
    pages = ?, text_chars = ?, line_items = ?, confidence = ?, elapsed_ms = ?
WHERE id = ?`,
		formatTime(time.Now().UTC()), string(status), code, message,
		out.Pages, out.TextChars, out.LineItems, conf, out.Elapsed.Milliseconds(),
		runID.String(),
	)
	if err != nil {
		return fmt.Errorf("update analysis_run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return nil
}

const selectRun = `
SELECT id, started_at, finished_at, status, error_code, error_message, provider, model,
       size_bytes, sha256, pages, text_chars, line_items, confidence, elapsed_ms
FROM analysis_run`

func (r *analysisRunRepo) Get(ctx context.Context, runID uuid.UUID) (*entity.AnalysisRun, error) {
	row := r.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, runID.String())
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

func (r *analysisRunRepo) ListRecent(ctx context.Context, limit int) ([]*entity.AnalysisRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, selectRun+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query analysis_run: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.AnalysisRun, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*entity.AnalysisRun, error) {
	var (
		run             entity.AnalysisRun
		id, started     string
		finished        sql.NullString
		code, msg, conf sql.NullString
	)
	err := s.Scan(&id, &started, &finished, &run.Status, &code, &msg, &run.Provider, &run.Model,
		&run.SizeBytes, &run.SHA256, &run.Pages, &run.TextChars, &run.LineItems, &conf, &run.ElapsedMs)
	if err != nil {
		return nil, err
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if finished.Valid {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		run.FinishedAt = &t
	}
	run.ErrorCode = nullable(code)
	run.ErrorMessage = nullable(msg)
	run.Confidence = nullable(conf)
	return &run, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// timeLayout has a fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }
