package entity

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRun is the metadata recorded for one pipeline invocation.
// The extracted document content itself is never stored.
type AnalysisRun struct {
	ID           uuid.UUID  `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"`
	ErrorCode    *string    `json:"error_code,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	Provider     string     `json:"provider"`
	Model        string     `json:"model"`
	SizeBytes    int64      `json:"size_bytes"`
	SHA256       string     `json:"sha256,omitempty"`
	Pages        int        `json:"pages"`
	TextChars    int        `json:"text_chars"`
	LineItems    int        `json:"line_items"`
	Confidence   *string    `json:"confidence,omitempty"`
	ElapsedMs    int64      `json:"elapsed_ms"`
}
