package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types published after every analysis.
const (
	TypeAnalysisCompleted = "analysis.completed"
	TypeAnalysisFailed    = "analysis.failed"
)

// AnalysisEvent is the message body published for one analysis run. It carries
// run metadata and a few header fields, never the extracted text.
type AnalysisEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	Type       string    `json:"type"`
	RunID      uuid.UUID `json:"run_id"`
	RequestID  string    `json:"req_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`

	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	SHA256    string `json:"sha256,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
	Pages     int    `json:"pages,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`

	// completed
	Confidence  string   `json:"confidence,omitempty"`
	LineItems   int      `json:"line_items"`
	OrderNumber *string  `json:"order_number,omitempty"`
	GrossTotal  *float64 `json:"gross_total,omitempty"`
	Currency    *string  `json:"currency,omitempty"`

	// failed
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, ev AnalysisEvent) error
	Close() error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AnalysisEvent) error { return nil }
func (NopPublisher) Close() error                                 { return nil }
