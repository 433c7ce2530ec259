package async

import (
	"context"
	"time"

	"github.com/joseph-ayodele/order-analyzer/internal/events"
)

// Job is one event waiting to be published.
type Job struct {
	Event       events.AnalysisEvent
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
