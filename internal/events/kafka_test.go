package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherWritesKeyedJSON(t *testing.T) {
	w := &recordingWriter{}
	p := newKafkaPublisher(w, "order-analyzer.analyses", nil)

	order := "A-123"
	ev := AnalysisEvent{
		EventID:     uuid.New(),
		Type:        TypeAnalysisCompleted,
		RunID:       uuid.New(),
		OccurredAt:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Confidence:  "high",
		LineItems:   2,
		OrderNumber: &order,
	}
	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, ev.RunID.String(), string(msg.Key))
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, TypeAnalysisCompleted, string(msg.Headers[0].Value))

	var got AnalysisEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, ev.RunID, got.RunID)
	assert.Equal(t, "A-123", *got.OrderNumber)
	assert.Empty(t, got.ErrorCode)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherWrapsWriteErrors(t *testing.T) {
	w := &recordingWriter{err: errors.New("leader not available")}
	p := newKafkaPublisher(w, "t", nil)

	err := p.Publish(context.Background(), AnalysisEvent{Type: TypeAnalysisFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis.failed")
	assert.Contains(t, err.Error(), "leader not available")
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	_, err := NewKafkaPublisher([]string{" ", ""}, "t", nil)
	require.Error(t, err)
	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "", nil)
	require.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "t", nil)
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}
