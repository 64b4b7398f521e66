package queue

import (
	"context"
	"time"

	"docflow-backend/internal/shared/telemetry"
)

// Message is one queued job.
type Message struct {
	JobID      int64
	RequestID  string
	EnqueuedAt time.Time
}

func newMessage(ctx context.Context, jobID int64, now time.Time) Message {
	return Message{JobID: jobID, RequestID: telemetry.RequestID(ctx), EnqueuedAt: now}
}

// Wait reports how long the message sat in the queue.
func (m Message) Wait(now time.Time) time.Duration {
	if m.EnqueuedAt.IsZero() {
		return 0
	}
	return now.Sub(m.EnqueuedAt)
}
