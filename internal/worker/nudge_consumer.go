package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"crewmatch/apps/backend/features/queue"
	"crewmatch/apps/backend/internal/middleware"
)

type Waker interface {
	Wake()
}

// NudgeConsumer wakes idle workers when an enqueue notice arrives on NSQ.
// The queue table stays the source of truth; a lost notice only delays
// pickup until the next poll.
type NudgeConsumer struct {
	target Waker
}

func NewNudgeConsumer(target Waker) *NudgeConsumer {
	return &NudgeConsumer{target: target}
}

func (h *NudgeConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var n queue.Notice
	if err := json.Unmarshal(m.Body, &n); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := middleware.WithQueueItem(context.Background(), n.ID)
	slog.DebugContext(ctx, "queue notice received", "entity_type", n.EntityType, "entity_id", n.EntityID)
	h.target.Wake()
	return nil
}
