package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"crewmatch/apps/backend/internal/apperr"
	"crewmatch/apps/backend/internal/config"
	"crewmatch/apps/backend/internal/domain"
)

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// Notice is the body published on TopicEmbeddingQueued.
type Notice struct {
	ID         string            `json:"id"`
	EntityType domain.EntityType `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
}

type Options struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

type Service struct {
	repo Repository
	pub  EventPublisher
	opts Options
}

func NewService(repo Repository, pub EventPublisher, opts Options) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &Service{repo: repo, pub: pub, opts: opts}
}

// Enqueue queues an entity for (re-)embedding. Re-enqueuing an entity that
// is already pending or processing returns created=false.
func (s *Service) Enqueue(ctx context.Context, entityType domain.EntityType, entityID string, priority int) (string, bool, error) {
	entityID = strings.TrimSpace(entityID)
	if !entityType.Valid() {
		return "", false, apperr.Validation("unknown entity type %q", entityType)
	}
	if entityID == "" {
		return "", false, apperr.Validation("entity id is required")
	}
	if priority < 0 {
		return "", false, apperr.Validation("priority must not be negative")
	}

	id, created, err := s.repo.Enqueue(ctx, entityType, entityID, priority, s.opts.MaxAttempts)
	if err != nil {
		return "", false, err
	}
	if created {
		s.notify(ctx, Notice{ID: id, EntityType: entityType, EntityID: entityID})
	}
	return id, created, nil
}

// notify is best effort; workers still find the item on their next poll.
func (s *Service) notify(ctx context.Context, n Notice) {
	if s.pub == nil {
		return
	}
	body, _ := json.Marshal(n)
	if err := s.pub.Publish(config.TopicEmbeddingQueued, body); err != nil {
		slog.WarnContext(ctx, "failed to publish queue notice", "error", err, "queue_item_id", n.ID)
	}
}

func (s *Service) ClaimBatch(ctx context.Context, n int) ([]Item, error) {
	if n <= 0 {
		return nil, apperr.Validation("batch size must be positive")
	}
	return s.repo.ClaimBatch(ctx, n)
}

func (s *Service) Complete(ctx context.Context, item Item) error {
	return s.repo.MarkCompleted(ctx, item.ID, item.ClaimToken)
}

// Touch marks the start of work on a claimed item. ErrNotFound means the
// claim was lost to ReleaseStale and the item must not be processed.
func (s *Service) Touch(ctx context.Context, item Item) error {
	return s.repo.Touch(ctx, item.ID, item.ClaimToken)
}

// Fail records cause against the item. Validation and not-found causes are
// terminal immediately. When the item ends up failed the returned error
// wraps ErrQueueExhausted.
func (s *Service) Fail(ctx context.Context, item Item, cause error) (Outcome, error) {
	permanent := apperr.Permanent(cause)
	out, err := s.repo.MarkFailed(ctx, item.ID, item.ClaimToken, cause.Error(), permanent, s.opts.RetryBackoff)
	if err != nil {
		return Outcome{}, err
	}
	if out.Status == StatusFailed {
		return out, apperr.QueueExhausted(item.ID, out.Attempts, cause.Error())
	}
	return out, nil
}

func (s *Service) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.repo.ReleaseStale(ctx, olderThan)
}

func (s *Service) ListFailed(ctx context.Context, limit int) ([]Item, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListFailed(ctx, limit)
}

func (s *Service) Retry(ctx context.Context, id string) (*Item, error) {
	it, err := s.repo.Retry(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, Notice{ID: it.ID, EntityType: it.EntityType, EntityID: it.EntityID})
	return it, nil
}

func (s *Service) Counts(ctx context.Context) (map[Status]int, error) {
	return s.repo.CountByStatus(ctx)
}
