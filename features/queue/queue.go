package queue

import (
	"time"

	"crewmatch/apps/backend/internal/domain"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// DefaultPriority is used when callers do not pass one. Lower runs first.
const DefaultPriority = 5

// Item is one row of embedding_queue.
type Item struct {
	ID           string            `json:"id"`
	EntityType   domain.EntityType `json:"entity_type"`
	EntityID     string            `json:"entity_id"`
	Priority     int               `json:"priority"`
	Attempts     int               `json:"attempts"`
	MaxAttempts  int               `json:"max_attempts"`
	Status       Status            `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	RunAfter     time.Time         `json:"run_after"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	ProcessedAt  *time.Time        `json:"processed_at,omitempty"`

	// ClaimToken identifies the claim that moved the item to processing.
	ClaimToken string `json:"-"`
}

// Outcome is the state of an item after a failed attempt was recorded.
type Outcome struct {
	Status      Status
	Attempts    int
	MaxAttempts int
}
