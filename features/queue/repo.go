package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"crewmatch/apps/backend/internal/apperr"
	"crewmatch/apps/backend/internal/domain"
)

type Repository interface {
	Enqueue(ctx context.Context, entityType domain.EntityType, entityID string, priority, maxAttempts int) (string, bool, error)
	ClaimBatch(ctx context.Context, n int) ([]Item, error)
	MarkCompleted(ctx context.Context, id, token string) error
	MarkFailed(ctx context.Context, id, token, message string, permanent bool, backoff time.Duration) (Outcome, error)
	Touch(ctx context.Context, id, token string) error
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error)
	ListFailed(ctx context.Context, limit int) ([]Item, error)
	Retry(ctx context.Context, id string) (*Item, error)
	Get(ctx context.Context, id string) (*Item, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const itemColumns = `id, entity_type, entity_id, priority, attempts, max_attempts, status, COALESCE(error_message, ''), run_after, created_at, updated_at, processed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (Item, error) {
	var it Item
	var processed sql.NullTime
	err := s.Scan(&it.ID, &it.EntityType, &it.EntityID, &it.Priority, &it.Attempts, &it.MaxAttempts,
		&it.Status, &it.ErrorMessage, &it.RunAfter, &it.CreatedAt, &it.UpdatedAt, &processed)
	if processed.Valid {
		it.ProcessedAt = &processed.Time
	}
	return it, err
}

// Enqueue inserts a pending item. It is a no-op when the entity already has
// a pending or processing item; created reports which case happened.
func (r *PostgresRepo) Enqueue(ctx context.Context, entityType domain.EntityType, entityID string, priority, maxAttempts int) (string, bool, error) {
	query := `INSERT INTO embedding_queue (entity_type, entity_id, priority, max_attempts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_type, entity_id) WHERE status IN ('pending', 'processing') DO NOTHING
		RETURNING id`
	var id string
	err := r.db.QueryRowContext(ctx, query, entityType, entityID, priority, maxAttempts).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// ClaimBatch moves up to n due pending items to processing in one statement.
// SKIP LOCKED plus the status guard keep concurrent claimers disjoint. Every
// claimed item carries a fresh claim token; writes that resolve the item must
// present it.
func (r *PostgresRepo) ClaimBatch(ctx context.Context, n int) ([]Item, error) {
	token := uuid.NewString()
	query := `UPDATE embedding_queue
		SET status = 'processing', claim_token = $2, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM embedding_queue
			WHERE status = 'pending' AND run_after <= NOW()
			ORDER BY priority ASC, created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		) AND status = 'pending'
		RETURNING ` + itemColumns
	rows, err := r.db.QueryContext(ctx, query, n, token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		it.ClaimToken = token
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING order is unspecified.
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority < items[j].Priority
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

// MarkCompleted resolves an item held under token. It returns ErrNotFound
// when the item was released or claimed again since.
func (r *PostgresRepo) MarkCompleted(ctx context.Context, id, token string) error {
	query := `UPDATE embedding_queue
		SET status = 'completed', error_message = NULL, claim_token = NULL, processed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'processing' AND claim_token = $2`
	return r.execClaimed(ctx, query, id, token)
}

// Touch refreshes updated_at of a held item so ReleaseStale measures
// inactivity from the start of its processing, not from the batch claim.
func (r *PostgresRepo) Touch(ctx context.Context, id, token string) error {
	query := `UPDATE embedding_queue
		SET updated_at = NOW()
		WHERE id = $1 AND status = 'processing' AND claim_token = $2`
	return r.execClaimed(ctx, query, id, token)
}

func (r *PostgresRepo) execClaimed(ctx context.Context, query, id, token string) error {
	res, err := r.db.ExecContext(ctx, query, id, token)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("processing queue item", id)
	}
	return nil
}

// MarkFailed records a failed attempt. The item returns to pending with an
// exponential run_after delay until attempts reaches max_attempts; permanent
// failures go straight to failed.
func (r *PostgresRepo) MarkFailed(ctx context.Context, id, token, message string, permanent bool, backoff time.Duration) (Outcome, error) {
	query := `UPDATE embedding_queue
		SET attempts = LEAST(attempts + 1, max_attempts),
			status = CASE WHEN $3::boolean OR attempts + 1 >= max_attempts THEN 'failed' ELSE 'pending' END,
			run_after = CASE WHEN $3::boolean OR attempts + 1 >= max_attempts THEN run_after
				ELSE NOW() + make_interval(secs => $4::double precision * power(2, attempts)) END,
			processed_at = CASE WHEN $3::boolean OR attempts + 1 >= max_attempts THEN NOW() ELSE processed_at END,
			error_message = $2,
			claim_token = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = 'processing' AND claim_token = $5
		RETURNING status, attempts, max_attempts`
	var out Outcome
	err := r.db.QueryRowContext(ctx, query, id, message, permanent, backoff.Seconds(), token).Scan(&out.Status, &out.Attempts, &out.MaxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return Outcome{}, apperr.NotFound("processing queue item", id)
	}
	return out, err
}

// ReleaseStale returns processing items not touched for olderThan to
// pending, counting the abandoned run as an attempt. The claim token is
// cleared so the previous holder can no longer resolve the item.
func (r *PostgresRepo) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `UPDATE embedding_queue
		SET attempts = LEAST(attempts + 1, max_attempts),
			status = CASE WHEN attempts + 1 >= max_attempts THEN 'failed' ELSE 'pending' END,
			error_message = 'processing abandoned',
			claim_token = NULL,
			updated_at = NOW()
		WHERE status = 'processing' AND updated_at < NOW() - make_interval(secs => $1::double precision)`
	res, err := r.db.ExecContext(ctx, query, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepo) ListFailed(ctx context.Context, limit int) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM embedding_queue WHERE status = 'failed' ORDER BY updated_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Retry resets a failed item to pending with a fresh attempt budget.
func (r *PostgresRepo) Retry(ctx context.Context, id string) (*Item, error) {
	query := `UPDATE embedding_queue
		SET status = 'pending', attempts = 0, error_message = NULL, run_after = NOW(), processed_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'failed'
		RETURNING ` + itemColumns
	it, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("failed queue item", id)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return nil, apperr.Validation("entity of item %s is already queued", id)
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM embedding_queue WHERE id = $1`
	it, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("queue item", id)
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *PostgresRepo) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM embedding_queue GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[Status]int{
		StatusPending:    0,
		StatusProcessing: 0,
		StatusCompleted:  0,
		StatusFailed:     0,
	}
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[s] = n
	}
	return counts, rows.Err()
}
