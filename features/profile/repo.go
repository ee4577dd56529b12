// Package profile reads candidate and opportunity records and writes the
// embeddings computed for them.
package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"crewmatch/apps/backend/internal/apperr"
	"crewmatch/apps/backend/internal/domain"
)

// SearchQuery narrows a vector search. Empty whitelists do not filter.
type SearchQuery struct {
	Threshold            float64
	Limit                int
	VerificationTiers    []string
	AvailabilityStatuses []string
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const candidateColumns = `id, first_name, last_name, primary_position, secondary_positions, position_category,
	years_experience, nationality, certifications, highest_license, visas, preferred_regions, contract_types,
	yacht_types, yacht_size_min, yacht_size_max, salary_min, salary_max, salary_currency, is_smoker,
	has_visible_tattoos, is_couple, availability_status, available_from, verification_tier, summary,
	COALESCE(embedding_text, ''), embedding_updated_at`

const opportunityColumns = `id, title, vessel_name, vessel_type, vessel_size, contract_type, primary_region,
	salary_min, salary_max, salary_currency, start_date, description, requirements, status, published_at,
	COALESCE(embedding_text, ''), embedding_updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCandidate(s scanner, extra ...any) (domain.Candidate, error) {
	var c domain.Candidate
	var years, sizeMin, sizeMax, salMin, salMax sql.NullInt64
	var smoker, tattoos sql.NullBool
	var availableFrom, embeddedAt sql.NullTime

	dest := []any{
		&c.ID, &c.FirstName, &c.LastName, &c.PrimaryPosition, pq.Array(&c.SecondaryPositions), &c.PositionCategory,
		&years, &c.Nationality, pq.Array(&c.Certifications), &c.HighestLicense, pq.Array(&c.Visas),
		pq.Array(&c.PreferredRegions), pq.Array(&c.ContractTypes), pq.Array(&c.YachtTypes),
		&sizeMin, &sizeMax, &salMin, &salMax, &c.SalaryCurrency, &smoker, &tattoos, &c.IsCouple,
		&c.AvailabilityStatus, &availableFrom, &c.VerificationTier, &c.Summary,
		&c.Embedding.Text, &embeddedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return c, err
	}

	c.YearsExperience = intPtr(years)
	c.YachtSizeMin = intPtr(sizeMin)
	c.YachtSizeMax = intPtr(sizeMax)
	c.SalaryMin = intPtr(salMin)
	c.SalaryMax = intPtr(salMax)
	c.IsSmoker = boolPtr(smoker)
	c.HasVisibleTattoos = boolPtr(tattoos)
	if availableFrom.Valid {
		c.AvailableFrom = &availableFrom.Time
	}
	if embeddedAt.Valid {
		c.Embedding.UpdatedAt = &embeddedAt.Time
	}
	return c, c.Validate()
}

func scanOpportunity(s scanner, extra ...any) (domain.Opportunity, error) {
	var o domain.Opportunity
	var size, salMin, salMax sql.NullInt64
	var startDate, publishedAt, embeddedAt sql.NullTime
	var requirements []byte

	dest := []any{
		&o.ID, &o.Title, &o.VesselName, &o.VesselType, &size, &o.ContractType, &o.PrimaryRegion,
		&salMin, &salMax, &o.Currency, &startDate, &o.Description, &requirements, &o.Status, &publishedAt,
		&o.Embedding.Text, &embeddedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return o, err
	}

	o.VesselSize = intPtr(size)
	o.SalaryMin = intPtr(salMin)
	o.SalaryMax = intPtr(salMax)
	if startDate.Valid {
		o.StartDate = &startDate.Time
	}
	if publishedAt.Valid {
		o.PublishedAt = publishedAt.Time
	}
	if embeddedAt.Valid {
		o.Embedding.UpdatedAt = &embeddedAt.Time
	}
	if len(requirements) > 0 {
		if err := json.Unmarshal(requirements, &o.Requirements); err != nil {
			return o, apperr.Validation("opportunity %s: malformed requirements: %v", o.ID, err)
		}
	}
	return o, o.Validate()
}

// nullVector scans a nullable vector column into v.
type nullVector struct {
	v *[]float32
}

func (n nullVector) Scan(src any) error {
	if src == nil {
		*n.v = nil
		return nil
	}
	var vec pgvector.Vector
	if err := vec.Scan(src); err != nil {
		return err
	}
	*n.v = vec.Slice()
	return nil
}

func (r *PostgresRepo) GetCandidate(ctx context.Context, id string) (*domain.Candidate, error) {
	query := `SELECT ` + candidateColumns + `, embedding FROM candidates WHERE id = $1`
	var vec []float32
	c, err := scanCandidate(r.db.QueryRowContext(ctx, query, id), nullVector{&vec})
	if err != nil {
		return nil, translate(err, "candidate", id)
	}
	c.Embedding.Vector = vec
	return &c, nil
}

// GetCandidateBundle loads a candidate with its documents, notes and
// references in a stable order.
func (r *PostgresRepo) GetCandidateBundle(ctx context.Context, id string) (*domain.CandidateBundle, error) {
	c, err := r.GetCandidate(ctx, id)
	if err != nil {
		return nil, err
	}
	b := &domain.CandidateBundle{Candidate: *c}

	if b.Documents, err = r.listDocuments(ctx, id); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if b.Notes, err = r.listNotes(ctx, id); err != nil {
		return nil, fmt.Errorf("list interview notes: %w", err)
	}
	if b.References, err = r.listReferences(ctx, id); err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	return b, nil
}

func (r *PostgresRepo) listDocuments(ctx context.Context, candidateID string) ([]domain.Document, error) {
	query := `SELECT id, candidate_id, type, name, visibility, COALESCE(extracted_text, ''), created_at
		FROM documents WHERE candidate_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.CandidateID, &d.Type, &d.Name, &d.Visibility, &d.ExtractedText, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) listNotes(ctx context.Context, candidateID string) ([]domain.InterviewNote, error) {
	query := `SELECT id, title, content, visibility, include_in_embedding, created_at
		FROM interview_notes WHERE candidate_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []domain.InterviewNote
	for rows.Next() {
		var n domain.InterviewNote
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.Visibility, &n.IncludeInEmbedding, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (r *PostgresRepo) listReferences(ctx context.Context, candidateID string) ([]domain.Reference, error) {
	query := `SELECT id, referee_name, relationship, vessel_name, feedback, rating, is_verified, visibility
		FROM candidate_references WHERE candidate_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []domain.Reference
	for rows.Next() {
		var ref domain.Reference
		var rating sql.NullInt64
		if err := rows.Scan(&ref.ID, &ref.RefereeName, &ref.Relationship, &ref.VesselName, &ref.Feedback, &rating, &ref.IsVerified, &ref.Visibility); err != nil {
			return nil, err
		}
		ref.Rating = intPtr(rating)
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// GetCandidatesByIDs returns the candidates found, in no particular order.
func (r *PostgresRepo) GetCandidatesByIDs(ctx context.Context, ids []string) ([]domain.Candidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE id = ANY($1::uuid[])`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, translate(err, "candidates", strings.Join(ids, ","))
	}
	defer rows.Close()

	var out []domain.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SearchCandidates returns embedded candidates whose cosine similarity to
// vec is at least q.Threshold, most similar first.
func (r *PostgresRepo) SearchCandidates(ctx context.Context, vec []float32, q SearchQuery) ([]domain.ScoredCandidate, error) {
	query := `SELECT ` + candidateColumns + `, 1 - (embedding <=> $1) AS similarity
		FROM candidates
		WHERE embedding IS NOT NULL
			AND 1 - (embedding <=> $1) >= $2
			AND ($3::text[] IS NULL OR verification_tier = ANY($3))
			AND ($4::text[] IS NULL OR availability_status = ANY($4))
		ORDER BY embedding <=> $1
		LIMIT $5`
	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(vec), q.Threshold,
		nullableArray(q.VerificationTiers), nullableArray(q.AvailabilityStatuses), q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ScoredCandidate
	for rows.Next() {
		var sim float64
		c, err := scanCandidate(rows, &sim)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ScoredCandidate{Candidate: c, Similarity: sim})
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetOpportunity(ctx context.Context, id string) (*domain.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + `, embedding FROM opportunities WHERE id = $1`
	var vec []float32
	o, err := scanOpportunity(r.db.QueryRowContext(ctx, query, id), nullVector{&vec})
	if err != nil {
		return nil, translate(err, "opportunity", id)
	}
	o.Embedding.Vector = vec
	return &o, nil
}

// ListOpenOpportunities returns open listings, newest first.
func (r *PostgresRepo) ListOpenOpportunities(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities
		WHERE status = 'open' ORDER BY published_at DESC NULLS LAST LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	query := `SELECT id, candidate_id, type, name, visibility, COALESCE(extracted_text, ''), created_at FROM documents WHERE id = $1`
	var d domain.Document
	err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.CandidateID, &d.Type, &d.Name, &d.Visibility, &d.ExtractedText, &d.CreatedAt)
	if err != nil {
		return nil, translate(err, "document", id)
	}
	return &d, nil
}

func (r *PostgresRepo) SaveCandidateEmbedding(ctx context.Context, id string, vec []float32, text string) error {
	return r.saveEmbedding(ctx, "candidates", "candidate", id, vec, text)
}

func (r *PostgresRepo) SaveOpportunityEmbedding(ctx context.Context, id string, vec []float32, text string) error {
	return r.saveEmbedding(ctx, "opportunities", "opportunity", id, vec, text)
}

func (r *PostgresRepo) saveEmbedding(ctx context.Context, table, entity, id string, vec []float32, text string) error {
	query := `UPDATE ` + table + ` SET embedding = $2, embedding_text = $3, embedding_updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, pgvector.NewVector(vec), text)
	if err != nil {
		return translate(err, entity, id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

// ReplaceCVChunks deletes every chunk of documentID and inserts chunks in
// one transaction.
func (r *PostgresRepo) ReplaceCVChunks(ctx context.Context, documentID string, chunks []domain.CVChunkRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cv_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	insert := `INSERT INTO cv_chunks (document_id, chunk_index, chunk_text, start_offset, end_offset, section_type, section_weight, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, c := range chunks {
		_, err := tx.ExecContext(ctx, insert, documentID, c.ChunkIndex, c.Text, c.StartOffset, c.EndOffset,
			c.SectionType, c.SectionWeight, pgvector.NewVector(c.Vector))
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}
	return tx.Commit()
}

// CountEmbedded returns how many candidates and opportunities carry an
// embedding.
func (r *PostgresRepo) CountEmbedded(ctx context.Context) (candidates, opportunities int, err error) {
	query := `SELECT
		(SELECT COUNT(*) FROM candidates WHERE embedding IS NOT NULL),
		(SELECT COUNT(*) FROM opportunities WHERE embedding IS NOT NULL)`
	err = r.db.QueryRowContext(ctx, query).Scan(&candidates, &opportunities)
	return candidates, opportunities, err
}

func translate(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(entity, id)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "22P02" {
		return apperr.Validation("invalid %s id %q", entity, id)
	}
	return err
}

func nullableArray(s []string) any {
	if len(s) == 0 {
		return nil
	}
	return pq.Array(s)
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func boolPtr(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	return &b.Bool
}
