package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/PulseInsights-Org/pulse-application-layer/internal/models"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, m *models.Memory) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	var embedding interface{}
	if len(m.Embedding) > 0 {
		embedding = pgvector.NewVector(m.Embedding)
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO memories (id, intake_id, org_id, title, summary, metadata, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		m.ID, m.IntakeID, m.OrgID, m.Title, m.Summary, m.Metadata, embedding,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, orgID string, id uuid.UUID) (*models.Memory, error) {
	var m models.Memory
	err := s.db.QueryRow(ctx,
		`SELECT id, intake_id, org_id, title, summary, metadata, created_at
		 FROM memories WHERE id = $1 AND org_id = $2`,
		id, orgID,
	).Scan(&m.ID, &m.IntakeID, &m.OrgID, &m.Title, &m.Summary, &m.Metadata, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return &m, nil
}

func (s *PostgresStore) ListByOrg(ctx context.Context, orgID string, intakeID *uuid.UUID, limit, offset int) ([]models.Memory, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, intake_id, org_id, title, summary, metadata, created_at
	          FROM memories WHERE org_id = $1`
	args := []interface{}{orgID}
	if intakeID != nil {
		query += ` AND intake_id = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`
		args = append(args, *intakeID, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var memories []models.Memory
	for rows.Next() {
		var m models.Memory
		if err := rows.Scan(&m.ID, &m.IntakeID, &m.OrgID, &m.Title, &m.Summary, &m.Metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func (s *PostgresStore) Search(ctx context.Context, orgID string, queryVec []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}

	embedding := pgvector.NewVector(queryVec)

	rows, err := s.db.Query(ctx,
		`SELECT id, intake_id, org_id, title, summary, metadata, created_at,
		        1 - (embedding <=> $1) AS score
		 FROM memories
		 WHERE org_id = $2 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		embedding, orgID, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Memory.ID, &r.Memory.IntakeID, &r.Memory.OrgID, &r.Memory.Title,
			&r.Memory.Summary, &r.Memory.Metadata, &r.Memory.CreatedAt, &r.Score); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PostgresStore) CountByOrg(ctx context.Context, orgID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM memories WHERE org_id = $1`, orgID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}
