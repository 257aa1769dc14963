package memory

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/PulseInsights-Org/pulse-application-layer/internal/models"
)

var ErrNotFound = errors.New("memory: not found")

// SearchResult pairs a memory with its cosine similarity to the query.
type SearchResult struct {
	Memory models.Memory `json:"memory"`
	Score  float64       `json:"score"`
}

// Store is the append-only writer and reader of extraction results.
// There is deliberately no update or delete: memories are immutable once
// written, and are removed only by cascading intake deletion.
type Store interface {
	Append(ctx context.Context, m *models.Memory) error
	GetByID(ctx context.Context, orgID string, id uuid.UUID) (*models.Memory, error)
	ListByOrg(ctx context.Context, orgID string, intakeID *uuid.UUID, limit, offset int) ([]models.Memory, error)
	Search(ctx context.Context, orgID string, queryVec []float32, topK int) ([]SearchResult, error)
	CountByOrg(ctx context.Context, orgID string) (int, error)
}
