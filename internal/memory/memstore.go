package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PulseInsights-Org/pulse-application-layer/internal/models"
)

// MemStore is the in-memory Store used by tests. Search scores by
// cosine similarity like the Postgres implementation.
type MemStore struct {
	mu   sync.Mutex
	rows []models.Memory
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Append(_ context.Context, m *models.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.rows = append(s.rows, *m)
	return nil
}

func (s *MemStore) GetByID(_ context.Context, orgID string, id uuid.UUID) (*models.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rows {
		if s.rows[i].ID == id && s.rows[i].OrgID == orgID {
			m := s.rows[i]
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) ListByOrg(_ context.Context, orgID string, intakeID *uuid.UUID, limit, offset int) ([]models.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}

	var matched []models.Memory
	for _, m := range s.rows {
		if m.OrgID != orgID {
			continue
		}
		if intakeID != nil && m.IntakeID != *intakeID {
			continue
		}
		matched = append(matched, m)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemStore) Search(_ context.Context, orgID string, queryVec []float32, topK int) ([]SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if topK <= 0 {
		topK = 10
	}

	var results []SearchResult
	for _, m := range s.rows {
		if m.OrgID != orgID || len(m.Embedding) == 0 {
			continue
		}
		results = append(results, SearchResult{Memory: m, Score: cosine(queryVec, m.Embedding)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *MemStore) CountByOrg(_ context.Context, orgID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, m := range s.rows {
		if m.OrgID == orgID {
			n++
		}
	}
	return n, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
