package intake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PulseInsights-Org/pulse-application-layer/internal/models"
)

// MemStore is an in-memory Store with the same conditional-transition
// semantics as the Postgres implementation. Used by tests and local
// development; the mutex plays the role of the row lock.
type MemStore struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*models.Intake
	byKey map[string]uuid.UUID
}

func NewMemStore() *MemStore {
	return &MemStore{
		rows:  make(map[uuid.UUID]*models.Intake),
		byKey: make(map[string]uuid.UUID),
	}
}

func dedupKey(orgID, idempotencyKey string) string {
	return orgID + "\x00" + idempotencyKey
}

func cloneIntake(it *models.Intake) *models.Intake {
	cp := *it
	if it.SizeBytes != nil {
		v := *it.SizeBytes
		cp.SizeBytes = &v
	}
	if it.Checksum != nil {
		v := *it.Checksum
		cp.Checksum = &v
	}
	if it.NextRetryAt != nil {
		v := *it.NextRetryAt
		cp.NextRetryAt = &v
	}
	if it.LastError != nil {
		v := *it.LastError
		cp.LastError = &v
	}
	return &cp
}

func (s *MemStore) CreateOrGet(_ context.Context, it *models.Intake) (*models.Intake, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupKey(it.OrgID, it.IdempotencyKey)
	if id, seen := s.byKey[key]; seen {
		return cloneIntake(s.rows[id]), false, nil
	}

	now := time.Now().UTC()
	row := cloneIntake(it)
	row.Status = models.StatusInitialized
	row.CreatedAt = now
	row.UpdatedAt = now
	s.rows[row.ID] = row
	s.byKey[key] = row.ID
	return cloneIntake(row), true, nil
}

func (s *MemStore) GetByID(_ context.Context, orgID string, id uuid.UUID) (*models.Intake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok || row.OrgID != orgID {
		return nil, ErrNotFound
	}
	return cloneIntake(row), nil
}

func (s *MemStore) Finalize(_ context.Context, id uuid.UUID, checksum string, sizeBytes int64) (*models.Intake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if row.Checksum != nil {
		if *row.Checksum == checksum {
			return cloneIntake(row), nil
		}
		return nil, ErrChecksumMismatch
	}
	if row.Status != models.StatusInitialized {
		return nil, ErrInvalidState
	}

	now := time.Now().UTC()
	row.Checksum = &checksum
	row.SizeBytes = &sizeBytes
	row.Status = models.StatusReady
	row.NextRetryAt = &now
	row.UpdatedAt = now
	return cloneIntake(row), nil
}

func (s *MemStore) ClaimNextReady(_ context.Context, now time.Time, limit int) ([]*models.Intake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 1
	}

	var eligible []*models.Intake
	for _, row := range s.rows {
		if row.Status == models.StatusReady && row.NextRetryAt != nil && !row.NextRetryAt.After(now) {
			eligible = append(eligible, row)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].NextRetryAt.Before(*eligible[j].NextRetryAt)
	})
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	var claimed []*models.Intake
	for _, row := range eligible {
		row.Status = models.StatusIngesting
		row.UpdatedAt = time.Now().UTC()
		claimed = append(claimed, cloneIntake(row))
	}
	return claimed, nil
}

func (s *MemStore) transition(id uuid.UUID, mutate func(*models.Intake)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok || row.Status != models.StatusIngesting {
		return ErrInvalidState
	}
	mutate(row)
	row.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemStore) MarkDone(_ context.Context, id uuid.UUID) error {
	return s.transition(id, func(row *models.Intake) {
		row.Status = models.StatusDone
		row.LastError = nil
	})
}

func (s *MemStore) MarkFailed(_ context.Context, id uuid.UUID, errMsg string, nextRetryAt time.Time) error {
	return s.transition(id, func(row *models.Intake) {
		row.Status = models.StatusReady
		row.Attempts++
		row.LastError = &errMsg
		retry := nextRetryAt
		row.NextRetryAt = &retry
	})
}

func (s *MemStore) MarkDead(_ context.Context, id uuid.UUID, errMsg string) error {
	return s.transition(id, func(row *models.Intake) {
		row.Status = models.StatusError
		row.Attempts++
		row.LastError = &errMsg
	})
}

func (s *MemStore) ReclaimStale(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reclaimed := 0
	now := time.Now().UTC()
	for _, row := range s.rows {
		if row.Status == models.StatusIngesting && row.UpdatedAt.Before(cutoff) {
			row.Status = models.StatusReady
			row.Attempts++
			msg := "reclaimed: claim went stale without completion"
			row.LastError = &msg
			retry := now
			row.NextRetryAt = &retry
			row.UpdatedAt = now
			reclaimed++
		}
	}
	return reclaimed, nil
}

func (s *MemStore) CountByStatus(_ context.Context, orgID string) (map[models.Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[models.Status]int)
	for _, row := range s.rows {
		if row.OrgID == orgID {
			counts[row.Status]++
		}
	}
	return counts, nil
}
