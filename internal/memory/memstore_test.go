package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/PulseInsights-Org/pulse-application-layer/internal/models"
)

func seed(t *testing.T, s *MemStore, orgID string, intakeID uuid.UUID, title string, vec []float32) *models.Memory {
	t.Helper()
	m := &models.Memory{
		IntakeID:  intakeID,
		OrgID:     orgID,
		Title:     title,
		Summary:   "summary",
		Metadata:  []byte(`{}`),
		Embedding: vec,
	}
	if err := s.Append(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	s := NewMemStore()
	m := seed(t, s, "org-a", uuid.New(), "a", nil)

	if m.ID == uuid.Nil {
		t.Error("append must assign an id")
	}
	if m.CreatedAt.IsZero() {
		t.Error("append must stamp created_at")
	}
}

func TestGetByIDScoped(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	m := seed(t, s, "org-a", uuid.New(), "a", nil)

	got, err := s.GetByID(ctx, "org-a", m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "a" {
		t.Errorf("title = %q", got.Title)
	}

	if _, err := s.GetByID(ctx, "org-b", m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-org get: got %v, want ErrNotFound", err)
	}
}

func TestListByOrgFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	intakeA := uuid.New()

	seed(t, s, "org-a", intakeA, "first", nil)
	seed(t, s, "org-a", uuid.New(), "second", nil)
	seed(t, s, "org-b", uuid.New(), "other org", nil)

	all, err := s.ListByOrg(ctx, "org-a", nil, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("list = %d rows, want 2", len(all))
	}

	byIntake, err := s.ListByOrg(ctx, "org-a", &intakeA, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(byIntake) != 1 || byIntake[0].Title != "first" {
		t.Errorf("intake filter returned %d rows", len(byIntake))
	}

	page, err := s.ListByOrg(ctx, "org-a", nil, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 {
		t.Errorf("offset page = %d rows, want 1", len(page))
	}

	empty, err := s.ListByOrg(ctx, "org-a", nil, 10, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("out-of-range offset returned %d rows", len(empty))
	}
}

func TestSearchRanksByCosine(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	seed(t, s, "org-a", uuid.New(), "aligned", []float32{1, 0})
	seed(t, s, "org-a", uuid.New(), "diagonal", []float32{1, 1})
	seed(t, s, "org-a", uuid.New(), "no vector", nil)
	seed(t, s, "org-b", uuid.New(), "other org", []float32{1, 0})

	results, err := s.Search(ctx, "org-a", []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("search returned %d, want 2 (vectorless and cross-org rows excluded)", len(results))
	}
	if results[0].Memory.Title != "aligned" {
		t.Errorf("top result = %q, want aligned", results[0].Memory.Title)
	}
	if results[0].Score <= results[1].Score {
		t.Error("results must be ordered by descending score")
	}

	topOne, _ := s.Search(ctx, "org-a", []float32{1, 0}, 1)
	if len(topOne) != 1 {
		t.Errorf("top_k=1 returned %d rows", len(topOne))
	}
}

func TestCountByOrg(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	seed(t, s, "org-a", uuid.New(), "a", nil)
	seed(t, s, "org-a", uuid.New(), "b", nil)
	seed(t, s, "org-b", uuid.New(), "c", nil)

	n, err := s.CountByOrg(ctx, "org-a")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}
