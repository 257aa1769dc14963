package intake

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/PulseInsights-Org/pulse-application-layer/internal/models"
)

var (
	// ErrNotFound covers unknown intake ids (scoped by org).
	ErrNotFound = errors.New("intake: not found")
	// ErrChecksumMismatch is returned by Finalize when the row already
	// holds a different checksum. Finalize is replay-safe but never
	// content-mutable, so this is permanent and surfaced to the caller.
	ErrChecksumMismatch = errors.New("intake: checksum mismatch")
	// ErrInvalidState is returned when an operation targets a row whose
	// status does not admit it (e.g. uploading to a done intake).
	ErrInvalidState = errors.New("intake: invalid state for operation")
)

// Store exposes atomic lifecycle operations over intake rows, never raw
// row access. Every transition is a conditional update: it applies only
// when the row is still in the expected state, which is what makes each
// step safely replayable under retries and concurrent workers.
type Store interface {
	// CreateOrGet inserts a new initialized row or, when the
	// (org_id, idempotency_key) pair was already seen, returns the
	// existing row unchanged. Callers cannot observe which happened
	// beyond the created flag.
	CreateOrGet(ctx context.Context, it *models.Intake) (*models.Intake, bool, error)

	GetByID(ctx context.Context, orgID string, id uuid.UUID) (*models.Intake, error)

	// Finalize sets checksum/size exactly once and moves
	// initialized -> ready with next_retry_at = now. Replaying with the
	// same checksum is a no-op success; a different checksum is
	// ErrChecksumMismatch.
	Finalize(ctx context.Context, id uuid.UUID, checksum string, sizeBytes int64) (*models.Intake, error)

	// ClaimNextReady atomically flips up to limit rows with
	// status = ready and next_retry_at <= now to ingesting and returns
	// them. Two racing workers always yield exactly one winner per row.
	ClaimNextReady(ctx context.Context, now time.Time, limit int) ([]*models.Intake, error)

	// MarkDone moves ingesting -> done and clears last_error.
	MarkDone(ctx context.Context, id uuid.UUID) error

	// MarkFailed moves ingesting -> ready, increments attempts and
	// schedules the next claim eligibility.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, nextRetryAt time.Time) error

	// MarkDead moves ingesting -> error, the terminal give-up state used
	// once the retry budget is exhausted or the failure is permanent.
	MarkDead(ctx context.Context, id uuid.UUID, errMsg string) error

	// ReclaimStale returns ingesting rows untouched since before cutoff
	// to ready so a crashed worker's claim eventually expires. The cycle
	// counts as an attempt.
	ReclaimStale(ctx context.Context, cutoff time.Time) (int, error)

	// CountByStatus powers the admin stats endpoint.
	CountByStatus(ctx context.Context, orgID string) (map[models.Status]int, error)
}
