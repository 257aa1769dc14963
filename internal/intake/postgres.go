package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PulseInsights-Org/pulse-application-layer/internal/models"
)

const intakeColumns = `id, org_id, status, storage_path, size_bytes, checksum,
	idempotency_key, attempts, next_retry_at, last_error, created_at, updated_at`

// PostgresStore implements Store over the intakes table. All transitions
// are single UPDATE statements with status guards in the WHERE clause;
// the database is the only point of mutual exclusion.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func scanIntake(row pgx.Row) (*models.Intake, error) {
	var it models.Intake
	err := row.Scan(
		&it.ID, &it.OrgID, &it.Status, &it.StoragePath, &it.SizeBytes, &it.Checksum,
		&it.IdempotencyKey, &it.Attempts, &it.NextRetryAt, &it.LastError, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *PostgresStore) CreateOrGet(ctx context.Context, it *models.Intake) (*models.Intake, bool, error) {
	// ON CONFLICT DO NOTHING keeps the insert race-free: of N concurrent
	// inits with the same key exactly one row wins, the rest re-select it.
	row := s.db.QueryRow(ctx,
		`INSERT INTO intakes (id, org_id, status, storage_path, idempotency_key)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (org_id, idempotency_key) DO NOTHING
		 RETURNING `+intakeColumns,
		it.ID, it.OrgID, models.StatusInitialized, it.StoragePath, it.IdempotencyKey,
	)

	created, err := scanIntake(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert intake: %w", err)
	}

	existing, err := scanIntake(s.db.QueryRow(ctx,
		`SELECT `+intakeColumns+` FROM intakes WHERE org_id = $1 AND idempotency_key = $2`,
		it.OrgID, it.IdempotencyKey,
	))
	if err != nil {
		return nil, false, fmt.Errorf("select intake by idempotency key: %w", err)
	}
	return existing, false, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, orgID string, id uuid.UUID) (*models.Intake, error) {
	it, err := scanIntake(s.db.QueryRow(ctx,
		`SELECT `+intakeColumns+` FROM intakes WHERE id = $1 AND org_id = $2`,
		id, orgID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get intake: %w", err)
	}
	return it, nil
}

func (s *PostgresStore) Finalize(ctx context.Context, id uuid.UUID, checksum string, sizeBytes int64) (*models.Intake, error) {
	it, err := scanIntake(s.db.QueryRow(ctx,
		`UPDATE intakes
		 SET checksum = $2, size_bytes = $3, status = $4, next_retry_at = now(), updated_at = now()
		 WHERE id = $1 AND checksum IS NULL AND status = $5
		 RETURNING `+intakeColumns,
		id, checksum, sizeBytes, models.StatusReady, models.StatusInitialized,
	))
	if err == nil {
		return it, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("finalize intake: %w", err)
	}

	// The conditional update did not apply: either the row is unknown,
	// or it was finalized before. A replay with the same checksum is a
	// no-op success; a different checksum must never be accepted.
	it, err = scanIntake(s.db.QueryRow(ctx,
		`SELECT `+intakeColumns+` FROM intakes WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get intake after finalize: %w", err)
	}
	if it.Checksum != nil && *it.Checksum == checksum {
		return it, nil
	}
	return nil, ErrChecksumMismatch
}

func (s *PostgresStore) ClaimNextReady(ctx context.Context, now time.Time, limit int) ([]*models.Intake, error) {
	if limit <= 0 {
		limit = 1
	}

	// Compare-and-swap, not select-then-update: the subselect locks
	// candidate rows (SKIP LOCKED keeps concurrent pollers from
	// serializing) and the UPDATE only returns rows it actually flipped.
	rows, err := s.db.Query(ctx,
		`UPDATE intakes SET status = $1, updated_at = now()
		 WHERE id IN (
			SELECT id FROM intakes
			WHERE status = $2 AND next_retry_at <= $3
			ORDER BY next_retry_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+intakeColumns,
		models.StatusIngesting, models.StatusReady, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim ready intakes: %w", err)
	}
	defer rows.Close()

	var claimed []*models.Intake
	for rows.Next() {
		it, err := scanIntake(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed intake: %w", err)
		}
		claimed = append(claimed, it)
	}
	return claimed, rows.Err()
}

func (s *PostgresStore) MarkDone(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE intakes SET status = $2, last_error = NULL, updated_at = now()
		 WHERE id = $1 AND status = $3`,
		id, models.StatusDone, models.StatusIngesting,
	)
	if err != nil {
		return fmt.Errorf("mark intake done: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, nextRetryAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE intakes
		 SET status = $2, attempts = attempts + 1, last_error = $3, next_retry_at = $4, updated_at = now()
		 WHERE id = $1 AND status = $5`,
		id, models.StatusReady, errMsg, nextRetryAt, models.StatusIngesting,
	)
	if err != nil {
		return fmt.Errorf("mark intake failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) MarkDead(ctx context.Context, id uuid.UUID, errMsg string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE intakes
		 SET status = $2, attempts = attempts + 1, last_error = $3, updated_at = now()
		 WHERE id = $1 AND status = $4`,
		id, models.StatusError, errMsg, models.StatusIngesting,
	)
	if err != nil {
		return fmt.Errorf("mark intake dead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) ReclaimStale(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE intakes
		 SET status = $1, attempts = attempts + 1,
		     last_error = 'reclaimed: claim went stale without completion',
		     next_retry_at = now(), updated_at = now()
		 WHERE status = $2 AND updated_at < $3`,
		models.StatusReady, models.StatusIngesting, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale intakes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context, orgID string) (map[models.Status]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT status, COUNT(*) FROM intakes WHERE org_id = $1 GROUP BY status`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("count intakes by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var status models.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
