package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is the closed set of intake lifecycle states. Transitions are
// enforced by the intake store's conditional updates; ValidNext documents
// the state machine for in-memory implementations and tests.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusReady       Status = "ready"
	StatusIngesting   Status = "ingesting"
	StatusDone        Status = "done"
	StatusError       Status = "error"
)

func (s Status) Valid() bool {
	switch s {
	case StatusInitialized, StatusReady, StatusIngesting, StatusDone, StatusError:
		return true
	}
	return false
}

// Terminal reports whether no further worker transition applies.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// ValidNext reports whether the s -> next transition is part of the
// lifecycle. Failures return an ingesting row to ready rather than a
// separate failed state, so the same claim query picks it up again.
func (s Status) ValidNext(next Status) bool {
	switch s {
	case StatusInitialized:
		return next == StatusReady
	case StatusReady:
		return next == StatusIngesting
	case StatusIngesting:
		return next == StatusReady || next == StatusDone || next == StatusError
	}
	return false
}

// Intake is the lifecycle record for one submitted document.
type Intake struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OrgID          string     `json:"org_id" db:"org_id"`
	Status         Status     `json:"status" db:"status"`
	StoragePath    string     `json:"storage_path" db:"storage_path"`
	SizeBytes      *int64     `json:"size_bytes,omitempty" db:"size_bytes"`
	Checksum       *string    `json:"checksum,omitempty" db:"checksum"`
	IdempotencyKey string     `json:"idempotency_key" db:"idempotency_key"`
	Attempts       int        `json:"attempts" db:"attempts"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty" db:"next_retry_at"`
	LastError      *string    `json:"last_error,omitempty" db:"last_error"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}
