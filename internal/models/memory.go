package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Memory is the structured extraction result derived from one intake.
// Rows are append-only; nothing in the pipeline updates or deletes them.
type Memory struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	IntakeID  uuid.UUID       `json:"intake_id" db:"intake_id"`
	OrgID     string          `json:"org_id" db:"org_id"`
	Title     string          `json:"title" db:"title"`
	Summary   string          `json:"summary" db:"summary"`
	Metadata  json.RawMessage `json:"metadata" db:"metadata"`
	Embedding []float32       `json:"-" db:"embedding"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
