package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Request carries everything the extraction collaborator needs. The
// idempotency key and intake id let the collaborator dedup on its side;
// dedup is a shared responsibility, not solely the worker's.
type Request struct {
	OrgID          string
	IntakeID       uuid.UUID
	IdempotencyKey string
	Content        string
	Checksum       string
}

// Result is the structured extraction output persisted as a memory.
type Result struct {
	Title    string                 `json:"title"`
	Summary  string                 `json:"summary"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Extractor is the collaborator contract: content in, structured summary
// out. Implementations must respect ctx deadlines; a timeout is an
// ordinary transient failure to the caller.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*Result, error)
	Name() string
}

// Error distinguishes failures that retrying cannot fix (the remote
// rejected the content itself) from transient ones (network, timeout,
// remote 5xx), which the worker retries with backoff.
type Error struct {
	Permanent bool
	Err       error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func permanentErr(format string, args ...interface{}) error {
	return &Error{Permanent: true, Err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err should skip the retry budget.
func IsPermanent(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Permanent
}

var jsonBlock = regexp.MustCompile(`\{[\s\S]*\}`)

// parseResult digs the JSON object out of a model response. Models wrap
// output in prose or code fences often enough that a parse failure is
// treated as transient.
func parseResult(text string) (*Result, error) {
	match := jsonBlock.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("no JSON object in extraction response")
	}

	var res Result
	if err := json.Unmarshal([]byte(match), &res); err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}
	if res.Title == "" || res.Summary == "" {
		return nil, fmt.Errorf("extraction response missing title or summary")
	}
	if res.Metadata == nil {
		res.Metadata = map[string]interface{}{}
	}
	return &res, nil
}
