package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrAlreadyExists is returned by Put when overwrite is false and the
	// path already holds an object.
	ErrAlreadyExists = errors.New("storage: object already exists")
	// ErrNotFound is returned by Get for paths with no object.
	ErrNotFound = errors.New("storage: object not found")
)

// Store is the write-once object gateway. Put with overwrite=false must
// never silently replace existing bytes; callers treat ErrAlreadyExists
// as the replay signal and compare content themselves.
type Store interface {
	Put(ctx context.Context, path string, data []byte, overwrite bool) error
	Get(ctx context.Context, path string) ([]byte, error)
}

// ObjectPath derives the storage location for an intake's content. It is
// a pure function of (orgID, intakeID) — never of content or time — so
// replayed init/upload calls for the same submission always target the
// same object.
func ObjectPath(orgID string, intakeID uuid.UUID) string {
	return fmt.Sprintf("org/%s/intake/%s/content", orgID, intakeID)
}

// Checksum returns the hex sha256 digest used as the content address for
// finalize and worker-side verification.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
