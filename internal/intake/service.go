package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/PulseInsights-Org/pulse-application-layer/internal/models"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/storage"
)

const maxUploadBytes = 10 << 20 // 10MB

var (
	// ErrNoContent means finalize ran before any upload reached storage.
	ErrNoContent = errors.New("intake: no content uploaded")
	// ErrUploadConflict means the storage path already holds different
	// bytes. The gateway never overwrites, so this surfaces instead of a
	// silent replacement.
	ErrUploadConflict  = errors.New("intake: storage path already holds different content")
	ErrEmptyContent    = errors.New("intake: content is empty")
	ErrContentTooLarge = fmt.Errorf("intake: content exceeds %d bytes", maxUploadBytes)
	ErrUnsupportedType = errors.New("intake: unsupported file type")
)

var allowedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".pdf":  true,
	".docx": true,
}

// Service orchestrates the intake lifecycle: init, upload, finalize and
// get. It holds no state of its own; idempotency lives in the store's
// unique constraint and the gateway's write-once flag.
type Service struct {
	intakes Store
	objects storage.Store
}

func NewService(intakes Store, objects storage.Store) *Service {
	return &Service{intakes: intakes, objects: objects}
}

// Init creates an intake for the (orgID, idempotencyKey) pair, or rejoins
// the one a previous call created. Replays return the identical
// (id, storage_path) pair.
func (s *Service) Init(ctx context.Context, orgID, idempotencyKey string) (*models.Intake, error) {
	if orgID == "" || idempotencyKey == "" {
		return nil, fmt.Errorf("intake: org id and idempotency key are required")
	}

	id := uuid.New()
	it := &models.Intake{
		ID:             id,
		OrgID:          orgID,
		StoragePath:    storage.ObjectPath(orgID, id),
		IdempotencyKey: idempotencyKey,
	}

	it, created, err := s.intakes.CreateOrGet(ctx, it)
	if err != nil {
		return nil, err
	}
	if created {
		slog.Info("intake initialized", "intake_id", it.ID, "org_id", orgID)
	} else {
		slog.Debug("intake init replayed", "intake_id", it.ID, "org_id", orgID)
	}
	return it, nil
}

// Upload writes the submitted bytes to the intake's deterministic storage
// path with write-once semantics. Re-uploading identical bytes is a
// no-op success; different bytes against an occupied path is a conflict.
func (s *Service) Upload(ctx context.Context, orgID string, id uuid.UUID, filename string, data []byte) (*models.Intake, error) {
	if len(data) == 0 {
		return nil, ErrEmptyContent
	}
	if len(data) > maxUploadBytes {
		return nil, ErrContentTooLarge
	}
	if ext := strings.ToLower(filepath.Ext(filename)); !allowedExtensions[ext] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}

	it, err := s.intakes.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if it.Status != models.StatusInitialized && it.Status != models.StatusReady {
		return nil, fmt.Errorf("%w: status %s", ErrInvalidState, it.Status)
	}

	err = s.objects.Put(ctx, it.StoragePath, data, false)
	if errors.Is(err, storage.ErrAlreadyExists) {
		existing, getErr := s.objects.Get(ctx, it.StoragePath)
		if getErr != nil {
			return nil, fmt.Errorf("compare existing upload: %w", getErr)
		}
		if !bytes.Equal(existing, data) {
			return nil, ErrUploadConflict
		}
		slog.Debug("upload replayed with identical content", "intake_id", it.ID)
		return it, nil
	}
	if err != nil {
		return nil, fmt.Errorf("upload content: %w", err)
	}

	slog.Info("content uploaded", "intake_id", it.ID, "size_bytes", len(data))
	return it, nil
}

// UploadText stores pasted text as a plain-text document.
func (s *Service) UploadText(ctx context.Context, orgID string, id uuid.UUID, text string) (*models.Intake, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyContent
	}
	return s.Upload(ctx, orgID, id, "pasted.txt", []byte(text))
}

// Finalize commits checksum and size and marks the intake ready for the
// worker. The checksum is computed server-side from the stored object; a
// client-supplied checksum, when present, must agree with it. Replays
// with the same content succeed idempotently.
func (s *Service) Finalize(ctx context.Context, orgID string, id uuid.UUID, clientChecksum string, clientSize int64) (*models.Intake, error) {
	it, err := s.intakes.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	data, err := s.objects.Get(ctx, it.StoragePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoContent
	}
	if err != nil {
		return nil, fmt.Errorf("fetch uploaded content: %w", err)
	}

	checksum := storage.Checksum(data)
	size := int64(len(data))
	if clientChecksum != "" && clientChecksum != checksum {
		return nil, ErrChecksumMismatch
	}
	if clientSize > 0 && clientSize != size {
		return nil, ErrChecksumMismatch
	}

	it, err = s.intakes.Finalize(ctx, id, checksum, size)
	if err != nil {
		return nil, err
	}

	slog.Info("intake finalized", "intake_id", it.ID, "checksum", checksum, "size_bytes", size)
	return it, nil
}

// Get returns the intake for polling clients.
func (s *Service) Get(ctx context.Context, orgID string, id uuid.UUID) (*models.Intake, error) {
	return s.intakes.GetByID(ctx, orgID, id)
}
