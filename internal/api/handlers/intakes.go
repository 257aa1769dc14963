package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/PulseInsights-Org/pulse-application-layer/internal/intake"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/org"
)

const idempotencyKeyHeader = "x-idempotency-key"

type IntakeHandler struct {
	svc *intake.Service
}

func NewIntakeHandler(svc *intake.Service) *IntakeHandler {
	return &IntakeHandler{svc: svc}
}

// Init creates or rejoins an intake. Replaying with the same
// (org, idempotency key) returns the identical pair.
func (h *IntakeHandler) Init(w http.ResponseWriter, r *http.Request) {
	orgID := org.IDFromContext(r.Context())
	key := r.Header.Get(idempotencyKeyHeader)
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing " + idempotencyKeyHeader + " header"})
		return
	}

	it, err := h.svc.Init(r.Context(), orgID, key)
	if err != nil {
		writeIntakeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"intake_id":    it.ID.String(),
		"storage_path": it.StoragePath,
	})
}

// Upload accepts a multipart file for an existing intake.
func (h *IntakeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid intake ID"})
		return
	}

	if err := r.ParseMultipartForm(12 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read file: " + err.Error()})
		return
	}

	it, err := h.svc.Upload(r.Context(), org.IDFromContext(r.Context()), id, header.Filename, data)
	if err != nil {
		writeIntakeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"intake_id":    it.ID.String(),
		"storage_path": it.StoragePath,
		"size_bytes":   len(data),
	})
}

// UploadText accepts pasted text, stored as a plain-text document.
func (h *IntakeHandler) UploadText(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid intake ID"})
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	it, err := h.svc.UploadText(r.Context(), org.IDFromContext(r.Context()), id, req.Text)
	if err != nil {
		writeIntakeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"intake_id":    it.ID.String(),
		"storage_path": it.StoragePath,
		"size_bytes":   len(req.Text),
	})
}

// Finalize commits checksum and size, moving the intake to ready.
func (h *IntakeHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid intake ID"})
		return
	}

	// Body is optional; the checksum is computed server-side either way.
	var req struct {
		Checksum  string `json:"checksum"`
		SizeBytes int64  `json:"size_bytes"`
	}
	if r.Body != nil {
		body, _ := io.ReadAll(r.Body)
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
				return
			}
		}
	}

	it, err := h.svc.Finalize(r.Context(), org.IDFromContext(r.Context()), id, req.Checksum, req.SizeBytes)
	if err != nil {
		writeIntakeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"intake_id":  it.ID.String(),
		"status":     it.Status,
		"checksum":   it.Checksum,
		"size_bytes": it.SizeBytes,
	})
}

// Get returns the intake for polling clients.
func (h *IntakeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid intake ID"})
		return
	}

	it, err := h.svc.Get(r.Context(), org.IDFromContext(r.Context()), id)
	if err != nil {
		writeIntakeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, it)
}

func writeIntakeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, intake.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "intake not found"})
	case errors.Is(err, intake.ErrChecksumMismatch),
		errors.Is(err, intake.ErrUploadConflict),
		errors.Is(err, intake.ErrNoContent),
		errors.Is(err, intake.ErrInvalidState):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, intake.ErrEmptyContent),
		errors.Is(err, intake.ErrContentTooLarge),
		errors.Is(err, intake.ErrUnsupportedType):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
