package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/PulseInsights-Org/pulse-application-layer/internal/cache"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/embedding"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/memory"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/models"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/org"
)

const memoriesCacheTTL = 30 * time.Second

type MemoryHandler struct {
	store    memory.Store
	embedder embedding.Embedder // nil disables semantic search
	cache    *cache.Cache
}

func NewMemoryHandler(store memory.Store, embedder embedding.Embedder, c *cache.Cache) *MemoryHandler {
	return &MemoryHandler{store: store, embedder: embedder, cache: c}
}

func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := org.IDFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 20
	}

	var intakeID *uuid.UUID
	if raw := r.URL.Query().Get("intake_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid intake_id"})
			return
		}
		intakeID = &id
	}

	// Memories are immutable once written, so a short TTL is safe.
	key := cache.MemoriesKey(orgID, intakeID, limit, offset)
	var cached []models.Memory
	if h.cache.Get(r.Context(), key, &cached) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"memories": cached, "count": len(cached)})
		return
	}

	memories, err := h.store.ListByOrg(r.Context(), orgID, intakeID, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	h.cache.Set(r.Context(), key, memories, memoriesCacheTTL)

	writeJSON(w, http.StatusOK, map[string]interface{}{"memories": memories, "count": len(memories)})
}

func (h *MemoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid memory ID"})
		return
	}

	m, err := h.store.GetByID(r.Context(), org.IDFromContext(r.Context()), id)
	if errors.Is(err, memory.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "memory not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, m)
}

func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.embedder == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "semantic search is disabled"})
		return
	}

	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query required"})
		return
	}

	vec, err := h.embedder.Embed(r.Context(), req.Query)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "embed query: " + err.Error()})
		return
	}

	results, err := h.store.Search(r.Context(), org.IDFromContext(r.Context()), vec, req.TopK)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results, "count": len(results)})
}
