package handlers

import (
	"net/http"
	"time"

	"github.com/PulseInsights-Org/pulse-application-layer/internal/cache"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/intake"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/memory"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/models"
	"github.com/PulseInsights-Org/pulse-application-layer/internal/org"
)

const statsCacheTTL = 10 * time.Second

type AdminHandler struct {
	intakes  intake.Store
	memories memory.Store
	cache    *cache.Cache
}

func NewAdminHandler(intakes intake.Store, memories memory.Store, c *cache.Cache) *AdminHandler {
	return &AdminHandler{intakes: intakes, memories: memories, cache: c}
}

type statsResponse struct {
	Intakes  map[models.Status]int `json:"intakes"`
	Memories int                   `json:"memories"`
}

// Stats reports per-status intake counts and the memory total for the
// caller's org.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	orgID := org.IDFromContext(r.Context())

	key := cache.StatsKey(orgID)
	var cached statsResponse
	if h.cache.Get(r.Context(), key, &cached) {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	counts, err := h.intakes.CountByStatus(r.Context(), orgID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	total, err := h.memories.CountByOrg(r.Context(), orgID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resp := statsResponse{Intakes: counts, Memories: total}
	h.cache.Set(r.Context(), key, resp, statsCacheTTL)
	writeJSON(w, http.StatusOK, resp)
}
