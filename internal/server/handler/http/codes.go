package http

import (
	"net/http"

	"github.com/nexuskeeper/nexus/internal/scheduler"
)

// CodeSource provides the most recent atomically applied code batch.
type CodeSource interface {
	Current() scheduler.Batch
}

// CodesHandler handles HTTP requests for the current code batch.
type CodesHandler struct {
	Source CodeSource
}

// Codes handles GET /api/codes, returning the latest batch of codes
// and the countdown to the next window.
func (h *CodesHandler) Codes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Source.Current())
}
