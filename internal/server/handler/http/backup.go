package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/nexuskeeper/nexus/internal/backup"
)

// BackupService defines the codec operations required by the
// BackupHandler.
type BackupService interface {
	// Export writes the version-2 envelope to w.
	Export(w io.Writer) error
	// Import replaces the store from raw backup data. confirmed is the
	// caller-provided confirmation flag required before any mutation.
	Import(data []byte, confirmed bool) (backup.Summary, error)
}

// BackupHandler handles HTTP requests for backup export and import.
type BackupHandler struct {
	Codec BackupService
}

// Export handles GET /api/export, streaming the backup envelope as an
// attachment with the .nexus extension.
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=backup"+backup.FileExtension)
	if err := h.Codec.Export(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Import handles POST /api/import. The caller confirms the wholesale
// replacement with ?confirm=true; without it no state is mutated.
func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	confirmed := r.URL.Query().Get("confirm") == "true"
	summary, err := h.Codec.Import(data, confirmed)
	if err != nil {
		switch {
		case errors.Is(err, backup.ErrCorruptBackup):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, backup.ErrNotConfirmed):
			http.Error(w, err.Error(), http.StatusPreconditionRequired)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
