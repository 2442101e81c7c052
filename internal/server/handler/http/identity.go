// Package http provides HTTP handlers for the identity store, the
// vault slots, the code batch, and the backup protocol.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/nexuskeeper/nexus/internal/models"
	"github.com/nexuskeeper/nexus/internal/store"
	"github.com/nexuskeeper/nexus/internal/tags"
	"github.com/nexuskeeper/nexus/internal/totp"
	"github.com/nexuskeeper/nexus/internal/vault"
)

// IdentityStore defines the store operations required by the
// IdentityHandler. *store.Store satisfies it.
type IdentityStore interface {
	// Identities returns a snapshot of the collection in order.
	Identities() []models.Identity
	// Get returns the identity with the given id.
	Get(id string) (models.Identity, bool)
	// Add validates a draft and appends a new identity.
	Add(draft store.Draft) (models.Identity, error)
	// Remove deletes an identity; absent ids are a no-op.
	Remove(id string)
	// Update applies a field-level mutation to an identity.
	Update(id string, mutate func(*models.Identity)) (models.Identity, error)
}

// IdentityHandler handles HTTP requests for identity management.
type IdentityHandler struct {
	Store IdentityStore
	// Issuer is embedded in otpauth URIs for QR provisioning.
	Issuer string
}

// List handles GET /api/identities. An optional ?tag= query restricts
// the result to identities carrying that tag, preserving order.
func (h *IdentityHandler) List(w http.ResponseWriter, r *http.Request) {
	ids := h.Store.Identities()
	if tag := r.URL.Query().Get("tag"); tag != "" {
		ids = tags.Visible(ids, tag)
	}
	writeJSON(w, http.StatusOK, ids)
}

// Create handles POST /api/identities. Tags outside the assignment
// vocabulary are dropped from the draft.
func (h *IdentityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name              string   `json:"name"`
		Secret            string   `json:"secret"`
		Note              string   `json:"note"`
		HiddenDescription string   `json:"hiddenDescription"`
		Tags              []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	draft := store.Draft{
		Name:              req.Name,
		Secret:            req.Secret,
		Note:              req.Note,
		HiddenDescription: req.HiddenDescription,
	}
	for _, t := range req.Tags {
		if tags.Known(t) && !tags.Contains(draft.Tags, t) {
			draft.Tags = append(draft.Tags, t)
		}
	}

	ident, err := h.Store.Add(draft)
	if err != nil {
		if errors.Is(err, store.ErrRejectedInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, ident)
}

// Delete handles DELETE /api/identities/{id}. Removal is idempotent.
func (h *IdentityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.Store.Remove(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// Patch handles PATCH /api/identities/{id}, updating the note and/or
// hidden description.
func (h *IdentityHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note              *string `json:"note"`
		HiddenDescription *string `json:"hiddenDescription"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	ident, err := h.Store.Update(chi.URLParam(r, "id"), func(ident *models.Identity) {
		if req.Note != nil {
			ident.Note = *req.Note
		}
		if req.HiddenDescription != nil {
			ident.HiddenDescription = *req.HiddenDescription
		}
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

// ToggleTag handles POST /api/identities/{id}/tags/{tag}, flipping the
// tag in the identity's set. Only vocabulary tags may be assigned.
func (h *IdentityHandler) ToggleTag(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if !tags.Known(tag) {
		http.Error(w, "unknown tag", http.StatusBadRequest)
		return
	}
	ident, err := h.Store.Update(chi.URLParam(r, "id"), func(ident *models.Identity) {
		ident.Tags = tags.Toggle(ident.Tags, tag)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

// slotIndex parses the {index} URL parameter and validates its range.
func slotIndex(r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || i < 0 || i >= models.VaultSize {
		return 0, false
	}
	return i, true
}

// VaultCommit handles PUT /api/identities/{id}/vault/{index}. The code
// is trimmed; an empty result collapses the slot to the empty sentinel.
func (h *IdentityHandler) VaultCommit(w http.ResponseWriter, r *http.Request) {
	i, ok := slotIndex(r)
	if !ok {
		http.Error(w, "slot index out of range", http.StatusBadRequest)
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := vault.Commit(h.Store, chi.URLParam(r, "id"), i, req.Code); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	ident, _ := h.Store.Get(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, ident)
}

// VaultPaste handles POST /api/identities/{id}/vault/{index}/paste,
// distributing the pasted text across consecutive slots.
func (h *IdentityHandler) VaultPaste(w http.ResponseWriter, r *http.Request) {
	i, ok := slotIndex(r)
	if !ok {
		http.Error(w, "slot index out of range", http.StatusBadRequest)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	written, err := vault.Paste(h.Store, chi.URLParam(r, "id"), i, req.Text)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if written == nil {
		written = []int{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"written": len(written), "slots": written})
}

// QR handles GET /api/identities/{id}/qr, rendering the identity's
// otpauth provisioning URI as a PNG.
func (h *IdentityHandler) QR(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.Store.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "identity not found", http.StatusNotFound)
		return
	}
	uri := totp.URI(totp.URIParams{
		Secret:      ident.Secret,
		AccountName: ident.Name,
		Issuer:      h.Issuer,
	})
	png, err := qrcode.Encode(uri, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
