package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nexuskeeper/nexus/internal/middleware"
)

// NewRouter constructs the HTTP handler serving the Nexus API.
//
// Routes:
//
//	GET    /api/identities                       → IdentityHandler.List (?tag= filters)
//	POST   /api/identities                       → IdentityHandler.Create
//	DELETE /api/identities/{id}                  → IdentityHandler.Delete
//	PATCH  /api/identities/{id}                  → IdentityHandler.Patch
//	POST   /api/identities/{id}/tags/{tag}       → IdentityHandler.ToggleTag
//	PUT    /api/identities/{id}/vault/{index}    → IdentityHandler.VaultCommit
//	POST   /api/identities/{id}/vault/{index}/paste → IdentityHandler.VaultPaste
//	GET    /api/identities/{id}/qr               → IdentityHandler.QR
//	GET    /api/codes                            → CodesHandler.Codes
//	GET    /api/export                           → BackupHandler.Export
//	POST   /api/import                           → BackupHandler.Import (?confirm=true)
//
// Middleware chain (applied in order):
//  1. AllowContentType("application/json") — rejects non-JSON request bodies
//  2. WithRequestLogging(logger)           — logs incoming requests
func NewRouter(
	identityHandler *IdentityHandler,
	backupHandler *BackupHandler,
	codesHandler *CodesHandler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/identities", func(r chi.Router) {
			r.Get("/", identityHandler.List)
			r.Post("/", identityHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", identityHandler.Delete)
				r.Patch("/", identityHandler.Patch)
				r.Post("/tags/{tag}", identityHandler.ToggleTag)
				r.Put("/vault/{index}", identityHandler.VaultCommit)
				r.Post("/vault/{index}/paste", identityHandler.VaultPaste)
				r.Get("/qr", identityHandler.QR)
			})
		})
		r.Get("/codes", codesHandler.Codes)
		r.Get("/export", backupHandler.Export)
		r.Post("/import", backupHandler.Import)
	})

	return r
}
