package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sowilo/internal/admin"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *admin.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Administration (form-encoded, password checked per request).
	r.Post("/admin/create_system", h.CreateSystem)
	r.Post("/admin/webs", h.CreateWeb)
	r.Post("/admin/webs/{web}/edit", h.EditWeb)
	r.Post("/admin/webs/{web}/remove_orphaned_pages", h.RemoveOrphanedPages)

	// Webs.
	r.Get("/webs", h.ListWebs)
	r.Get("/webs/{web}", h.GetWeb)
	r.Get("/webs/{web}/orphans", h.Orphans)
	r.Get("/webs/{web}/wanted", h.Wanted)
	r.Get("/webs/{web}/categories", h.Categories)
	r.Get("/webs/{web}/categories/{category}", h.PagesInCategory)
	r.Get("/webs/{web}/search", h.Search)

	// Pages.
	r.Get("/webs/{web}/pages", h.ListPages)
	r.Get("/webs/{web}/pages/{page}", h.GetPage)
	r.Put("/webs/{web}/pages/{page}", h.WritePage)
	r.Get("/webs/{web}/pages/{page}/revisions", h.History)
	r.Get("/webs/{web}/pages/{page}/revisions/{n}", h.GetRevision)
	r.Get("/webs/{web}/pages/{page}/diff", h.Diff)
	r.Post("/webs/{web}/pages/{page}/rollback", h.Rollback)

	// Uploads.
	r.Get("/webs/{web}/files", h.ListFiles)
	r.Post("/webs/{web}/files", h.UploadFile)
	r.Get("/webs/{web}/files/{filename}", h.ServeFile)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
