package api

import (
	"net/http"

	"github.com/starford/sowilo/internal/wiki"
)

// Admin form keys.
const (
	formPassword         = "password"
	formWebName          = "web_name"
	formWebAddress       = "web_address"
	formSystemPassword   = "system_password"
	formOrphanedPassword = "system_password_orphaned"
)

func parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid form body"))
		return false
	}
	return true
}

// CreateSystem handles POST /api/admin/create_system.
//
//	@Summary		Initialize an empty wiki with its system password and first web
//	@Tags			admin
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			password	formData	string	false	"System password"
//	@Param			web_name	formData	string	true	"First web name"
//	@Param			web_address	formData	string	true	"First web address"
//	@Success		201			{object}	WebResponse
//	@Failure		409			{object}	errResponse
//	@Router			/admin/create_system [post]
func (h *Handler) CreateSystem(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	web, err := h.svc.Bootstrap(r.Context(),
		r.PostForm.Get(formPassword),
		r.PostForm.Get(formWebName),
		r.PostForm.Get(formWebAddress))
	if err != nil {
		writeError(w, "create system", err)
		return
	}
	writeJSON(w, http.StatusCreated, WebResponse{Web: *web, HasPassword: web.HasPassword()})
}

// CreateWeb handles POST /api/admin/webs.
//
//	@Summary		Create a web
//	@Tags			admin
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			system_password	formData	string	true	"System password"
//	@Param			name			formData	string	true	"Web name"
//	@Param			address			formData	string	true	"Web address"
//	@Success		201				{object}	WebResponse
//	@Failure		403				{object}	errResponse
//	@Failure		409				{object}	errResponse
//	@Router			/admin/webs [post]
func (h *Handler) CreateWeb(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	web, err := h.svc.CreateWeb(r.Context(),
		r.PostForm.Get(formSystemPassword),
		r.PostForm.Get(wiki.FieldName),
		r.PostForm.Get(wiki.FieldAddress))
	if err != nil {
		writeError(w, "create web", err)
		return
	}
	writeJSON(w, http.StatusCreated, WebResponse{Web: *web, HasPassword: web.HasPassword()})
}

// EditWeb handles POST /api/admin/webs/{web}/edit. Every flag absent from
// the form is turned off.
//
//	@Summary		Replace the settings of a web
//	@Tags			admin
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			web				path		string	true	"Web address"
//	@Param			system_password	formData	string	true	"Web password, or system password when the web has none"
//	@Success		200				{object}	WebResponse
//	@Failure		403				{object}	errResponse
//	@Failure		409				{object}	errResponse
//	@Router			/admin/webs/{web}/edit [post]
func (h *Handler) EditWeb(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	web, err := h.svc.EditWeb(r.Context(), param(r, "web"),
		r.PostForm.Get(formSystemPassword),
		wiki.ParseWebEdit(r.PostForm))
	if err != nil {
		writeError(w, "edit web", err)
		return
	}
	resp, err := h.webResponse(r, *web)
	if err != nil {
		writeError(w, "edit web", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// RemoveOrphanedPages handles POST /api/admin/webs/{web}/remove_orphaned_pages.
//
//	@Summary		Remove the pages currently orphaned, one pass
//	@Tags			admin
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			web							path		string	true	"Web address"
//	@Param			system_password_orphaned	formData	string	true	"System password"
//	@Success		200							{object}	RemovedResponse
//	@Failure		403							{object}	errResponse
//	@Router			/admin/webs/{web}/remove_orphaned_pages [post]
func (h *Handler) RemoveOrphanedPages(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	removed, err := h.svc.RemoveOrphanedPages(r.Context(), r.PostForm.Get(formOrphanedPassword), param(r, "web"))
	if err != nil {
		writeError(w, "remove orphaned pages", err)
		return
	}
	names := make([]string, 0, len(removed))
	for _, p := range removed {
		names = append(names, p.Name)
	}
	writeJSON(w, http.StatusOK, RemovedResponse{Removed: names})
}
