package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sowilo/internal/admin"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/wiki"
)

// anonymous is the author name recorded when a writer gives none.
const anonymous = "AnonymousCoward"

// Handler holds API route handlers.
type Handler struct {
	svc *admin.Service
	reg *wiki.Registry
}

// NewHandler creates a new Handler.
func NewHandler(svc *admin.Service) *Handler {
	return &Handler{svc: svc, reg: svc.Registry()}
}

// param returns a decoded URL parameter. Page names may carry encoded
// characters from generated clients.
func param(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func author(r *http.Request, name string) models.Author {
	if name == "" {
		name = anonymous
	}
	return models.Author{Name: name, IP: clientIP(r)}
}

func (h *Handler) webResponse(r *http.Request, web models.Web) (WebResponse, error) {
	resp := WebResponse{Web: web, HasPassword: web.HasPassword()}
	if web.CountPages {
		n, err := h.reg.PageCount(r.Context(), &web)
		if err != nil {
			return resp, err
		}
		resp.PageCount = &n
	}
	return resp, nil
}

// writePage responds with p and its backlinks.
func (h *Handler) writePage(w http.ResponseWriter, r *http.Request, op, web string, p *models.Page) {
	back, err := h.reg.Backlinks(r.Context(), web, p.Name)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, PageDetail{Page: *p, Content: p.Content(), Backlinks: back})
}

// ListWebs handles GET /api/webs.
//
//	@Summary		List every web
//	@Tags			webs
//	@Produce		json
//	@Success		200	{array}	WebResponse
//	@Security		BearerAuth
//	@Router			/webs [get]
func (h *Handler) ListWebs(w http.ResponseWriter, r *http.Request) {
	webs, err := h.reg.Webs(r.Context())
	if err != nil {
		writeError(w, "list webs", err)
		return
	}
	out := make([]WebResponse, 0, len(webs))
	for _, web := range webs {
		resp, err := h.webResponse(r, web)
		if err != nil {
			writeError(w, "list webs", err)
			return
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetWeb handles GET /api/webs/{web}.
//
//	@Summary		Get one web
//	@Tags			webs
//	@Produce		json
//	@Param			web	path		string	true	"Web address"
//	@Success		200	{object}	WebResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/webs/{web} [get]
func (h *Handler) GetWeb(w http.ResponseWriter, r *http.Request) {
	web, err := h.reg.Web(r.Context(), param(r, "web"))
	if err != nil {
		writeError(w, "get web", err)
		return
	}
	resp, err := h.webResponse(r, *web)
	if err != nil {
		writeError(w, "get web", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListPages handles GET /api/webs/{web}/pages.
//
//	@Summary		List the pages of a web by name
//	@Tags			pages
//	@Produce		json
//	@Param			web	path	string	true	"Web address"
//	@Success		200	{array}	PageListItem
//	@Security		BearerAuth
//	@Router			/webs/{web}/pages [get]
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.reg.Pages(r.Context(), param(r, "web"))
	if err != nil {
		writeError(w, "list pages", err)
		return
	}
	out := make([]PageListItem, 0, len(pages))
	for _, p := range pages {
		out = append(out, pageListItem(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetPage handles GET /api/webs/{web}/pages/{page}.
//
//	@Summary		Get a page with its current content and backlinks
//	@Tags			pages
//	@Produce		json
//	@Param			web		path		string	true	"Web address"
//	@Param			page	path		string	true	"Page name"
//	@Success		200		{object}	PageDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/webs/{web}/pages/{page} [get]
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	web, name := param(r, "web"), param(r, "page")
	p, err := h.reg.Page(r.Context(), web, name)
	if err != nil {
		writeError(w, "get page", err)
		return
	}
	h.writePage(w, r, "get page", web, p)
}

// WritePage handles PUT /api/webs/{web}/pages/{page}.
//
//	@Summary		Write a new revision of a page, creating it if needed
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			web		path		string			true	"Web address"
//	@Param			page	path		string			true	"Page name"
//	@Param			body	body		WriteRequest	true	"Page content"
//	@Success		200		{object}	PageDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/webs/{web}/pages/{page} [put]
func (h *Handler) WritePage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req WriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	web, name := param(r, "web"), param(r, "page")
	p, err := h.svc.WritePage(r.Context(), web, name, req.Content, req.RevisedAt, author(r, req.Author), nil)
	if err != nil {
		writeError(w, "write page", err)
		return
	}
	h.writePage(w, r, "write page", web, p)
}

// History handles GET /api/webs/{web}/pages/{page}/revisions.
//
//	@Summary		List every revision of a page, oldest first
//	@Tags			pages
//	@Produce		json
//	@Param			web		path	string	true	"Web address"
//	@Param			page	path	string	true	"Page name"
//	@Success		200		{array}	models.Revision
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/webs/{web}/pages/{page}/revisions [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	revs, err := h.reg.History(r.Context(), param(r, "web"), param(r, "page"))
	if err != nil {
		writeError(w, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, revs)
}

// GetRevision handles GET /api/webs/{web}/pages/{page}/revisions/{n}.
func (h *Handler) GetRevision(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("revision must be a number"))
		return
	}
	rev, err := h.reg.Revision(r.Context(), param(r, "web"), param(r, "page"), n)
	if err != nil {
		writeError(w, "get revision", err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

// Diff handles GET /api/webs/{web}/pages/{page}/diff?from=&to=.
// Without parameters it compares the previous revision with the current one.
func (h *Handler) Diff(w http.ResponseWriter, r *http.Request) {
	web, name := param(r, "web"), param(r, "page")
	q := r.URL.Query()
	from, _ := strconv.Atoi(q.Get("from"))
	to, _ := strconv.Atoi(q.Get("to"))
	if to == 0 {
		p, err := h.reg.Page(r.Context(), web, name)
		if err != nil {
			writeError(w, "diff", err)
			return
		}
		to = p.Revisions
	}
	if from == 0 {
		from = max(to-1, 1)
	}
	changes, err := h.reg.Diff(r.Context(), web, name, from, to)
	if err != nil {
		writeError(w, "diff", err)
		return
	}
	writeJSON(w, http.StatusOK, DiffResponse{From: from, To: to, Changes: changes})
}

// Rollback handles POST /api/webs/{web}/pages/{page}/rollback.
//
//	@Summary		Restore an old revision as the newest one
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RollbackRequest	true	"Revision to restore"
//	@Success		200		{object}	PageDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/webs/{web}/pages/{page}/rollback [post]
func (h *Handler) Rollback(w http.ResponseWriter, r *http.Request) {
	var req RollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	web, name := param(r, "web"), param(r, "page")
	p, err := h.svc.Rollback(r.Context(), web, name, req.Revision, author(r, req.Author))
	if err != nil {
		writeError(w, "rollback", err)
		return
	}
	h.writePage(w, r, "rollback", web, p)
}

// Orphans handles GET /api/webs/{web}/orphans.
//
//	@Summary		Preview the pages the next prune would remove
//	@Tags			webs
//	@Produce		json
//	@Success		200	{object}	OrphansResponse
//	@Security		BearerAuth
//	@Router			/webs/{web}/orphans [get]
func (h *Handler) Orphans(w http.ResponseWriter, r *http.Request) {
	names, err := h.reg.OrphanedPages(r.Context(), param(r, "web"))
	if err != nil {
		writeError(w, "orphans", err)
		return
	}
	writeJSON(w, http.StatusOK, OrphansResponse{Orphans: nonNil(names)})
}

// Wanted handles GET /api/webs/{web}/wanted.
func (h *Handler) Wanted(w http.ResponseWriter, r *http.Request) {
	wanted, err := h.reg.WantedPages(r.Context(), param(r, "web"))
	if err != nil {
		writeError(w, "wanted", err)
		return
	}
	writeJSON(w, http.StatusOK, WantedResponse{Wanted: nonNil(wanted)})
}

// Categories handles GET /api/webs/{web}/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.reg.Categories(r.Context(), param(r, "web"))
	if err != nil {
		writeError(w, "categories", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": nonNil(cats)})
}

// PagesInCategory handles GET /api/webs/{web}/categories/{category}.
func (h *Handler) PagesInCategory(w http.ResponseWriter, r *http.Request) {
	pages, err := h.reg.PagesInCategory(r.Context(), param(r, "web"), param(r, "category"))
	if err != nil {
		writeError(w, "pages in category", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": nonNil(pages)})
}

// Search handles GET /api/webs/{web}/search.
//
//	@Summary		Search page names and current content
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/webs/{web}/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.reg.Search(r.Context(), param(r, "web"), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: nonNil(results)})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
