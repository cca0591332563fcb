package api

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"path"
	"time"
)

// maxMultipartBytes caps the request body; per-web limits are enforced by
// the upload policy after the file has been read.
const maxMultipartBytes = 50 << 20

// UploadFile handles POST /api/webs/{web}/files (multipart/form-data, field "file").
//
//	@Summary		Upload a file to a web
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			web		path		string	true	"Web address"
//	@Param			file	formData	file	true	"File"
//	@Success		201		{object}	storage.File
//	@Failure		403		{object}	errResponse
//	@Failure		413		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/webs/{web}/files [post]
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBytes)
	if err := r.ParseMultipartForm(maxMultipartBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	f, err := h.svc.SaveUpload(r.Context(), param(r, "web"), header.Filename, data)
	if err != nil {
		writeError(w, "upload", err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// ListFiles handles GET /api/webs/{web}/files.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.Uploads(r.Context(), param(r, "web"))
	if err != nil {
		writeError(w, "list files", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": nonNil(files)})
}

// ServeFile handles GET /api/webs/{web}/files/{filename}.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := param(r, "filename")
	data, err := h.svc.Upload(r.Context(), param(r, "web"), name)
	if err != nil {
		writeError(w, "serve file", err)
		return
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, path.Base(name), time.Time{}, bytes.NewReader(data))
}
