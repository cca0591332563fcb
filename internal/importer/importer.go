// Package importer turns Markdown files dropped into an import tree into page
// revisions. Files live at <web address>/<page name>.md relative to the tree
// root; a file whose content equals the page's current revision is skipped.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/sowilo/internal/admin"
	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/storage"
)

// Author signs revisions created from imported files.
var Author = models.Author{Name: "Importer", IP: "127.0.0.1"}

// EventCallback is called after a file produced a new revision.
type EventCallback func(web, page string)

// Importer reads the import tree and writes changed files through the admin service.
type Importer struct {
	svc    *admin.Service
	files  storage.Provider
	logger *slog.Logger
}

// New creates an Importer over files.
func New(svc *admin.Service, files storage.Provider, logger *slog.Logger) *Importer {
	return &Importer{svc: svc, files: files, logger: logger}
}

// splitPath maps a relative path to its web address and page name.
func splitPath(rel string) (web, page string, err error) {
	rel = path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	dir, file := path.Split(rel)
	web = strings.Trim(dir, "/")
	page = strings.TrimSuffix(file, ".md")
	if web == "" || strings.Contains(web, "/") || page == "" || page == file {
		return "", "", fmt.Errorf("%w: import path %q is not <web>/<page>.md", apperr.ErrInvalid, rel)
	}
	return web, page, nil
}

// ImportFile writes the file at rel as a revision dated at the file's
// modification time, unless the page already holds identical content. It
// reports whether a revision was written.
func (im *Importer) ImportFile(ctx context.Context, rel string) (bool, error) {
	web, page, err := splitPath(rel)
	if err != nil {
		return false, err
	}
	info, err := im.files.Stat(rel)
	if err != nil {
		return false, err
	}

	current, err := im.svc.Registry().Page(ctx, web, page)
	switch {
	case err == nil:
		if current.Current.Checksum == info.Checksum {
			return false, nil
		}
	case errors.Is(err, apperr.ErrNotFound):
	default:
		return false, err
	}

	data, err := im.files.Read(rel)
	if err != nil {
		return false, err
	}
	if _, err := im.svc.WritePage(ctx, web, page, string(data), info.UpdatedAt, Author, nil); err != nil {
		return false, err
	}
	return true, nil
}

// Sync imports every changed file in the tree. Individual failures are
// logged and do not stop the pass.
func (im *Importer) Sync(ctx context.Context, cb EventCallback) error {
	files, err := im.files.List("", ".md")
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		im.importLogged(ctx, f.Path, cb)
	}
	return nil
}

func (im *Importer) importLogged(ctx context.Context, rel string, cb EventCallback) {
	written, err := im.ImportFile(ctx, rel)
	if err != nil {
		im.logger.Warn("import: skipped file", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if !written {
		return
	}
	im.logger.Debug("import: revision written", slog.String("path", rel))
	if cb != nil {
		web, page, _ := splitPath(rel)
		cb(web, page)
	}
}
