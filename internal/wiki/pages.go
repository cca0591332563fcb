package wiki

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/renderer"
	"github.com/starford/sowilo/internal/store"
)

// WritePage stores content as the newest revision of a page, creating the
// page on first write. Links and categories are re-derived with rend; a nil
// rend selects the built-in renderer configured by the web's brackets_only flag.
func (r *Registry) WritePage(ctx context.Context, address, name, content string, at time.Time, author models.Author, rend renderer.Renderer) (*models.Page, error) {
	var page *models.Page
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		web, err := tx.WebByAddress(ctx, address)
		if err != nil {
			return err
		}
		page, err = r.writePage(ctx, tx, web, name, content, at, author, rend)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("page written",
		slog.String("web", address),
		slog.String("page", name),
		slog.Int("revision", page.Current.Number))
	return page, nil
}

func (r *Registry) writePage(ctx context.Context, tx *store.Tx, web *models.Web, name, content string, at time.Time, author models.Author, rend renderer.Renderer) (*models.Page, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: page name is required", apperr.ErrInvalid)
	}
	if at.IsZero() {
		at = r.now()
	}

	id, err := tx.PageID(ctx, web.ID, name)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		if id, err = tx.InsertPage(ctx, web.ID, name, at); err != nil {
			return nil, err
		}
	}
	if _, err := tx.AppendRevision(ctx, id, content, author, at); err != nil {
		return nil, err
	}

	rend = rendererFor(web, rend)
	if err := tx.ReplaceDerived(ctx, web.ID, id, name, content, rend.Links(content), rend.Categories(content)); err != nil {
		return nil, err
	}
	return tx.Page(ctx, web.ID, name)
}

// Page loads a page with its current revision.
func (r *Registry) Page(ctx context.Context, address, name string) (*models.Page, error) {
	tx := r.store.View()
	web, err := tx.WebByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	return tx.Page(ctx, web.ID, name)
}

// Pages lists every page of a web by name.
func (r *Registry) Pages(ctx context.Context, address string) ([]models.Page, error) {
	tx := r.store.View()
	web, err := tx.WebByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	return tx.Pages(ctx, web.ID)
}

// CurrentContent returns the content of the page's latest revision.
func CurrentContent(p *models.Page) string {
	return p.Content()
}

// History returns every revision of a page, oldest first. Each call reads
// the stored revisions afresh.
func (r *Registry) History(ctx context.Context, address, name string) ([]models.Revision, error) {
	tx := r.store.View()
	web, err := tx.WebByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	id, err := tx.PageID(ctx, web.ID, name)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, fmt.Errorf("page %q: %w", name, apperr.ErrNotFound)
	}
	return tx.Revisions(ctx, id)
}

// Revision returns revision number n (1-based) of a page.
func (r *Registry) Revision(ctx context.Context, address, name string, n int) (*models.Revision, error) {
	revs, err := r.History(ctx, address, name)
	if err != nil {
		return nil, err
	}
	if n < 1 || n > len(revs) {
		return nil, fmt.Errorf("revision %d of %q: %w", n, name, apperr.ErrNotFound)
	}
	return &revs[n-1], nil
}

// Rollback writes the content of revision n as a new revision.
func (r *Registry) Rollback(ctx context.Context, address, name string, n int, at time.Time, author models.Author) (*models.Page, error) {
	rev, err := r.Revision(ctx, address, name, n)
	if err != nil {
		return nil, err
	}
	return r.WritePage(ctx, address, name, rev.Content, at, author, nil)
}

// Categories lists the categories used in a web.
func (r *Registry) Categories(ctx context.Context, address string) ([]string, error) {
	tx := r.store.View()
	web, err := tx.WebByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	return tx.Categories(ctx, web.ID)
}

// PagesInCategory lists the pages tagged with category.
func (r *Registry) PagesInCategory(ctx context.Context, address, category string) ([]string, error) {
	tx := r.store.View()
	web, err := tx.WebByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	return tx.PagesInCategory(ctx, web.ID, category)
}

// Search finds pages whose name or current content matches query.
func (r *Registry) Search(ctx context.Context, address, query string, limit int) ([]store.SearchResult, error) {
	tx := r.store.View()
	web, err := tx.WebByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	return tx.Search(ctx, web.ID, query, limit)
}
