package wiki

import (
	"context"
	"log/slog"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/linkgraph"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/store"
)

// graph loads the link graph of a web together with the set of page names
// that pruning must never remove: the home page and every page named after
// an author of a revision in the web.
func (r *Registry) graph(ctx context.Context, tx *store.Tx, web *models.Web) (*linkgraph.Graph, map[string]struct{}, error) {
	links, err := tx.LinkMap(ctx, web.ID)
	if err != nil {
		return nil, nil, err
	}
	authors, err := tx.AuthorNames(ctx, web.ID)
	if err != nil {
		return nil, nil, err
	}
	immune := make(map[string]struct{}, len(authors)+1)
	immune[models.HomePage] = struct{}{}
	for _, a := range authors {
		immune[a] = struct{}{}
	}
	return linkgraph.Build(links), immune, nil
}

// OrphanedPages previews the pages the next prune would remove, by name.
func (r *Registry) OrphanedPages(ctx context.Context, address string) ([]string, error) {
	tx := r.store.View()
	web, err := tx.WebByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	g, immune, err := r.graph(ctx, tx, web)
	if err != nil {
		return nil, err
	}
	return g.Orphans(models.HomePage, r.policy, immune), nil
}

// RemoveOrphanedPages deletes, in one pass, every page the configured policy
// finds orphaned when the call starts. Pages orphaned by this removal stay
// until the next call. The system password is required even when the web
// has a password of its own.
func (r *Registry) RemoveOrphanedPages(ctx context.Context, systemPassword, address string) ([]models.Page, error) {
	var removed []models.Page
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		ok, err := r.authenticate(ctx, tx, systemPassword)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrUnauthorized
		}
		web, err := tx.WebByAddress(ctx, address)
		if err != nil {
			return err
		}
		g, immune, err := r.graph(ctx, tx, web)
		if err != nil {
			return err
		}
		for _, name := range g.Orphans(models.HomePage, r.policy, immune) {
			p, err := tx.Page(ctx, web.ID, name)
			if err != nil {
				return err
			}
			if err := tx.DeletePage(ctx, p.ID); err != nil {
				return err
			}
			removed = append(removed, *p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		r.logger.Info("orphaned pages removed",
			slog.String("web", address),
			slog.Int("count", len(removed)))
	}
	return removed, nil
}

// Backlinks lists the pages linking to name.
func (r *Registry) Backlinks(ctx context.Context, address, name string) ([]string, error) {
	tx := r.store.View()
	web, err := tx.WebByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	links, err := tx.LinkMap(ctx, web.ID)
	if err != nil {
		return nil, err
	}
	return linkgraph.Build(links).Backlinks(name), nil
}

// WantedPages lists names that are linked to but have no page yet.
func (r *Registry) WantedPages(ctx context.Context, address string) ([]linkgraph.Wanted, error) {
	tx := r.store.View()
	web, err := tx.WebByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	links, err := tx.LinkMap(ctx, web.ID)
	if err != nil {
		return nil, err
	}
	return linkgraph.Build(links).Wanted(), nil
}
