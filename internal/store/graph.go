package store

import (
	"context"
	"fmt"
)

// LinkMap returns, for every page of a web, its outgoing link targets in
// reference order. Pages without links map to an empty slice.
func (tx *Tx) LinkMap(ctx context.Context, webID int64) (map[string][]string, error) {
	rows, err := tx.q.QueryContext(ctx, `
		SELECT p.name, l.target
		FROM pages p
		LEFT JOIN links l ON l.page_id = p.id
		WHERE p.web_id = ?
		ORDER BY p.name, l.position`, webID)
	if err != nil {
		return nil, fmt.Errorf("store: link map: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var (
			name   string
			target *string
		)
		if err := rows.Scan(&name, &target); err != nil {
			return nil, err
		}
		if _, ok := out[name]; !ok {
			out[name] = []string{}
		}
		if target != nil {
			out[name] = append(out[name], *target)
		}
	}
	return out, rows.Err()
}

// AuthorNames returns the distinct author names of all revisions in a web.
func (tx *Tx) AuthorNames(ctx context.Context, webID int64) ([]string, error) {
	return tx.strings(ctx, `
		SELECT DISTINCT r.author
		FROM revisions r JOIN pages p ON p.id = r.page_id
		WHERE p.web_id = ? AND r.author <> ''
		ORDER BY r.author`, webID)
}

// Categories returns the distinct categories used in a web.
func (tx *Tx) Categories(ctx context.Context, webID int64) ([]string, error) {
	return tx.strings(ctx, `
		SELECT DISTINCT c.category
		FROM categories c JOIN pages p ON p.id = c.page_id
		WHERE p.web_id = ?
		ORDER BY c.category`, webID)
}

// PagesInCategory returns the names of pages tagged with category.
func (tx *Tx) PagesInCategory(ctx context.Context, webID int64, category string) ([]string, error) {
	return tx.strings(ctx, `
		SELECT p.name
		FROM categories c JOIN pages p ON p.id = c.page_id
		WHERE p.web_id = ? AND c.category = ?
		ORDER BY p.name`, webID, category)
}

func (tx *Tx) categoryMap(ctx context.Context, webID int64) (map[string][]string, error) {
	rows, err := tx.q.QueryContext(ctx, `
		SELECT p.name, c.category
		FROM categories c JOIN pages p ON p.id = c.page_id
		WHERE p.web_id = ?
		ORDER BY p.name, c.category`, webID)
	if err != nil {
		return nil, fmt.Errorf("store: category map: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var name, cat string
		if err := rows.Scan(&name, &cat); err != nil {
			return nil, err
		}
		out[name] = append(out[name], cat)
	}
	return out, rows.Err()
}
