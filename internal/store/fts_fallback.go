//go:build !sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search scans the latest revision of each page with LIKE.
	return nil
}

func ftsUpsert(_ context.Context, _ queryer, _, _ int64, _, _ string) error {
	return nil
}

func ftsDelete(_ context.Context, _ queryer, _ int64) error { return nil }

// Search performs a LIKE-based search over page names and current content.
func (tx *Tx) Search(ctx context.Context, webID int64, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := tx.q.QueryContext(ctx, `
		SELECT p.name, substr(r.content, 1, 200)
		FROM pages p
		JOIN revisions r ON r.page_id = p.id
			AND r.number = (SELECT max(m.number) FROM revisions m WHERE m.page_id = p.id)
		WHERE p.web_id = ? AND (p.name LIKE ? OR r.content LIKE ?)
		ORDER BY p.name
		LIMIT ?
	`, webID, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Page, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
