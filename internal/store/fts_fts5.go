//go:build sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS pages_fts USING fts5(
			page_id UNINDEXED,
			web_id UNINDEXED,
			name,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(ctx context.Context, q queryer, webID, pageID int64, name, body string) error {
	if err := ftsDelete(ctx, q, pageID); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `INSERT INTO pages_fts (page_id, web_id, name, body) VALUES (?, ?, ?, ?)`,
		pageID, webID, name, body)
	if err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(ctx context.Context, q queryer, pageID int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM pages_fts WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("store: delete fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search and returns matching pages with snippets.
func (tx *Tx) Search(ctx context.Context, webID int64, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := tx.q.QueryContext(ctx, `
		SELECT name,
		       snippet(pages_fts, 3, '<b>', '</b>', '...', 64)
		FROM pages_fts
		WHERE pages_fts MATCH ? AND web_id = ?
		ORDER BY rank
		LIMIT ?
	`, query, webID, limit)
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
