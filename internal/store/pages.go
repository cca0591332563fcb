package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/checksum"
	"github.com/starford/sowilo/internal/models"
)

// pageSelect joins each page to its latest revision.
const pageSelect = `
	SELECT p.id, p.web_id, p.name, p.created_at, p.updated_at,
		r.id, r.number, r.content, r.checksum, r.author, r.ip, r.revised_at,
		(SELECT count(*) FROM revisions c WHERE c.page_id = p.id)
	FROM pages p
	JOIN revisions r ON r.page_id = p.id
		AND r.number = (SELECT max(m.number) FROM revisions m WHERE m.page_id = p.id)`

func scanPage(scanner interface{ Scan(...any) error }) (*models.Page, error) {
	var p models.Page
	r := &p.Current
	err := scanner.Scan(&p.ID, &p.WebID, &p.Name, &p.CreatedAt, &p.UpdatedAt,
		&r.ID, &r.Number, &r.Content, &r.Checksum, &r.Author.Name, &r.Author.IP, &r.RevisedAt,
		&p.Revisions)
	if err != nil {
		return nil, err
	}
	r.PageID = p.ID
	return &p, nil
}

// Page loads one page with its current revision, links and categories.
func (tx *Tx) Page(ctx context.Context, webID int64, name string) (*models.Page, error) {
	row := tx.q.QueryRowContext(ctx, pageSelect+` WHERE p.web_id = ? AND p.name = ?`, webID, name)
	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %q: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load page: %w", err)
	}
	if p.Links, err = tx.pageLinks(ctx, p.ID); err != nil {
		return nil, err
	}
	if p.Categories, err = tx.pageCategories(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// Pages loads every page of a web ordered by name. Links and categories are
// attached.
func (tx *Tx) Pages(ctx context.Context, webID int64) ([]models.Page, error) {
	rows, err := tx.q.QueryContext(ctx, pageSelect+` WHERE p.web_id = ? ORDER BY p.name`, webID)
	if err != nil {
		return nil, fmt.Errorf("store: list pages: %w", err)
	}
	defer rows.Close()

	var out []models.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan page: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	links, err := tx.LinkMap(ctx, webID)
	if err != nil {
		return nil, err
	}
	cats, err := tx.categoryMap(ctx, webID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Links = nonNil(links[out[i].Name])
		out[i].Categories = nonNil(cats[out[i].Name])
	}
	return out, nil
}

// CountPages returns the number of pages in a web.
func (tx *Tx) CountPages(ctx context.Context, webID int64) (int, error) {
	var n int
	if err := tx.q.QueryRowContext(ctx, `SELECT count(*) FROM pages WHERE web_id = ?`, webID).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count pages: %w", err)
	}
	return n, nil
}

// PageID returns the ID of a page, or 0 when it does not exist.
func (tx *Tx) PageID(ctx context.Context, webID int64, name string) (int64, error) {
	var id int64
	err := tx.q.QueryRowContext(ctx, `SELECT id FROM pages WHERE web_id = ? AND name = ?`, webID, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: page id: %w", err)
	}
	return id, nil
}

// InsertPage creates an empty page row and returns its ID.
func (tx *Tx) InsertPage(ctx context.Context, webID int64, name string, at time.Time) (int64, error) {
	res, err := tx.q.ExecContext(ctx,
		`INSERT INTO pages (web_id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		webID, name, at, at)
	if err != nil {
		return 0, fmt.Errorf("store: insert page: %w", err)
	}
	return res.LastInsertId()
}

// AppendRevision adds the next revision of a page and bumps its updated_at.
func (tx *Tx) AppendRevision(ctx context.Context, pageID int64, content string, author models.Author, at time.Time) (*models.Revision, error) {
	var last int
	if err := tx.q.QueryRowContext(ctx,
		`SELECT coalesce(max(number), 0) FROM revisions WHERE page_id = ?`, pageID).Scan(&last); err != nil {
		return nil, fmt.Errorf("store: last revision: %w", err)
	}

	rev := &models.Revision{
		PageID:    pageID,
		Number:    last + 1,
		Content:   content,
		Checksum:  checksum.String(content),
		Author:    author,
		RevisedAt: at,
	}
	res, err := tx.q.ExecContext(ctx, `
		INSERT INTO revisions (page_id, number, content, checksum, author, ip, revised_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pageID, rev.Number, rev.Content, rev.Checksum, author.Name, author.IP, at)
	if err != nil {
		return nil, fmt.Errorf("store: insert revision: %w", err)
	}
	if rev.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("store: revision id: %w", err)
	}
	if _, err := tx.q.ExecContext(ctx, `UPDATE pages SET updated_at = ? WHERE id = ?`, at, pageID); err != nil {
		return nil, fmt.Errorf("store: touch page: %w", err)
	}
	return rev, nil
}

// Revisions returns every revision of a page, oldest first.
func (tx *Tx) Revisions(ctx context.Context, pageID int64) ([]models.Revision, error) {
	rows, err := tx.q.QueryContext(ctx, `
		SELECT id, page_id, number, content, checksum, author, ip, revised_at
		FROM revisions WHERE page_id = ? ORDER BY number`, pageID)
	if err != nil {
		return nil, fmt.Errorf("store: list revisions: %w", err)
	}
	defer rows.Close()

	var out []models.Revision
	for rows.Next() {
		var r models.Revision
		if err := rows.Scan(&r.ID, &r.PageID, &r.Number, &r.Content, &r.Checksum,
			&r.Author.Name, &r.Author.IP, &r.RevisedAt); err != nil {
			return nil, fmt.Errorf("store: scan revision: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceDerived swaps the stored links and categories of a page and
// refreshes its search entry.
func (tx *Tx) ReplaceDerived(ctx context.Context, webID, pageID int64, name, content string, links, categories []string) error {
	if _, err := tx.q.ExecContext(ctx, `DELETE FROM links WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("store: clear links: %w", err)
	}
	for i, target := range links {
		if _, err := tx.q.ExecContext(ctx,
			`INSERT OR IGNORE INTO links (page_id, target, position) VALUES (?, ?, ?)`, pageID, target, i); err != nil {
			return fmt.Errorf("store: insert link: %w", err)
		}
	}

	if _, err := tx.q.ExecContext(ctx, `DELETE FROM categories WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("store: clear categories: %w", err)
	}
	for _, c := range categories {
		if _, err := tx.q.ExecContext(ctx,
			`INSERT OR IGNORE INTO categories (page_id, category) VALUES (?, ?)`, pageID, c); err != nil {
			return fmt.Errorf("store: insert category: %w", err)
		}
	}

	return ftsUpsert(ctx, tx.q, webID, pageID, name, content)
}

// DeletePage removes a page; revisions, links and categories cascade.
func (tx *Tx) DeletePage(ctx context.Context, pageID int64) error {
	if err := ftsDelete(ctx, tx.q, pageID); err != nil {
		return err
	}
	if _, err := tx.q.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, pageID); err != nil {
		return fmt.Errorf("store: delete page: %w", err)
	}
	return nil
}

func (tx *Tx) pageLinks(ctx context.Context, pageID int64) ([]string, error) {
	return tx.strings(ctx, `SELECT target FROM links WHERE page_id = ? ORDER BY position`, pageID)
}

func (tx *Tx) pageCategories(ctx context.Context, pageID int64) ([]string, error) {
	return tx.strings(ctx, `SELECT category FROM categories WHERE page_id = ? ORDER BY category`, pageID)
}

// strings runs a single-column query.
func (tx *Tx) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := tx.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
