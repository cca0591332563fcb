package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
)

const webColumns = `id, address, name, markup, color, additional_style, password,
	safe_mode, published, brackets_only, count_pages, allow_uploads, max_upload_size, created_at`

func scanWeb(scanner interface{ Scan(...any) error }) (*models.Web, error) {
	var (
		w        models.Web
		markup   string
		password sql.NullString
	)
	err := scanner.Scan(&w.ID, &w.Address, &w.Name, &markup, &w.Color, &w.AdditionalStyle, &password,
		&w.SafeMode, &w.Published, &w.BracketsOnly, &w.CountPages, &w.AllowUploads, &w.MaxUploadSize, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	w.Markup = models.Markup(markup)
	w.Password = stringPtr(password)
	return &w, nil
}

// System loads the installation singleton.
func (tx *Tx) System(ctx context.Context) (*models.System, error) {
	var pw sql.NullString
	if err := tx.q.QueryRowContext(ctx, `SELECT password FROM system WHERE id = 1`).Scan(&pw); err != nil {
		return nil, fmt.Errorf("store: load system: %w", err)
	}
	return &models.System{Password: stringPtr(pw)}, nil
}

// SetSystemPassword stores the installation password; nil restores the default.
func (tx *Tx) SetSystemPassword(ctx context.Context, password *string) error {
	if _, err := tx.q.ExecContext(ctx, `UPDATE system SET password = ? WHERE id = 1`, nullString(password)); err != nil {
		return fmt.Errorf("store: set system password: %w", err)
	}
	return nil
}

// CountWebs returns the number of webs.
func (tx *Tx) CountWebs(ctx context.Context) (int, error) {
	var n int
	if err := tx.q.QueryRowContext(ctx, `SELECT count(*) FROM webs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count webs: %w", err)
	}
	return n, nil
}

// Webs returns every web ordered by address.
func (tx *Tx) Webs(ctx context.Context) ([]models.Web, error) {
	rows, err := tx.q.QueryContext(ctx, `SELECT `+webColumns+` FROM webs ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("store: list webs: %w", err)
	}
	defer rows.Close()

	var out []models.Web
	for rows.Next() {
		w, err := scanWeb(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan web: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// WebByAddress loads a web, returning apperr.ErrNotFound when absent.
func (tx *Tx) WebByAddress(ctx context.Context, address string) (*models.Web, error) {
	row := tx.q.QueryRowContext(ctx, `SELECT `+webColumns+` FROM webs WHERE address = ?`, address)
	w, err := scanWeb(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("web %q: %w", address, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load web: %w", err)
	}
	return w, nil
}

// AddressTaken reports whether a web other than exceptID uses address.
func (tx *Tx) AddressTaken(ctx context.Context, address string, exceptID int64) (bool, error) {
	var n int
	err := tx.q.QueryRowContext(ctx, `SELECT count(*) FROM webs WHERE address = ? AND id <> ?`, address, exceptID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: check address: %w", err)
	}
	return n > 0, nil
}

// InsertWeb creates w and sets its ID. An address collision yields
// apperr.ErrDuplicateAddress.
func (tx *Tx) InsertWeb(ctx context.Context, w *models.Web) error {
	res, err := tx.q.ExecContext(ctx, `
		INSERT INTO webs (address, name, markup, color, additional_style, password,
			safe_mode, published, brackets_only, count_pages, allow_uploads, max_upload_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.Address, w.Name, string(w.Markup), w.Color, w.AdditionalStyle, nullString(w.Password),
		w.SafeMode, w.Published, w.BracketsOnly, w.CountPages, w.AllowUploads, w.MaxUploadSize, w.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("web %q: %w", w.Address, apperr.ErrDuplicateAddress)
	}
	if err != nil {
		return fmt.Errorf("store: insert web: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: web id: %w", err)
	}
	w.ID = id
	return nil
}

// UpdateWeb writes every column of w.
func (tx *Tx) UpdateWeb(ctx context.Context, w *models.Web) error {
	_, err := tx.q.ExecContext(ctx, `
		UPDATE webs SET
			address = ?, name = ?, markup = ?, color = ?, additional_style = ?, password = ?,
			safe_mode = ?, published = ?, brackets_only = ?, count_pages = ?, allow_uploads = ?, max_upload_size = ?
		WHERE id = ?`,
		w.Address, w.Name, string(w.Markup), w.Color, w.AdditionalStyle, nullString(w.Password),
		w.SafeMode, w.Published, w.BracketsOnly, w.CountPages, w.AllowUploads, w.MaxUploadSize, w.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("web %q: %w", w.Address, apperr.ErrDuplicateAddress)
	}
	if err != nil {
		return fmt.Errorf("store: update web: %w", err)
	}
	return nil
}
