package wiki

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/store"
)

// WebEdit is a full set of web settings submitted for one edit.
//
// String fields are nil when absent from the submission and leave the
// current value alone. Flags have no "absent" state: a flag that was not
// submitted is false, so every edit replaces all flags.
type WebEdit struct {
	Address         *string
	Name            *string
	Markup          *string
	Color           *string
	AdditionalStyle *string
	// Password set to "" clears the web password, falling back to the
	// system password for administration.
	Password      *string
	MaxUploadSize *string

	SafeMode     bool
	Published    bool
	BracketsOnly bool
	CountPages   bool
	AllowUploads bool
}

// Form keys recognised by ParseWebEdit.
const (
	FieldAddress         = "address"
	FieldName            = "name"
	FieldMarkup          = "markup"
	FieldColor           = "color"
	FieldAdditionalStyle = "additional_style"
	FieldPassword        = "password"
	FieldMaxUploadSize   = "max_upload_size"
	FieldSafeMode        = "safe_mode"
	FieldPublished       = "published"
	FieldBracketsOnly    = "brackets_only"
	FieldCountPages      = "count_pages"
	FieldAllowUploads    = "allow_uploads"
)

// ParseWebEdit maps a submitted form onto a WebEdit.
func ParseWebEdit(form url.Values) WebEdit {
	str := func(key string) *string {
		if !form.Has(key) {
			return nil
		}
		v := form.Get(key)
		return &v
	}
	return WebEdit{
		Address:         str(FieldAddress),
		Name:            str(FieldName),
		Markup:          str(FieldMarkup),
		Color:           str(FieldColor),
		AdditionalStyle: str(FieldAdditionalStyle),
		Password:        str(FieldPassword),
		MaxUploadSize:   str(FieldMaxUploadSize),
		SafeMode:        flag(form, FieldSafeMode),
		Published:       flag(form, FieldPublished),
		BracketsOnly:    flag(form, FieldBracketsOnly),
		CountPages:      flag(form, FieldCountPages),
		AllowUploads:    flag(form, FieldAllowUploads),
	}
}

func flag(form url.Values, key string) bool {
	if !form.Has(key) {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(form.Get(key))) {
	case "on", "true", "1", "yes", "checked":
		return true
	}
	return false
}

// Apply returns a copy of w with the edit applied. w is not modified.
func (e WebEdit) Apply(w models.Web) (*models.Web, error) {
	out := w
	if e.Address != nil {
		out.Address = strings.TrimSpace(*e.Address)
	}
	if e.Name != nil {
		out.Name = strings.TrimSpace(*e.Name)
	}
	if e.Markup != nil {
		out.Markup = models.Markup(strings.TrimSpace(*e.Markup))
	}
	if e.Color != nil {
		out.Color = *e.Color
	}
	if e.AdditionalStyle != nil {
		out.AdditionalStyle = *e.AdditionalStyle
	}
	if e.Password != nil {
		if *e.Password == "" {
			out.Password = nil
		} else {
			pw := *e.Password
			out.Password = &pw
		}
	}
	if e.MaxUploadSize != nil {
		n, err := strconv.ParseInt(strings.TrimSpace(*e.MaxUploadSize), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: max_upload_size: %v", apperr.ErrInvalid, err)
		}
		out.MaxUploadSize = n
	}
	out.SafeMode = e.SafeMode
	out.Published = e.Published
	out.BracketsOnly = e.BracketsOnly
	out.CountPages = e.CountPages
	out.AllowUploads = e.AllowUploads

	if err := validateWeb(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EditWeb authorizes candidate against the web and then commits every field
// of edit at once. Renaming onto another web's address fails with
// apperr.ErrDuplicateAddress. Switching brackets_only re-derives the links
// of every page in the web within the same transaction.
func (r *Registry) EditWeb(ctx context.Context, address, candidate string, edit WebEdit) (*models.Web, error) {
	var updated *models.Web
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		web, err := tx.WebByAddress(ctx, address)
		if err != nil {
			return err
		}
		ok, err := r.authorizeWeb(ctx, tx, web, candidate)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrUnauthorized
		}

		next, err := edit.Apply(*web)
		if err != nil {
			return err
		}
		if next.Address != web.Address {
			taken, err := tx.AddressTaken(ctx, next.Address, web.ID)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("web %q: %w", next.Address, apperr.ErrDuplicateAddress)
			}
		}
		if err := tx.UpdateWeb(ctx, next); err != nil {
			return err
		}
		if next.BracketsOnly != web.BracketsOnly {
			if err := r.rederive(ctx, tx, next); err != nil {
				return err
			}
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("web edited",
		slog.String("web", address),
		slog.String("address", updated.Address))
	return updated, nil
}

// rederive recomputes links and categories of every page from its current
// content using the web's renderer.
func (r *Registry) rederive(ctx context.Context, tx *store.Tx, web *models.Web) error {
	pages, err := tx.Pages(ctx, web.ID)
	if err != nil {
		return err
	}
	rend := rendererFor(web, nil)
	for _, p := range pages {
		content := p.Content()
		if err := tx.ReplaceDerived(ctx, web.ID, p.ID, p.Name, content, rend.Links(content), rend.Categories(content)); err != nil {
			return err
		}
	}
	return nil
}
