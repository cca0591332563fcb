// Package wiki implements the wiki core: the system registry of webs, password
// checks, web configuration, pages with their revision history, and orphan
// pruning over the link graph.
//
// A Registry holds no state of its own beyond configuration; every operation
// reads or writes the store, and every mutation runs inside one store
// transaction so it either commits fully or leaves nothing behind.
package wiki

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/linkgraph"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/renderer"
	"github.com/starford/sowilo/internal/store"
)

// DefaultPassword is the installation secret in effect while no system
// password has been set.
const DefaultPassword = "instiki"

// SystemAuthor signs revisions the wiki writes on its own behalf.
var SystemAuthor = models.Author{Name: "AnonymousCoward", IP: "127.0.0.1"}

var addressRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Registry is the entry point to the wiki core.
type Registry struct {
	store           *store.Store
	defaultPassword string
	policy          linkgraph.Policy
	now             func() time.Time
	logger          *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithDefaultPassword overrides the secret used while no system password is set.
func WithDefaultPassword(pw string) Option {
	return func(r *Registry) {
		if pw != "" {
			r.defaultPassword = pw
		}
	}
}

// WithOrphanPolicy selects how orphaned pages are identified.
func WithOrphanPolicy(p linkgraph.Policy) Option {
	return func(r *Registry) {
		r.policy = p
	}
}

// WithClock replaces time.Now for page and web timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates a Registry over st.
func NewRegistry(st *store.Store, opts ...Option) *Registry {
	r := &Registry{
		store:           st,
		defaultPassword: DefaultPassword,
		policy:          linkgraph.PolicyReferenced,
		now:             time.Now,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsInitialized reports whether at least one web exists.
func (r *Registry) IsInitialized(ctx context.Context) (bool, error) {
	n, err := r.store.View().CountWebs(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Bootstrap configures a fresh installation: it stores the system password
// and creates the first web. An already initialized wiki is left untouched
// and apperr.ErrAlreadyInitialized is returned.
func (r *Registry) Bootstrap(ctx context.Context, password, name, address string) (*models.Web, error) {
	var web *models.Web
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		n, err := tx.CountWebs(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.ErrAlreadyInitialized
		}
		var pw *string
		if password != "" {
			pw = &password
		}
		if err := tx.SetSystemPassword(ctx, pw); err != nil {
			return err
		}
		web, err = r.createWeb(ctx, tx, name, address)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("wiki initialized", slog.String("web", web.Address))
	return web, nil
}

// CreateWeb adds a web with a home page after checking the system password.
func (r *Registry) CreateWeb(ctx context.Context, systemPassword, name, address string) (*models.Web, error) {
	var web *models.Web
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		ok, err := r.authenticate(ctx, tx, systemPassword)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrUnauthorized
		}
		web, err = r.createWeb(ctx, tx, name, address)
		return err
	})
	if err != nil {
		return nil, err
	}
	return web, nil
}

func (r *Registry) createWeb(ctx context.Context, tx *store.Tx, name, address string) (*models.Web, error) {
	web := &models.Web{
		Address:       strings.TrimSpace(address),
		Name:          strings.TrimSpace(name),
		Markup:        models.DefaultMarkup,
		Color:         models.DefaultColor,
		MaxUploadSize: models.DefaultMaxUploadSize,
		CreatedAt:     r.now(),
	}
	if err := validateWeb(web); err != nil {
		return nil, err
	}
	taken, err := tx.AddressTaken(ctx, web.Address, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("web %q: %w", web.Address, apperr.ErrDuplicateAddress)
	}
	if err := tx.InsertWeb(ctx, web); err != nil {
		return nil, err
	}

	home := fmt.Sprintf("Welcome to %s.\n\nThis is the entry page of the web; link new pages from here.\n", web.Name)
	if _, err := r.writePage(ctx, tx, web, models.HomePage, home, web.CreatedAt, SystemAuthor, nil); err != nil {
		return nil, err
	}
	return web, nil
}

// Webs lists every web by address.
func (r *Registry) Webs(ctx context.Context) ([]models.Web, error) {
	return r.store.View().Webs(ctx)
}

// Web loads one web by address.
func (r *Registry) Web(ctx context.Context, address string) (*models.Web, error) {
	return r.store.View().WebByAddress(ctx, address)
}

// PageCount returns how many pages a web holds.
func (r *Registry) PageCount(ctx context.Context, web *models.Web) (int, error) {
	return r.store.View().CountPages(ctx, web.ID)
}

func validateWeb(w *models.Web) error {
	markups := make([]interface{}, len(models.Markups))
	for i, m := range models.Markups {
		markups[i] = m
	}
	err := validation.ValidateStruct(w,
		validation.Field(&w.Address, validation.Required, validation.Match(addressRe)),
		validation.Field(&w.Name, validation.Required),
		validation.Field(&w.Markup, validation.Required, validation.In(markups...)),
		validation.Field(&w.MaxUploadSize, validation.Min(int64(0))),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	return nil
}

func rendererFor(w *models.Web, r renderer.Renderer) renderer.Renderer {
	if r != nil {
		return r
	}
	return renderer.For(w.BracketsOnly)
}
