// Package admin serializes administrative changes to the wiki and fans them
// out to subscribers. Every state-changing operation of the HTTP, MCP and
// import surfaces goes through a Service.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/renderer"
	"github.com/starford/sowilo/internal/storage"
	"github.com/starford/sowilo/internal/wiki"
)

// Event kinds passed to an EventFunc.
const (
	EventWebCreated   = "web.created"
	EventWebUpdated   = "web.updated"
	EventPageWritten  = "page.written"
	EventPageRemoved  = "page.removed"
	EventFileUploaded = "file.uploaded"
)

// EventFunc receives a notification after a change has been committed.
// page is empty for web-level events.
type EventFunc func(kind, web, page string)

// Service fronts the wiki registry for administrative and editing operations.
type Service struct {
	reg     *wiki.Registry
	uploads storage.Provider
	events  EventFunc
	logger  *slog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithUploads stores uploaded files in p, one directory per web address.
func WithUploads(p storage.Provider) Option {
	return func(s *Service) { s.uploads = p }
}

// WithEvents registers fn for change notifications.
func WithEvents(fn EventFunc) Option {
	return func(s *Service) { s.events = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service over reg.
func NewService(reg *wiki.Registry, opts ...Option) *Service {
	s := &Service{
		reg:    reg,
		events: func(string, string, string) {},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the underlying registry for read-only queries.
func (s *Service) Registry() *wiki.Registry {
	return s.reg
}

// webLock returns the mutex guarding changes to the web at address.
func (s *Service) webLock(address string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	if s.locks[address] == nil {
		s.locks[address] = &sync.Mutex{}
	}
	return s.locks[address]
}

// lock acquires the locks of every distinct address in sorted order and
// returns a function releasing them.
func (s *Service) lock(addresses ...string) func() {
	uniq := make([]string, 0, len(addresses))
	seen := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		uniq = append(uniq, a)
	}
	sort.Strings(uniq)

	held := make([]*sync.Mutex, 0, len(uniq))
	for _, a := range uniq {
		mu := s.webLock(a)
		mu.Lock()
		held = append(held, mu)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// Bootstrap initializes an empty wiki with its system password and first web.
func (s *Service) Bootstrap(ctx context.Context, password, webName, webAddress string) (*models.Web, error) {
	defer s.lock(webAddress)()
	web, err := s.reg.Bootstrap(ctx, password, webName, webAddress)
	if err != nil {
		return nil, err
	}
	s.events(EventWebCreated, web.Address, "")
	s.events(EventPageWritten, web.Address, models.HomePage)
	return web, nil
}

// CreateWeb adds a web after checking the system password.
func (s *Service) CreateWeb(ctx context.Context, systemPassword, name, address string) (*models.Web, error) {
	defer s.lock(address)()
	web, err := s.reg.CreateWeb(ctx, systemPassword, name, address)
	if err != nil {
		s.logFailure("create web", address, err)
		return nil, err
	}
	s.logger.Info("web created", slog.String("web", web.Address))
	s.events(EventWebCreated, web.Address, "")
	s.events(EventPageWritten, web.Address, models.HomePage)
	return web, nil
}

// EditWeb applies edit to the web at address. A rename also moves the web's
// uploaded files to the new address.
func (s *Service) EditWeb(ctx context.Context, address, password string, edit wiki.WebEdit) (*models.Web, error) {
	target := address
	if edit.Address != nil {
		target = strings.TrimSpace(*edit.Address)
	}
	defer s.lock(address, target)()

	web, err := s.reg.EditWeb(ctx, address, password, edit)
	if err != nil {
		s.logFailure("edit web", address, err)
		return nil, err
	}
	if web.Address != address && s.uploads != nil {
		if err := s.uploads.Move(address, web.Address); err != nil {
			s.logger.Error("move uploads after rename",
				slog.String("from", address),
				slog.String("to", web.Address),
				slog.String("error", err.Error()))
		}
	}
	s.events(EventWebUpdated, web.Address, "")
	return web, nil
}

// RemoveOrphanedPages prunes one pass of orphaned pages from the web.
func (s *Service) RemoveOrphanedPages(ctx context.Context, systemPassword, address string) ([]models.Page, error) {
	defer s.lock(address)()
	removed, err := s.reg.RemoveOrphanedPages(ctx, systemPassword, address)
	if err != nil {
		s.logFailure("remove orphaned pages", address, err)
		return nil, err
	}
	for _, p := range removed {
		s.events(EventPageRemoved, address, p.Name)
	}
	return removed, nil
}

// WritePage stores a new revision of a page dated at; a zero at means now.
func (s *Service) WritePage(ctx context.Context, address, name, content string, at time.Time, author models.Author, rend renderer.Renderer) (*models.Page, error) {
	defer s.lock(address)()
	page, err := s.reg.WritePage(ctx, address, name, content, at, author, rend)
	if err != nil {
		return nil, err
	}
	s.events(EventPageWritten, address, page.Name)
	return page, nil
}

// Rollback restores the content of revision n as a new revision.
func (s *Service) Rollback(ctx context.Context, address, name string, n int, author models.Author) (*models.Page, error) {
	defer s.lock(address)()
	page, err := s.reg.Rollback(ctx, address, name, n, time.Time{}, author)
	if err != nil {
		return nil, err
	}
	s.events(EventPageWritten, address, page.Name)
	return page, nil
}

// SaveUpload stores a file for the web after checking its upload policy.
// Only the base name of filename is kept.
func (s *Service) SaveUpload(ctx context.Context, address, filename string, data []byte) (*storage.File, error) {
	if s.uploads == nil {
		return nil, apperr.ErrUploadsDisabled
	}
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%w: file name %q", apperr.ErrInvalid, filename)
	}

	defer s.lock(address)()
	if _, err := s.reg.CheckUpload(ctx, address, int64(len(data))); err != nil {
		return nil, err
	}
	rel := path.Join(address, name)
	if err := s.uploads.Write(rel, data); err != nil {
		return nil, err
	}
	s.events(EventFileUploaded, address, name)
	file, err := s.uploads.Stat(rel)
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// Upload returns the bytes of an uploaded file.
func (s *Service) Upload(ctx context.Context, address, filename string) ([]byte, error) {
	if s.uploads == nil {
		return nil, apperr.ErrNotFound
	}
	if _, err := s.reg.Web(ctx, address); err != nil {
		return nil, err
	}
	data, err := s.uploads.Read(path.Join(address, path.Base(filename)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, apperr.ErrNotFound)
	}
	return data, nil
}

// Uploads lists the files uploaded to a web.
func (s *Service) Uploads(ctx context.Context, address string) ([]storage.File, error) {
	if _, err := s.reg.Web(ctx, address); err != nil {
		return nil, err
	}
	if s.uploads == nil {
		return nil, nil
	}
	return s.uploads.List(address, "")
}

func (s *Service) logFailure(op, address string, err error) {
	level := slog.LevelError
	switch {
	case errors.Is(err, apperr.ErrUnauthorized),
		errors.Is(err, apperr.ErrInvalid),
		errors.Is(err, apperr.ErrDuplicateAddress),
		errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrAlreadyInitialized):
		level = slog.LevelWarn
	}
	s.logger.Log(context.Background(), level, op+" failed",
		slog.String("web", address),
		slog.String("error", err.Error()))
}
