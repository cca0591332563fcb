package wiki

import (
	"context"
	"crypto/subtle"

	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/store"
)

// Authenticate checks candidate against the system password. While no
// system password is stored the installation default applies; it is never
// treated as "authentication disabled".
func (r *Registry) Authenticate(ctx context.Context, candidate string) (bool, error) {
	return r.authenticate(ctx, r.store.View(), candidate)
}

func (r *Registry) authenticate(ctx context.Context, tx *store.Tx, candidate string) (bool, error) {
	sys, err := tx.System(ctx)
	if err != nil {
		return false, err
	}
	return r.matchSystem(sys, candidate), nil
}

func (r *Registry) matchSystem(sys *models.System, candidate string) bool {
	secret := r.defaultPassword
	if sys.Password != nil && *sys.Password != "" {
		secret = *sys.Password
	}
	return secretsEqual(secret, candidate)
}

// AuthorizeWeb checks candidate for an administrative change to web: the
// web's own password when it has one, otherwise the system password.
func (r *Registry) AuthorizeWeb(ctx context.Context, web *models.Web, candidate string) (bool, error) {
	return r.authorizeWeb(ctx, r.store.View(), web, candidate)
}

func (r *Registry) authorizeWeb(ctx context.Context, tx *store.Tx, web *models.Web, candidate string) (bool, error) {
	if web.HasPassword() {
		return secretsEqual(*web.Password, candidate), nil
	}
	return r.authenticate(ctx, tx, candidate)
}

// secretsEqual compares in constant time. An empty secret never matches.
func secretsEqual(secret, candidate string) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(candidate)) == 1
}
