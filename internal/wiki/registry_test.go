package wiki_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/testutil"
	"github.com/starford/sowilo/internal/wiki"
)

func TestBootstrap_CreatesFirstWeb(t *testing.T) {
	reg := testutil.TestRegistry(t)
	ctx := context.Background()

	ok, err := reg.IsInitialized(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	web, err := reg.Bootstrap(ctx, "pswd", "My Wiki", "wiki1")
	require.NoError(t, err)
	require.Equal(t, "wiki1", web.Address)
	require.Equal(t, models.MarkupTextile, web.Markup)
	require.Equal(t, models.DefaultColor, web.Color)
	require.Equal(t, models.DefaultMaxUploadSize, web.MaxUploadSize)
	require.False(t, web.SafeMode || web.Published || web.BracketsOnly || web.CountPages || web.AllowUploads)

	ok, err = reg.IsInitialized(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	home, err := reg.Page(ctx, "wiki1", models.HomePage)
	require.NoError(t, err)
	require.Equal(t, 1, home.Revisions)
	require.Equal(t, wiki.SystemAuthor, home.Current.Author)

	ok, err = reg.Authenticate(ctx, "pswd")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBootstrap_RejectedOnceInitialized(t *testing.T) {
	reg := testutil.TestRegistry(t)
	ctx := context.Background()
	_, err := reg.Bootstrap(ctx, "pswd", "My Wiki", "wiki1")
	require.NoError(t, err)

	_, err = reg.Bootstrap(ctx, "other", "Second", "wiki2")
	require.ErrorIs(t, err, apperr.ErrAlreadyInitialized)

	webs, err := reg.Webs(ctx)
	require.NoError(t, err)
	require.Len(t, webs, 1)
	ok, err := reg.Authenticate(ctx, "pswd")
	require.NoError(t, err)
	require.True(t, ok, "system password must be unchanged")
	ok, err = reg.Authenticate(ctx, "other")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBootstrap_InvalidAddressLeavesNothing(t *testing.T) {
	reg := testutil.TestRegistry(t)
	ctx := context.Background()
	_, err := reg.Bootstrap(ctx, "pswd", "My Wiki", "not an address")
	require.ErrorIs(t, err, apperr.ErrInvalid)

	ok, err := reg.IsInitialized(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = reg.Authenticate(ctx, "pswd")
	require.NoError(t, err)
	require.False(t, ok, "password must not be stored when bootstrap fails")
}

func TestAuthenticate_DefaultPassword(t *testing.T) {
	reg := testutil.TestRegistry(t)
	ctx := context.Background()

	ok, err := reg.Authenticate(ctx, wiki.DefaultPassword)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = reg.Authenticate(ctx, "")
	require.NoError(t, err)
	require.False(t, ok, "empty candidate never authenticates")

	_, err = reg.Bootstrap(ctx, "", "My Wiki", "wiki1")
	require.NoError(t, err)
	ok, err = reg.Authenticate(ctx, wiki.DefaultPassword)
	require.NoError(t, err)
	require.True(t, ok, "an empty system password keeps the default secret")
}

func TestAuthenticate_ConfiguredDefault(t *testing.T) {
	reg := testutil.TestRegistry(t, wiki.WithDefaultPassword("changeme"))
	ok, err := reg.Authenticate(context.Background(), "changeme")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = reg.Authenticate(context.Background(), wiki.DefaultPassword)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCreateWeb(t *testing.T) {
	reg := testutil.TestRegistry(t)
	testutil.SeedWiki(t, reg)
	ctx := context.Background()

	_, err := reg.CreateWeb(ctx, "wrong", "Other", "other")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = reg.CreateWeb(ctx, testutil.SystemPassword, "Again", "wiki1")
	require.ErrorIs(t, err, apperr.ErrDuplicateAddress)

	web, err := reg.CreateWeb(ctx, testutil.SystemPassword, "Other", "other")
	require.NoError(t, err)
	require.Equal(t, "Other", web.Name)

	webs, err := reg.Webs(ctx)
	require.NoError(t, err)
	var addrs []string
	for _, w := range webs {
		addrs = append(addrs, w.Address)
	}
	require.Equal(t, []string{"instiki", "other", "wiki1"}, addrs)

	n, err := reg.PageCount(ctx, web)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestWeb_NotFound(t *testing.T) {
	reg := testutil.TestRegistry(t)
	_, err := reg.Web(context.Background(), "nowhere")
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}
