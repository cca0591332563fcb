package wiki_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/linkgraph"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/testutil"
	"github.com/starford/sowilo/internal/wiki"
)

func pageNames(t *testing.T, reg *wiki.Registry, address string) []string {
	t.Helper()
	pages, err := reg.Pages(context.Background(), address)
	require.NoError(t, err)
	names := make([]string, 0, len(pages))
	for _, p := range pages {
		names = append(names, p.Name)
	}
	return names
}

func removedNames(pages []models.Page) []string {
	names := make([]string, 0, len(pages))
	for _, p := range pages {
		names = append(names, p.Name)
	}
	return names
}

func writePine(t *testing.T, reg *wiki.Registry) {
	t.Helper()
	_, err := reg.WritePage(context.Background(), "wiki1", "Pine", "Refers to [[Oak]].\ncategory: trees",
		time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), testutil.TreeHugger, nil)
	require.NoError(t, err)
}

func TestRemoveOrphanedPages_SinglePass(t *testing.T) {
	reg := testutil.TestRegistry(t)
	testutil.SeedWiki(t, reg)
	writePine(t, reg)
	ctx := context.Background()

	preview, err := reg.OrphanedPages(ctx, "wiki1")
	require.NoError(t, err)
	require.Equal(t, []string{"Pine"}, preview)

	removed, err := reg.RemoveOrphanedPages(ctx, testutil.SystemPassword, "wiki1")
	require.NoError(t, err)
	require.Equal(t, []string{"Pine"}, removedNames(removed))
	require.Equal(t, []string{"HomePage", "MyWay", "Oak", "SmartEngine", "ThatWay"}, pageNames(t, reg, "wiki1"))

	removed, err = reg.RemoveOrphanedPages(ctx, testutil.SystemPassword, "wiki1")
	require.NoError(t, err)
	require.Equal(t, []string{"Oak"}, removedNames(removed))
	require.Equal(t, []string{"HomePage", "MyWay", "SmartEngine", "ThatWay"}, pageNames(t, reg, "wiki1"))

	removed, err = reg.RemoveOrphanedPages(ctx, testutil.SystemPassword, "wiki1")
	require.NoError(t, err)
	require.Empty(t, removed)
	require.Equal(t, []string{"HomePage", "MyWay", "SmartEngine", "ThatWay"}, pageNames(t, reg, "wiki1"))

	require.Equal(t, []string{"Elephant", "HomePage"}, pageNames(t, reg, "instiki"), "other webs are untouched")
}

func TestRemoveOrphanedPages_ReachablePolicy(t *testing.T) {
	reg := testutil.TestRegistry(t, wiki.WithOrphanPolicy(linkgraph.PolicyReachable))
	testutil.SeedWiki(t, reg)
	writePine(t, reg)
	ctx := context.Background()

	removed, err := reg.RemoveOrphanedPages(ctx, testutil.SystemPassword, "wiki1")
	require.NoError(t, err)
	require.Equal(t, []string{"Oak", "Pine"}, removedNames(removed))

	removed, err = reg.RemoveOrphanedPages(ctx, testutil.SystemPassword, "wiki1")
	require.NoError(t, err)
	require.Empty(t, removed)
}

func TestRemoveOrphanedPages_HomePageSurvives(t *testing.T) {
	reg := testutil.TestRegistry(t)
	ctx := context.Background()
	_, err := reg.Bootstrap(ctx, "pswd", "Lonely", "lonely")
	require.NoError(t, err)

	removed, err := reg.RemoveOrphanedPages(ctx, "pswd", "lonely")
	require.NoError(t, err)
	require.Empty(t, removed)
	require.Equal(t, []string{models.HomePage}, pageNames(t, reg, "lonely"))
}

func TestRemoveOrphanedPages_AuthorPagesSurvive(t *testing.T) {
	reg := testutil.TestRegistry(t)
	testutil.SeedWiki(t, reg)
	ctx := context.Background()
	_, err := reg.WritePage(ctx, "wiki1", "TreeHugger", "I hug trees.", time.Time{}, testutil.TreeHugger, nil)
	require.NoError(t, err)

	removed, err := reg.RemoveOrphanedPages(ctx, testutil.SystemPassword, "wiki1")
	require.NoError(t, err)
	require.Equal(t, []string{"Oak"}, removedNames(removed))
	require.Contains(t, pageNames(t, reg, "wiki1"), "TreeHugger")
}

func TestRemoveOrphanedPages_RequiresSystemPassword(t *testing.T) {
	reg := testutil.TestRegistry(t)
	testutil.SeedWiki(t, reg)
	writePine(t, reg)
	ctx := context.Background()

	_, err := reg.RemoveOrphanedPages(ctx, "wrong", "wiki1")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	require.Contains(t, pageNames(t, reg, "wiki1"), "Pine", "failed call must not remove anything")

	_, err = reg.RemoveOrphanedPages(ctx, testutil.SystemPassword, "nowhere")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestWantedAndBacklinks(t *testing.T) {
	reg := testutil.TestRegistry(t)
	testutil.SeedWiki(t, reg)
	ctx := context.Background()
	_, err := reg.WritePage(ctx, "wiki1", "ThatWay", "Go to [[MissingPage]].", time.Time{}, testutil.TreeHugger, nil)
	require.NoError(t, err)

	wanted, err := reg.WantedPages(ctx, "wiki1")
	require.NoError(t, err)
	require.Equal(t, []linkgraph.Wanted{{Name: "MissingPage", ReferencedBy: []string{"ThatWay"}}}, wanted)

	back, err := reg.Backlinks(ctx, "wiki1", "HomePage")
	require.NoError(t, err)
	require.Equal(t, []string{"MyWay"}, back)
}
