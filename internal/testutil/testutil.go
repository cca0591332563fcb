// Package testutil provides shared test helpers for setting up stores, upload
// directories and a seeded wiki.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/storage"
	"github.com/starford/sowilo/internal/store"
	"github.com/starford/sowilo/internal/wiki"
)

// SystemPassword is the system password of the seeded wiki.
const SystemPassword = "pswd"

// TreeHugger authors the pages a test writes on top of the fixture.
var TreeHugger = models.Author{Name: "TreeHugger", IP: "127.0.0.2"}

// TestStore creates a temporary SQLite store that is automatically cleaned up.
func TestStore(t *testing.T) *store.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "sowilo-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	st, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// TestFiles creates a temporary directory with a storage.Provider.
func TestFiles(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	files, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, files
}

// TestRegistry returns a registry over a fresh, uninitialized store.
func TestRegistry(t *testing.T, opts ...wiki.Option) *wiki.Registry {
	t.Helper()
	return wiki.NewRegistry(TestStore(t), opts...)
}

// SeedWiki initializes reg with the standard fixture:
//
//	wiki1:  HomePage -> MyWay, SmartEngine, ThatWay
//	        MyWay -> HomePage
//	        SmartEngine, ThatWay (no links)
//	        Oak ("category: trees", linked from nowhere)
//	instiki: HomePage, Elephant
//
// The system password is SystemPassword.
func SeedWiki(t *testing.T, reg *wiki.Registry) {
	t.Helper()
	ctx := context.Background()
	if _, err := reg.Bootstrap(ctx, SystemPassword, "Wiki One", "wiki1"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, err := reg.CreateWeb(ctx, SystemPassword, "Instiki", "instiki"); err != nil {
		t.Fatalf("create web: %v", err)
	}

	at := time.Date(2004, 4, 4, 15, 50, 0, 0, time.UTC)
	author := models.Author{Name: "DavidHeinemeierHansson", IP: "127.0.0.1"}
	pages := []struct{ web, name, content string }{
		{"wiki1", "HomePage", "That Way to [[MyWay]] via [[SmartEngine]] and [[ThatWay]]."},
		{"wiki1", "MyWay", "Back to [[HomePage]]."},
		{"wiki1", "SmartEngine", "A smart engine."},
		{"wiki1", "ThatWay", "That way."},
		{"wiki1", "Oak", "All about oak.\ncategory: trees"},
		{"instiki", "Elephant", "All about elephants.\ncategory: animals"},
	}
	for _, p := range pages {
		if _, err := reg.WritePage(ctx, p.web, p.name, p.content, at, author, nil); err != nil {
			t.Fatalf("seed %s/%s: %v", p.web, p.name, err)
		}
	}
}
