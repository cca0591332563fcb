package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starford/sowilo/internal/checksum"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	f, err := NewFS(t.TempDir())
	require.NoError(t, err)
	return f
}

func TestFS_WriteReadStat(t *testing.T) {
	f := newTestFS(t)
	content := []byte("\x89PNG fake image")
	require.NoError(t, f.Write("wiki1/pic.png", content))

	got, err := f.Read("wiki1/pic.png")
	require.NoError(t, err)
	require.Equal(t, content, got)

	info, err := f.Stat("wiki1/pic.png")
	require.NoError(t, err)
	require.Equal(t, "wiki1/pic.png", info.Path)
	require.EqualValues(t, len(content), info.Size)
	require.Equal(t, checksum.Sum(content), info.Checksum)
	require.False(t, info.UpdatedAt.IsZero())

	_, err = f.Stat("wiki1")
	require.Error(t, err, "directories are not files")
	_, err = f.Stat("wiki1/missing.png")
	require.Error(t, err)
}

func TestFS_OverwriteLeavesNoTempFiles(t *testing.T) {
	f := newTestFS(t)
	require.NoError(t, f.Write("wiki1/notes.txt", []byte("first")))
	require.NoError(t, f.Write("wiki1/notes.txt", []byte("second")))

	got, err := f.Read("wiki1/notes.txt")
	require.NoError(t, err)
	require.Equal(t, "second", string(got))

	leftovers, err := filepath.Glob(filepath.Join(f.Root(), "wiki1", tempPrefix+"*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestFS_Delete(t *testing.T) {
	f := newTestFS(t)
	require.NoError(t, f.Write("wiki1/old.txt", []byte("bye")))
	require.NoError(t, f.Delete("wiki1/old.txt"))
	_, err := f.Read("wiki1/old.txt")
	require.Error(t, err)
	require.Error(t, f.Delete("wiki1/old.txt"))
}

func TestFS_List(t *testing.T) {
	f := newTestFS(t)
	require.NoError(t, f.Write("wiki1/HomePage.md", []byte("a")))
	require.NoError(t, f.Write("wiki1/sub/Oak.md", []byte("b")))
	require.NoError(t, f.Write("instiki/Elephant.md", []byte("c")))
	require.NoError(t, f.Write("wiki1/readme.txt", []byte("not a page")))
	require.NoError(t, os.WriteFile(filepath.Join(f.Root(), "wiki1", ".hidden.md"), []byte("x"), 0o644))

	pages, err := f.List("", ".md")
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for _, p := range pages {
		require.EqualValues(t, 1, p.Size)
		require.NotEmpty(t, p.Checksum)
	}

	web, err := f.List("wiki1", "")
	require.NoError(t, err)
	paths := make([]string, 0, len(web))
	for _, p := range web {
		paths = append(paths, p.Path)
	}
	require.ElementsMatch(t, []string{"wiki1/HomePage.md", "wiki1/sub/Oak.md", "wiki1/readme.txt"}, paths)

	none, err := f.List("nowhere", "")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestFS_MoveWebDirectory(t *testing.T) {
	f := newTestFS(t)
	require.NoError(t, f.Write("wiki1/pic.png", []byte("png")))

	require.NoError(t, f.Move("wiki1", "renamed"))
	got, err := f.Read("renamed/pic.png")
	require.NoError(t, err)
	require.Equal(t, "png", string(got))
	_, err = f.Read("wiki1/pic.png")
	require.Error(t, err)

	require.NoError(t, f.Move("never-uploaded", "other"), "moving an absent web is a no-op")
}

func TestFS_RejectsPathsOutsideRoot(t *testing.T) {
	f := newTestFS(t)
	for _, p := range []string{"../../etc/passwd", "../outside.md", "/etc/shadow", "wiki1/../../x"} {
		t.Run(p, func(t *testing.T) {
			_, err := f.Read(p)
			require.Error(t, err)
			require.Error(t, f.Write(p, []byte("x")))
			require.Error(t, f.Move(p, "x"))
			_, err = f.List(p, "")
			require.Error(t, err)
		})
	}
	require.Error(t, f.Write("", []byte("x")))
}

func TestNewFS_Errors(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = NewFS(file)
	require.Error(t, err)
}
