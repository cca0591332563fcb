package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/sowilo/internal/checksum"
)

const tempPrefix = ".sowilo-tmp-"

// FS implements Provider on a local directory. Web uploads live one
// directory per web address below the root.
type FS struct {
	root string // absolute
}

var _ Provider = (*FS)(nil)

// NewFS roots a provider at an existing directory.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	switch {
	case err != nil:
		return nil, fmt.Errorf("storage: stat root: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute directory the provider is rooted at.
func (f *FS) Root() string { return f.root }

// resolve maps a slash-separated relative path into the root. Absolute
// paths and anything that climbs out of the root are refused.
func (f *FS) resolve(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	local := filepath.FromSlash(rel)
	if filepath.IsAbs(local) || !filepath.IsLocal(local) {
		return "", fmt.Errorf("storage: path outside root: %s", rel)
	}
	return filepath.Join(f.root, local), nil
}

// describe builds a File for the absolute path p.
func (f *FS) describe(p string, info fs.FileInfo) (File, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return File{}, err
	}
	rel, err := filepath.Rel(f.root, p)
	if err != nil {
		return File{}, err
	}
	return File{
		Path:      filepath.ToSlash(rel),
		Size:      info.Size(),
		Checksum:  checksum.Sum(data),
		UpdatedAt: info.ModTime(),
	}, nil
}

// List walks dir and returns files ending in ext. Dot files, in-flight temp
// files among them, are skipped.
func (f *FS) List(dir, ext string) ([]File, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	var out []File
	walk := func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == base && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		name := d.Name()
		if d.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		file, err := f.describe(p, info)
		if err != nil {
			return err
		}
		out = append(out, file)
		return nil
	}
	if err := filepath.WalkDir(base, walk); err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	return out, nil
}

func (f *FS) Stat(path string) (File, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return File{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return File{}, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("storage: %s is a directory", path)
	}
	file, err := f.describe(abs, info)
	if err != nil {
		return File{}, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	return file, nil
}

func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write goes through a synced temp file in the target directory and a
// rename, so readers see either the old or the new content.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: cannot write to root")
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	if err := writeAtomic(abs, content); err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return nil
}

func writeAtomic(dst string, content []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dst), tempPrefix+"*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(content); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (f *FS) Delete(path string) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// Move is used when a web's address changes, so a web that never had
// uploads moves silently.
func (f *FS) Move(oldPath, newPath string) error {
	from, err := f.resolve(oldPath)
	if err != nil {
		return err
	}
	to, err := f.resolve(newPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(from); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("storage: move %s: %w", oldPath, err)
	}
	return nil
}
