// Package storage defines the file-system abstraction behind web uploads and
// the page import tree.
package storage

import "time"

// File describes one stored file.
type File struct {
	Path      string    `json:"path"` // relative to the provider root, slash separated
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for file operations relative to a root directory.
type Provider interface {
	// List returns every regular file under dir whose name ends in ext.
	// An empty ext lists all files; a missing dir yields no files.
	List(dir, ext string) ([]File, error)
	// Stat describes the file at path, checksum included.
	Stat(path string) (File, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath. Either may be a directory; a missing
	// oldPath is not an error.
	Move(oldPath, newPath string) error
}
