// Package storage defines the file-system abstraction for content and media
// directories.
package storage

import "github.com/iteam-company/blockpress/internal/models"

// Provider is the interface for file operations relative to a root directory.
type Provider interface {
	// List returns metadata for every file under dir whose extension is in
	// exts. An empty exts lists every file.
	List(dir string, exts []string) ([]models.SourceFile, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
	// Root returns the absolute root directory.
	Root() string
}
