// Package storage is the only layer that touches vault files: it resolves
// the vault directory, performs file operations on notes, and watches the
// vault for added and removed files.
package storage

import "github.com/starford/mural/internal/models"

// Provider is the interface for vault file operations. Paths are either
// vault-relative or absolute (legacy note references).
type Provider interface {
	// Root returns the absolute vault directory.
	Root() (string, error)
	// Create writes an empty document named name with the extension of kind
	// and returns its vault-relative path.
	Create(name string, kind models.Kind) (string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the content of the file at path.
	Write(path string, content []byte) error
	// Rename gives the file at oldPath the base name newBase, keeping its
	// original extension, and returns the new vault-relative path.
	Rename(oldPath, newBase string) (string, error)
	// Delete removes the file at path.
	Delete(path string) error
	// List returns the vault's note files, newest first.
	List() ([]models.VaultFile, error)
	// Exists reports whether path resolves to an existing file.
	Exists(path string) bool
}
