package storage

import (
	"os"
	"path/filepath"

	"github.com/starford/mural/internal/apperr"
)

const tmpPattern = ".mural-tmp-*"

// WriteAtomic writes content to the absolute path abs: tmp file, fsync,
// rename. Readers see either the old or the new content, never a mix.
func WriteAtomic(abs string, content []byte) error {
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.IO("storage: mkdir", dir, err)
	}

	tmp, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return apperr.IO("storage: create temp", dir, err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return apperr.IO("storage: write temp", abs, err)
	}
	if err := tmp.Sync(); err != nil {
		return apperr.IO("storage: fsync", abs, err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.IO("storage: close temp", abs, err)
	}
	if info, err := os.Stat(abs); err == nil {
		_ = os.Chmod(tmpName, info.Mode().Perm())
	} else {
		_ = os.Chmod(tmpName, 0o644)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return apperr.IO("storage: rename temp", abs, err)
	}
	success = true
	return nil
}
