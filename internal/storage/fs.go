package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/mural/internal/apperr"
	"github.com/starford/mural/internal/models"
	"github.com/starford/mural/internal/parser"
	"github.com/starford/mural/internal/scene"
)

// FS implements Provider on the local file system. The vault root is
// resolved on every operation.
type FS struct {
	resolver *Resolver
}

var _ Provider = (*FS)(nil)

// NewFS creates a new FS provider using r to locate the vault.
func NewFS(r *Resolver) *FS {
	return &FS{resolver: r}
}

// Root returns the absolute vault directory.
func (f *FS) Root() (string, error) {
	return f.resolver.Root()
}

// Resolver returns the vault resolver backing f.
func (f *FS) Resolver() *Resolver {
	return f.resolver
}

// safePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
func safePath(root, rel string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if rel == "" || cleaned == "." {
		return "", apperr.New(apperr.ErrInvalidName, "storage: empty path", rel)
	}
	joined := filepath.Join(root, cleaned)
	if !within(root, joined) {
		return "", apperr.New(apperr.ErrInvalidName, "storage: path escapes vault root", rel)
	}
	return joined, nil
}

func within(root, abs string) bool {
	return strings.HasPrefix(abs, root+string(os.PathSeparator))
}

// resolveRead honours absolute paths as-is and resolves relative paths
// under the vault root.
func (f *FS) resolveRead(path string) (string, string, error) {
	root, err := f.Root()
	if err != nil {
		return "", "", err
	}
	if filepath.IsAbs(path) {
		return root, filepath.Clean(path), nil
	}
	abs, err := safePath(root, path)
	return root, abs, err
}

// resolveWrite is resolveRead, except that an absolute path outside the
// vault is re-resolved by file name under the vault root: mutations never
// land outside the vault.
func (f *FS) resolveWrite(path string) (string, string, error) {
	root, abs, err := f.resolveRead(path)
	if err != nil {
		return "", "", err
	}
	if !within(root, abs) {
		abs, err = safePath(root, filepath.Base(abs))
	}
	return root, abs, err
}

// validBase checks a user-supplied base name.
func validBase(name string) (string, error) {
	base := models.StripExt(strings.TrimSpace(name))
	base = strings.TrimSpace(base)
	switch {
	case base == "", base == ".", base == "..":
		return "", apperr.New(apperr.ErrInvalidName, "storage: name", name)
	case strings.ContainsAny(base, `/\`), strings.ContainsRune(base, 0):
		return "", apperr.New(apperr.ErrInvalidName, "storage: name has path separators", name)
	case strings.HasPrefix(base, "."):
		return "", apperr.New(apperr.ErrInvalidName, "storage: hidden names are reserved", name)
	}
	return base, nil
}

func rel(root, abs string) string {
	if r, err := filepath.Rel(root, abs); err == nil && !strings.HasPrefix(r, "..") {
		return filepath.ToSlash(r)
	}
	return abs
}

// Create writes an empty document of the given kind. Any recognized
// extension already on name is replaced by the kind's extension.
func (f *FS) Create(name string, kind models.Kind) (string, error) {
	if !kind.Valid() {
		return "", apperr.New(apperr.ErrInvalidName, "storage: create: unknown note type", string(kind))
	}
	base, err := validBase(name)
	if err != nil {
		return "", err
	}
	root, err := f.Root()
	if err != nil {
		return "", err
	}
	relPath := base + kind.Extension()
	abs, err := safePath(root, relPath)
	if err != nil {
		return "", err
	}

	content := []byte("\n")
	if kind == models.KindDrawing {
		content = scene.Empty()
	}

	// O_EXCL makes the existence check and the create a single step.
	file, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return "", apperr.New(apperr.ErrAlreadyExists, "storage: create", relPath)
	}
	if err != nil {
		return "", apperr.IO("storage: create", relPath, err)
	}
	if _, err := file.Write(content); err != nil {
		_ = file.Close()
		_ = os.Remove(abs)
		return "", apperr.IO("storage: create", relPath, err)
	}
	if err := file.Close(); err != nil {
		return "", apperr.IO("storage: create", relPath, err)
	}
	return relPath, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	_, abs, err := f.resolveRead(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.New(apperr.ErrNotFound, "storage: read", path)
	}
	if err != nil {
		return nil, apperr.IO("storage: read", path, err)
	}
	return data, nil
}

// Write atomically replaces the content of a vault file.
func (f *FS) Write(path string, content []byte) error {
	_, abs, err := f.resolveWrite(path)
	if err != nil {
		return err
	}
	return WriteAtomic(abs, content)
}

// Rename renames the file at oldPath to newBase plus the original file's
// extension. A recognized extension typed into newBase is discarded, so a
// rename never changes the note variant. Markdown files get their title
// line rewritten before the rename; a crash in between leaves the old name
// with the new title, never a lost update.
func (f *FS) Rename(oldPath, newBase string) (string, error) {
	base, err := validBase(newBase)
	if err != nil {
		return "", err
	}
	root, absOld, err := f.resolveRead(oldPath)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(absOld)
	if errors.Is(err, fs.ErrNotExist) {
		return "", apperr.New(apperr.ErrNotFound, "storage: rename", oldPath)
	}
	if err != nil {
		return "", apperr.IO("storage: rename", oldPath, err)
	}
	if info.IsDir() {
		return "", apperr.New(apperr.ErrNotFound, "storage: rename: not a file", oldPath)
	}

	newName := base + filepath.Ext(absOld)
	absNew, err := safePath(root, newName)
	if err != nil {
		return "", err
	}
	if absNew == absOld {
		return rel(root, absNew), nil
	}
	// A case-only rename resolves to the source itself on case-insensitive
	// systems; any other existing target is a collision.
	if other, err := os.Lstat(absNew); err == nil && !os.SameFile(info, other) {
		return "", apperr.New(apperr.ErrAlreadyExists, "storage: rename", newName)
	}

	if kind, _ := models.KindOf(absOld); kind == models.KindMarkdown {
		data, err := os.ReadFile(absOld)
		if err != nil {
			return "", apperr.IO("storage: rename: read", oldPath, err)
		}
		retitled := parser.ReplaceTitleLine(string(data), base)
		if retitled != string(data) {
			if err := WriteAtomic(absOld, []byte(retitled)); err != nil {
				return "", err
			}
		}
	}

	if err := os.Rename(absOld, absNew); err != nil {
		return "", apperr.IO("storage: rename", oldPath, err)
	}
	return rel(root, absNew), nil
}

// Delete removes a file from the vault.
func (f *FS) Delete(path string) error {
	_, abs, err := f.resolveWrite(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.New(apperr.ErrNotFound, "storage: delete", path)
		}
		return apperr.IO("storage: delete", path, err)
	}
	return nil
}

// Exists reports whether path resolves to an existing regular file.
func (f *FS) Exists(path string) bool {
	_, abs, err := f.resolveRead(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

// List enumerates the vault root (non-recursive) and returns every file
// with a recognized extension, newest first.
func (f *FS) List() ([]models.VaultFile, error) {
	root, err := f.Root()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, apperr.IO("storage: list", root, err)
	}

	out := make([]models.VaultFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		kind, ok := models.KindOf(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		out = append(out, models.VaultFile{
			Name:       e.Name(),
			Path:       e.Name(),
			Kind:       kind,
			ModifiedMs: info.ModTime().UnixMilli(),
			Size:       info.Size(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ModifiedMs != out[j].ModifiedMs {
			return out[i].ModifiedMs > out[j].ModifiedMs
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
