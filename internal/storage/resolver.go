package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/starford/mural/internal/apperr"
)

// PreferencesFile is the name of the per-installation preferences document.
const PreferencesFile = "preferences.json"

// DefaultVaultDir is the vault used when no preference is stored, relative
// to the data directory.
const DefaultVaultDir = "vault"

// Resolver resolves the active vault directory from the preferences
// document. The document is re-checked on every call so that a vault
// chosen at runtime takes effect without a restart.
type Resolver struct {
	configDir string
	dataDir   string

	mu       sync.Mutex
	prefsMod time.Time
	prefsLen int64
	vault    string // value read from preferences, "" for default
	loaded   bool
}

// NewResolver creates a resolver reading preferences from configDir and
// falling back to a vault under dataDir.
func NewResolver(configDir, dataDir string) *Resolver {
	return &Resolver{configDir: configDir, dataDir: dataDir}
}

// PreferencesPath returns the absolute location of the preferences document.
func (r *Resolver) PreferencesPath() string {
	return filepath.Join(r.configDir, PreferencesFile)
}

// DefaultRoot returns the fallback vault directory.
func (r *Resolver) DefaultRoot() string {
	return filepath.Join(r.dataDir, DefaultVaultDir)
}

// Root returns the absolute vault directory, creating the default vault if
// it does not exist yet. A user-chosen vault that has disappeared yields
// ErrVaultUnavailable.
func (r *Resolver) Root() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.refreshLocked(); err != nil {
		return "", err
	}

	root := r.vault
	if root == "" {
		root = r.DefaultRoot()
		if err := os.MkdirAll(root, 0o755); err != nil {
			return "", apperr.IO("storage: create default vault", root, err)
		}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", apperr.IO("storage: resolve vault", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", apperr.New(apperr.ErrVaultUnavailable, "storage: vault", abs)
	}
	return abs, nil
}

// refreshLocked re-reads the preferences document when its size or
// modification time changed since the last read.
func (r *Resolver) refreshLocked() error {
	info, err := os.Stat(r.PreferencesPath())
	if errors.Is(err, os.ErrNotExist) {
		r.vault, r.loaded = "", true
		r.prefsMod, r.prefsLen = time.Time{}, 0
		return nil
	}
	if err != nil {
		return apperr.IO("storage: stat preferences", r.PreferencesPath(), err)
	}
	if r.loaded && info.ModTime().Equal(r.prefsMod) && info.Size() == r.prefsLen {
		return nil
	}

	prefs, err := r.readPreferences()
	if err != nil {
		return err
	}
	var vault string
	if v, ok := prefs["vaultPath"].(string); ok {
		vault = v
	}
	r.vault, r.loaded = vault, true
	r.prefsMod, r.prefsLen = info.ModTime(), info.Size()
	return nil
}

func (r *Resolver) readPreferences() (map[string]any, error) {
	prefs := map[string]any{}
	data, err := os.ReadFile(r.PreferencesPath())
	if errors.Is(err, os.ErrNotExist) {
		return prefs, nil
	}
	if err != nil {
		return nil, apperr.IO("storage: read preferences", r.PreferencesPath(), err)
	}
	if len(data) == 0 {
		return prefs, nil
	}
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("storage: preferences %s: %w: %v", r.PreferencesPath(), apperr.ErrMalformedData, err)
	}
	return prefs, nil
}

// SetVaultPath stores dir as the vault preference. dir must be an existing
// directory; other preference fields are preserved.
func (r *Resolver) SetVaultPath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", apperr.IO("storage: resolve vault", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", apperr.New(apperr.ErrNotFound, "storage: set vault", abs)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prefs, err := r.readPreferences()
	if err != nil {
		return "", err
	}
	prefs["vaultPath"] = abs
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("storage: encode preferences: %w", err)
	}
	if err := os.MkdirAll(r.configDir, 0o755); err != nil {
		return "", apperr.IO("storage: create config dir", r.configDir, err)
	}
	if err := WriteAtomic(r.PreferencesPath(), data); err != nil {
		return "", err
	}
	r.loaded = false
	return abs, nil
}
