package internal

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

const appDirName = "mural"

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Autosave AutosaveConfig    `yaml:"autosave"`
	Index    IndexConfig       `yaml:"index"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Autosave.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// LogFile, when set, sends logs to a rotating file instead of stdout.
	LogFile   string     `yaml:"log_file"`
	HTTP      HTTPConfig `yaml:"http"`
	DataDir   string     `yaml:"data_dir"`
	ConfigDir string     `yaml:"config_dir"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.ConfigDir, validation.Required),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds the UI bridge listener configuration.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate validates the HTTP configuration. The bridge only listens on
// loopback addresses.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Host, validation.Required, validation.By(loopbackHost)),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

func loopbackHost(value any) error {
	host, _ := value.(string)
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("must be a loopback address")
}

// AutosaveConfig tunes note and canvas-state persistence.
type AutosaveConfig struct {
	// FlushTimeout bounds how long a flush waits for a note to settle.
	FlushTimeout time.Duration `yaml:"flush_timeout"`
	// StateDebounce delays canvas-state writes to coalesce bursts.
	StateDebounce time.Duration `yaml:"state_debounce"`
	// WatchDebounce delays vault listings after filesystem events.
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// Validate validates the autosave configuration.
func (c *AutosaveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.FlushTimeout, validation.Required, validation.Min(100*time.Millisecond)),
		validation.Field(&c.StateDebounce, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.WatchDebounce, validation.Required, validation.Min(time.Millisecond)),
	)
}

// IndexConfig holds the SQLite search index configuration.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds bridge authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values. The
// data and config directories default to the per-user locations of the
// operating system.
func NewDefaultConfig() *Config {
	configDir := filepath.Join(userDir(os.UserConfigDir), appDirName)
	dataDir := filepath.Join(userDir(os.UserCacheDir), appDirName)
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			HTTP:      HTTPConfig{Host: "127.0.0.1", Port: 8417},
			DataDir:   dataDir,
			ConfigDir: configDir,
		},
		Autosave: AutosaveConfig{
			FlushTimeout:  3 * time.Second,
			StateDebounce: 500 * time.Millisecond,
			WatchDebounce: 200 * time.Millisecond,
		},
		Index: IndexConfig{
			Path: filepath.Join(dataDir, "index.db"),
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

func userDir(lookup func() (string, error)) string {
	if dir, err := lookup(); err == nil && dir != "" {
		return dir
	}
	return "."
}
