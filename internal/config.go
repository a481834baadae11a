package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeNone  = "none"
	AuthModeToken = "token"
)

// Sync backends.
const (
	SyncBackendWorker  = "worker"
	SyncBackendCatalog = "catalog"
)

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app"`
	Vault VaultConfig       `yaml:"vault"`
	DB    DBConfig          `yaml:"db"`
	Auth  AuthConfig        `yaml:"auth"`
	Sync  SyncConfig        `yaml:"sync"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.DB.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Sync.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel string     `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.Required, validation.In("debug", "info", "warn", "error")),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// SlogLevel maps the configured level name to a slog.Level.
func (c *ApplicationConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig locates the vault and its reserved files.
type VaultConfig struct {
	Path       string `yaml:"path"`
	SkillsDir  string `yaml:"skills_dir"`
	TodosFile  string `yaml:"todos_file"`
	PluginsDir string `yaml:"plugins_dir"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	if c.TodosFile == "" {
		c.TodosFile = "todos.md"
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.TodosFile, validation.Required),
	)
}

// SkillsPath returns the skills directory, defaulting to a skills/
// subdirectory of the vault when none is configured.
func (c *VaultConfig) SkillsPath() string {
	if c.SkillsDir != "" {
		return c.SkillsDir
	}
	return filepath.Join(c.Path, "skills")
}

// DBConfig holds the SQLite query-layer configuration.
type DBConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the database configuration.
func (c *DBConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "none" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeNone
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeNone, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// Enabled returns true when authentication is active.
func (c *AuthConfig) Enabled() bool {
	return c.Mode == AuthModeToken
}

// SyncConfig selects the sync backend and its connection details.
// WorkerURL, Token and CatalogPath may be left empty to fall back to
// the VAULT_SYNC_URL, VAULT_SYNC_TOKEN and VAULT_CATALOG_PATH
// environment variables.
type SyncConfig struct {
	Backend     string `yaml:"backend"`
	WorkerURL   string `yaml:"worker_url"`
	Token       string `yaml:"token"`
	CatalogPath string `yaml:"catalog_path"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(SyncBackendWorker, SyncBackendCatalog)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: "info",
			HTTP: HTTPConfig{
				Port: 8790,
			},
		},
		Vault: VaultConfig{
			Path:      "./vault",
			TodosFile: "todos.md",
		},
		DB: DBConfig{
			Path: ":memory:",
		},
		Auth: AuthConfig{
			Mode: AuthModeNone,
		},
	}
}
