package internal

import (
	"errors"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/sowilo/internal/linkgraph"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Wiki    WikiConfig        `yaml:"wiki"`
	Uploads UploadsConfig     `yaml:"uploads"`
	Import  ImportConfig      `yaml:"import"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.SQLite, &c.Wiki, &c.Uploads, &c.Import} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
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

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// WikiConfig holds wiki-wide behaviour.
//
// DefaultPassword is the system secret accepted until an administrator
// sets one; empty keeps the built-in default. OrphanPolicy is "referenced"
// or "reachable".
type WikiConfig struct {
	DefaultPassword string `yaml:"default_password"`
	OrphanPolicy    string `yaml:"orphan_policy"`
}

// Validate validates the wiki configuration.
func (c *WikiConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.OrphanPolicy, validation.By(func(any) error {
			_, err := linkgraph.ParsePolicy(c.OrphanPolicy)
			return err
		})),
	)
}

// Policy returns the parsed orphan policy. Call after Validate.
func (c *WikiConfig) Policy() linkgraph.Policy {
	p, _ := linkgraph.ParsePolicy(c.OrphanPolicy)
	return p
}

// UploadsConfig holds the directory uploaded files are stored in.
type UploadsConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the uploads configuration.
func (c *UploadsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ImportConfig controls the import tree. Files at <path>/<web>/<Page>.md are
// written as page revisions on startup and whenever they change.
type ImportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the import configuration.
func (c *ImportConfig) Validate() error {
	if c.Enabled && c.Path == "" {
		return errors.New("import: enabled but path is empty")
	}
	return nil
}

// AuthConfig holds authentication configuration for the JSON API. Wiki
// administration is additionally guarded by the system and web passwords.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./sowilo.db",
		},
		Wiki: WikiConfig{
			OrphanPolicy: string(linkgraph.PolicyReferenced),
		},
		Uploads: UploadsConfig{
			Path: "./uploads",
		},
		Import: ImportConfig{
			Path: "./import",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
