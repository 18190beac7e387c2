package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/glean/internal/conversation"
	"github.com/starford/glean/internal/notestate"
	"github.com/starford/glean/internal/render"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Log formats.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Storage   StorageConfig     `yaml:"storage"`
	Inbox     InboxConfig       `yaml:"inbox"`
	Auth      AuthConfig        `yaml:"auth"`
	AI        AIConfig          `yaml:"ai"`
	Note      NoteConfig        `yaml:"note"`
	Session   SessionConfig     `yaml:"session"`
	Assistant AssistantConfig   `yaml:"assistant"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.SQLite, &c.Storage, &c.Auth, &c.AI, &c.Note, &c.Session,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatConsole)),
	); err != nil {
		return fmt.Errorf("app: %w", err)
	}
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

// StorageConfig holds the directory screenshots are written to.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// InboxConfig points at the drop folder watched for new screenshots.
// An empty Path disables the watcher.
type InboxConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether the inbox watcher should run.
func (c *InboxConfig) Enabled() bool {
	return c.Path != ""
}

// AuthConfig holds authentication configuration.
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

// AIConfig locates the remote AI service.
type AIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// ChatTimeout bounds one chat exchange, including the wait for a reply.
	ChatTimeout time.Duration `yaml:"chat_timeout"`
	// RequestTimeout bounds every HTTP request, summarize and analyze included.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.ChatTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.RequestTimeout, validation.Min(time.Duration(0))),
	); err != nil {
		return fmt.Errorf("ai: %w", err)
	}
	return nil
}

// NoteConfig tunes note persistence and annotation expiry.
type NoteConfig struct {
	AutosaveDelay   time.Duration `yaml:"autosave_delay"`
	AnnotationTTL   time.Duration `yaml:"annotation_ttl"`
	DefaultTemplate string        `yaml:"default_template"`
}

// Validate validates the note configuration.
func (c *NoteConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.AutosaveDelay, validation.Required, validation.Min(100*time.Millisecond)),
		validation.Field(&c.AnnotationTTL, validation.Required, validation.Min(time.Second)),
	); err != nil {
		return fmt.Errorf("note: %w", err)
	}
	return nil
}

// SessionConfig controls how long unused sessions stay in memory.
type SessionConfig struct {
	// IdleTimeout closes sessions unused for this long. Zero keeps them
	// until shutdown.
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// EvictionEnabled reports whether idle sessions are closed.
func (c *SessionConfig) EvictionEnabled() bool {
	return c.IdleTimeout > 0
}

// Validate validates the session configuration.
func (c *SessionConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.IdleTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.SweepInterval,
			validation.When(c.IdleTimeout > 0, validation.Required, validation.Min(time.Second))),
	); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

// AssistantConfig holds conversation settings.
type AssistantConfig struct {
	// SummarizeKeywords replace the default trigger words when set.
	SummarizeKeywords []string `yaml:"summarize_keywords"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./glean.db",
		},
		Storage: StorageConfig{
			Path: "./data/screenshots",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		AI: AIConfig{
			BaseURL:        "http://localhost:3000",
			ChatTimeout:    conversation.DefaultChatTimeout,
			RequestTimeout: 2 * time.Minute,
		},
		Note: NoteConfig{
			AutosaveDelay:   notestate.DefaultAutosaveDelay,
			AnnotationTTL:   render.DefaultExpiry,
			DefaultTemplate: notestate.DefaultTemplate,
		},
		Session: SessionConfig{
			IdleTimeout:   30 * time.Minute,
			SweepInterval: time.Minute,
		},
	}
}
