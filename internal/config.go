package internal

import (
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/iteam-company/blockpress/internal/converter"
	"github.com/iteam-company/blockpress/internal/mapper"
	"github.com/iteam-company/blockpress/internal/media"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Content   ContentConfig     `yaml:"content"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Media     MediaConfig       `yaml:"media"`
	Converter ConverterConfig   `yaml:"converter"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Content.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Media.Validate(); err != nil {
		return err
	}
	if err := c.Converter.Validate(); err != nil {
		return err
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

// ContentConfig describes the directory of source documents.
type ContentConfig struct {
	Path       string   `yaml:"path"`
	Extensions []string `yaml:"extensions"`
	// Watch keeps the store in step with the directory while serving.
	Watch      bool     `yaml:"watch"`
}

// Validate validates the content configuration and normalizes extensions to
// lower case with a leading dot.
func (c *ContentConfig) Validate() error {
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".md", ".markdown", ".html", ".htm"}
	}
	for i, ext := range c.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Extensions[i] = ext
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Extensions, validation.Each(validation.Required, validation.In(".md", ".markdown", ".html", ".htm"))),
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

// MediaConfig controls where resolved images are stored and how their URLs
// are built.
type MediaConfig struct {
	Path         string `yaml:"path"`
	PublicPath   string `yaml:"public_path"`
	PublicDomain string `yaml:"public_domain"`
	MaxSize      int64  `yaml:"max_size"`
	AllowRemote  bool   `yaml:"allow_remote"`
}

// Validate validates the media configuration.
func (c *MediaConfig) Validate() error {
	if c.PublicPath == "" {
		c.PublicPath = media.DefaultPublicPath
	}
	if c.MaxSize == 0 {
		c.MaxSize = media.DefaultMaxSize
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.PublicPath, validation.Required, validation.By(leadingSlash)),
		validation.Field(&c.MaxSize, validation.Min(int64(1))),
		validation.Field(&c.PublicDomain, validation.By(httpURL)),
	)
}

// ConverterConfig holds document conversion settings.
type ConverterConfig struct {
	// RequireMetadata rejects documents without frontmatter or injected
	// metadata. A nil value means true.
	RequireMetadata    *bool  `yaml:"require_metadata"`
	ImageFailurePolicy string `yaml:"image_failure_policy"`
	ImageConcurrency   int    `yaml:"image_concurrency"`
	HTMLMode           string `yaml:"html_mode"`
}

// Validate validates the converter configuration.
func (c *ConverterConfig) Validate() error {
	if c.ImageFailurePolicy == "" {
		c.ImageFailurePolicy = string(mapper.PolicyLocal)
	}
	if c.HTMLMode == "" {
		c.HTMLMode = string(converter.HTMLModeDOM)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.ImageFailurePolicy, validation.In(
			string(mapper.PolicyLocal), string(mapper.PolicyParagraph), string(mapper.PolicySkip))),
		validation.Field(&c.HTMLMode, validation.In(
			string(converter.HTMLModeDOM), string(converter.HTMLModeMarkdown))),
		validation.Field(&c.ImageConcurrency, validation.Min(0), validation.Max(64)),
	)
}

// MetadataRequired reports the effective require_metadata setting.
func (c *ConverterConfig) MetadataRequired() bool {
	return c.RequireMetadata == nil || *c.RequireMetadata
}

// Options translates the configuration into converter options.
func (c *ConverterConfig) Options() []converter.Option {
	return []converter.Option{
		converter.WithRequireMetadata(c.MetadataRequired()),
		converter.WithImageFailurePolicy(mapper.FailurePolicy(c.ImageFailurePolicy)),
		converter.WithImageConcurrency(c.ImageConcurrency),
		converter.WithHTMLMode(converter.HTMLMode(c.HTMLMode)),
	}
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

func leadingSlash(value any) error {
	s, _ := value.(string)
	if !strings.HasPrefix(s, "/") {
		return fmt.Errorf("must start with /")
	}
	return nil
}

func httpURL(value any) error {
	s, _ := value.(string)
	if s == "" || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return nil
	}
	return fmt.Errorf("must be an http(s) URL")
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
		Content: ContentConfig{
			Path:       "./content",
			Extensions: []string{".md", ".markdown", ".html", ".htm"},
			Watch:      true,
		},
		SQLite: SQLiteConfig{
			Path: "./blockpress.db",
		},
		Media: MediaConfig{
			Path:       "./media",
			PublicPath: media.DefaultPublicPath,
			MaxSize:    media.DefaultMaxSize,
		},
		Converter: ConverterConfig{
			ImageFailurePolicy: string(mapper.PolicyLocal),
			ImageConcurrency:   4,
			HTMLMode:           string(converter.HTMLModeDOM),
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
