// Package config provides application configuration management using koanf
package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"gemini-chat-relay/internal/prompt"
)

// Extraction failure modes. "embed" keeps the original behavior of
// folding the failure text into the document content; "reject" fails
// the request before any model call.
const (
	FailureEmbed  = "embed"
	FailureReject = "reject"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `koanf:"server"`

	// Upload constraints
	Upload UploadConfig `koanf:"upload"`

	// Generative model service
	Gemini GeminiConfig `koanf:"gemini"`

	// Prompt composition
	Prompt PromptConfig `koanf:"prompt"`

	// Document extraction
	Extract ExtractConfig `koanf:"extract"`

	// Application settings
	App AppConfig `koanf:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string `koanf:"host"`
	Port        int    `koanf:"port"`
	ReadTimeout int    `koanf:"read_timeout"` // seconds
}

// UploadConfig holds file upload constraints
type UploadConfig struct {
	MaxBytes          int64    `koanf:"max_bytes"`
	AllowedExtensions []string `koanf:"allowed_extensions"`
}

// GeminiConfig holds generative-language API configuration
type GeminiConfig struct {
	APIKey            string `koanf:"api_key"`
	BaseURL           string `koanf:"base_url"`
	Model             string `koanf:"model"`
	SystemInstruction string `koanf:"system_instruction"`
	Timeout           int    `koanf:"timeout"` // seconds, buffered calls only
}

// PromptConfig holds prompt composition settings
type PromptConfig struct {
	EmptyChatMode string `koanf:"empty_chat_mode"` // "analyze" or "bare"
}

// ExtractConfig holds document extraction settings
type ExtractConfig struct {
	FailureMode string `koanf:"failure_mode"` // "embed" or "reject"
}

// AppConfig holds general application settings
type AppConfig struct {
	Environment string `koanf:"environment"` // "development", "staging", "production"
	LogLevel    string `koanf:"log_level"`   // "debug", "info", "warn", "error"
	LogFormat   string `koanf:"log_format"`  // "text" or "json"
}

// Default returns a configuration populated with defaults only. Used
// directly by tests; Load layers files and environment on top of it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "",
			Port:        9000,
			ReadTimeout: 30,
		},
		Upload: UploadConfig{
			MaxBytes:          16 << 20,
			AllowedExtensions: []string{"pdf", "docx", "txt"},
		},
		Gemini: GeminiConfig{
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-2.5-flash-lite-preview-06-17",
			Timeout: 120,
		},
		Prompt: PromptConfig{
			EmptyChatMode: prompt.EmptyChatAnalyze,
		},
		Extract: ExtractConfig{
			FailureMode: FailureEmbed,
		},
		App: AppConfig{
			Environment: "development",
			LogLevel:    "info",
			LogFormat:   "text",
		},
	}
}

// Load loads configuration from multiple sources with precedence:
// 1. Built-in defaults
// 2. config.yaml / config.json (if they exist)
// 3. Environment variables (highest precedence)
func Load() (*Config, error) {
	k := koanf.New(".")

	// Set defaults
	setDefaults(k)

	// Load from config files (optional)
	loadConfigFiles(k)

	// Load from environment variables (highest precedence)
	if err := k.Load(env.Provider(".", env.Opt{}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	// Unmarshal into config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// The original deployment configures the credential as
	// GOOGLE_API_KEY and the listen port as PORT; honor both when no
	// koanf key overrides them.
	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if port := os.Getenv("PORT"); port != "" {
		if _, err := fmt.Sscanf(port, "%d", &cfg.Server.Port); err != nil {
			return nil, fmt.Errorf("invalid PORT value %q", port)
		}
	}

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(k *koanf.Koanf) {
	def := Default()
	defaults := map[string]interface{}{
		// Server defaults
		"server.host":         def.Server.Host,
		"server.port":         def.Server.Port,
		"server.read_timeout": def.Server.ReadTimeout,

		// Upload defaults
		"upload.max_bytes":          def.Upload.MaxBytes,
		"upload.allowed_extensions": def.Upload.AllowedExtensions,

		// Gemini defaults
		"gemini.base_url": def.Gemini.BaseURL,
		"gemini.model":    def.Gemini.Model,
		"gemini.timeout":  def.Gemini.Timeout,

		// Prompt defaults
		"prompt.empty_chat_mode": def.Prompt.EmptyChatMode,

		// Extraction defaults
		"extract.failure_mode": def.Extract.FailureMode,

		// App defaults
		"app.environment": def.App.Environment,
		"app.log_level":   def.App.LogLevel,
		"app.log_format":  def.App.LogFormat,
	}

	for key, value := range defaults {
		_ = k.Set(key, value) // Ignore error for setting defaults
	}
}

// loadConfigFiles loads configuration from files
func loadConfigFiles(k *koanf.Koanf) {
	// Try to load YAML config
	if _, err := os.Stat("config.yaml"); err == nil {
		if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
			log.Printf("Warning: failed to load config.yaml: %v", err)
		}
	}

	// Try to load JSON config
	if _, err := os.Stat("config.json"); err == nil {
		if err := k.Load(file.Provider("config.json"), json.Parser()); err != nil {
			log.Printf("Warning: failed to load config.json: %v", err)
		}
	}
}

// Validate checks the configuration for inconsistent values.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", cfg.Server.Port)
	}

	if cfg.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max_bytes must be positive, got %d", cfg.Upload.MaxBytes)
	}
	if len(cfg.Upload.AllowedExtensions) == 0 {
		return fmt.Errorf("upload allowed_extensions must not be empty")
	}

	switch cfg.Prompt.EmptyChatMode {
	case prompt.EmptyChatAnalyze, prompt.EmptyChatBare:
	default:
		return fmt.Errorf("unknown prompt empty_chat_mode: %q", cfg.Prompt.EmptyChatMode)
	}

	switch cfg.Extract.FailureMode {
	case FailureEmbed, FailureReject:
	default:
		return fmt.Errorf("unknown extract failure_mode: %q", cfg.Extract.FailureMode)
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// AllowsExtension reports whether ext (without dot, any case) is in
// the configured allow-list.
func (c *Config) AllowsExtension(ext string) bool {
	for _, allowed := range c.Upload.AllowedExtensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

// AllowedFormatsMessage renders the allow-list for user-facing
// rejection messages, e.g. "PDF, DOCX, TXT".
func (c *Config) AllowedFormatsMessage() string {
	upper := make([]string, len(c.Upload.AllowedExtensions))
	for i, ext := range c.Upload.AllowedExtensions {
		upper[i] = strings.ToUpper(ext)
	}
	return strings.Join(upper, ", ")
}
