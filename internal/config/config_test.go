package config

import (
	"testing"

	"gemini-chat-relay/internal/prompt"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()

	if err := Validate(cfg); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Expected default port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Upload.MaxBytes != 16<<20 {
		t.Errorf("Expected 16 MiB upload cap, got %d", cfg.Upload.MaxBytes)
	}
	if cfg.Prompt.EmptyChatMode != prompt.EmptyChatAnalyze {
		t.Errorf("Expected analyze empty-chat mode, got %q", cfg.Prompt.EmptyChatMode)
	}
	if cfg.Extract.FailureMode != FailureEmbed {
		t.Errorf("Expected embed failure mode, got %q", cfg.Extract.FailureMode)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"zero upload cap", func(c *Config) { c.Upload.MaxBytes = 0 }},
		{"empty allow-list", func(c *Config) { c.Upload.AllowedExtensions = nil }},
		{"bad empty-chat mode", func(c *Config) { c.Prompt.EmptyChatMode = "verbose" }},
		{"bad failure mode", func(c *Config) { c.Extract.FailureMode = "panic" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestAllowsExtension(t *testing.T) {
	cfg := Default()

	if !cfg.AllowsExtension("pdf") {
		t.Error("Expected pdf to be allowed")
	}
	if !cfg.AllowsExtension("TXT") {
		t.Error("Expected extension check to be case-insensitive")
	}
	if cfg.AllowsExtension("exe") {
		t.Error("Expected exe to be rejected")
	}

	// Legacy deployments restricted uploads to Word documents only.
	cfg.Upload.AllowedExtensions = []string{"doc", "docx"}
	if cfg.AllowsExtension("pdf") {
		t.Error("Expected pdf to be rejected under legacy allow-list")
	}
	if !cfg.AllowsExtension("doc") {
		t.Error("Expected doc to be allowed under legacy allow-list")
	}
}

func TestAllowedFormatsMessage(t *testing.T) {
	cfg := Default()

	if msg := cfg.AllowedFormatsMessage(); msg != "PDF, DOCX, TXT" {
		t.Errorf("Expected 'PDF, DOCX, TXT', got %q", msg)
	}
}
