package config

import (
	"fmt"
	"slices"
	"time"
	_ "time/tzdata"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Gateway
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	validBinds := []string{"lan", "loopback", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is custom")
	}
	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		add("gateway.tls", "certPath and keyPath are required when TLS is enabled")
	}

	// Upstream
	if cfg.Upstream.APIKey == "" {
		add("upstream.apiKey", "required (set XAI_API_KEY or upstream.apiKey)")
	}

	// Persona
	if cfg.Persona.TimeZone != "" {
		if _, err := time.LoadLocation(cfg.Persona.TimeZone); err != nil {
			add("persona.timeZone", "unknown time zone %q", cfg.Persona.TimeZone)
		}
	}

	// Memory
	validStores := []string{"sqlite", "redis"}
	if cfg.Memory.Store != "" && !slices.Contains(validStores, cfg.Memory.Store) {
		add("memory.store", "must be one of %v, got %q", validStores, cfg.Memory.Store)
	}
	if cfg.Memory.Store == "redis" && cfg.Memory.RedisURL == "" {
		add("memory.redisUrl", "required when memory.store is redis")
	}
	if cfg.Memory.RecentTurns < 0 {
		add("memory.recentTurns", "must not be negative, got %d", cfg.Memory.RecentTurns)
	}

	// Knowledge
	if cfg.Knowledge.ChunkOverlap >= cfg.Knowledge.ChunkSize && cfg.Knowledge.ChunkSize > 0 {
		add("knowledge.chunkOverlap", "must be smaller than chunkSize (%d), got %d",
			cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
	}

	// Mail
	validBackends := []string{"gmail", "imap"}
	if cfg.Mail.Backend != "" && !slices.Contains(validBackends, cfg.Mail.Backend) {
		add("mail.backend", "must be one of %v, got %q", validBackends, cfg.Mail.Backend)
	}
	if cfg.Mail.Backend == "imap" {
		if cfg.Mail.IMAPHost == "" {
			add("mail.imapHost", "required when mail.backend is imap")
		}
		if cfg.Mail.Username == "" || cfg.Mail.Password == "" {
			add("mail.username", "username and password are required when mail.backend is imap")
		}
	}

	// Vision
	validVision := []string{"xai", "gemini"}
	if cfg.Vision.Provider != "" && !slices.Contains(validVision, cfg.Vision.Provider) {
		add("vision.provider", "must be one of %v, got %q", validVision, cfg.Vision.Provider)
	}
	if cfg.Vision.Provider == "gemini" && cfg.Vision.APIKey == "" {
		add("vision.apiKey", "required when vision.provider is gemini (or set GEMINI_API_KEY)")
	}

	// Extraction
	if cfg.Extraction.EveryTurns < 0 {
		add("extraction.everyTurns", "must not be negative, got %d", cfg.Extraction.EveryTurns)
	}

	// Logging
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	return issues
}
