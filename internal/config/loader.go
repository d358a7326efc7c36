package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so keys and passwords can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.Upstream.APIKey = expandEnvVars(cfg.Upstream.APIKey)
	cfg.Vision.APIKey = expandEnvVars(cfg.Vision.APIKey)
	cfg.Mail.Password = expandEnvVars(cfg.Mail.Password)
	cfg.Memory.RedisURL = expandEnvVars(cfg.Memory.RedisURL)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyDefaults(&cfg)
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	expandSensitiveFields(&cfg)
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = d.Gateway.Port
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = d.Gateway.Bind
	}
	if cfg.Upstream.URL == "" {
		cfg.Upstream.URL = d.Upstream.URL
	}
	if cfg.Upstream.Voice == "" {
		cfg.Upstream.Voice = d.Upstream.Voice
	}
	if cfg.Upstream.Transcription == "" {
		cfg.Upstream.Transcription = d.Upstream.Transcription
	}
	if cfg.Upstream.ChatURL == "" {
		cfg.Upstream.ChatURL = d.Upstream.ChatURL
	}
	if cfg.Persona.Owner == "" {
		cfg.Persona.Owner = d.Persona.Owner
	}
	if cfg.Persona.TimeZone == "" {
		cfg.Persona.TimeZone = d.Persona.TimeZone
	}
	if cfg.Memory.Store == "" {
		cfg.Memory.Store = d.Memory.Store
	}
	if cfg.Memory.RedisPrefix == "" {
		cfg.Memory.RedisPrefix = d.Memory.RedisPrefix
	}
	if cfg.Memory.RecentTurns == 0 {
		cfg.Memory.RecentTurns = d.Memory.RecentTurns
	}
	if cfg.Memory.SearchK == 0 {
		cfg.Memory.SearchK = d.Memory.SearchK
	}
	if cfg.Knowledge.ChunkSize == 0 {
		cfg.Knowledge.ChunkSize = d.Knowledge.ChunkSize
	}
	if cfg.Knowledge.ChunkOverlap == 0 {
		cfg.Knowledge.ChunkOverlap = d.Knowledge.ChunkOverlap
	}
	if cfg.Google.TimeZone == "" {
		cfg.Google.TimeZone = d.Google.TimeZone
	}
	if cfg.Mail.Backend == "" {
		cfg.Mail.Backend = d.Mail.Backend
	}
	if cfg.Mail.IMAPPort == 0 {
		cfg.Mail.IMAPPort = d.Mail.IMAPPort
	}
	if cfg.Mail.SMTPPort == 0 {
		cfg.Mail.SMTPPort = d.Mail.SMTPPort
	}
	if cfg.Vision.Provider == "" {
		cfg.Vision.Provider = d.Vision.Provider
	}
	if cfg.Vision.Model == "" {
		switch cfg.Vision.Provider {
		case "gemini":
			cfg.Vision.Model = "gemini-2.0-flash"
		default:
			cfg.Vision.Model = "grok-2-vision-latest"
		}
	}
	if cfg.Vision.Timeout == 0 {
		cfg.Vision.Timeout = d.Vision.Timeout
	}
	if cfg.Extraction.Model == "" {
		cfg.Extraction.Model = d.Extraction.Model
	}
	if cfg.Extraction.EveryTurns == 0 {
		cfg.Extraction.EveryTurns = d.Extraction.EveryTurns
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = d.Logging.ConsoleStyle
	}
}

// applyEnvOverrides reads VOICERELAY_* and provider environment variables
// and overrides config values.
func applyEnvOverrides(cfg *Config) {
	// PORT is honoured for container platforms; VOICERELAY_PORT wins when both are set.
	for _, key := range []string{"PORT", "VOICERELAY_PORT"} {
		if v := os.Getenv(key); v != "" {
			if port, err := strconv.Atoi(v); err == nil {
				cfg.Gateway.Port = port
			}
		}
	}
	if v := os.Getenv("VOICERELAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("VOICERELAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("XAI_API_KEY"); v != "" && cfg.Upstream.APIKey == "" {
		cfg.Upstream.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && cfg.Vision.APIKey == "" {
		cfg.Vision.APIKey = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Memory.RedisURL = v
	}
}
