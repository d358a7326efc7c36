package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultUpstreamURL = "wss://api.x.ai/v1/realtime"
	DefaultChatURL     = "https://api.x.ai/v1/chat/completions"
	DefaultTimeZone    = "America/New_York"
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: 8765,
			Bind: "lan",
		},
		Upstream: UpstreamConfig{
			URL:           DefaultUpstreamURL,
			Voice:         "Ara",
			Transcription: "whisper-1",
			ChatURL:       DefaultChatURL,
		},
		Persona: PersonaConfig{
			File:     "persona.txt",
			Owner:    "The user",
			TimeZone: DefaultTimeZone,
		},
		Memory: MemoryConfig{
			Store:       "sqlite",
			RedisPrefix: "voicerelay",
			RecentTurns: 500,
			SearchK:     5,
		},
		Knowledge: KnowledgeConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Google: GoogleConfig{
			TimeZone: DefaultTimeZone,
		},
		Mail: MailConfig{
			Backend:  "gmail",
			IMAPPort: 993,
			SMTPPort: 587,
		},
		Vision: VisionConfig{
			Provider: "xai",
			Timeout:  30,
		},
		Extraction: ExtractionConfig{
			Model:      "grok-3",
			EveryTurns: 5,
			Temp:       0.1,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
