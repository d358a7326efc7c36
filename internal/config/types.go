package config

// Config is the root configuration for voicerelay.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway,omitempty"`
	Upstream   UpstreamConfig   `yaml:"upstream,omitempty"`
	Persona    PersonaConfig    `yaml:"persona,omitempty"`
	Memory     MemoryConfig     `yaml:"memory,omitempty"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge,omitempty"`
	Google     GoogleConfig     `yaml:"google,omitempty"`
	Mail       MailConfig       `yaml:"mail,omitempty"`
	Vision     VisionConfig     `yaml:"vision,omitempty"`
	Extraction ExtractionConfig `yaml:"extraction,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
}

// GatewayConfig controls the client-facing HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "lan" | "loopback" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	TLS            GatewayTLS  `yaml:"tls,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
}

// GatewayAuth configures optional client authentication on /ws.
// An empty token disables authentication.
type GatewayAuth struct {
	Token string `yaml:"token,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// UpstreamConfig describes the realtime conversational-AI service.
type UpstreamConfig struct {
	URL           string `yaml:"url,omitempty"`
	APIKey        string `yaml:"apiKey,omitempty"`
	Voice         string `yaml:"voice,omitempty"`
	Transcription string `yaml:"transcription,omitempty"` // input audio transcription model
	ChatURL       string `yaml:"chatUrl,omitempty"`       // chat completions endpoint for vision/extraction
}

// PersonaConfig controls the session instructions.
type PersonaConfig struct {
	File     string `yaml:"file,omitempty"`
	Owner    string `yaml:"owner,omitempty"` // how instructions refer to the user
	TimeZone string `yaml:"timeZone,omitempty"`
	Watch    bool   `yaml:"watch,omitempty"`
}

// MemoryConfig configures the turn log and profile store.
type MemoryConfig struct {
	Store       string `yaml:"store,omitempty"` // "sqlite" | "redis"
	RedisURL    string `yaml:"redisUrl,omitempty"`
	RedisPrefix string `yaml:"redisPrefix,omitempty"`
	RecentTurns int    `yaml:"recentTurns,omitempty"`
	SearchK     int    `yaml:"searchK,omitempty"`
	Reindex     *bool  `yaml:"reindexOnStart,omitempty"` // defaults to true
}

// KnowledgeConfig configures the document knowledge base.
type KnowledgeConfig struct {
	Enabled      *bool `yaml:"enabled,omitempty"` // defaults to true
	ChunkSize    int   `yaml:"chunkSize,omitempty"`
	ChunkOverlap int   `yaml:"chunkOverlap,omitempty"`
}

// GoogleConfig configures Google Workspace access.
type GoogleConfig struct {
	Enabled         bool   `yaml:"enabled,omitempty"`
	CredentialsFile string `yaml:"credentialsFile,omitempty"`
	TokenFile       string `yaml:"tokenFile,omitempty"`
	TimeZone        string `yaml:"timeZone,omitempty"`
}

// MailConfig selects the mail backend used by mail capabilities.
type MailConfig struct {
	Backend  string `yaml:"backend,omitempty"` // "gmail" | "imap"
	IMAPHost string `yaml:"imapHost,omitempty"`
	IMAPPort int    `yaml:"imapPort,omitempty"`
	SMTPHost string `yaml:"smtpHost,omitempty"`
	SMTPPort int    `yaml:"smtpPort,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	From     string `yaml:"from,omitempty"`
}

// VisionConfig selects the image description backend.
type VisionConfig struct {
	Provider string `yaml:"provider,omitempty"` // "xai" | "gemini"
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"apiKey,omitempty"` // gemini only; xai reuses upstream.apiKey
	Timeout  int    `yaml:"timeoutSeconds,omitempty"`
}

// ExtractionConfig controls background fact extraction.
type ExtractionConfig struct {
	Enabled    *bool   `yaml:"enabled,omitempty"` // defaults to true
	Model      string  `yaml:"model,omitempty"`
	EveryTurns int     `yaml:"everyTurns,omitempty"`
	Temp       float64 `yaml:"temperature,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// ReindexOnStart reports whether the vector index is rebuilt at startup.
func (m MemoryConfig) ReindexOnStart() bool {
	return m.Reindex == nil || *m.Reindex
}

// IsEnabled reports whether the knowledge base is enabled.
func (k KnowledgeConfig) IsEnabled() bool {
	return k.Enabled == nil || *k.Enabled
}

// IsEnabled reports whether background extraction runs.
func (e ExtractionConfig) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}
