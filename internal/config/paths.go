package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".voicerelay"

// Paths holds resolved filesystem paths for voicerelay data.
type Paths struct {
	Base        string // ~/.voicerelay
	Config      string // ~/.voicerelay/config.yaml
	Credentials string // ~/.voicerelay/credentials
	Data        string // ~/.voicerelay/data
	Database    string // ~/.voicerelay/data/voicerelay.db
	Logs        string // ~/.voicerelay/logs
}

// ResolvePaths computes all standard paths from the home directory.
// If VOICERELAY_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("VOICERELAY_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	data := filepath.Join(base, "data")
	return Paths{
		Base:        base,
		Config:      filepath.Join(base, "config.yaml"),
		Credentials: filepath.Join(base, "credentials"),
		Data:        data,
		Database:    filepath.Join(data, "voicerelay.db"),
		Logs:        filepath.Join(base, "logs"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Credentials, p.Data, p.Logs}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// Resolve makes a configured file path absolute. Relative paths are taken
// relative to the base directory; empty paths fall back to def inside dir.
func (p Paths) Resolve(path, dir, def string) string {
	if path == "" {
		return filepath.Join(dir, def)
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Base, path)
}

// GoogleCredentials returns the OAuth client config path.
func (p Paths) GoogleCredentials(cfg GoogleConfig) string {
	return p.Resolve(cfg.CredentialsFile, p.Credentials, "google_credentials.json")
}

// GoogleToken returns the cached OAuth token path.
func (p Paths) GoogleToken(cfg GoogleConfig) string {
	return p.Resolve(cfg.TokenFile, p.Credentials, "google_token.json")
}

// PersonaFile returns the persona instructions path.
func (p Paths) PersonaFile(cfg PersonaConfig) string {
	return p.Resolve(cfg.File, p.Base, "persona.txt")
}
