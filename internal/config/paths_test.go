package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePathsCustomHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("VOICERELAY_HOME", tmp)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, tmp, paths.Base)
	assert.Equal(t, filepath.Join(tmp, "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(tmp, "data", "voicerelay.db"), paths.Database)
}

func TestResolvePathsDefaultHome(t *testing.T) {
	t.Setenv("VOICERELAY_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".voicerelay"), paths.Base)
}

func TestEnsureDirs(t *testing.T) {
	t.Setenv("VOICERELAY_HOME", t.TempDir())

	paths, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())

	for _, d := range []string{paths.Base, paths.Credentials, paths.Data, paths.Logs} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestResolveFilePaths(t *testing.T) {
	p := Paths{Base: "/srv/vr", Credentials: "/srv/vr/credentials"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"default credentials", p.GoogleCredentials(GoogleConfig{}), "/srv/vr/credentials/google_credentials.json"},
		{"default token", p.GoogleToken(GoogleConfig{}), "/srv/vr/credentials/google_token.json"},
		{"relative token", p.GoogleToken(GoogleConfig{TokenFile: "tok.json"}), "/srv/vr/tok.json"},
		{"absolute persona", p.PersonaFile(PersonaConfig{File: "/etc/persona.txt"}), "/etc/persona.txt"},
		{"relative persona", p.PersonaFile(PersonaConfig{File: "persona.txt"}), "/srv/vr/persona.txt"},
		{"empty persona", p.PersonaFile(PersonaConfig{}), "/srv/vr/persona.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
