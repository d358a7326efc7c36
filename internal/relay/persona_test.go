package relay

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/voicerelay/internal/logging"
)

func TestPersonaSource_LoadAndFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persona.txt")

	p := NewPersonaSource(path, logging.Nop())
	assert.Equal(t, DefaultPersona, p.Text())

	require.NoError(t, os.WriteFile(path, []byte("  You are Ara.\n"), 0o600))
	p.Reload()
	assert.Equal(t, "You are Ara.", p.Text())

	require.NoError(t, os.WriteFile(path, []byte("   \n"), 0o600))
	p.Reload()
	assert.Equal(t, DefaultPersona, p.Text())
}

func TestPersonaSource_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persona.txt")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0o600))

	p := NewPersonaSource(path, logging.Nop())
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()
	assert.Equal(t, "first", p.Text())

	require.NoError(t, os.WriteFile(path, []byte("second"), 0o600))
	assert.Eventually(t, func() bool { return p.Text() == "second" }, 5*time.Second, 20*time.Millisecond)

	// Other files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "second", p.Text())
}

func TestPersonaSource_StopIsIdempotent(t *testing.T) {
	p := NewPersonaSource(filepath.Join(t.TempDir(), "persona.txt"), logging.Nop())
	p.Stop()
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Start(context.Background()))
	p.Stop()
	p.Stop()
}
