package relay

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/soyeahso/voicerelay/internal/logging"
)

// DefaultPersona is used when the persona file cannot be read.
const DefaultPersona = "You are a helpful voice assistant."

// PersonaSource serves the persona instructions from a file. With Start it
// follows edits, so later sessions pick up the new text.
type PersonaSource struct {
	path string
	log  *logging.Logger

	mu      sync.RWMutex
	text    string
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewPersonaSource loads the persona at path.
func NewPersonaSource(path string, log *logging.Logger) *PersonaSource {
	p := &PersonaSource{path: filepath.Clean(path), log: log.Sub("persona")}
	p.Reload()
	return p
}

// Text returns the current persona.
func (p *PersonaSource) Text() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.text
}

// Reload rereads the file, falling back to DefaultPersona.
func (p *PersonaSource) Reload() {
	text := DefaultPersona
	data, err := os.ReadFile(p.path)
	switch {
	case err != nil:
		p.log.Warn().Err(err).Str("path", p.path).Msg("persona unreadable, using default")
	case strings.TrimSpace(string(data)) == "":
		p.log.Warn().Str("path", p.path).Msg("persona file empty, using default")
	default:
		text = strings.TrimSpace(string(data))
	}

	p.mu.Lock()
	p.text = text
	p.mu.Unlock()
}

// Start watches the persona's directory for changes. It returns
// immediately; the watch ends on Stop or when ctx is cancelled.
func (p *PersonaSource) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Editors often replace the file, so watch the directory.
	if err := w.Add(filepath.Dir(p.path)); err != nil {
		w.Close()
		return err
	}

	p.watcher = w
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.running = true
	go p.run(ctx, w, p.stopCh, p.doneCh)

	p.log.Info().Str("path", p.path).Msg("watching persona")
	return nil
}

// Stop ends the watch and waits for it to exit.
func (p *PersonaSource) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	w, stopCh, doneCh := p.watcher, p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)
	<-doneCh
	if err := w.Close(); err != nil {
		p.log.Warn().Err(err).Msg("closing persona watcher")
	}
}

func (p *PersonaSource) run(ctx context.Context, w *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			p.log.Debug().Str("op", event.Op.String()).Msg("persona changed")
			p.Reload()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			p.log.Warn().Err(err).Msg("persona watcher error")
		}
	}
}
