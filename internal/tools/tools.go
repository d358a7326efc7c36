// Package tools implements the functions the realtime model can call
// against the user's productivity services.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/soyeahso/voicerelay/internal/logging"
)

// Capability is a function the realtime model may invoke.
type Capability interface {
	// Name returns the function name announced to the model.
	Name() string

	// Description tells the model when to call the function.
	Description() string

	// Parameters returns the JSON Schema of the arguments.
	Parameters() map[string]any

	// Execute runs the function. Provider failures are reported as an
	// error output, never as a Go error.
	Execute(ctx context.Context, args Args) Result
}

// Result is the outcome of one invocation.
type Result struct {
	// Output is sent back to the model as the function output.
	Output map[string]any
	// Display, when set, is sent to the client as-is.
	Display map[string]any
}

// Failed builds an error result.
func Failed(format string, a ...any) Result {
	return Result{Output: map[string]any{"error": fmt.Sprintf(format, a...)}}
}

// Err reports the error message of a failed result.
func (r Result) Err() (string, bool) {
	msg, ok := r.Output["error"].(string)
	return msg, ok
}

// OutputJSON encodes Output for the function_call_output item.
func (r Result) OutputJSON() string {
	b, err := json.Marshal(r.Output)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(b)
}

// Definition is the session.update form of a function tool.
type Definition struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec describes a function tool.
type FunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Registry holds the available capabilities in registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Capability
	order []string
	log   *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{tools: make(map[string]Capability), log: log.Sub("tools")}
}

// New creates a registry with every built-in capability bound to p and v.
func New(p domain.ToolProvider, v domain.VisionDescriber, log *logging.Logger) *Registry {
	r := NewRegistry(log)
	r.Register(&retrieveEmail{p: p})
	r.Register(&retrieveCalendar{p: p})
	r.Register(&retrieveFiles{p: p})
	r.Register(&readFileContent{p: p, vision: v})
	r.Register(&createCalendarEvent{p: p})
	r.Register(&sendEmail{p: p})
	r.Register(&writeToSheet{p: p})
	r.Register(&retrieveContacts{p: p})
	return r
}

// Register adds a capability, replacing one with the same name.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[c.Name()]; !exists {
		r.order = append(r.order, c.Name())
	}
	r.tools[c.Name()] = c
}

// Get returns a capability by name.
func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.tools[name]
	return c, ok
}

// Names returns capability names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Definitions returns the function tool definitions in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		c := r.tools[name]
		defs = append(defs, Definition{
			Type: "function",
			Function: FunctionSpec{
				Name:        c.Name(),
				Description: c.Description(),
				Parameters:  c.Parameters(),
			},
		})
	}
	return defs
}

// Dispatch runs the named capability. It always returns exactly one result.
func (r *Registry) Dispatch(ctx context.Context, name string, args Args) (res Result) {
	c, ok := r.Get(name)
	if !ok {
		r.log.Warn().Str("function", name).Msg("unknown function requested")
		return Failed("Unknown function: %s", name)
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Interface("panic", p).Str("function", name).Msg("capability panicked")
			res = Failed("%s failed unexpectedly", name)
		}
	}()

	res = c.Execute(ctx, args)
	if res.Output == nil {
		res.Output = map[string]any{}
	}
	if msg, failed := res.Err(); failed {
		r.log.Warn().Str("function", name).Str("error", msg).Msg("capability failed")
	} else {
		r.log.Debug().Str("function", name).Msg("capability executed")
	}
	return res
}
