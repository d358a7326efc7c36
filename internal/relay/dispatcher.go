package relay

import (
	"context"
	"time"

	"github.com/soyeahso/voicerelay/internal/hooks"
	"github.com/soyeahso/voicerelay/internal/logging"
	"github.com/soyeahso/voicerelay/internal/tools"
)

// Dispatch is the response to one function call: Upstream holds the
// function output followed by the continuation trigger, Display is an
// optional client message.
type Dispatch struct {
	Upstream [][]byte
	Display  []byte
}

// Dispatcher runs upstream function calls against the tool registry.
type Dispatcher struct {
	registry *tools.Registry
	hooks    hooks.Emitter
	log      *logging.Logger
}

// NewDispatcher creates a dispatcher. em may be nil.
func NewDispatcher(registry *tools.Registry, em hooks.Emitter, log *logging.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, hooks: em, log: log.Sub("dispatcher")}
}

// Handle resolves req. It reports false when the request cannot be
// answered because it carries no call id.
func (d *Dispatcher) Handle(ctx context.Context, sessionID string, req FunctionCallRequest) (Dispatch, bool) {
	if req.CallID == "" {
		d.log.Warn().Str("function", req.Name).Msg("function call without call_id dropped")
		return Dispatch{}, false
	}

	start := time.Now()
	res := d.registry.Dispatch(ctx, req.Name, tools.ParseArgs(req.Arguments))
	errMsg, failed := res.Err()

	d.log.Info().
		Str("function", req.Name).
		Str("callId", req.CallID).
		Bool("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("function call resolved")

	if d.hooks != nil {
		data := map[string]any{"function": req.Name, "callId": req.CallID, "failed": failed}
		if failed {
			data["error"] = errMsg
		}
		d.hooks.EmitAsync(ctx, hooks.Payload{Event: hooks.EventToolCalled, SessionID: sessionID, Data: data})
	}

	out := Dispatch{Upstream: [][]byte{functionOutput(req.CallID, res.OutputJSON()), responseCreate()}}
	if res.Display != nil {
		out.Display = mustMarshal(res.Display)
	}
	return out, true
}
