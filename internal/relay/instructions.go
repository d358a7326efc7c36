package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/soyeahso/voicerelay/internal/logging"
)

// Instructions assembles the session instructions from the persona, the
// user profile, the current time and the recent turn log.
type Instructions struct {
	persona     func() string
	memory      domain.MemoryStore
	owner       string
	loc         *time.Location
	recentTurns int
	now         func() time.Time
	log         *logging.Logger
}

// NewInstructions creates a builder. persona supplies the current persona
// text; loc is the zone the time section is written in.
func NewInstructions(persona func() string, memory domain.MemoryStore, owner string, loc *time.Location, recentTurns int, log *logging.Logger) *Instructions {
	if owner == "" {
		owner = "The user"
	}
	if loc == nil {
		loc = time.UTC
	}
	if recentTurns <= 0 {
		recentTurns = 500
	}
	return &Instructions{
		persona:     persona,
		memory:      memory,
		owner:       owner,
		loc:         loc,
		recentTurns: recentTurns,
		now:         time.Now,
		log:         log.Sub("instructions"),
	}
}

// Build returns persona + profile + time + memory. Store failures leave
// their section empty.
func (b *Instructions) Build(ctx context.Context) string {
	persona := DefaultPersona
	if b.persona != nil {
		if p := b.persona(); p != "" {
			persona = p
		}
	}

	var sb strings.Builder
	sb.WriteString(persona)
	sb.WriteString(b.profile(ctx))
	sb.WriteString(b.timeContext(ctx))
	sb.WriteString(b.history(ctx))
	return sb.String()
}

func (b *Instructions) profile(ctx context.Context) string {
	facts, err := b.memory.ProfileFacts(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("loading profile failed")
		return ""
	}
	if len(facts) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n\n[USER PROFILE]\n")
	for _, f := range facts {
		fmt.Fprintf(&sb, "- %s: %s\n", f.Attribute, f.Value)
	}
	return sb.String()
}

func (b *Instructions) timeContext(ctx context.Context) string {
	now := b.now().In(b.loc)
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n\n[CURRENT TIME]\nRight now it is %s (%s).\n", now.Format("Monday, January 02, 2006 at 03:04 PM"), zoneLabel(b.loc))

	last, ok, err := b.memory.LastTurnTime(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("loading last turn time failed")
		return sb.String()
	}
	if ok {
		last = last.In(b.loc)
		fmt.Fprintf(&sb, "%s last spoke to you %s (on %s).\n", b.owner, Elapsed(now.Sub(last)), last.Format("Monday, January 02 at 03:04 PM"))
	}
	return sb.String()
}

func (b *Instructions) history(ctx context.Context) string {
	turns, err := b.memory.RecentTurns(ctx, b.recentTurns)
	if err != nil {
		b.log.Warn().Err(err).Msg("loading memory failed")
		return ""
	}
	if len(turns) == 0 {
		return ""
	}
	return "\n[Previous Conversation Memory]:\n" + domain.FormatTurns(turns)
}

func zoneLabel(loc *time.Location) string {
	if loc.String() == "America/New_York" {
		return "Eastern Time"
	}
	return loc.String()
}

// Elapsed phrases a duration the way a person would say how long ago
// something happened.
func Elapsed(d time.Duration) string {
	secs := int(d / time.Second)
	switch {
	case secs < 120:
		return "just moments ago"
	case secs < 3600:
		return fmt.Sprintf("about %d minutes ago", secs/60)
	case secs < 86400:
		return fmt.Sprintf("about %s ago", plural(secs/3600, "hour"))
	case secs < 604800:
		return plural(secs/86400, "day") + " ago"
	}
	weeks, days := secs/604800, (secs%604800)/86400
	if days > 0 {
		return fmt.Sprintf("%s and %s ago", plural(weeks, "week"), plural(days, "day"))
	}
	return plural(weeks, "week") + " ago"
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
