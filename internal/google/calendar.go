package google

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/soyeahso/voicerelay/internal/domain"
)

// Calendar reads and creates events on the user's primary calendar.
type Calendar struct {
	svc      *calendar.Service
	timeZone string
	now      func() time.Time
}

// UpcomingEvents returns the next events starting from now.
func (c *Calendar) UpcomingEvents(ctx context.Context, max int) ([]domain.Event, error) {
	r, err := c.svc.Events.List("primary").
		TimeMin(c.now().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(int64(max)).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar list: %w", err)
	}

	events := make([]domain.Event, 0, len(r.Items))
	for _, e := range r.Items {
		events = append(events, eventFromAPI(e))
	}
	return events, nil
}

// CreateEvent inserts an event. Start and End are RFC 3339 date-times
// interpreted in the configured time zone.
func (c *Calendar) CreateEvent(ctx context.Context, req domain.EventRequest) (domain.Event, error) {
	ev := &calendar.Event{
		Summary:     req.Summary,
		Location:    req.Location,
		Description: req.Description,
		Start:       &calendar.EventDateTime{DateTime: req.Start, TimeZone: c.timeZone},
		End:         &calendar.EventDateTime{DateTime: req.End, TimeZone: c.timeZone},
	}
	created, err := c.svc.Events.Insert("primary", ev).Context(ctx).Do()
	if err != nil {
		return domain.Event{}, fmt.Errorf("calendar insert: %w", err)
	}
	return eventFromAPI(created), nil
}

func eventFromAPI(e *calendar.Event) domain.Event {
	summary := e.Summary
	if summary == "" {
		summary = "No title"
	}
	return domain.Event{
		ID:          e.Id,
		Summary:     summary,
		Start:       eventTime(e.Start),
		End:         eventTime(e.End),
		Location:    e.Location,
		Description: e.Description,
		Link:        e.HtmlLink,
	}
}

// eventTime prefers the timed value and falls back to the all-day date.
func eventTime(t *calendar.EventDateTime) string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}
