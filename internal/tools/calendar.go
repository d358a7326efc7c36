package tools

import (
	"context"

	"github.com/soyeahso/voicerelay/internal/domain"
)

type calendarProvider interface {
	UpcomingEvents(ctx context.Context, max int) ([]domain.Event, error)
	CreateEvent(ctx context.Context, req domain.EventRequest) (domain.Event, error)
}

type retrieveCalendar struct{ p calendarProvider }

func (*retrieveCalendar) Name() string { return "retrieve_calendar" }

func (*retrieveCalendar) Description() string {
	return "Retrieve calendar events from the user's Google Calendar using pre-authorized access. Use this when the user asks about their schedule, calendar, or upcoming events."
}

func (*retrieveCalendar) Parameters() map[string]any {
	return object(map[string]any{
		"max_results": integer("Maximum number of events to return.", 5),
	})
}

func (t *retrieveCalendar) Execute(ctx context.Context, args Args) Result {
	events, err := t.p.UpcomingEvents(ctx, args.Int("max_results", 5))
	if err != nil {
		return Failed("%v", err)
	}

	list := make([]map[string]any, 0, len(events))
	for _, e := range events {
		list = append(list, map[string]any{
			"summary":  orDefault(e.Summary, "Untitled"),
			"start":    orDefault(e.Start, "Unknown"),
			"location": e.Location,
		})
	}
	return Result{
		Output:  map[string]any{"events": list, "count": len(list)},
		Display: map[string]any{"type": "google.calendar.result", "events": nonNil(events)},
	}
}

type createCalendarEvent struct{ p calendarProvider }

func (*createCalendarEvent) Name() string { return "create_calendar_event" }

func (*createCalendarEvent) Description() string {
	return "Create a new event on the user's Google Calendar. Use this when the user asks to schedule, add, or create a meeting, appointment, or event."
}

func (*createCalendarEvent) Parameters() map[string]any {
	return object(map[string]any{
		"summary":     str("Title/name of the event."),
		"start_time":  str("Start time in ISO format (e.g., '2024-12-22T15:00:00')."),
		"end_time":    str("End time in ISO format (e.g., '2024-12-22T16:00:00')."),
		"description": str("Optional description or notes."),
		"location":    str("Optional location."),
	}, "summary", "start_time", "end_time")
}

func (t *createCalendarEvent) Execute(ctx context.Context, args Args) Result {
	req := domain.EventRequest{
		Summary:     orDefault(args.String("summary"), "New Event"),
		Start:       args.String("start_time"),
		End:         args.String("end_time"),
		Description: args.String("description"),
		Location:    args.String("location"),
	}
	if req.Start == "" || req.End == "" {
		return Failed("Both start_time and end_time are required.")
	}

	ev, err := t.p.CreateEvent(ctx, req)
	if err != nil {
		return Failed("%v", err)
	}
	return Result{Output: map[string]any{
		"status":   "created",
		"event_id": ev.ID,
		"summary":  req.Summary,
		"start":    req.Start,
	}}
}
