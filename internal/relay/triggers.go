package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/soyeahso/voicerelay/internal/tools"
)

// A trigger injects productivity data when the user's words mention it.
// fetch returns "" when there is nothing to inject.
type trigger struct {
	name    string
	phrases []string
	fetch   func(ctx context.Context, p domain.ToolProvider) (string, error)
}

var triggers = []trigger{
	{
		name:    "mail",
		phrases: []string{"email", "gmail", "inbox"},
		fetch:   mailContext,
	},
	{
		name:    "drive",
		phrases: []string{"my files", "my documents", "google drive", "check drive", "my drive"},
		fetch:   driveContext,
	},
	{
		name:    "calendar",
		phrases: []string{"my calendar", "calendar", "my schedule", "upcoming events", "my events", "what's on my calendar"},
		fetch:   calendarContext,
	},
}

func (t trigger) matches(lower string) bool {
	for _, p := range t.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func mailContext(ctx context.Context, p domain.ToolProvider) (string, error) {
	emails, err := p.RecentEmails(ctx, 5)
	if err != nil || len(emails) == 0 {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("\n\n[Here are your recent emails:]\n")
	for i, e := range emails {
		fmt.Fprintf(&sb, "%d. From: %s | Subject: %s...\n", i+1, tools.Truncate(e.From, 40), tools.Truncate(e.Subject, 50))
	}
	return sb.String(), nil
}

func driveContext(ctx context.Context, p domain.ToolProvider) (string, error) {
	files, err := p.ListFiles(ctx, 10)
	if err != nil || len(files) == 0 {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("\n\n[Here are your recent Google Drive files:]\n")
	for i, f := range files {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, f.Name)
	}
	return sb.String(), nil
}

func calendarContext(ctx context.Context, p domain.ToolProvider) (string, error) {
	events, err := p.UpcomingEvents(ctx, 5)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return "[The user's calendar shows no upcoming events.]", nil
	}
	var sb strings.Builder
	sb.WriteString("\n\n[Here are your upcoming calendar events:]\n")
	for i, e := range events {
		fmt.Fprintf(&sb, "%d. %s - %s\n", i+1, e.Summary, e.Start)
	}
	return sb.String(), nil
}
