package tools

import (
	"context"

	"github.com/soyeahso/voicerelay/internal/domain"
)

type retrieveEmail struct{ p domain.MailBackend }

func (*retrieveEmail) Name() string { return "retrieve_email" }

func (*retrieveEmail) Description() string {
	return "Retrieve email data from the user's mailbox using pre-authorized access. Use this when the user asks about their emails, inbox, or messages."
}

func (*retrieveEmail) Parameters() map[string]any {
	return object(map[string]any{
		"query":       str("Optional search query for emails (e.g., subject or sender). Leave empty for recent emails."),
		"max_results": integer("Maximum number of emails to return.", 5),
	})
}

func (t *retrieveEmail) Execute(ctx context.Context, args Args) Result {
	max := args.Int("max_results", 5)

	var emails []domain.Email
	var err error
	if q := args.String("query"); q != "" {
		emails, err = t.p.SearchEmails(ctx, q, max)
	} else {
		emails, err = t.p.RecentEmails(ctx, max)
	}
	if err != nil {
		return Failed("%v", err)
	}

	list := make([]map[string]any, 0, len(emails))
	for _, e := range emails {
		list = append(list, map[string]any{
			"from":    orDefault(e.From, "Unknown"),
			"subject": orDefault(e.Subject, "No subject"),
			"snippet": Truncate(e.Snippet, 100),
		})
	}
	return Result{
		Output:  map[string]any{"emails": list, "count": len(list)},
		Display: map[string]any{"type": "google.emails.result", "emails": nonNil(emails)},
	}
}

type sendEmail struct{ p domain.MailBackend }

func (*sendEmail) Name() string { return "send_email" }

func (*sendEmail) Description() string {
	return "Send an email from the user's account. Use this when the user asks to send, compose, or email someone."
}

func (*sendEmail) Parameters() map[string]any {
	return object(map[string]any{
		"to":      str("Recipient email address."),
		"subject": str("Email subject line."),
		"body":    str("Email body content."),
	}, "to", "subject", "body")
}

func (t *sendEmail) Execute(ctx context.Context, args Args) Result {
	to, subject := args.String("to"), args.String("subject")
	if to == "" {
		return Failed("A recipient address is required.")
	}
	body, _ := args["body"].(string)

	id, err := t.p.SendEmail(ctx, to, subject, body)
	if err != nil {
		return Failed("%v", err)
	}
	return Result{Output: map[string]any{"status": "sent", "to": to, "subject": subject, "id": id}}
}
