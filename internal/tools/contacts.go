package tools

import (
	"context"

	"github.com/soyeahso/voicerelay/internal/domain"
)

type contactProvider interface {
	Contacts(ctx context.Context, query string, max int) ([]domain.Contact, error)
}

type retrieveContacts struct{ p contactProvider }

func (*retrieveContacts) Name() string { return "retrieve_contacts" }

func (*retrieveContacts) Description() string {
	return "Retrieve contacts from the user's Google Contacts. Use this when the user asks about their contacts, phone numbers, or wants to find someone's contact information."
}

func (*retrieveContacts) Parameters() map[string]any {
	return object(map[string]any{
		"query":       str("Optional search query to find a specific contact by name."),
		"max_results": integer("Maximum number of contacts to return.", 10),
	})
}

func (t *retrieveContacts) Execute(ctx context.Context, args Args) Result {
	contacts, err := t.p.Contacts(ctx, args.String("query"), args.Int("max_results", 10))
	if err != nil {
		return Failed("%v", err)
	}

	list := make([]map[string]any, 0, len(contacts))
	for _, c := range contacts {
		list = append(list, map[string]any{
			"name":         orDefault(c.Name, "Unknown"),
			"email":        c.Email,
			"phone":        c.Phone,
			"organization": c.Organization,
		})
	}
	return Result{
		Output:  map[string]any{"contacts": list, "count": len(list)},
		Display: map[string]any{"type": "google.contacts.result", "contacts": nonNil(contacts)},
	}
}
