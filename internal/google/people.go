package google

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/people/v1"

	"github.com/soyeahso/voicerelay/internal/domain"
)

const personFields = "names,emailAddresses,phoneNumbers,organizations"

// People reads the user's contacts.
type People struct {
	svc *people.Service
}

// Contacts searches contacts when query is set and lists connections
// otherwise. If the search endpoint fails, it falls back to filtering the
// connection list by name.
func (p *People) Contacts(ctx context.Context, query string, max int) ([]domain.Contact, error) {
	if query == "" {
		return p.connections(ctx, "", max)
	}

	r, err := p.svc.People.SearchContacts().
		Query(query).
		PageSize(int64(max)).
		ReadMask(personFields).
		Context(ctx).Do()
	if err != nil {
		return p.connections(ctx, query, max)
	}

	contacts := make([]domain.Contact, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Person != nil {
			contacts = append(contacts, contactFromPerson(res.Person))
		}
	}
	return contacts, nil
}

func (p *People) connections(ctx context.Context, query string, max int) ([]domain.Contact, error) {
	pageSize := max
	if query != "" {
		pageSize = 100
	}
	r, err := p.svc.People.Connections.List("people/me").
		PageSize(int64(pageSize)).
		PersonFields(personFields).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("people list: %w", err)
	}
	return filterContacts(r.Connections, query, max), nil
}

func filterContacts(persons []*people.Person, query string, max int) []domain.Contact {
	q := strings.ToLower(query)
	contacts := make([]domain.Contact, 0, len(persons))
	for _, person := range persons {
		c := contactFromPerson(person)
		if q != "" && !strings.Contains(strings.ToLower(c.Name), q) {
			continue
		}
		contacts = append(contacts, c)
		if len(contacts) == max {
			break
		}
	}
	return contacts
}

func contactFromPerson(person *people.Person) domain.Contact {
	var c domain.Contact
	if len(person.Names) > 0 {
		c.Name = person.Names[0].DisplayName
	}
	if len(person.EmailAddresses) > 0 {
		c.Email = person.EmailAddresses[0].Value
	}
	if len(person.PhoneNumbers) > 0 {
		c.Phone = person.PhoneNumbers[0].Value
	}
	if len(person.Organizations) > 0 {
		c.Organization = person.Organizations[0].Name
	}
	return c
}
