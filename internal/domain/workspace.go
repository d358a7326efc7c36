package domain

// Email is a mail message summary.
type Email struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Snippet string `json:"snippet"`
}

// File is a cloud-drive file entry.
type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	Size         int64  `json:"size,omitempty"`
}

// Event is a calendar event. Start and End hold either an RFC 3339
// date-time or an all-day date.
type Event struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link,omitempty"`
}

// EventRequest holds the fields needed to create a calendar event.
type EventRequest struct {
	Summary     string
	Start       string
	End         string
	Description string
	Location    string
}

// Contact is an address-book entry.
type Contact struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Organization string `json:"organization"`
}

// ImageContentPrefix marks file content that is an image data URL rather than text.
const ImageContentPrefix = "__IMAGE_DATA_URL__"
