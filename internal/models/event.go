package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrMissingAPIKey is returned when the source adapter is invoked without
// credentials. It is a precondition failure: no network call has been made.
var ErrMissingAPIKey = errors.New("missing search API key")

// SourceSerpAPI identifies the provenance of records created by the sync pipeline.
const SourceSerpAPI = "serpapi"

// StringList decodes a JSON value that may be either a single string or an
// array of strings. Provider payloads are inconsistent about this for the
// address field.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*s = nil
		return nil
	}
	if data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*s = StringList{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = StringList(list)
	return nil
}

// RawListing is one event entry as returned by the external search API,
// before normalization. It carries no identity guarantee across fetches.
type RawListing struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Link        string       `json:"link,omitempty"`
	Thumbnail   string       `json:"thumbnail,omitempty"`
	Image       string       `json:"image,omitempty"`
	Address     StringList   `json:"address,omitempty"`
	Venue       *Venue       `json:"venue,omitempty"`
	Date        *ListingDate `json:"date,omitempty"`
}

type Venue struct {
	Name    string  `json:"name"`
	Rating  float64 `json:"rating,omitempty"`
	Reviews int     `json:"reviews,omitempty"`
}

type ListingDate struct {
	StartDate string `json:"start_date,omitempty"`
	When      string `json:"when,omitempty"`
}

// StartDateText returns the raw start-date expression, if any.
func (l *RawListing) StartDateText() string {
	if l.Date == nil {
		return ""
	}
	return l.Date.StartDate
}

// WhenText returns the human-readable date range, if any.
func (l *RawListing) WhenText() string {
	if l.Date == nil {
		return ""
	}
	return l.Date.When
}

// DateDisplay returns the string shown to users: the full range when
// available, else the bare start date.
func (l *RawListing) DateDisplay() string {
	if w := l.WhenText(); w != "" {
		return w
	}
	return l.StartDateText()
}

// BestImage prefers the full-size image over the thumbnail; the provider's
// "image" field is consistently higher resolution when present.
func (l *RawListing) BestImage() string {
	if l.Image != "" {
		return l.Image
	}
	return l.Thumbnail
}

// VenueName returns the venue name, if any.
func (l *RawListing) VenueName() string {
	if l.Venue == nil {
		return ""
	}
	return l.Venue.Name
}

// EventRecord is the normalized, persisted representation of one event.
//
// The operator flags (IsActive, IsSponsored, IsHighlighted) are mutated only
// by human administrators. The sync pipeline preserves their stored values on
// every update and only sets defaults on first creation.
type EventRecord struct {
	ID            string     `firestore:"-"` // Firestore document ID, derived, not stored in the document
	Title         string     `firestore:"title" validate:"required"`
	Description   string     `firestore:"description"`
	Link          string     `firestore:"link,omitempty" validate:"omitempty,url"`
	Thumbnail     string     `firestore:"thumbnail,omitempty"`
	Address       []string   `firestore:"address"`
	Venue         string     `firestore:"venue"`
	DateDisplay   string     `firestore:"dateDisplay"`
	StartDate     time.Time  `firestore:"startDate" validate:"required"`
	Tags          []string   `firestore:"tags"`
	IsActive      bool       `firestore:"isActive"`
	IsSponsored   bool       `firestore:"isSponsored"`
	IsHighlighted bool       `firestore:"isHighlighted"`
	CreatedAt     time.Time  `firestore:"createdAt"`
	UpdatedAt     time.Time  `firestore:"updatedAt"`
	Metadata      Provenance `firestore:"metadata"`
}

// Provenance records where a document came from, with the raw provider
// payload retained for debugging.
type Provenance struct {
	Source       string `firestore:"source"`
	OriginalData string `firestore:"originalData,omitempty"`
}
