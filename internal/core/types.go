package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SearchQuery is a single user-authored search request.
type SearchQuery struct {
	Goal          string `json:"goal"`
	Location      string `json:"location,omitempty"`
	CountryCode   string `json:"country_code"`
	LocationBased bool   `json:"location_based"`
}

// Validate reports missing required fields. It never performs I/O.
func (q SearchQuery) Validate() error {
	var missing []string
	if strings.TrimSpace(q.Goal) == "" {
		missing = append(missing, "goal")
	}
	if q.LocationBased && strings.TrimSpace(q.Location) == "" {
		missing = append(missing, "location")
	}
	if strings.TrimSpace(q.CountryCode) == "" {
		missing = append(missing, "country_code")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// SearchResult is the decoded primary search response.
type SearchResult struct {
	ID       string   `json:"id"`
	Count    int      `json:"count"`
	Results  []Vendor `json:"results"`
	Meta     Meta     `json:"meta"`
	Status   string   `json:"status,omitempty"`
	HasMore  bool     `json:"has_more,omitempty"`
	Location string   `json:"location,omitempty"`
	Prompt   string   `json:"prompt,omitempty"`
}

// Meta describes how the backend interpreted the search.
type Meta struct {
	Time        float64  `json:"time"`
	SearchQuery string   `json:"search_query"`
	Solution    string   `json:"solution"`
	SearchSpace []string `json:"search_space"`
}

// Vendor is one candidate returned by a search.
type Vendor struct {
	Name        string   `json:"name"`
	Info        string   `json:"info,omitempty"`
	Contacts    Contacts `json:"contacts"`
	Source      string   `json:"source"`
	Provider    []string `json:"provider"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	RatingCount *int     `json:"rating_count,omitempty"`
	Target      string   `json:"target,omitempty"`
}

// HasRating reports whether the backend supplied a native rating.
func (v Vendor) HasRating() bool {
	return v.Rating != nil
}

// Contacts holds vendor contact details.
type Contacts struct {
	Email   ContactValue `json:"email"`
	Phone   ContactValue `json:"phone"`
	Address string       `json:"address"`
}

// ContactKind tags the shape of a ContactValue.
type ContactKind int

const (
	ContactEmpty ContactKind = iota
	ContactSingle
	ContactMultiple
)

// ContactValue is either a single string or a list of strings, resolved at decode time.
type ContactValue struct {
	Kind   ContactKind
	Single string
	Multi  []string
}

// SingleContact builds a single-valued contact.
func SingleContact(value string) ContactValue {
	return ContactValue{Kind: ContactSingle, Single: value}
}

// MultipleContact builds a multi-valued contact.
func MultipleContact(values ...string) ContactValue {
	return ContactValue{Kind: ContactMultiple, Multi: values}
}

// Values returns the contact entries regardless of shape.
func (c ContactValue) Values() []string {
	switch c.Kind {
	case ContactSingle:
		return []string{c.Single}
	case ContactMultiple:
		return c.Multi
	default:
		return nil
	}
}

// String joins the contact entries for display.
func (c ContactValue) String() string {
	return strings.Join(c.Values(), ", ")
}

// UnmarshalJSON accepts a string, a list of strings, or null.
func (c *ContactValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*c = ContactValue{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*c = SingleContact(value)
		return nil
	case '[':
		var values []string
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		*c = MultipleContact(values...)
		return nil
	default:
		return fmt.Errorf("contact must be a string or list of strings, got %s", trimmed)
	}
}

// MarshalJSON writes the value back in the shape it was received.
func (c ContactValue) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ContactSingle:
		return json.Marshal(c.Single)
	case ContactMultiple:
		values := c.Multi
		if values == nil {
			values = []string{}
		}
		return json.Marshal(values)
	default:
		return []byte("null"), nil
	}
}

// FeedbackSubmission is a user rating tied to a completed search.
type FeedbackSubmission struct {
	SearchID string   `json:"id"`
	Prompt   string   `json:"prompt"`
	Message  string   `json:"message"`
	Rating   int      `json:"rating"`
	Snapshot []Vendor `json:"data"`
}
