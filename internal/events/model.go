package events

import "time"

// Type classifies a listing. Only expos and concerts are ingested.
type Type string

const (
	TypeExpo    Type = "expo"
	TypeConcert Type = "concert"
)

// Valid reports whether t is one of the supported types.
func (t Type) Valid() bool {
	return t == TypeExpo || t == TypeConcert
}

// Candidate is an event record extracted from model output and accepted by
// Validate. Optional fields are nil when unknown.
type Candidate struct {
	Title      string  `json:"title" yaml:"title"`
	Type       Type    `json:"type" yaml:"type"`
	Venue      *string `json:"venue" yaml:"venue"`
	Address    *string `json:"address" yaml:"address"`
	SourceURL  *string `json:"source_url" yaml:"source_url"`
	PriceRange *string `json:"price_range" yaml:"price_range"`
	Organizer  *string `json:"organizer" yaml:"organizer"`
	StartDate  string  `json:"start_date" yaml:"start_date"`
	EndDate    *string `json:"end_date" yaml:"end_date"`
}

// LastDate is the final day of the candidate's active interval.
func (c Candidate) LastDate() string {
	if c.EndDate != nil {
		return *c.EndDate
	}
	return c.StartDate
}

// Verdict is the outcome of a fact-check call.
type Verdict struct {
	Verified   bool    `json:"verified" yaml:"verified"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Reason     string  `json:"reason" yaml:"reason"`
}

// Verified pairs a candidate with its verdict.
type Verified struct {
	Candidate `yaml:",inline"`
	Verdict   Verdict `json:"verdict" yaml:"verdict"`
}

// Event is a stored listing. Hash is the dedup identity; ID is assigned on
// first insert and never changes.
type Event struct {
	ID        int64  `json:"id" yaml:"id"`
	Hash      string `json:"hash" yaml:"hash"`
	City      string `json:"city" yaml:"city"`
	Candidate `yaml:",inline"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewEvent attaches the city to a candidate and derives its dedup hash.
func NewEvent(city string, c Candidate) Event {
	return Event{
		City:      city,
		Candidate: c,
		Hash:      Hash(c.Title, c.StartDate, c.Venue, city),
	}
}

// Deref returns the pointed-to string or "" for nil.
func Deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// StringPtr returns nil for an empty string and a pointer otherwise.
func StringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
