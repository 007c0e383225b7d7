package events

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// RejectError explains why a raw record was dropped.
type RejectError struct {
	Field  string
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func reject(field, reason string) error {
	return &RejectError{Field: field, Reason: reason}
}

// IsDate reports whether value has the strict YYYY-MM-DD shape.
func IsDate(value string) bool {
	return datePattern.MatchString(value)
}

// ValidateRaw decodes one JSON record and validates it.
func ValidateRaw(raw json.RawMessage) (Candidate, error) {
	var record map[string]any
	if err := json.Unmarshal(raw, &record); err != nil || record == nil {
		return Candidate{}, reject("record", "not a JSON object")
	}
	return Validate(record)
}

// Validate checks one raw record against the event shape and returns the
// normalized candidate. It never panics on unexpected input.
func Validate(record map[string]any) (Candidate, error) {
	var c Candidate

	rawTitle, ok := record["title"].(string)
	if !ok {
		if record["title"] != nil {
			return Candidate{}, reject("title", "must be text")
		}
		return Candidate{}, reject("title", "required")
	}
	c.Title = strings.TrimSpace(norm.NFC.String(rawTitle))
	if c.Title == "" {
		return Candidate{}, reject("title", "required")
	}

	rawType, ok := record["type"].(string)
	if !ok {
		return Candidate{}, reject("type", "must be \"expo\" or \"concert\"")
	}
	c.Type = Type(rawType)
	if !c.Type.Valid() {
		return Candidate{}, reject("type", fmt.Sprintf("unsupported value %q", rawType))
	}

	startDate, ok := record["start_date"].(string)
	if !ok || !IsDate(startDate) {
		return Candidate{}, reject("start_date", "must match YYYY-MM-DD")
	}
	c.StartDate = startDate

	switch value := record["end_date"].(type) {
	case nil:
	case string:
		if value != "" {
			if !IsDate(value) {
				return Candidate{}, reject("end_date", "must match YYYY-MM-DD or be null")
			}
			if value < c.StartDate {
				return Candidate{}, reject("end_date", "before start_date")
			}
			c.EndDate = &value
		}
	default:
		return Candidate{}, reject("end_date", "must match YYYY-MM-DD or be null")
	}

	var err error
	if c.SourceURL, err = optionalText(record, "source_url"); err != nil {
		return Candidate{}, err
	}
	if c.SourceURL != nil && !validURL(*c.SourceURL) {
		return Candidate{}, reject("source_url", "not a valid URL")
	}

	for field, dst := range map[string]**string{
		"venue":       &c.Venue,
		"address":     &c.Address,
		"price_range": &c.PriceRange,
		"organizer":   &c.Organizer,
	} {
		if *dst, err = optionalText(record, field); err != nil {
			return Candidate{}, err
		}
	}
	return c, nil
}

// optionalText returns nil for missing, null, or blank values. Numbers and
// booleans are rendered as text; objects and arrays are rejected.
func optionalText(record map[string]any, field string) (*string, error) {
	var text string
	switch value := record[field].(type) {
	case nil:
		return nil, nil
	case string:
		text = value
	case float64:
		text = strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		text = strconv.FormatBool(value)
	default:
		return nil, reject(field, "must be text or null")
	}
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return nil, nil
	}
	return &text, nil
}

func validURL(value string) bool {
	parsed, err := url.ParseRequestURI(value)
	if err != nil {
		return false
	}
	return parsed.Scheme != "" && parsed.Host != ""
}

// BatchResult summarizes ValidateBatch.
type BatchResult struct {
	Candidates []Candidate
	Rejected   int
	Reasons    map[string]int
}

// ValidateBatch validates records independently. Invalid records are counted
// by field and dropped; they never affect their siblings.
func ValidateBatch(records []json.RawMessage) BatchResult {
	result := BatchResult{Candidates: make([]Candidate, 0, len(records))}
	for _, raw := range records {
		candidate, err := ValidateRaw(raw)
		if err != nil {
			result.Rejected++
			if result.Reasons == nil {
				result.Reasons = make(map[string]int)
			}
			field := "record"
			if rejectErr, ok := err.(*RejectError); ok {
				field = rejectErr.Field
			}
			result.Reasons[field]++
			continue
		}
		result.Candidates = append(result.Candidates, candidate)
	}
	return result
}
