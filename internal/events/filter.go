package events

import (
	"fmt"
	"math"
	"strings"

	"eventscout/internal/services"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filter selects stored events. Zero values mean "no constraint". From and To
// bound the active interval [start_date, coalesce(end_date, start_date)].
type Filter struct {
	Type     Type
	City     string
	Query    string
	From     string
	To       string
	Page     int
	PageSize int
}

// Normalize applies pagination defaults and validates filter values.
func (f Filter) Normalize() (Filter, error) {
	f.City = strings.TrimSpace(f.City)
	f.Query = strings.TrimSpace(f.Query)
	f.From = strings.TrimSpace(f.From)
	f.To = strings.TrimSpace(f.To)
	if f.Type != "" && !f.Type.Valid() {
		return f, invalidFilter("type must be expo or concert, got %q", f.Type)
	}
	if f.From != "" && !IsDate(f.From) {
		return f, invalidFilter("from must match YYYY-MM-DD, got %q", f.From)
	}
	if f.To != "" && !IsDate(f.To) {
		return f, invalidFilter("to must match YYYY-MM-DD, got %q", f.To)
	}
	if f.From != "" && f.To != "" && f.From > f.To {
		return f, invalidFilter("from %s is after to %s", f.From, f.To)
	}
	if f.Page < 0 || f.PageSize < 0 {
		return f, invalidFilter("page and pageSize must be >= 1")
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PageSize == 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	if f.Page-1 > math.MaxInt/f.PageSize {
		return f, invalidFilter("page %d is out of range", f.Page)
	}
	return f, nil
}

// Offset is the number of rows skipped before the requested page.
func (f Filter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

func invalidFilter(format string, args ...any) error {
	return services.Wrap(services.ErrValidation, "query", "filter", fmt.Sprintf(format, args...), nil)
}

// Page is one page of query results plus the total match count.
type Page struct {
	Items    []Event `json:"items"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
}

// TotalPages derives the page count from Total and PageSize.
func (p Page) TotalPages() int {
	if p.PageSize <= 0 || p.Total <= 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}
