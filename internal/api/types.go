package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Event describes a stored listing in a transport-friendly format.
type Event struct {
	ID         int64   `json:"id" yaml:"id"`
	Title      string  `json:"title" yaml:"title"`
	Type       string  `json:"type" yaml:"type"`
	City       string  `json:"city" yaml:"city"`
	Venue      *string `json:"venue" yaml:"venue"`
	Address    *string `json:"address" yaml:"address"`
	SourceURL  *string `json:"sourceUrl" yaml:"source_url"`
	PriceRange *string `json:"priceRange" yaml:"price_range"`
	Organizer  *string `json:"organizer" yaml:"organizer"`
	StartDate  string  `json:"startDate" yaml:"start_date"`
	EndDate    *string `json:"endDate" yaml:"end_date"`
	CreatedAt  string  `json:"createdAt,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt  string  `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
}

// EventPage is the list endpoint payload.
type EventPage struct {
	Items      []Event `json:"items" yaml:"items"`
	Total      int     `json:"total" yaml:"total"`
	Page       int     `json:"page" yaml:"page"`
	PageSize   int     `json:"pageSize" yaml:"page_size"`
	TotalPages int     `json:"totalPages" yaml:"total_pages"`
}

// SyncRequest triggers one ingestion pass. TargetDate defaults to today in
// the configured timezone; City defaults to the configured default city.
type SyncRequest struct {
	City       string `json:"city"`
	TargetDate string `json:"targetDate,omitempty"`
}

// SyncResponse reports the outcome of a sync. Message is set when no
// verified events survived.
type SyncResponse struct {
	RunID      string `json:"runId,omitempty" yaml:"run_id,omitempty"`
	City       string `json:"city" yaml:"city"`
	TargetDate string `json:"targetDate" yaml:"target_date"`
	Inserted   int    `json:"inserted" yaml:"inserted"`
	Updated    int    `json:"updated" yaml:"updated"`
	Message    string `json:"message,omitempty" yaml:"message,omitempty"`
}

// VerifyRequest lists stored event ids to re-verify.
type VerifyRequest struct {
	IDs []int64 `json:"ids"`
}

// VerifyResult is the verdict for one requested id.
type VerifyResult struct {
	ID         int64   `json:"id" yaml:"id"`
	Verified   bool    `json:"verified" yaml:"verified"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Reason     string  `json:"reason" yaml:"reason"`
}

// VerifyResponse carries one result per requested id in request order.
type VerifyResponse struct {
	Results []VerifyResult `json:"results" yaml:"results"`
}

// StoreStats summarizes stored events.
type StoreStats struct {
	Total  int            `json:"total" yaml:"total"`
	ByType map[string]int `json:"byType" yaml:"by_type"`
	ByCity map[string]int `json:"byCity" yaml:"by_city"`
}

// RunSummary describes the most recent ingestion run for a city.
type RunSummary struct {
	City       string `json:"city" yaml:"city"`
	Trigger    string `json:"trigger" yaml:"trigger"`
	RunID      string `json:"runId,omitempty" yaml:"run_id,omitempty"`
	StartedAt  string `json:"startedAt" yaml:"started_at"`
	FinishedAt string `json:"finishedAt,omitempty" yaml:"finished_at,omitempty"`
	Inserted   int    `json:"inserted" yaml:"inserted"`
	Updated    int    `json:"updated" yaml:"updated"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// SchedulerStatus reports scheduled ingestion state.
type SchedulerStatus struct {
	Enabled bool         `json:"enabled" yaml:"enabled"`
	NextRun string       `json:"nextRun,omitempty" yaml:"next_run,omitempty"`
	Cities  []string     `json:"cities" yaml:"cities"`
	Runs    []RunSummary `json:"runs" yaml:"runs"`
}

// HealthStatus is the /api/health payload.
type HealthStatus struct {
	Status                 string          `json:"status" yaml:"status"`
	Database               string          `json:"database" yaml:"database"`
	PrimaryConfigured      bool            `json:"primaryConfigured" yaml:"primary_configured"`
	VerificationConfigured bool            `json:"verificationConfigured" yaml:"verification_configured"`
	Scheduler              SchedulerStatus `json:"scheduler" yaml:"scheduler"`
	Store                  *StoreStats     `json:"store,omitempty" yaml:"store,omitempty"`
}
