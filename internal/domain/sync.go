package domain

import "time"

// PlatformData is what one successful platform sync produced.
type PlatformData struct {
	Location PlatformLocation `json:"location"`
	Reviews  []Review         `json:"reviews"`
	Photos   []Photo          `json:"photos"`
}

// PlatformSyncResult is either {Success:true, Data} or {Success:false, Error}.
type PlatformSyncResult struct {
	Platform   Platform      `json:"platform"`
	ExternalID string        `json:"external_id"`
	Success    bool          `json:"success"`
	Data       *PlatformData `json:"data,omitempty"`
	Error      string        `json:"error,omitempty"`
}

type PlatformIDs struct {
	TripAdvisor  string `json:"tripadvisor,omitempty"`
	GooglePlaces string `json:"google_places,omitempty"`
}

type BulkSyncItem struct {
	InternalID  string      `json:"internal_id"`
	PlatformIDs PlatformIDs `json:"platform_ids"`
}

type LocationSyncResult struct {
	InternalID string               `json:"internal_id"`
	Success    bool                 `json:"success"`
	Platforms  []PlatformSyncResult `json:"platforms"`
}

type BulkSyncReport struct {
	RunID      string               `json:"run_id"`
	Results    []LocationSyncResult `json:"results"`
	Succeeded  int                  `json:"succeeded"`
	Failed     int                  `json:"failed"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
}

type PlatformHealth struct {
	Platform  Platform      `json:"platform"`
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

type HealthReport struct {
	Healthy    bool             `json:"healthy"`
	Platforms  []PlatformHealth `json:"platforms"`
	Repository string           `json:"repository"` // ok|down|disabled
}

// SyncLogEntry is one attempt recorded in the sync log.
type SyncLogEntry struct {
	RunID      string
	InternalID string
	Platform   Platform
	ExternalID string
	Success    bool
	Error      string
	Reviews    int
	Photos     int
	Duration   time.Duration
}

type PlatformCounters struct {
	Attempts  int64      `json:"attempts"`
	Successes int64      `json:"successes"`
	Failures  int64      `json:"failures"`
	LastSync  *time.Time `json:"last_sync,omitempty"`
}

type WindowUsage struct {
	Used  int `json:"used"`
	Quota int `json:"quota"`
}

type SyncStatistics struct {
	Process   map[Platform]PlatformCounters `json:"process"`
	Persisted map[Platform]PlatformCounters `json:"persisted,omitempty"`
	RateLimit map[Platform]WindowUsage      `json:"rate_limit"`
}
