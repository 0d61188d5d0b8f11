package models

import "time"

// StatusCounts aggregates applications per review state.
type StatusCounts struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// DashboardSummary is the administrator overview of all applications.
type DashboardSummary struct {
	Counts             StatusCounts   `json:"counts"`
	ByBranch           map[Branch]int `json:"by_branch"`
	Expired            int            `json:"expired"`
	PendingWithDocs    int            `json:"pending_with_docs"`
	PendingWithoutDocs int            `json:"pending_without_docs"`
	// NextExpiryAt is the earliest valid_until still in the future when the summary was
	// composed. The summary is stale once it passes.
	NextExpiryAt *time.Time `json:"next_expiry_at,omitempty"`
	GeneratedAt  time.Time  `json:"generated_at"`
}

// SystemMetrics is a point-in-time view of service instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	DBQueryCount             uint64            `json:"db_query_count"`
	AverageDBQueryDurationMs float64           `json:"average_db_query_duration_ms"`
	Submissions              uint64            `json:"submissions"`
	Decisions                map[string]uint64 `json:"decisions"`
	Extensions               uint64            `json:"extensions"`
	DocumentsAttached        uint64            `json:"documents_attached"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
