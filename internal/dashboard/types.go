package dashboard

import (
	"time"

	"github.com/coal/gatetrap/internal/kernel"
)

// DashboardEvent wraps a kernel event with a unique dashboard ID.
type DashboardEvent struct {
	ID string `json:"id"`
	kernel.Event
}

// WSMessage is the envelope for all WebSocket messages.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// StatsSnapshot is a point-in-time snapshot of accumulated statistics.
type StatsSnapshot struct {
	TotalRequests uint64            `json:"total_requests"`
	BlockedCount  uint64            `json:"blocked_count"`
	AllowedCount  uint64            `json:"allowed_count"`
	VerdictCounts map[string]uint64 `json:"verdict_counts"`
	ReasonCounts  map[string]uint64 `json:"reason_counts"`
	TopDenied     []IPCount         `json:"top_denied"`
	TimeSeries    []TimeSeriesPoint `json:"time_series"`
}

// IPCount is one row of the top-denied table.
type IPCount struct {
	IP    string `json:"ip"`
	Count uint64 `json:"count"`
}

// TimeSeriesPoint is a single point in the 60-minute time series.
type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Count     uint64    `json:"count"`
	Blocked   uint64    `json:"blocked"`
}

// InitialState is sent to clients on WebSocket connect.
type InitialState struct {
	Events []*DashboardEvent `json:"events"`
	Stats  *StatsSnapshot    `json:"stats"`
	Status kernel.Status     `json:"status"`
}
