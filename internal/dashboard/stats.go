package dashboard

import (
	"sort"
	"sync"
	"time"
)

const timeSeriesMinutes = 60

const topDeniedLimit = 10

// Stats accumulates real-time statistics from kernel events.
type Stats struct {
	mu sync.RWMutex

	totalRequests uint64
	blockedCount  uint64
	allowedCount  uint64

	verdictCounts map[string]uint64
	reasonCounts  map[string]uint64
	deniedIPs     map[string]uint64

	// Per-minute buckets for the last 60 minutes
	timeBuckets [timeSeriesMinutes]timeBucket
}

type timeBucket struct {
	minute  time.Time // truncated to minute
	count   uint64
	blocked uint64
}

// NewStats creates a new stats accumulator.
func NewStats() *Stats {
	return &Stats{
		verdictCounts: make(map[string]uint64),
		reasonCounts:  make(map[string]uint64),
		deniedIPs:     make(map[string]uint64),
	}
}

// Record ingests a single kernel event.
func (s *Stats) Record(event *DashboardEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRequests++

	if event.Blocked {
		s.blockedCount++
		s.deniedIPs[event.IP]++
	} else {
		s.allowedCount++
	}

	s.verdictCounts[event.VerdictS]++
	if event.ReasonS != "" {
		s.reasonCounts[event.ReasonS]++
	}

	// Time series
	now := event.Timestamp.Truncate(time.Minute)
	idx := now.Minute() % timeSeriesMinutes
	if s.timeBuckets[idx].minute != now {
		s.timeBuckets[idx] = timeBucket{minute: now}
	}
	s.timeBuckets[idx].count++
	if event.Blocked {
		s.timeBuckets[idx].blocked++
	}
}

// Snapshot returns a point-in-time copy of the stats.
func (s *Stats) Snapshot() *StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &StatsSnapshot{
		TotalRequests: s.totalRequests,
		BlockedCount:  s.blockedCount,
		AllowedCount:  s.allowedCount,
		VerdictCounts: copyMap(s.verdictCounts),
		ReasonCounts:  copyMap(s.reasonCounts),
		TopDenied:     s.topDenied(),
	}

	// Build time series from buckets (last 60 minutes, chronological)
	now := time.Now().UTC().Truncate(time.Minute)
	cutoff := now.Add(-timeSeriesMinutes * time.Minute)
	for i := 0; i < timeSeriesMinutes; i++ {
		t := cutoff.Add(time.Duration(i+1) * time.Minute)
		idx := t.Minute() % timeSeriesMinutes
		b := s.timeBuckets[idx]
		if b.minute == t {
			snap.TimeSeries = append(snap.TimeSeries, TimeSeriesPoint{
				Timestamp: b.minute,
				Count:     b.count,
				Blocked:   b.blocked,
			})
		} else {
			snap.TimeSeries = append(snap.TimeSeries, TimeSeriesPoint{
				Timestamp: t,
				Count:     0,
				Blocked:   0,
			})
		}
	}

	return snap
}

// topDenied returns the most-denied IPs, highest count first. Caller holds
// at least a read lock.
func (s *Stats) topDenied() []IPCount {
	rows := make([]IPCount, 0, len(s.deniedIPs))
	for ip, n := range s.deniedIPs {
		rows = append(rows, IPCount{IP: ip, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].IP < rows[j].IP
	})
	if len(rows) > topDeniedLimit {
		rows = rows[:topDeniedLimit]
	}
	return rows
}

func copyMap(m map[string]uint64) map[string]uint64 {
	c := make(map[string]uint64, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
