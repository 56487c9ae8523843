package attendance

import (
	"time"
)

// recentLogLimit caps the recent activity list in a snapshot.
const recentLogLimit = 10

// StatusSnapshot is a point-in-time, read-only view of the daily state,
// computed fresh on every query and never cached across requests.
type StatusSnapshot struct {
	CurrentDate string          `json:"current_date"`
	CurrentTime string          `json:"current_time"`
	StartTime   string          `json:"start_time"`
	EndTime     string          `json:"end_time"`
	MarkedCount int             `json:"marked_count"`
	TotalKnown  int             `json:"total_known"`
	RecentLogs  []RecentLogItem `json:"recent_logs"`
}

// RecentLogItem is one row of the recent activity list, newest first.
type RecentLogItem struct {
	Name   string `json:"name"`
	Time   string `json:"time"`
	Status string `json:"status"`
}

// Snapshot assembles a StatusSnapshot for the query surface. It only takes
// the read lock for the in-memory fields; the recent-rows scan runs against
// the ledger's own read handle and never blocks the producer. A ledger read
// problem degrades to an empty activity list rather than failing the query.
func (t *Tracker) Snapshot(totalKnown int) StatusSnapshot {
	t.mu.RLock()
	date := t.currentDate
	markedCount := len(t.marked)
	now := t.now()
	t.mu.RUnlock()

	snap := StatusSnapshot{
		CurrentDate: date,
		CurrentTime: now.Format(timeLayout),
		StartTime:   t.window.Start.String(),
		EndTime:     t.window.End.String(),
		MarkedCount: markedCount,
		TotalKnown:  totalKnown,
		RecentLogs:  []RecentLogItem{},
	}

	recent, err := t.store.RecentForDate(date, recentLogLimit)
	if err != nil {
		t.log.Warn("error reading recent attendance rows for snapshot", "error", err)
		return snap
	}
	for _, r := range recent {
		snap.RecentLogs = append(snap.RecentLogs, RecentLogItem{Name: r.Name, Time: r.Time, Status: r.Status})
	}
	return snap
}

// NowFunc exposes the tracker clock for collaborators that must agree on
// what "now" means (the pipeline's rollover check, tests).
func (t *Tracker) NowFunc() func() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.now
}
