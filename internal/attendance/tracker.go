// Package attendance implements the daily state tracker: the per-identity
// "first sighting wins" dedup rule, the Early/Present/Absent classification
// window and the midnight rollover state machine.
package attendance

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jvaltonen/facewatch-go/internal/conf"
	"github.com/jvaltonen/facewatch-go/internal/ledger"
	"github.com/jvaltonen/facewatch-go/internal/logging"
)

// Status classifies a sighting against the configured attendance window.
type Status string

const (
	StatusEarly   Status = "Early"
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

// UnknownIdentity is the sentinel the matcher returns for unrecognized faces.
// It is never marked.
const UnknownIdentity = "Unknown"

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// recordStore is the slice of the ledger the tracker depends on.
type recordStore interface {
	Append(ledger.Record) error
	Scan(func(ledger.Record) bool) ([]ledger.Record, error)
	RecentForDate(date string, limit int) ([]ledger.Record, error)
}

// MarkListener is notified after a sighting has been durably recorded and
// marked. Listeners run outside the tracker lock on the producer goroutine,
// so they must not block for long.
type MarkListener func(rec ledger.Record)

// Tracker owns the mutable daily state: the set of identities already marked
// today, the current day marker and the classification window.
//
// Concurrency contract: the frame pipeline is the single writer, status
// queries are concurrent readers. A ledger row is always appended before the
// identity becomes visible in the marked set, so a reader can never observe
// a mark without its durable record.
type Tracker struct {
	mu          sync.RWMutex
	currentDate string
	marked      map[string]struct{}
	window      conf.Window

	store     recordStore
	listeners []MarkListener
	log       *slog.Logger

	// now is the wall clock, injectable for tests.
	now func() time.Time
}

// NewTracker creates a tracker for the given ledger and window. The marked
// set starts empty; call Rebuild to reconstruct it from the ledger.
func NewTracker(store recordStore, window conf.Window) *Tracker {
	t := &Tracker{
		marked: make(map[string]struct{}),
		window: window,
		store:  store,
		log:    logging.ForService("attendance"),
		now:    time.Now,
	}
	t.currentDate = t.now().Format(dateLayout)
	return t
}

// SetClock overrides the wall clock source. Test use only.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	t.currentDate = now().Format(dateLayout)
}

// AddMarkListener registers a callback invoked after each successful mark.
func (t *Tracker) AddMarkListener(fn MarkListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Rebuild reconstructs the marked set from today's ledger rows, making the
// tracker resilient to process restarts mid-day. Unreadable rows have been
// skipped by the ledger already; reconstruction proceeds on partial data.
func (t *Tracker) Rebuild() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	today := t.now().Format(dateLayout)
	rows, err := t.store.Scan(func(r ledger.Record) bool { return r.Date == today })
	if err != nil {
		return err
	}

	t.currentDate = today
	t.marked = make(map[string]struct{}, len(rows))
	for _, r := range rows {
		t.marked[r.Name] = struct{}{}
	}

	if len(t.marked) > 0 {
		t.log.Info("resuming attendance", "date", today, "already_marked", len(t.marked))
	} else {
		t.log.Info("resuming attendance, no one marked yet", "date", today)
	}
	return nil
}

// Classify returns the attendance status for a time of day: before the
// window start is Early, after the window end is Absent, otherwise Present.
// Both boundaries are inclusive on the Present side.
func (t *Tracker) Classify(at time.Time) Status {
	tod := conf.TimeOfDayFromClock(at)
	switch {
	case tod.Before(t.window.Start):
		return StatusEarly
	case tod.After(t.window.End):
		return StatusAbsent
	default:
		return StatusPresent
	}
}

// ConsiderMarking applies the single authoritative mark-once-per-day rule.
// The first sighting of an identity on the current date classifies it,
// appends a ledger row and adds it to the marked set; later sightings are
// no-ops. Returns whether a new record was created and its status.
func (t *Tracker) ConsiderMarking(identity string) (marked bool, status Status, err error) {
	if identity == UnknownIdentity || identity == "" {
		return false, "", nil
	}

	var rec ledger.Record
	var notify []MarkListener

	t.mu.Lock()
	now := t.now()
	t.rolloverLocked(now.Format(dateLayout))

	if _, already := t.marked[identity]; already {
		t.mu.Unlock()
		return false, "", nil
	}

	status = t.Classify(now)
	rec = ledger.Record{
		Name:   identity,
		Date:   t.currentDate,
		Time:   now.Format(timeLayout),
		Status: string(status),
	}

	// Durable row first. If the append fails the identity stays unmarked
	// and the next sighting retries.
	if err = t.store.Append(rec); err != nil {
		t.mu.Unlock()
		return false, "", err
	}
	t.marked[identity] = struct{}{}
	notify = append(notify, t.listeners...)
	t.mu.Unlock()

	t.log.Info("attendance marked", "identity", identity, "time", rec.Time, "status", status)
	for _, fn := range notify {
		fn(rec)
	}
	return true, status, nil
}

// CheckRollover advances the current date and clears the marked set when the
// wall-clock date has moved past it. Called once per processed frame; the
// same-date case is a cheap comparison. Idempotent for a given date.
func (t *Tracker) CheckRollover() {
	today := t.now().Format(dateLayout)

	t.mu.RLock()
	same := t.currentDate == today
	t.mu.RUnlock()
	if same {
		return
	}

	t.mu.Lock()
	t.rolloverLocked(today)
	t.mu.Unlock()
}

func (t *Tracker) rolloverLocked(today string) {
	if t.currentDate == today {
		return
	}
	t.log.Info("new day, resetting daily attendance log", "previous", t.currentDate, "current", today)
	t.marked = make(map[string]struct{})
	t.currentDate = today
}

// IsMarked reports whether the identity has already been marked today.
func (t *Tracker) IsMarked(identity string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.marked[identity]
	return ok
}

// MarkedCount returns the number of identities marked today.
func (t *Tracker) MarkedCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.marked)
}

// CurrentDate returns the tracker's current day marker.
func (t *Tracker) CurrentDate() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentDate
}

// Window returns the configured classification window.
func (t *Tracker) Window() conf.Window {
	return t.window
}
