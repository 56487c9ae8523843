// Package ledger implements the durable, append-only attendance record store.
//
// The backing file is a CSV with the fixed header "Name,Date,Time,Status".
// Rows are written one at a time with a synchronous flush so a crash can lose
// at most the in-flight row, never corrupt earlier ones. The file is never
// rewritten in place.
package ledger

import (
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	ferrors "github.com/jvaltonen/facewatch-go/internal/errors"
	"github.com/jvaltonen/facewatch-go/internal/logging"
)

// Header columns of the attendance file.
var Header = []string{"Name", "Date", "Time", "Status"}

// Record is one attendance row. Date is YYYY-MM-DD, Time is HH:MM:SS.
type Record struct {
	Name   string `json:"name"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Status string `json:"status"`
}

// Ledger serializes appends to the attendance file. Scans open their own
// read handle and may run concurrently with appends: each row is flushed as
// a whole line, so readers never observe a partial row.
type Ledger struct {
	path string
	mu   sync.Mutex // guards the append path only
	log  *slog.Logger
}

// New creates a Ledger for the given file path.
func New(path string) *Ledger {
	return &Ledger{
		path: path,
		log:  logging.ForService("ledger"),
	}
}

// Path returns the backing file path.
func (l *Ledger) Path() string { return l.path }

// EnsureInitialized creates the backing file with a header row if it does
// not exist yet. Safe to call on every process start.
func (l *Ledger) EnsureInitialized() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := os.Stat(l.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return ferrors.New(err).Component("ledger").Category(ferrors.CategoryFileIO).Build()
	}

	l.log.Info("no attendance file found, creating", "path", l.path)

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return ferrors.New(err).Component("ledger").Category(ferrors.CategoryFileIO).Build()
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return ferrors.New(err).Component("ledger").Category(ferrors.CategoryFileIO).Build()
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return ferrors.New(err).Component("ledger").Category(ferrors.CategoryFileIO).Build()
	}
	return f.Sync()
}

// Append durably writes a single record. One row per call, never batched.
func (l *Ledger) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return ferrors.New(err).Component("ledger").Category(ferrors.CategoryLedger).Build()
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write([]string{rec.Name, rec.Date, rec.Time, rec.Status}); err != nil {
		return ferrors.New(err).Component("ledger").Category(ferrors.CategoryLedger).Build()
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return ferrors.New(err).Component("ledger").Category(ferrors.CategoryLedger).Build()
	}
	return f.Sync()
}

// Scan reads all records in file order, oldest first, returning those the
// keep predicate accepts. Rows that don't have exactly four columns are
// rejected, not truncated, and logged as data-integrity warnings. Read
// problems yield the rows parsed so far rather than failing the caller.
func (l *Ledger) Scan(keep func(Record) bool) ([]Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, ferrors.New(err).Component("ledger").Category(ferrors.CategoryFileIO).Build()
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // column count is validated per row below

	var records []Record
	line := 0
	for {
		row, err := r.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			l.log.Warn("skipping unreadable attendance row", "path", l.path, "line", line, "error", err)
			continue
		}
		if line == 1 && isHeader(row) {
			continue
		}
		if len(row) != len(Header) {
			l.log.Warn("skipping malformed attendance row", "path", l.path, "line", line, "columns", len(row))
			continue
		}
		rec := Record{Name: row[0], Date: row[1], Time: row[2], Status: row[3]}
		if keep == nil || keep(rec) {
			records = append(records, rec)
		}
	}
	return records, nil
}

// RecentForDate returns up to limit records for the given date, newest first.
func (l *Ledger) RecentForDate(date string, limit int) ([]Record, error) {
	records, err := l.Scan(func(r Record) bool { return r.Date == date })
	if err != nil {
		return nil, err
	}
	if len(records) > limit {
		records = records[len(records)-limit:]
	}
	// Reverse for newest-first display order.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func isHeader(row []string) bool {
	if len(row) != len(Header) {
		return false
	}
	for i, col := range Header {
		if row[i] != col {
			return false
		}
	}
	return true
}
