package httpcontroller

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jvaltonen/facewatch-go/internal/datastore"
	"github.com/jvaltonen/facewatch-go/internal/ledger"
)

const (
	defaultRecentLimit  = 10
	defaultHistoryLimit = 100
)

// handleHealth reports liveness. The API stays healthy during stream
// outages; the stream state is informational.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":       "healthy",
		"stream_state": s.Sources.State().String(),
	})
}

// handleStatus returns the attendance snapshot the dashboard polls.
func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Tracker.Snapshot(len(s.Registry.KnownIdentities())))
}

// handleRecent returns today's most recent marks, newest first.
func (s *Server) handleRecent(c echo.Context) error {
	limit := queryLimit(c, defaultRecentLimit)

	records, err := s.Ledger.RecentForDate(s.Tracker.CurrentDate(), limit)
	if err != nil {
		s.webLogger.Error("reading recent marks failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "reading attendance ledger failed")
	}
	if records == nil {
		records = []ledger.Record{}
	}
	return c.JSON(http.StatusOK, records)
}

// handleAttendance returns attendance history. With a database output
// enabled it queries that; otherwise it scans the ledger file. An optional
// date query filters to one day.
func (s *Server) handleAttendance(c echo.Context) error {
	date := c.QueryParam("date")
	limit := queryLimit(c, defaultHistoryLimit)

	if s.DS != nil {
		records, err := s.historyFromDatastore(date, limit)
		if err != nil {
			s.webLogger.Error("reading attendance history failed", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "reading attendance history failed")
		}
		return c.JSON(http.StatusOK, records)
	}

	records, err := s.Ledger.Scan(func(rec ledger.Record) bool {
		return date == "" || rec.Date == date
	})
	if err != nil {
		s.webLogger.Error("reading attendance ledger failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "reading attendance ledger failed")
	}
	if len(records) > limit {
		records = records[len(records)-limit:]
	}
	if records == nil {
		records = []ledger.Record{}
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) historyFromDatastore(date string, limit int) ([]ledger.Record, error) {
	var (
		rows []datastore.MarkRecord
		err  error
	)
	if date != "" {
		rows, err = s.DS.GetByDate(date)
	} else {
		rows, err = s.DS.GetRecent(limit)
	}
	if err != nil {
		return nil, err
	}

	records := make([]ledger.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, ledger.Record{
			Name:   r.Name,
			Date:   r.Date,
			Time:   r.Time,
			Status: r.Status,
		})
	}
	return records, nil
}

func queryLimit(c echo.Context, fallback int) int {
	raw := c.QueryParam("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return fallback
	}
	return limit
}
