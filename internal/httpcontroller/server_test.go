package httpcontroller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvaltonen/facewatch-go/internal/attendance"
	"github.com/jvaltonen/facewatch-go/internal/conf"
	"github.com/jvaltonen/facewatch-go/internal/facedet"
	"github.com/jvaltonen/facewatch-go/internal/frame"
	"github.com/jvaltonen/facewatch-go/internal/ledger"
	"github.com/jvaltonen/facewatch-go/internal/pipeline"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	led := ledger.New(filepath.Join(t.TempDir(), "attendance.csv"))
	require.NoError(t, led.EnsureInitialized())

	start, err := conf.ParseTimeOfDay("08:00")
	require.NoError(t, err)
	end, err := conf.ParseTimeOfDay("11:00")
	require.NoError(t, err)

	tracker := attendance.NewTracker(led, conf.Window{Start: start, End: end})
	tracker.SetClock(func() time.Time {
		return time.Date(2026, 8, 29, 9, 0, 0, 0, time.Local)
	})

	settings := &conf.Settings{}
	settings.WebServer.Port = "8080"

	return New(settings, nil, tracker, led,
		&facedet.Registry{Names: []string{"alice", "bob"}},
		pipeline.NewBroadcaster(nil),
		frame.NewManager(nil, nil, time.Second))
}

func doRequest(s *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "/api/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "disconnected", body["stream_state"])
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t)

	_, _, err := s.Tracker.ConsiderMarking("alice")
	require.NoError(t, err)

	rec := doRequest(s, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap attendance.StatusSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "2026-08-29", snap.CurrentDate)
	assert.Equal(t, "08:00", snap.StartTime)
	assert.Equal(t, "11:00", snap.EndTime)
	assert.Equal(t, 1, snap.MarkedCount)
	assert.Equal(t, 2, snap.TotalKnown)
	require.Len(t, snap.RecentLogs, 1)
	assert.Equal(t, "alice", snap.RecentLogs[0].Name)
}

func TestRecentEndpoint(t *testing.T) {
	s := newTestServer(t)

	for _, name := range []string{"alice", "bob"} {
		_, _, err := s.Tracker.ConsiderMarking(name)
		require.NoError(t, err)
	}

	rec := doRequest(s, "/api/v1/attendance/recent?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []ledger.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "bob", records[0].Name, "newest first")
}

func TestAttendanceEndpointFromLedger(t *testing.T) {
	s := newTestServer(t)

	require.NoError(t, s.Ledger.Append(ledger.Record{Name: "carol", Date: "2026-08-28", Time: "08:30:00", Status: "Present"}))
	_, _, err := s.Tracker.ConsiderMarking("alice")
	require.NoError(t, err)

	rec := doRequest(s, "/api/v1/attendance")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []ledger.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 2)

	rec = doRequest(s, "/api/v1/attendance?date=2026-08-28")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "carol", records[0].Name)
}

func TestAttendanceEndpointEmpty(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, "/api/v1/attendance")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestVideoFeedStreamsFrames(t *testing.T) {
	s := newTestServer(t)

	srv := httptest.NewServer(s.Echo)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/video_feed", http.NoBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Contains(t, resp.Header.Get("Content-Type"), "multipart/x-mixed-replace")

	// Wait for the handler to subscribe, then feed it one frame.
	require.Eventually(t, func() bool {
		return s.Broadcaster.ViewerCount() == 1
	}, time.Second, 5*time.Millisecond)
	s.Broadcaster.Publish([]byte("jpeg-bytes"))

	buf := make([]byte, 4096)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	part := string(buf[:n])
	assert.Contains(t, part, "--frame")
	assert.Contains(t, part, "Content-Type: image/jpeg")
	assert.Contains(t, part, "jpeg-bytes")

	cancel()
	require.Eventually(t, func() bool {
		return s.Broadcaster.ViewerCount() == 0
	}, time.Second, 5*time.Millisecond, "viewer unsubscribes on disconnect")
}
