package datastore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvaltonen/facewatch-go/internal/conf"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "attendance.db")

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { store.Close() }) //nolint:errcheck
	return store
}

func TestNewSelectsEnabledStore(t *testing.T) {
	settings := &conf.Settings{}
	assert.Nil(t, New(settings))

	settings.Output.SQLite.Enabled = true
	assert.IsType(t, &SQLiteStore{}, New(settings))

	settings.Output.SQLite.Enabled = false
	settings.Output.MySQL.Enabled = true
	assert.IsType(t, &MySQLStore{}, New(settings))
}

func TestSaveAndGetByDate(t *testing.T) {
	store := newTestStore(t)

	records := []MarkRecord{
		{Name: "alice", Date: "2026-08-29", Time: "08:15:00", Status: "Present"},
		{Name: "bob", Date: "2026-08-29", Time: "07:45:12", Status: "Early"},
		{Name: "carol", Date: "2026-08-28", Time: "08:00:00", Status: "Present"},
	}
	for i := range records {
		require.NoError(t, store.Save(&records[i]))
	}

	today, err := store.GetByDate("2026-08-29")
	require.NoError(t, err)
	require.Len(t, today, 2)
	assert.Equal(t, "bob", today[0].Name, "ordered by time of day")
	assert.Equal(t, "alice", today[1].Name)
}

func TestGetRecentNewestFirst(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(&MarkRecord{Name: "alice", Date: "2026-08-28", Time: "09:00:00", Status: "Present"}))
	require.NoError(t, store.Save(&MarkRecord{Name: "bob", Date: "2026-08-29", Time: "08:00:00", Status: "Present"}))
	require.NoError(t, store.Save(&MarkRecord{Name: "carol", Date: "2026-08-29", Time: "11:30:00", Status: "Absent"}))

	recent, err := store.GetRecent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "carol", recent[0].Name)
	assert.Equal(t, "bob", recent[1].Name)
}

func TestCountByDate(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(&MarkRecord{Name: "alice", Date: "2026-08-29", Time: "08:00:00", Status: "Present"}))
	require.NoError(t, store.Save(&MarkRecord{Name: "bob", Date: "2026-08-29", Time: "08:01:00", Status: "Present"}))

	count, err := store.CountByDate("2026-08-29")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	count, err = store.CountByDate("2000-01-01")
	require.NoError(t, err)
	assert.Zero(t, count)
}
