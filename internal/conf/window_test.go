package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "08:00", want: "08:00"},
		{input: "23:59", want: "23:59"},
		{input: "00:00", want: "00:00"},
		{input: "8am", wantErr: true},
		{input: "25:00", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestTimeOfDayOrdering(t *testing.T) {
	early, err := ParseTimeOfDay("07:59")
	require.NoError(t, err)
	start, err := ParseTimeOfDay("08:00")
	require.NoError(t, err)

	assert.True(t, early.Before(start))
	assert.False(t, start.Before(start))
	assert.True(t, start.After(early))

	// Seconds matter: 11:00:30 is after the 11:00 boundary.
	boundary, err := ParseTimeOfDay("11:00")
	require.NoError(t, err)
	after := TimeOfDayFromClock(time.Date(2026, 3, 2, 11, 0, 30, 0, time.UTC))
	exact := TimeOfDayFromClock(time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	assert.True(t, after.After(boundary))
	assert.False(t, exact.After(boundary))
}

func TestAttendanceWindowFallback(t *testing.T) {
	s := &Settings{}
	s.Attendance.Window.Start = "not-a-time"
	s.Attendance.Window.End = "11:30"

	w := s.AttendanceWindow()
	assert.Equal(t, "08:00", w.Start.String(), "malformed start falls back to default")
	assert.Equal(t, "11:30", w.End.String(), "valid end is kept")

	s.Attendance.Window.Start = "09:15"
	s.Attendance.Window.End = ""
	w = s.AttendanceWindow()
	assert.Equal(t, "09:15", w.Start.String())
	assert.Equal(t, "11:00", w.End.String(), "malformed end falls back to default")
}
