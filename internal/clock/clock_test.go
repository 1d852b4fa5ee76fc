package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dhaka(t *testing.T) *time.Location {
	t.Helper()
	loc, err := LoadLocation(DefaultTimezone)
	require.NoError(t, err)
	return loc
}

func TestNow_UsesReferenceTimezone(t *testing.T) {
	// 2024-03-10 01:55 UTC is 07:55 in Dhaka.
	instant := time.Date(2024, 3, 10, 1, 55, 30, 0, time.UTC)
	c := New(dhaka(t), func() time.Time { return instant })

	r := c.Now()
	assert.Equal(t, 7, r.Hour)
	assert.Equal(t, 55, r.Minute)
	assert.Equal(t, 30, r.Second)
	assert.Equal(t, 7*60+55, r.MinutesSinceMidnight)
	assert.Equal(t, "2024-03-10", r.Day)
}

func TestToday_RollsOverInReferenceZone(t *testing.T) {
	// 18:30 UTC on the 9th is already 00:30 on the 10th in Dhaka.
	instant := time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC)
	c := New(dhaka(t), func() time.Time { return instant })

	assert.Equal(t, "2024-03-10", c.Today())
	assert.Equal(t, 30, c.Now().MinutesSinceMidnight)
}

func TestHostZoneIsIrrelevant(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	instant := time.Date(2024, 3, 10, 1, 55, 0, 0, time.UTC).In(ny)
	c := New(dhaka(t), func() time.Time { return instant })

	assert.Equal(t, "07:55", c.TimeOfDay(instant))
}

func TestAt(t *testing.T) {
	c := New(dhaka(t), nil)

	at, err := c.At("2024-03-10", "8:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC), at.UTC())

	_, err = c.At("not-a-day", "08:00")
	assert.Error(t, err)
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		minutes int
		norm    string
		wantErr bool
	}{
		{"08:00", 480, "08:00", false},
		{"8:05", 485, "08:05", false},
		{"23:59", 1439, "23:59", false},
		{"00:00", 0, "00:00", false},
		{"08:00:00", 480, "08:00", false},
		{"24:00", 0, "", true},
		{"08:60", 0, "", true},
		{"0800", 0, "", true},
		{"ab:cd", 0, "", true},
		{"8:5", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			minutes, norm, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.minutes, minutes)
			assert.Equal(t, tt.norm, norm)
		})
	}
}

func TestLoadLocation_FallsBackOnUnknownZone(t *testing.T) {
	loc, err := LoadLocation("Nowhere/Atlantis")
	assert.Error(t, err)
	require.NotNil(t, loc)

	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 6*3600, offset)
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "07:55", FormatMinutes(475))
	assert.Equal(t, "00:00", FormatMinutes(0))
}
