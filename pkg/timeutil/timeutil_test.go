package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock(t *testing.T) {
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	c := NewFixedClock(start)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.Add(time.Hour), c.Advance(time.Hour))
	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestOrSystem(t *testing.T) {
	assert.IsType(t, SystemClock{}, OrSystem(nil))
	fixed := NewFixedClock(time.Time{})
	assert.Same(t, fixed, OrSystem(fixed))
}

func TestDayHelpers(t *testing.T) {
	ts := time.Date(2026, 2, 1, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), StartOfDay(ts))
	assert.Equal(t, time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), DaysFrom(ts, 2))
	assert.Equal(t, 1, DaysBetween(ts, ts.Add(time.Hour)))
	assert.True(t, IsSameDay(ts, StartOfDay(ts)))
	assert.True(t, EndOfDay(ts).After(ts))
}

func TestFormatStudyTime(t *testing.T) {
	assert.Equal(t, "45s", FormatStudyTime(45))
	assert.Equal(t, "12m", FormatStudyTime(12*60+5))
	assert.Equal(t, "1h 05m", FormatStudyTime(3600+5*60))
	assert.Equal(t, "0s", FormatStudyTime(-1))
}

func TestFormatRelative(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "just now", FormatRelative(now.Add(-10*time.Second), now))
	assert.Equal(t, "3h ago", FormatRelative(now.Add(-3*time.Hour), now))
	assert.Equal(t, "in 2d", FormatRelative(now.Add(48*time.Hour), now))
}
