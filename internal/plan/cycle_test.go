package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestCycleWindowFirstCycle(t *testing.T) {
	anchor := mustParse(t, "2026-01-15T12:00:00Z")
	now := mustParse(t, "2026-01-20T08:30:00Z")

	start, end := CycleWindow(anchor, now)
	assert.Equal(t, anchor, start)
	assert.Equal(t, mustParse(t, "2026-02-15T12:00:00Z"), end)
}

func TestCycleWindowLaterCycle(t *testing.T) {
	anchor := mustParse(t, "2026-01-15T12:00:00Z")
	now := mustParse(t, "2026-02-10T00:00:00Z")

	start, end := CycleWindow(anchor, now)
	assert.Equal(t, mustParse(t, "2026-01-15T12:00:00Z"), start)
	assert.Equal(t, mustParse(t, "2026-02-15T12:00:00Z"), end)
}

func TestCycleWindowContainsNow(t *testing.T) {
	anchor := mustParse(t, "2024-03-31T23:15:00Z")
	instants := []string{
		"2024-03-31T23:15:00Z",
		"2024-04-30T23:14:59Z",
		"2024-04-30T23:15:00Z",
		"2025-02-28T00:00:00Z",
		"2027-07-04T09:00:00Z",
	}
	for _, s := range instants {
		now := mustParse(t, s)
		start, end := CycleWindow(anchor, now)
		assert.False(t, now.Before(start), "start <= now violated at %s", s)
		assert.True(t, now.Before(end), "now < end violated at %s", s)
	}
}

func TestCycleWindowIdempotent(t *testing.T) {
	anchor := mustParse(t, "2025-06-15T12:00:00Z")
	now := mustParse(t, "2026-02-10T10:00:00Z")

	start, end := CycleWindow(anchor, now)

	// Any instant inside the window must resolve to the same window.
	for _, probe := range []time.Time{start, start.Add(time.Hour), end.Add(-time.Second)} {
		s2, e2 := CycleWindow(anchor, probe)
		assert.Equal(t, start, s2)
		assert.Equal(t, end, e2)
	}
}

func TestCycleWindowClampsShortMonths(t *testing.T) {
	// Anchor on Jan 31: February cycle starts on the clamped 28th, but March
	// returns to the 31st — the anchor day never drifts.
	anchor := mustParse(t, "2026-01-31T09:00:00Z")

	start, end := CycleWindow(anchor, mustParse(t, "2026-02-14T00:00:00Z"))
	assert.Equal(t, mustParse(t, "2026-01-31T09:00:00Z"), start)
	assert.Equal(t, mustParse(t, "2026-02-28T09:00:00Z"), end)

	start, end = CycleWindow(anchor, mustParse(t, "2026-03-15T00:00:00Z"))
	assert.Equal(t, mustParse(t, "2026-02-28T09:00:00Z"), start)
	assert.Equal(t, mustParse(t, "2026-03-31T09:00:00Z"), end)
}

func TestCycleWindowLeapYear(t *testing.T) {
	anchor := mustParse(t, "2024-01-31T00:00:00Z")
	start, end := CycleWindow(anchor, mustParse(t, "2024-02-10T00:00:00Z"))
	assert.Equal(t, mustParse(t, "2024-01-31T00:00:00Z"), start)
	assert.Equal(t, mustParse(t, "2024-02-29T00:00:00Z"), end)
}

func TestCycleWindowFutureAnchor(t *testing.T) {
	anchor := mustParse(t, "2026-06-01T00:00:00Z")
	now := mustParse(t, "2026-05-01T00:00:00Z")

	start, end := CycleWindow(anchor, now)
	assert.Equal(t, anchor, start)
	assert.Equal(t, mustParse(t, "2026-07-01T00:00:00Z"), end)
}

func TestCycleWindowTilesWithoutGaps(t *testing.T) {
	anchor := mustParse(t, "2025-08-31T18:45:00Z")
	prevEnd := anchor
	now := anchor
	for i := 0; i < 18; i++ {
		start, end := CycleWindow(anchor, now)
		if i > 0 {
			assert.Equal(t, prevEnd, start, "cycle %d must start where the previous ended", i)
		}
		prevEnd = end
		now = end // first instant of the next cycle
	}
}
