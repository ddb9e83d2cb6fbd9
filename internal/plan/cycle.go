package plan

import "time"

// CycleWindow computes the current monthly billing-cycle boundaries for an
// anchor timestamp. The window tiles the timeline in calendar-month steps
// anchored to the anchor's day-of-month and time-of-day, so for any
// now >= anchor it holds that start <= now < end and end is start plus one
// calendar month. Anchors on the 29th-31st clamp to the last valid day of
// shorter months without drifting the anchor day for later cycles.
//
// If the anchor is in the future (clock skew, bad data) the window
// degenerates to [anchor, anchor+1mo); callers should treat usage as zero.
func CycleWindow(anchor, now time.Time) (start, end time.Time) {
	if now.Before(anchor) {
		return anchor, addMonths(anchor, 1)
	}

	// Linear advancement: correct for any distance between anchor and now,
	// including tenants returning after long inactivity.
	n := 0
	for !now.Before(addMonths(anchor, n+1)) {
		n++
	}
	return addMonths(anchor, n), addMonths(anchor, n+1)
}

// addMonths adds n calendar months to t, clamping the day-of-month to the
// last valid day of the target month (Jan 31 + 1mo = Feb 28/29). It always
// offsets from t itself so repeated cycles never drift after a clamp.
func addMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	target := time.Date(year, month+time.Month(n), 1, hour, min, sec, t.Nanosecond(), t.Location())
	if last := lastDayOfMonth(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	// Day 0 of the following month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
