package recurrence

import (
	"time"

	"rollcall/internal/types"
)

// ResolveWindow computes the [start, end) date range a delivery at `now`
// should summarize.
//
// The window end depends on the frequency:
//   - Daily and Weekly report a trailing window ending at now's calendar date.
//   - Monthly, Quarterly, and Annually report on the period that just closed:
//     the full previous calendar month, quarter, or year.
//
// The window start is the beginning of that default window, unless the
// recipient has a last successful send: then the window starts at lastSent's
// calendar date, so a recipient that missed a cycle gets a window reaching
// back to its actual last delivery rather than a fixed lookback.
//
// All bounds are calendar dates (midnight UTC) for the attendance API.
func ResolveWindow(freq types.Frequency, now time.Time, lastSent *time.Time) types.ReportWindow {
	today := toDate(now)

	var start, end time.Time
	switch freq {
	case types.FreqDaily:
		end = today
		start = today.AddDate(0, 0, -1)
	case types.FreqWeekly:
		end = today
		start = today.AddDate(0, 0, -7)
	case types.FreqMonthly:
		end = firstOfMonth(today)
		start = end.AddDate(0, -1, 0)
	case types.FreqQuarterly:
		end = firstOfQuarter(today)
		start = end.AddDate(0, -3, 0)
	case types.FreqAnnually:
		end = time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		start = end.AddDate(-1, 0, 0)
	default:
		end = today
		start = today.AddDate(0, 0, -1)
	}

	if lastSent != nil {
		// Window reaches back to the last successful delivery. Guard the
		// [start, end) invariant: a lastSent inside the current open period
		// keeps the computed default start instead.
		if ls := toDate(*lastSent); ls.Before(end) {
			start = ls
		}
	}

	return types.ReportWindow{Start: start, End: end}
}

// toDate strips the time-of-day component, normalizing to midnight UTC.
func toDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// firstOfMonth returns midnight UTC on the first day of t's month.
func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// firstOfQuarter returns midnight UTC on the first day of t's calendar
// quarter (January, April, July, or October).
func firstOfQuarter(t time.Time) time.Time {
	qm := time.Month((int(t.Month())-1)/3*3 + 1)
	return time.Date(t.Year(), qm, 1, 0, 0, 0, 0, time.UTC)
}
