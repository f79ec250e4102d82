// Package recurrence implements the pure scheduling math for recurring
// summary deliveries: deciding whether a recipient is due at a given instant,
// computing the next send date, and resolving the reporting window a delivery
// should summarize.
//
// All functions take `now` as a parameter for deterministic testing and
// manual backfill; none of them touch the clock or the database.
package recurrence

import (
	"time"

	"rollcall/internal/types"
)

// IsDue reports whether a recipient is due for delivery at `now`.
//
// Rules:
//   - A recipient whose start date is in the future is never due, regardless
//     of lastSent.
//   - A recipient that has never been sent to (lastSent == nil) is due as
//     soon as now >= startDate.
//   - Otherwise the candidate next date is exactly one period past lastSent;
//     due when now >= candidate. The advance is always a single period from
//     the last successful send, never from "today": a recipient that was down
//     for N periods becomes due exactly once and catches up one period per
//     evaluation, with no back-filling burst.
func IsDue(freq types.Frequency, startDate time.Time, lastSent *time.Time, now time.Time) bool {
	if now.Before(startDate) {
		return false
	}
	next := NextSendDate(freq, startDate, lastSent)
	if next == nil {
		return false
	}
	return !now.Before(*next)
}

// NextSendDate computes the next due date for a recipient. For a recipient
// that has never been sent to, the next date is the anchor start date itself.
// Otherwise it is exactly one period past lastSent. Returns nil only for an
// unrecognized frequency.
func NextSendDate(freq types.Frequency, startDate time.Time, lastSent *time.Time) *time.Time {
	if !freq.Valid() {
		return nil
	}
	if lastSent == nil {
		d := startDate
		return &d
	}

	var next time.Time
	switch freq {
	case types.FreqDaily:
		next = lastSent.AddDate(0, 0, 1)
	case types.FreqWeekly:
		next = lastSent.AddDate(0, 0, 7)
	case types.FreqMonthly:
		next = addMonthsClamped(*lastSent, 1)
	case types.FreqQuarterly:
		next = addMonthsClamped(*lastSent, 3)
	case types.FreqAnnually:
		// +12 months with clamping handles Feb 29 anchors in non-leap years.
		next = addMonthsClamped(*lastSent, 12)
	}
	return &next
}

// addMonthsClamped adds the given number of calendar months, clamping the day
// to the last valid day of the target month. Plain time.AddDate normalizes
// overflow (Jan 31 + 1 month = Mar 2/3), which would roll a month-end anchor
// into the following month.
func addMonthsClamped(t time.Time, months int) time.Time {
	firstOfMonth := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := firstOfMonth.AddDate(0, months, 0)

	day := t.Day()
	if last := daysInMonth(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysInMonth returns the number of days in the given month. Day zero of the
// following month is the last day of this one.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
