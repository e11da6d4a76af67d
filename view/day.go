package view

import "time"

// SameDay reports whether a falls on the same calendar day as ref, using
// ref's location as the calendar.
func SameDay(a, ref time.Time) bool {
	ay, am, ad := a.In(ref.Location()).Date()
	by, bm, bd := ref.Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

type dayKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time, loc *time.Location) dayKey {
	y, m, d := t.In(loc).Date()
	return dayKey{y, m, d}
}
