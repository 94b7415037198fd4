package hours

import "time"

// DayStart returns midnight of t's calendar day in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// NextDayStart returns midnight of the day after t's calendar day in loc.
// AddDate handles DST transitions, a plain +24h would not.
func NextDayStart(t time.Time, loc *time.Location) time.Time {
	return DayStart(t, loc).AddDate(0, 0, 1)
}

// SameLocalDay reports whether a and b fall on the same calendar day in loc.
func SameLocalDay(a, b time.Time, loc *time.Location) bool {
	al, bl := a.In(loc), b.In(loc)
	ay, am, ad := al.Date()
	by, bm, bd := bl.Date()
	return ay == by && am == bm && ad == bd
}

// HourStart truncates t to the start of its UTC hour.
func HourStart(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}
