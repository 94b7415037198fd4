package forecast

import (
	"time"

	"github.com/cadsdf/ostromd/hours"
	"github.com/cadsdf/ostromd/types"
	"github.com/cadsdf/ostromd/types/maybe"
)

// Window is a time-relative subset of the forecast. Windows depend on the
// current instant and the consumer's time zone, so they are recomputed on
// every read instead of being stored on the snapshot.
type Window int

const (
	WindowToday Window = iota
	WindowUpcomingToday
	WindowTomorrow
	WindowAllAvailable
)

func (w Window) String() string {
	switch w {
	case WindowToday:
		return "today"
	case WindowUpcomingToday:
		return "upcoming_today"
	case WindowTomorrow:
		return "tomorrow"
	case WindowAllAvailable:
		return "all_available"
	default:
		return "unknown"
	}
}

// WindowPoints selects the points belonging to the window, evaluated at
// now in loc. An empty result is an expected state (e.g. tomorrow's
// prices not yet published), not an error.
func (f Forecast) WindowPoints(now time.Time, loc *time.Location, w Window) []types.SpotPrice {
	if w == WindowAllAvailable {
		return f.points
	}

	dayStart := hours.DayStart(now, loc)
	dayEnd := hours.NextDayStart(now, loc)

	var from, to time.Time
	switch w {
	case WindowToday:
		from, to = dayStart, dayEnd
	case WindowUpcomingToday:
		from, to = now, dayEnd
	case WindowTomorrow:
		from, to = dayEnd, dayEnd.AddDate(0, 0, 1)
	default:
		return nil
	}

	var points []types.SpotPrice
	for _, p := range f.points {
		if p.StartsAt.Before(from) || !p.StartsAt.Before(to) {
			continue
		}
		points = append(points, p)
	}
	return points
}

// Minimum returns the point with the lowest total price, ties broken by
// earliest start. Absent for empty input.
func Minimum(points []types.SpotPrice) maybe.Maybe[types.SpotPrice] {
	if len(points) == 0 {
		return maybe.None[types.SpotPrice]()
	}

	min := points[0]
	for _, p := range points[1:] {
		if p.Total() < min.Total() ||
			(p.Total() == min.Total() && p.StartsAt.Before(min.StartsAt)) {
			min = p
		}
	}
	return maybe.Some(min)
}

// WindowMinimum is Minimum over WindowPoints.
func (f Forecast) WindowMinimum(now time.Time, loc *time.Location, w Window) maybe.Maybe[types.SpotPrice] {
	return Minimum(f.WindowPoints(now, loc, w))
}
