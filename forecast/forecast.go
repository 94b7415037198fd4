package forecast

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cadsdf/ostromd/types"
	"github.com/cadsdf/ostromd/types/maybe"
)

// ErrNoPoints is returned when a fetched forecast contains no usable
// price points after normalization.
var ErrNoPoints = errors.New("forecast: no usable price points")

// GapError marks a hole between two consecutive points. Gaps are a
// data-quality problem, the forecast is rejected rather than bridged.
type GapError struct {
	After  time.Time
	Before time.Time
}

func (e *GapError) Error() string {
	return fmt.Sprintf("forecast: gap between %s and %s",
		e.After.Format(time.RFC3339), e.Before.Format(time.RFC3339))
}

// Forecast is an immutable, normalized sequence of hourly spot prices:
// sorted ascending by start, no duplicate starts, contiguous intervals.
type Forecast struct {
	points []types.SpotPrice
}

// New normalizes raw points into a Forecast. Points are sorted by start,
// points with a non-positive interval width are dropped, duplicate starts
// are reduced to first-seen. An empty result or a gap rejects the whole
// fetch.
func New(raw []types.SpotPrice) (Forecast, error) {
	points := make([]types.SpotPrice, 0, len(raw))
	for _, p := range raw {
		if !p.EndsAt.After(p.StartsAt) {
			continue
		}
		points = append(points, p)
	}

	// Stable sort so first-seen wins among duplicate starts.
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].StartsAt.Before(points[j].StartsAt)
	})

	deduped := points[:0]
	for _, p := range points {
		if len(deduped) > 0 && deduped[len(deduped)-1].StartsAt.Equal(p.StartsAt) {
			continue
		}
		deduped = append(deduped, p)
	}

	if len(deduped) == 0 {
		return Forecast{}, ErrNoPoints
	}

	for i := 1; i < len(deduped); i++ {
		if !deduped[i-1].EndsAt.Equal(deduped[i].StartsAt) {
			return Forecast{}, &GapError{
				After:  deduped[i-1].EndsAt,
				Before: deduped[i].StartsAt,
			}
		}
	}

	return Forecast{points: deduped}, nil
}

func (f Forecast) IsEmpty() bool {
	return len(f.points) == 0
}

func (f Forecast) Len() int {
	return len(f.points)
}

// Points returns the normalized points. The slice is shared and must be
// treated as read-only.
func (f Forecast) Points() []types.SpotPrice {
	return f.points
}

func (f Forecast) First() maybe.Maybe[types.SpotPrice] {
	if len(f.points) == 0 {
		return maybe.None[types.SpotPrice]()
	}
	return maybe.Some(f.points[0])
}

func (f Forecast) Last() maybe.Maybe[types.SpotPrice] {
	if len(f.points) == 0 {
		return maybe.None[types.SpotPrice]()
	}
	return maybe.Some(f.points[len(f.points)-1])
}

// At returns the point whose half-open interval contains now, or absent
// when now falls outside the fetched horizon.
func (f Forecast) At(now time.Time) maybe.Maybe[types.SpotPrice] {
	for _, p := range f.points {
		if p.Contains(now) {
			return maybe.Some(p)
		}
	}
	return maybe.None[types.SpotPrice]()
}
