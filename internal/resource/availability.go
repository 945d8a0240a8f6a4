package resource

import (
	"sort"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/pkg/interval"
)

// IsWithinAvailability reports whether the resource's weekly rules permit iv.
func IsWithinAvailability(res *Resource, iv interval.Interval) bool {
	return res.Schedule.Contains(iv, res.Location())
}

// OpenIntervals returns the availability windows of the given calendar date
// (interpreted in the resource's zone) as UTC intervals.
func OpenIntervals(res *Resource, date time.Time) []interval.Interval {
	loc := res.Location()
	y, m, d := date.Date()

	if res.Schedule == nil {
		return []interval.Interval{{
			Start: time.Date(y, m, d, 0, 0, 0, 0, loc).UTC(),
			End:   time.Date(y, m, d+1, 0, 0, 0, 0, loc).UTC(),
		}}
	}

	weekday := time.Date(y, m, d, 12, 0, 0, 0, loc).Weekday()
	windows := res.Schedule.Windows(weekday)
	out := make([]interval.Interval, 0, len(windows))
	for _, w := range windows {
		out = append(out, interval.Interval{
			Start: w.Start.On(y, m, d, loc).UTC(),
			End:   w.End.On(y, m, d, loc).UTC(),
		})
	}
	return out
}

// FreeSlots subtracts busy intervals from the open windows of date.
// busy may be unsorted and overlapping.
func FreeSlots(res *Resource, date time.Time, busy []interval.Interval) []interval.Interval {
	sorted := make([]interval.Interval, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	var free []interval.Interval
	for _, open := range OpenIntervals(res, date) {
		cursor := open.Start
		for _, b := range sorted {
			if !b.Overlaps(open) {
				continue
			}
			if b.Start.After(cursor) {
				free = append(free, interval.Interval{Start: cursor, End: b.Start})
			}
			if b.End.After(cursor) {
				cursor = b.End
			}
		}
		if cursor.Before(open.End) {
			free = append(free, interval.Interval{Start: cursor, End: open.End})
		}
	}
	return free
}
