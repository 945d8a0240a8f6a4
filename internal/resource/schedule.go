package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/pkg/interval"
)

var (
	ErrInvalidClockTime   = errors.New("clock time must be HH:MM or HH:MM:SS between 00:00 and 24:00")
	ErrInvalidWindow      = errors.New("availability window start must be before end")
	ErrOverlappingWindows = errors.New("availability windows on the same day must not overlap")
	ErrUnknownWeekday     = errors.New("unknown weekday in availability schedule")
)

const endOfDay ClockTime = 24 * 60 * 60

// ClockTime is a wall-clock time of day stored as seconds since midnight.
// 24:00 is allowed and denotes the end of the day.
type ClockTime int

// ParseClockTime accepts "HH:MM" or "HH:MM:SS".
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, ErrInvalidClockTime
	}

	var fields [3]int
	for i, p := range parts {
		if len(p) != 2 {
			return 0, ErrInvalidClockTime
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, ErrInvalidClockTime
		}
		fields[i] = v
	}

	h, m, sec := fields[0], fields[1], fields[2]
	if m > 59 || sec > 59 || h > 24 || (h == 24 && (m != 0 || sec != 0)) {
		return 0, ErrInvalidClockTime
	}
	return ClockTime(h*3600 + m*60 + sec), nil
}

// MustClockTime is ParseClockTime for literals known to be valid.
func MustClockTime(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(fmt.Sprintf("resource: invalid clock time %q", s))
	}
	return c
}

func (c ClockTime) String() string {
	h, m, s := int(c)/3600, int(c)%3600/60, int(c)%60
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// On returns the instant this clock time falls on for the given date and zone.
func (c ClockTime) On(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, int(c)/3600, int(c)%3600/60, int(c)%60, 0, loc)
}

// Window is a permitted [Start, End) range of clock time within one day.
type Window struct {
	Start ClockTime
	End   ClockTime
}

// Schedule maps each weekday to its ordered, disjoint availability windows.
// A weekday with no windows is closed. A nil *Schedule means the resource has
// no rules at all and is open at every instant.
type Schedule struct {
	days map[time.Weekday][]Window
}

// NewSchedule validates and sorts the windows of each day.
func NewSchedule(days map[time.Weekday][]Window) (*Schedule, error) {
	s := &Schedule{days: make(map[time.Weekday][]Window, len(days))}
	for day, windows := range days {
		if day < time.Sunday || day > time.Saturday {
			return nil, ErrUnknownWeekday
		}
		sorted := make([]Window, len(windows))
		copy(sorted, windows)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

		for i, w := range sorted {
			if w.Start < 0 || w.End > endOfDay || w.Start >= w.End {
				return nil, fmt.Errorf("%s %s-%s: %w", day, w.Start, w.End, ErrInvalidWindow)
			}
			if i > 0 && sorted[i-1].End > w.Start {
				return nil, fmt.Errorf("%s: %w", day, ErrOverlappingWindows)
			}
		}
		s.days[day] = sorted
	}
	return s, nil
}

// Windows returns the windows configured for day. The result must not be modified.
func (s *Schedule) Windows(day time.Weekday) []Window {
	if s == nil {
		return nil
	}
	return s.days[day]
}

// Contains reports whether iv fits entirely inside a single window of the
// weekday on which it starts, evaluated in loc. A nil schedule contains everything.
func (s *Schedule) Contains(iv interval.Interval, loc *time.Location) bool {
	if s == nil {
		return true
	}
	if loc == nil {
		loc = time.UTC
	}

	start := iv.Start.In(loc)
	y, m, d := start.Date()
	for _, w := range s.days[start.Weekday()] {
		ws := w.Start.On(y, m, d, loc)
		we := w.End.On(y, m, d, loc)
		if !iv.Start.Before(ws) && !iv.End.After(we) {
			return true
		}
	}
	return false
}

type windowJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// MarshalJSON encodes the schedule as {"monday":[{"start":"07:00","end":"23:00"}]}.
func (s *Schedule) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	out := make(map[string][]windowJSON, len(s.days))
	for day, windows := range s.days {
		list := make([]windowJSON, 0, len(windows))
		for _, w := range windows {
			list = append(list, windowJSON{Start: w.Start.String(), End: w.End.String()})
		}
		out[strings.ToLower(day.String())] = list
	}
	return json.Marshal(out)
}

func (s *Schedule) UnmarshalJSON(data []byte) error {
	var raw map[string][]windowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	days := make(map[time.Weekday][]Window, len(raw))
	for name, list := range raw {
		day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return fmt.Errorf("%q: %w", name, ErrUnknownWeekday)
		}
		windows := make([]Window, 0, len(list))
		for _, wj := range list {
			start, err := ParseClockTime(wj.Start)
			if err != nil {
				return err
			}
			end, err := ParseClockTime(wj.End)
			if err != nil {
				return err
			}
			windows = append(windows, Window{Start: start, End: end})
		}
		days[day] = windows
	}

	parsed, err := NewSchedule(days)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}
