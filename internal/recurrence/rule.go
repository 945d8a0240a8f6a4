// Package recurrence expands a base booking interval into a finite series of
// occurrences described by a compact rule such as "FREQ=WEEKLY;COUNT=4".
package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/pkg/interval"
)

// MaxCount bounds the number of occurrences one request may create
// (two years of weekly occurrences).
const MaxCount = 104

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyUnspecified indicates the rule frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily repeats the base interval every day.
	FrequencyDaily
	// FrequencyWeekly repeats the base interval every seven days.
	FrequencyWeekly
)

var (
	ErrEmptyRule        = errors.New("recurrence: empty rule")
	ErrMalformedPart    = errors.New("recurrence: rule parts must be KEY=VALUE")
	ErrUnknownKey       = errors.New("recurrence: unknown rule key")
	ErrDuplicateKey     = errors.New("recurrence: duplicate rule key")
	ErrInvalidFrequency = errors.New("recurrence: FREQ must be DAILY or WEEKLY")
	ErrInvalidCount     = fmt.Errorf("recurrence: COUNT must be between 1 and %d", MaxCount)
)

func (f Frequency) String() string {
	switch f {
	case FrequencyDaily:
		return "DAILY"
	case FrequencyWeekly:
		return "WEEKLY"
	default:
		return "UNSPECIFIED"
	}
}

func (f Frequency) days() int {
	if f == FrequencyWeekly {
		return 7
	}
	return 1
}

// Rule is a parsed recurrence descriptor.
type Rule struct {
	Frequency Frequency
	Count     int
}

// Parse decodes "FREQ=<DAILY|WEEKLY>;COUNT=<n>". Parts may come in any order
// and keys and values are case-insensitive. A trailing ';' is tolerated.
func Parse(s string) (Rule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rule{}, ErrEmptyRule
	}

	var rule Rule
	seen := map[string]bool{}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return Rule{}, fmt.Errorf("%w: %q", ErrMalformedPart, part)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.ToUpper(strings.TrimSpace(value))
		if seen[key] {
			return Rule{}, fmt.Errorf("%w: %s", ErrDuplicateKey, key)
		}
		seen[key] = true

		switch key {
		case "FREQ":
			switch value {
			case "DAILY":
				rule.Frequency = FrequencyDaily
			case "WEEKLY":
				rule.Frequency = FrequencyWeekly
			default:
				return Rule{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, value)
			}
		case "COUNT":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Rule{}, fmt.Errorf("%w: %q", ErrInvalidCount, value)
			}
			rule.Count = n
		default:
			return Rule{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
	}

	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// Validate checks that both fields are set and within range.
func (r Rule) Validate() error {
	if r.Frequency != FrequencyDaily && r.Frequency != FrequencyWeekly {
		return ErrInvalidFrequency
	}
	if r.Count < 1 || r.Count > MaxCount {
		return ErrInvalidCount
	}
	return nil
}

// String is the canonical encoding stored on the first occurrence of a series.
func (r Rule) String() string {
	return fmt.Sprintf("FREQ=%s;COUNT=%d", r.Frequency, r.Count)
}

// Describe renders a short human summary, e.g. "Weekly (4 occurrences)".
func (r Rule) Describe() string {
	name := "Daily"
	if r.Frequency == FrequencyWeekly {
		name = "Weekly"
	}
	if r.Count == 1 {
		return name + " (1 occurrence)"
	}
	return fmt.Sprintf("%s (%d occurrences)", name, r.Count)
}

// Expand returns exactly Count intervals. Occurrence k starts k days or weeks
// after base on the wall clock of loc and keeps its duration. The first
// element is base itself.
func (r Rule) Expand(base interval.Interval, loc *time.Location) []interval.Interval {
	out := make([]interval.Interval, 0, r.Count)
	step := r.Frequency.days()
	for k := 0; k < r.Count; k++ {
		out = append(out, base.ShiftIn(k*step, loc))
	}
	return out
}
