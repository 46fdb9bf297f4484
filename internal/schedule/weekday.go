// Package schedule expands weekly class patterns into dated calendar instances
// and merges them with stored events and holiday ranges.
package schedule

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Weekday is a day of the week with Monday first.
type Weekday uint8

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

func (d Weekday) String() string {
	if int(d) < len(weekdayNames) {
		return weekdayNames[d]
	}
	return fmt.Sprintf("Weekday(%d)", d)
}

// ParseWeekday accepts the three-letter lower or upper case form ("mon").
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range weekdayNames {
		if s == name {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// WeekdayOf converts a time.Weekday.
func WeekdayOf(w time.Weekday) Weekday {
	if w == time.Sunday {
		return Sunday
	}
	return Weekday(w - 1)
}

// WeekdaySet is a set of weekdays stored as a 7-bit mask, bit 0 = Monday.
type WeekdaySet uint8

const allWeekdays WeekdaySet = 1<<7 - 1

// NewWeekdaySet builds a set from days.
func NewWeekdaySet(days ...Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << d
	}
	return s
}

// ParseWeekdaySet parses a comma separated list like "mon, wed". Empty input is
// the empty set.
func ParseWeekdaySet(s string) (WeekdaySet, error) {
	var set WeekdaySet
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := ParseWeekday(part)
		if err != nil {
			return 0, err
		}
		set |= 1 << d
	}
	return set, nil
}

// Has reports whether w is in the set.
func (s WeekdaySet) Has(w time.Weekday) bool {
	return s.Contains(WeekdayOf(w))
}

// Contains reports whether d is in the set.
func (s WeekdaySet) Contains(d Weekday) bool {
	return s&(1<<d) != 0
}

func (s WeekdaySet) Empty() bool { return s&allWeekdays == 0 }

// Days lists members Monday first.
func (s WeekdaySet) Days() []Weekday {
	var days []Weekday
	for d := Monday; d <= Sunday; d++ {
		if s.Contains(d) {
			days = append(days, d)
		}
	}
	return days
}

func (s WeekdaySet) String() string {
	names := make([]string, 0, 7)
	for _, d := range s.Days() {
		names = append(names, d.String())
	}
	return strings.Join(names, ",")
}

// MarshalJSON encodes the set as ["mon","wed"].
func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, 7)
	for _, d := range s.Days() {
		names = append(names, d.String())
	}
	return json.Marshal(names)
}

// UnmarshalJSON accepts a list of names or a comma separated string.
func (s *WeekdaySet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		var csv string
		if err := json.Unmarshal(b, &csv); err != nil {
			return fmt.Errorf("weekday set: %w", err)
		}
		set, err := ParseWeekdaySet(csv)
		if err != nil {
			return err
		}
		*s = set
		return nil
	}
	set, err := ParseWeekdaySet(strings.Join(names, ","))
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// Value stores the mask as an integer.
func (s WeekdaySet) Value() (driver.Value, error) {
	return int64(s), nil
}

// Scan reads an integer mask.
func (s *WeekdaySet) Scan(src any) error {
	var v int64
	switch x := src.(type) {
	case nil:
		*s = 0
		return nil
	case int64:
		v = x
	case int32:
		v = int64(x)
	case int16:
		v = int64(x)
	default:
		return fmt.Errorf("weekday set: unsupported type %T", src)
	}
	if v < 0 || v > int64(allWeekdays) {
		return fmt.Errorf("weekday set: invalid mask %d", v)
	}
	*s = WeekdaySet(v)
	return nil
}

// TimeOfDay is a wall clock time as minutes since midnight.
type TimeOfDay int16

// NewTimeOfDay returns hour:minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "15:04" or "15:04:05" (seconds are dropped).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimeOfDay(t.Hour(), t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// Valid reports whether t falls within a single day.
func (t TimeOfDay) Valid() bool { return t >= 0 && t < 24*60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t/60, t%60)
}

// On anchors t at the given date.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(t/60), int(t%60), 0, 0, date.Location())
}

// isoClock is the hh:mm:ss form used in calendar date-times.
func (t TimeOfDay) isoClock() string {
	return t.String() + ":00"
}
