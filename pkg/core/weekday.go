package core

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// WeekdaySet is a bitmask over time.Weekday (Sunday = bit 0). It stores as a
// small integer column.
type WeekdaySet uint8

// Weekdays builds a set from the given days.
func Weekdays(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

// Contains reports whether d is in the set.
func (s WeekdaySet) Contains(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

// Empty reports whether no weekday is set.
func (s WeekdaySet) Empty() bool { return s == 0 }

// Days returns the members in Sunday..Saturday order.
func (s WeekdaySet) Days() []time.Weekday {
	var out []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Contains(d) {
			out = append(out, d)
		}
	}
	return out
}

func (s WeekdaySet) String() string {
	days := s.Days()
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = d.String()[:3]
	}
	return strings.Join(parts, ",")
}

// Scan implements sql.Scanner.
func (s *WeekdaySet) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*s = 0
		return nil
	case int64:
		if v < 0 || v > 127 {
			return fmt.Errorf("weekday set out of range: %d", v)
		}
		*s = WeekdaySet(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into WeekdaySet", value)
	}
}

// Value implements driver.Valuer.
func (s WeekdaySet) Value() (driver.Value, error) {
	return int64(s), nil
}
