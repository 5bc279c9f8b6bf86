package core

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TimeOfDay is a wall-clock (hour, minute) pair with no date or zone
// attached. Schedules store their trigger times as TimeOfDay values, parsed
// once at the storage boundary rather than on every evaluation.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return TimeOfDay{}, &InvalidTimeError{Value: s}
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, &InvalidTimeError{Value: s}
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, &InvalidTimeError{Value: s}
	}
	tod := TimeOfDay{Hour: h, Minute: m}
	if err := tod.Validate(); err != nil {
		return TimeOfDay{}, err
	}
	return tod, nil
}

// Validate checks the pair is within 00:00..23:59.
func (t TimeOfDay) Validate() error {
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return &InvalidTimeError{Value: t.String()}
	}
	return nil
}

// MinuteOfDay returns the pair as minutes since midnight, for ordering.
func (t TimeOfDay) MinuteOfDay() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// TimeOfDayList is an ordered list of TimeOfDay values. It stores as a
// comma-separated "HH:MM" string so schedule rows stay readable in any SQL
// backend.
type TimeOfDayList []TimeOfDay

// ParseTimeOfDayList parses a comma-separated list of "HH:MM" entries.
func ParseTimeOfDayList(s string) (TimeOfDayList, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	list := make(TimeOfDayList, 0, len(parts))
	for _, p := range parts {
		tod, err := ParseTimeOfDay(p)
		if err != nil {
			return nil, err
		}
		list = append(list, tod)
	}
	return list, nil
}

// Sorted returns a copy ordered by time of day.
func (l TimeOfDayList) Sorted() TimeOfDayList {
	out := make(TimeOfDayList, len(l))
	copy(out, l)
	sort.Slice(out, func(i, j int) bool {
		return out[i].MinuteOfDay() < out[j].MinuteOfDay()
	})
	return out
}

func (l TimeOfDayList) String() string {
	parts := make([]string, len(l))
	for i, t := range l {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

// Scan implements sql.Scanner.
func (l *TimeOfDayList) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		parsed, err := ParseTimeOfDayList(v)
		if err != nil {
			return err
		}
		*l = parsed
		return nil
	case []byte:
		parsed, err := ParseTimeOfDayList(string(v))
		if err != nil {
			return err
		}
		*l = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDayList", value)
	}
}

// Value implements driver.Valuer.
func (l TimeOfDayList) Value() (driver.Value, error) {
	return l.String(), nil
}
