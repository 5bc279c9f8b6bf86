package timezone

import (
	"log/slog"
	"time"

	"github.com/dosetrack/dosetrack/pkg/core"
)

// Converter translates between UTC and the configured local zone. Every call
// reads the current location from the Provider, so a zone change applies to
// the next conversion without rebuilding the engine.
type Converter struct {
	provider Provider
	logger   *slog.Logger
}

// NewConverter builds a Converter over the given provider.
func NewConverter(provider Provider, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{provider: provider, logger: logger}
}

// Location returns the zone currently in effect.
func (c *Converter) Location() *time.Location {
	return c.provider.Location()
}

// ToLocal renders an instant in the configured zone.
func (c *Converter) ToLocal(t time.Time) time.Time {
	return t.In(c.provider.Location())
}

// ToUTC renders an instant in UTC.
func (c *Converter) ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// ResolveTimeOfDay combines a calendar date with a wall-clock pair in the
// configured zone and returns the resulting instant.
//
// A time that falls in a spring-forward gap resolves to the first valid
// instant past the gap (time.Date's normalization), with a warning logged.
// An ambiguous fall-back time resolves to the earlier of the two
// occurrences. Out-of-range pairs return an InvalidTimeError.
func (c *Converter) ResolveTimeOfDay(tod core.TimeOfDay, year int, month time.Month, day int) (time.Time, error) {
	if err := tod.Validate(); err != nil {
		return time.Time{}, err
	}
	loc := c.provider.Location()
	t := time.Date(year, month, day, tod.Hour, tod.Minute, 0, 0, loc)

	if t.Hour() != tod.Hour || t.Minute() != tod.Minute {
		// Spring-forward gap: the wall time does not exist and Date
		// normalized it forward.
		c.logger.Warn("time of day falls in a DST gap, advancing past it",
			"requested", tod.String(),
			"resolved", t.Format("2006-01-02 15:04 MST"),
			"tz", loc.String())
		return t, nil
	}

	// Fall-back ambiguity: when the zone repeated this wall time, Date may
	// have picked the later occurrence. The fold size is the offset drop
	// at the transition that began the current zone (an hour in most
	// zones, 30 minutes in some); step back by it and prefer the earlier
	// occurrence if the wall clock matches.
	if start, _ := t.ZoneBounds(); !start.IsZero() && !start.After(t) {
		_, prevOff := start.Add(-time.Second).Zone()
		_, curOff := t.Zone()
		if fold := time.Duration(prevOff-curOff) * time.Second; fold > 0 {
			if earlier := t.Add(-fold); earlier.Hour() == tod.Hour && earlier.Minute() == tod.Minute {
				c.logger.Debug("time of day is DST-ambiguous, using earlier occurrence",
					"requested", tod.String(),
					"resolved", earlier.Format("2006-01-02 15:04 MST"),
					"tz", loc.String())
				return earlier, nil
			}
		}
	}

	return t, nil
}

// SameLocalDate reports whether two instants fall on the same calendar date
// in the configured zone.
func (c *Converter) SameLocalDate(a, b time.Time) bool {
	loc := c.provider.Location()
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
