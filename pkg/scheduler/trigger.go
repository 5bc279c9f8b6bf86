package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dosetrack/dosetrack/pkg/core"
)

// Trigger decides whether a task is due. A zero lastRun means the task has
// never run.
type Trigger interface {
	// Due reports whether the task should fire at now, given its last
	// run and the configured local zone.
	Due(now, lastRun time.Time, loc *time.Location) bool
	// String describes the trigger for logs and status.
	String() string
}

// Every fires once at least d has elapsed since the last run. A task that
// has never run fires on the first poll.
func Every(d time.Duration) Trigger {
	return &intervalTrigger{every: d}
}

type intervalTrigger struct {
	every time.Duration
}

func (t *intervalTrigger) Due(now, lastRun time.Time, _ *time.Location) bool {
	if lastRun.IsZero() {
		return true
	}
	return now.Sub(lastRun) >= t.every
}

func (t *intervalTrigger) String() string {
	return fmt.Sprintf("every %s", t.every)
}

// AtTimes fires when the local wall clock matches one of the given
// (hour, minute) marks, at most once per matching minute.
func AtTimes(marks ...core.TimeOfDay) Trigger {
	return &wallClockTrigger{marks: marks}
}

type wallClockTrigger struct {
	marks []core.TimeOfDay
}

func (t *wallClockTrigger) Due(now, lastRun time.Time, loc *time.Location) bool {
	local := now.In(loc)
	matched := false
	for _, m := range t.marks {
		if local.Hour() == m.Hour && local.Minute() == m.Minute {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	if lastRun.IsZero() {
		return true
	}
	// A matching minute spans many polls; the mark fires only on the
	// first of them.
	last := lastRun.In(loc)
	return last.Year() != local.Year() || last.YearDay() != local.YearDay() ||
		last.Hour() != local.Hour() || last.Minute() != local.Minute()
}

func (t *wallClockTrigger) String() string {
	parts := make([]string, len(t.marks))
	for i, m := range t.marks {
		parts[i] = m.String()
	}
	return "at " + strings.Join(parts, ",")
}

// CronSpec fires per a standard five-field cron expression, evaluated in the
// configured local zone.
func CronSpec(expr string) (Trigger, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return &cronTrigger{expr: expr, sched: sched}, nil
}

type cronTrigger struct {
	expr  string
	sched cron.Schedule
}

func (t *cronTrigger) Due(now, lastRun time.Time, loc *time.Location) bool {
	if lastRun.IsZero() {
		return true
	}
	next := t.sched.Next(lastRun.In(loc))
	return !next.After(now)
}

func (t *cronTrigger) String() string {
	return "cron " + t.expr
}
