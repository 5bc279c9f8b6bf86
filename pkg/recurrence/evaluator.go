package recurrence

import (
	"log/slog"
	"sort"
	"time"

	"github.com/dosetrack/dosetrack/pkg/core"
	"github.com/dosetrack/dosetrack/pkg/timezone"
)

// DedupWindow is the tolerance within which an instant and a recorded
// deduction count as the same dose slot. The sweep cadence must stay at or
// below half this window or missed doses can be double-applied.
const DedupWindow = 5 * time.Minute

// Evaluator answers schedule recurrence questions. It is stateless; all
// timezone context comes from the converter.
type Evaluator struct {
	conv   *timezone.Converter
	logger *slog.Logger
}

// NewEvaluator builds an Evaluator over the given converter.
func NewEvaluator(conv *timezone.Converter, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{conv: conv, logger: logger}
}

// Converter exposes the underlying timezone converter.
func (e *Evaluator) Converter() *timezone.Converter { return e.conv }

// FiresOnDate reports whether the schedule's recurrence rule selects the
// calendar date of the given local instant.
func (e *Evaluator) FiresOnDate(sched *core.DoseSchedule, date time.Time) (bool, error) {
	local := e.conv.ToLocal(date)
	switch sched.Kind {
	case core.KindDaily:
		return true, nil
	case core.KindInterval:
		anchor := e.conv.ToLocal(e.intervalAnchor(sched))
		days := daysBetween(anchor, local)
		return days >= 0 && days%sched.EffectiveInterval() == 0, nil
	case core.KindWeekdays:
		return sched.Weekdays.Contains(local.Weekday()), nil
	default:
		return false, &core.UnknownScheduleKindError{Kind: sched.Kind}
	}
}

// InstantsOnDate returns the instants the schedule fires on during the
// calendar date of the given instant, in chronological order. Dates the
// recurrence rule does not select yield an empty slice.
func (e *Evaluator) InstantsOnDate(sched *core.DoseSchedule, date time.Time) ([]time.Time, error) {
	fires, err := e.FiresOnDate(sched, date)
	if err != nil || !fires {
		return nil, err
	}
	return e.ResolveInstants(sched, date)
}

// ResolveInstants resolves every configured time of day on the calendar date
// of the given instant, in chronological order, regardless of whether the
// recurrence rule selects that date. Callers that pick dates by their own
// rule (the reconciler's interval walk) use this to avoid re-anchoring.
func (e *Evaluator) ResolveInstants(sched *core.DoseSchedule, date time.Time) ([]time.Time, error) {
	local := e.conv.ToLocal(date)
	year, month, day := local.Date()

	instants := make([]time.Time, 0, len(sched.Times))
	for _, tod := range sched.Times {
		instant, err := e.conv.ResolveTimeOfDay(tod, year, month, day)
		if err != nil {
			return nil, err
		}
		instants = append(instants, instant)
	}
	sort.Slice(instants, func(i, j int) bool { return instants[i].Before(instants[j]) })
	return instants, nil
}

// IsDueNow reports whether a dose is due within DedupWindow of now and not
// already recorded against the schedule's checkpoint. When due, the matched
// instant is returned; with several candidate slots in range the nearest one
// wins.
func (e *Evaluator) IsDueNow(sched *core.DoseSchedule, now time.Time) (bool, time.Time, error) {
	if err := sched.Validate(); err != nil {
		return false, time.Time{}, err
	}
	instants, err := e.InstantsOnDate(sched, now)
	if err != nil {
		return false, time.Time{}, err
	}

	var (
		best     time.Time
		bestDist time.Duration
		found    bool
	)
	for _, instant := range instants {
		dist := absDuration(now.Sub(instant))
		if dist > DedupWindow {
			continue
		}
		if e.alreadyRecorded(sched, instant) {
			continue
		}
		if !found || dist < bestDist {
			best, bestDist, found = instant, dist, true
		}
	}
	return found, best, nil
}

// alreadyRecorded reports whether the checkpoint already covers this slot:
// same local calendar date and within DedupWindow of the recorded time.
func (e *Evaluator) alreadyRecorded(sched *core.DoseSchedule, instant time.Time) bool {
	if sched.LastDeduction == nil {
		return false
	}
	last := *sched.LastDeduction
	if !e.conv.SameLocalDate(last, instant) {
		return false
	}
	return absDuration(instant.Sub(last)) <= DedupWindow
}

func (e *Evaluator) intervalAnchor(sched *core.DoseSchedule) time.Time {
	if sched.LastDeduction != nil {
		return *sched.LastDeduction
	}
	return sched.CreatedAt
}

// daysBetween counts whole calendar days from a's date to b's date. Both
// arguments must already be in the zone the dates should be read in; the
// count is DST-safe because it compares reconstructed UTC dates.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	au := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bu := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au) / (24 * time.Hour))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
