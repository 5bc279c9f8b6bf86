package reconcile

import (
	"log/slog"
	"sort"
	"time"

	"github.com/dosetrack/dosetrack/pkg/core"
	"github.com/dosetrack/dosetrack/pkg/recurrence"
)

// Reconciler computes the ordered backlog of instants a schedule should have
// fired on but has no deduction recorded for.
type Reconciler struct {
	eval   *recurrence.Evaluator
	logger *slog.Logger
}

// NewReconciler builds a Reconciler over the given evaluator.
func NewReconciler(eval *recurrence.Evaluator, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{eval: eval, logger: logger}
}

// Backlog returns every scheduled instant strictly after the schedule's
// reference point and at or before now, ascending. The reference point is
// LastDeduction; for a schedule that never deducted it is CreatedAt, and as
// a last resort now minus one day, so a freshly imported schedule cannot
// replay an unbounded history.
//
// A slot on LastDeduction's own date that lies within the dedup window of
// LastDeduction is excluded: it is the dose that produced the checkpoint,
// not a missed one.
func (r *Reconciler) Backlog(sched *core.DoseSchedule, now time.Time) ([]time.Time, error) {
	if len(sched.Times) == 0 {
		return nil, nil
	}

	ref := r.reference(sched, now)
	if !ref.Before(now) {
		return nil, nil
	}

	conv := r.eval.Converter()
	localRef := conv.ToLocal(ref)
	localNow := conv.ToLocal(now)

	var backlog []time.Time

	// Walk calendar dates from the reference date through today. Noon is
	// used as the cursor so stepping never lands inside a DST
	// transition.
	refYear, refMonth, refDay := localRef.Date()
	cursor := time.Date(refYear, refMonth, refDay, 12, 0, 0, 0, conv.Location())
	totalDays := daysSpanned(localRef, localNow)

	for offset := 0; offset <= totalDays; offset++ {
		fires, err := r.firesOn(sched, cursor, offset)
		if err != nil {
			return nil, err
		}
		if fires {
			// firesOn already selected the date, so resolve the
			// times directly instead of re-checking the rule with
			// the evaluator's own anchor, which disagrees when the
			// reference fell back to now minus one day.
			instants, err := r.eval.ResolveInstants(sched, cursor)
			if err != nil {
				return nil, err
			}
			for _, instant := range instants {
				if !instant.After(ref) || instant.After(now) {
					continue
				}
				if r.producedCheckpoint(sched, instant) {
					continue
				}
				backlog = append(backlog, instant)
			}
		}
		cursor = cursor.AddDate(0, 0, 1)
	}

	sort.Slice(backlog, func(i, j int) bool { return backlog[i].Before(backlog[j]) })
	return backlog, nil
}

// firesOn decides whether the recurrence rule selects the cursor date for
// catch-up purposes. Interval schedules emit only period boundary dates
// strictly after the anchor date; daily and weekday schedules reuse the
// evaluator's rule directly.
func (r *Reconciler) firesOn(sched *core.DoseSchedule, cursor time.Time, offset int) (bool, error) {
	if sched.Kind == core.KindInterval {
		return offset > 0 && offset%sched.EffectiveInterval() == 0, nil
	}
	return r.eval.FiresOnDate(sched, cursor)
}

// producedCheckpoint reports whether the instant is the slot the checkpoint
// itself came from.
func (r *Reconciler) producedCheckpoint(sched *core.DoseSchedule, instant time.Time) bool {
	if sched.LastDeduction == nil {
		return false
	}
	last := *sched.LastDeduction
	if !r.eval.Converter().SameLocalDate(last, instant) {
		return false
	}
	diff := instant.Sub(last)
	if diff < 0 {
		diff = -diff
	}
	return diff <= recurrence.DedupWindow
}

func (r *Reconciler) reference(sched *core.DoseSchedule, now time.Time) time.Time {
	if sched.LastDeduction != nil {
		return *sched.LastDeduction
	}
	if !sched.CreatedAt.IsZero() {
		return sched.CreatedAt
	}
	return now.Add(-24 * time.Hour)
}

// daysSpanned counts calendar days from a's date to b's date, both already
// rendered in the local zone.
func daysSpanned(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	au := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bu := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	days := int(bu.Sub(au) / (24 * time.Hour))
	if days < 0 {
		return 0
	}
	return days
}
