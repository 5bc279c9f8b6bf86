// Package recurrence computes which instants a dose schedule fires on.
//
// This package includes:
//   - Evaluator: pure "instants on this date" and "is a dose due right now"
//     computation over the three schedule kinds
//   - DedupWindow: the tolerance within which two nominally distinct trigger
//     times are treated as the same dose
//
// The evaluator has no storage access; it works from the schedule row and a
// timezone.Converter. The reconcile package builds missed-dose backlogs on
// top of it.
package recurrence
