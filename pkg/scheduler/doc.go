// Package scheduler provides a generic periodic task runner with
// skip-if-busy semantics.
//
// This package includes:
//   - Scheduler: a single-goroutine poll loop (1s resolution) that runs
//     registered tasks when their trigger is due
//   - Trigger implementations: Every (fixed interval), AtTimes (wall-clock
//     marks in the configured zone) and CronSpec (cron expressions)
//   - TaskContext: explicit per-invocation context (clock reading, logger)
//     instead of ambient globals
//
// Each task is either Idle or Running. A trigger that lands while the task
// is Running is dropped and logged, never queued. Task errors and panics are
// caught at the loop boundary, counted per task, and never crash the loop.
package scheduler
