// Package core provides the domain models and interfaces for the dosetrack
// engine.
//
// This package includes:
//   - Medication and Adjustment: the inventory ledger (head count plus an
//     append-only change log)
//   - DoseSchedule: a recurring dosing rule with a last-deduction checkpoint
//   - TimeOfDay, TimeOfDayList and WeekdaySet: typed schedule columns
//   - Storage: the persistence contract the engine runs against
//   - Clock: injectable time source for deterministic tests
//
// Most users should import the root package github.com/dosetrack/dosetrack
// which re-exports these types.
package core
