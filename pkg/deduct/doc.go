// Package deduct applies missed-dose backlogs to the inventory ledger and
// orchestrates the periodic deduction sweep.
//
// This package includes:
//   - Applier: consumes a backlog in order, subtracting stock and advancing
//     the schedule checkpoint only as far as successfully applied
//   - Sweeper: one sweep = one storage transaction across all auto-deduct
//     schedules, retried at the next cadence on storage failure
//
// The checkpoint never regresses and only advances to consumed instants,
// which makes repeated or aborted sweeps idempotent.
package deduct
