// Package reconcile computes missed-dose backlogs.
//
// Given a schedule's checkpoint and the current time, the Reconciler
// produces every instant that should have fired while the engine was down
// or running late: strictly after the checkpoint, at or before now,
// chronologically sorted. Replaying the backlog through the deduct package
// is what makes cold starts and scheduler downtime safe.
package reconcile
