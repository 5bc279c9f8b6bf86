// Package storage provides the GORM-backed persistence layer.
//
// GormStorage implements core.Storage over any GORM dialect; the module is
// exercised against SQLite and PostgreSQL. All ledger mutations funnel
// through ApplyAdjustment so the append-only adjustment log always matches
// the medication's head count, and SetLastDeduction enforces the monotonic
// checkpoint invariant at the SQL level.
package storage
