// Package store persists work items in SQLite and exposes the atomic
// operations that make concurrent claiming safe across processes and hosts.
//
// The hard guarantee is at-most-one-claimant per item with no lost updates,
// using only the engine's conditional-write semantics: Claim, Skip, and
// MarkDone are each a single UPDATE whose predicate and write the engine
// evaluates atomically, so no in-process lock is ever needed and claimants in
// different processes arbitrate purely through the database. Multi-statement
// sequences that cannot be expressed as one statement run inside
// WithTransaction, which begins in immediate mode so concurrent writers
// serialize at begin time instead of racing into late write conflicts.
//
// Every pooled connection is configured by a Configurator (WAL journal, lock
// busy timeout, foreign-key enforcement) before first use; a connection that
// cannot be configured never enters the pool.
package store
