// Package store provides the SQLite-backed Entity Store for Recipe records.
//
// The store is the exclusive, durable owner of the Recipe collection:
//   - Recipes: one row per id (PRIMARY KEY), updated in place on re-sync
//   - Commits: one row per successful Upsert, numbered by seq
//
// # Critical Patterns
//
// Atomic Commits
//   - Every Upsert runs in a single transaction; a failed batch leaves no rows
//   - Readers use a separate connection pool and, under WAL, only ever see
//     fully committed batches
//
// Single Writer
//   - One writer connection plus a write mutex: Upserts never interleave
//
// Delivery After Visibility
//   - CommitEvents are published only after tx.Commit returns, so a
//     subscriber's Snapshot always includes the batch it was told about
//
// Deterministic Order
//   - Snapshot order is insertion order (rowid ASC); updates keep the row's
//     original position
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - fold(text): recipe.Fold registered on every connection
package store
