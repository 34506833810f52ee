// Package livequery maintains standing sorted and filtered views over the
// recipe store and computes the row diff after every commit.
//
// A LiveQuery is pure with respect to the store: it reads snapshots and never
// writes. Evaluate and Diff are plain functions so the same rules can be
// exercised without a store. A Hub subscribes to the store's commit stream
// and re-evaluates every registered LiveQuery in parallel.
package livequery
