// Package engine implements the larder sync engine.
//
// A sync cycle is one attempt: fetch the full collection from the remote
// service, validate the response envelope, and upsert every valid record into
// the store in a single atomic commit.
//
// ARCHITECTURE:
//
// Validate Before Write:
// Steps 1-3 of a cycle never touch the store. The store only ever sees a
// fully decoded batch, so a bad response can not leave a partial commit.
//
//  1. Fetch (remote.Fetcher), bounded by the cycle timeout
//  2. Decode envelope: service error -> service_rejected, bad shape -> malformed_payload
//  3. Parse records (per-record problems are recovered, never fatal)
//  4. Upsert (store.Store), storage failure -> storage_failure
//
// Single Writer:
// Cycles never interleave. By default a second caller waits for the running
// cycle; WithRejectConcurrent makes it fail fast with busy.
//
// Retries are not part of a cycle. The Scheduler wraps Sync with WithRetry
// for the kinds that are safe to repeat.
package engine
