// Package recipe defines the Recipe entity and the rules that turn a raw
// remote record into one.
//
// This package contains no storage or transport code. Every other internal
// package imports recipe; recipe imports nothing internal.
//
// Normalization rules applied by ParseRecord:
//   - uuid is an opaque non-blank string; records without one are dropped (ErrNoID)
//   - difficulty is clamped to [MinDifficulty, MaxDifficulty], default 1
//   - images keep only well-formed absolute URIs, in payload order
//   - lastUpdated is epoch seconds; non-numeric values mean "absent"
//   - unknown keys are ignored
package recipe
