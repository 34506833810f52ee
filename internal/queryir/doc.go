// Package queryir defines the standing query a Live Query evaluates: one
// sort order and an optional filter predicate over Recipe text fields.
//
// The same View is evaluated two ways:
//
//	[View] → livequery (in memory, over a store snapshot)
//	       → querysql  (parameterized SQL, for direct store reads)
//
// Both backends MUST agree on row order and membership. Case normalization
// goes through recipe.Fold in both (the SQL backend calls it through a
// registered fold() function).
//
// SEALED INTERFACES:
//
// Sort and Predicate use the marker method pattern. Only types in this
// package implement them, so backends can switch exhaustively.
//
// Sort variants:
//   - ByName: case-folded name ascending, absent name first
//   - ByLastUpdated: lastUpdated descending, absent timestamps last
//
// Predicate variants:
//   - Contains: case-insensitive substring on one text field
//   - Or: any child predicate matches
//
// A nil Predicate matches every row.
package queryir
