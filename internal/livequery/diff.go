package livequery

import (
	"github.com/roach88/larder/internal/recipe"
)

// Move relocates one row. From indexes the previous order, To the new one.
type Move struct {
	ID   string `json:"id"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

// RowDiff is the set of operations that turns the previously emitted rows
// into the current ones.
//
// Inserted and Updated follow the new order, Removed follows the old order,
// Moved follows the new order. An id may be both updated and moved.
type RowDiff struct {
	Inserted []string `json:"inserted"`
	Removed  []string `json:"removed"`
	Updated  []string `json:"updated"`
	Moved    []Move   `json:"moved"`
}

// IsEmpty reports whether the diff changes nothing.
func (d RowDiff) IsEmpty() bool {
	return len(d.Inserted) == 0 && len(d.Removed) == 0 &&
		len(d.Updated) == 0 && len(d.Moved) == 0
}

// emittedRow is what a LiveQuery remembers about a row it has emitted.
type emittedRow struct {
	id   string
	hash string
}

func fingerprint(rows []recipe.Recipe) []emittedRow {
	out := make([]emittedRow, len(rows))
	for i, r := range rows {
		out[i] = emittedRow{id: r.ID, hash: recipe.ContentHash(r)}
	}
	return out
}

// Diff compares two ordered row sets by id.
//
// A row's position is its rank among the ids present in both sets, so rows
// shifted only by inserts or removals are not moves. A common id is moved
// when its rank differs between prev and next.
func Diff(prev, next []recipe.Recipe) RowDiff {
	return diffRows(fingerprint(prev), fingerprint(next))
}

func diffRows(prev, next []emittedRow) RowDiff {
	d := RowDiff{
		Inserted: []string{},
		Removed:  []string{},
		Updated:  []string{},
		Moved:    []Move{},
	}

	prevIndex := make(map[string]int, len(prev))
	for i, r := range prev {
		prevIndex[r.id] = i
	}
	nextIDs := make(map[string]struct{}, len(next))
	for _, r := range next {
		nextIDs[r.id] = struct{}{}
	}

	// Rank of each common id in the previous order.
	prevRank := make(map[string]int, len(prev))
	for _, r := range prev {
		if _, ok := nextIDs[r.id]; !ok {
			d.Removed = append(d.Removed, r.id)
			continue
		}
		prevRank[r.id] = len(prevRank)
	}

	rank := 0
	for to, r := range next {
		from, ok := prevIndex[r.id]
		if !ok {
			d.Inserted = append(d.Inserted, r.id)
			continue
		}
		if prev[from].hash != r.hash {
			d.Updated = append(d.Updated, r.id)
		}
		if prevRank[r.id] != rank {
			d.Moved = append(d.Moved, Move{ID: r.id, From: from, To: to})
		}
		rank++
	}

	return d
}
