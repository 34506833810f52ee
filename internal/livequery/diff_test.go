package livequery

import (
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/larder/internal/recipe"
)

func order(idList ...string) []recipe.Recipe {
	rows := make([]recipe.Recipe, len(idList))
	for i, id := range idList {
		rows[i] = recipe.Recipe{ID: id, Name: id, Difficulty: 1, Images: []string{}}
	}
	return rows
}

// assertDiffReplays applies diff to prev and checks that it yields next.
func assertDiffReplays(t *testing.T, prev, next []string, diff RowDiff) {
	t.Helper()

	gone := make(map[string]bool)
	for _, id := range diff.Removed {
		gone[id] = true
	}
	for _, m := range diff.Moved {
		gone[m.ID] = true
		require.Equal(t, prev[m.From], m.ID, "move %s: wrong From", m.ID)
	}

	out := make([]string, 0, len(next))
	for _, id := range prev {
		if !gone[id] {
			out = append(out, id)
		}
	}

	type placement struct {
		id string
		at int
	}
	var places []placement
	for _, m := range diff.Moved {
		places = append(places, placement{m.ID, m.To})
	}
	for _, id := range diff.Inserted {
		places = append(places, placement{id, slices.Index(next, id)})
	}
	slices.SortFunc(places, func(a, b placement) int { return a.at - b.at })
	for _, p := range places {
		out = slices.Insert(out, p.at, p.id)
	}

	assert.Equal(t, nonNil(next), out)
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name      string
		prev      []string
		next      []string
		wantIns   []string
		wantRem   []string
		wantMoves []Move
	}{
		{
			name:    "from empty",
			prev:    nil,
			next:    []string{"a", "b"},
			wantIns: []string{"a", "b"},
		},
		{
			name:    "to empty",
			prev:    []string{"a", "b"},
			next:    nil,
			wantRem: []string{"a", "b"},
		},
		{
			name:    "insert at front is not a move",
			prev:    []string{"a", "b", "c"},
			next:    []string{"x", "a", "b", "c"},
			wantIns: []string{"x"},
		},
		{
			name:    "remove from middle is not a move",
			prev:    []string{"a", "b", "c"},
			next:    []string{"a", "c"},
			wantRem: []string{"b"},
		},
		{
			name: "rotate left moves every row",
			prev: []string{"a", "b", "c", "d"},
			next: []string{"b", "c", "d", "a"},
			wantMoves: []Move{
				{ID: "b", From: 1, To: 0},
				{ID: "c", From: 2, To: 1},
				{ID: "d", From: 3, To: 2},
				{ID: "a", From: 0, To: 3},
			},
		},
		{
			name:      "swap moves both rows",
			prev:      []string{"a", "b"},
			next:      []string{"b", "a"},
			wantMoves: []Move{{ID: "b", From: 1, To: 0}, {ID: "a", From: 0, To: 1}},
		},
		{
			name:      "reverse keeps the middle row",
			prev:      []string{"a", "b", "c"},
			next:      []string{"c", "b", "a"},
			wantMoves: []Move{{ID: "c", From: 2, To: 0}, {ID: "a", From: 0, To: 2}},
		},
		{
			name:      "mixed",
			prev:      []string{"a", "b", "c", "d"},
			next:      []string{"d", "x", "a", "c"},
			wantIns:   []string{"x"},
			wantRem:   []string{"b"},
			wantMoves: []Move{
				{ID: "d", From: 3, To: 0},
				{ID: "a", From: 0, To: 2},
				{ID: "c", From: 2, To: 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Diff(order(tt.prev...), order(tt.next...))
			assert.Equal(t, nonNil(tt.wantIns), d.Inserted)
			assert.Equal(t, nonNil(tt.wantRem), d.Removed)
			if tt.wantMoves == nil {
				tt.wantMoves = []Move{}
			}
			assert.Equal(t, tt.wantMoves, d.Moved)
			assert.Empty(t, d.Updated)
			assertDiffReplays(t, tt.prev, tt.next, d)
		})
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func TestDiff_RandomPermutationsReplay(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		universe := make([]string, 12)
		for i := range universe {
			universe[i] = fmt.Sprintf("r%02d", i)
		}

		pick := func() []string {
			rng.Shuffle(len(universe), func(i, j int) { universe[i], universe[j] = universe[j], universe[i] })
			n := rng.Intn(len(universe) + 1)
			return slices.Clone(universe[:n])
		}
		prev, next := pick(), pick()

		d := Diff(order(prev...), order(next...))
		assertDiffReplays(t, prev, next, d)

		// A common id moves exactly when its rank among common ids changes.
		moved := make(map[string]bool, len(d.Moved))
		for _, m := range d.Moved {
			assert.NotContains(t, moved, m.ID, "iteration %d: %s moved twice", iter, m.ID)
			moved[m.ID] = true
		}
		prevCommon, nextCommon := commonOrder(prev, next), commonOrder(next, prev)
		for i, id := range nextCommon {
			assert.Equal(t, prevCommon[i] != id, moved[id], "iteration %d: %s", iter, id)
		}
	}
}

// commonOrder returns the ids of a that also occur in b, in a's order.
func commonOrder(a, b []string) []string {
	var out []string
	for _, id := range a {
		if slices.Contains(b, id) {
			out = append(out, id)
		}
	}
	return out
}

func TestDiff_UpdatedByContent(t *testing.T) {
	prev := order("a", "b")
	next := order("a", "b")
	next[1].Instructions = "stir"

	d := Diff(prev, next)
	assert.Equal(t, []string{"b"}, d.Updated)
	assert.Empty(t, d.Moved)
	assert.False(t, d.IsEmpty())
}

func TestRowDiffIsEmpty(t *testing.T) {
	assert.True(t, RowDiff{}.IsEmpty())
	assert.True(t, emptyDiff().IsEmpty())
	assert.False(t, RowDiff{Moved: []Move{{ID: "a"}}}.IsEmpty())
}
