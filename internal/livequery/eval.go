package livequery

import (
	"cmp"
	"slices"

	"github.com/roach88/larder/internal/queryir"
	"github.com/roach88/larder/internal/recipe"
)

// Evaluate filters and sorts recipes according to v. Input order is the
// tiebreaker, so evaluating a store snapshot yields the same order as the
// SQL backend (which breaks ties by rowid).
//
// The input slice is not modified.
func Evaluate(recipes []recipe.Recipe, v queryir.View) []recipe.Recipe {
	match := compilePredicate(v.Filter)

	type keyed struct {
		r   recipe.Recipe
		key string
	}
	rows := make([]keyed, 0, len(recipes))
	for _, r := range recipes {
		if !match(r) {
			continue
		}
		k := keyed{r: r}
		if _, byName := v.Sort.(queryir.ByName); byName || v.Sort == nil {
			k.key = recipe.Fold(r.Name)
		}
		rows = append(rows, k)
	}

	switch v.Sort.(type) {
	case queryir.ByLastUpdated:
		slices.SortStableFunc(rows, func(a, b keyed) int {
			return compareLastUpdated(a.r, b.r)
		})
	default:
		slices.SortStableFunc(rows, func(a, b keyed) int {
			return cmp.Compare(a.key, b.key)
		})
	}

	out := make([]recipe.Recipe, len(rows))
	for i, k := range rows {
		out[i] = k.r
	}
	return out
}

// compareLastUpdated orders newest first; undated recipes sort after every
// dated one.
func compareLastUpdated(a, b recipe.Recipe) int {
	ah, bh := a.HasLastUpdated(), b.HasLastUpdated()
	switch {
	case ah && !bh:
		return -1
	case !ah && bh:
		return 1
	case !ah && !bh:
		return 0
	}
	return b.LastUpdated.Compare(a.LastUpdated)
}

// Matches reports whether r satisfies p. A nil predicate matches everything.
func Matches(p queryir.Predicate, r recipe.Recipe) bool {
	return compilePredicate(p)(r)
}

// compilePredicate folds search text once so per-row matching only folds
// the row's fields.
func compilePredicate(p queryir.Predicate) func(recipe.Recipe) bool {
	switch pred := p.(type) {
	case nil:
		return func(recipe.Recipe) bool { return true }
	case queryir.Contains:
		needle := recipe.Fold(pred.Text)
		field := pred.Field
		return func(r recipe.Recipe) bool {
			return recipe.ContainsFold(fieldValue(r, field), needle)
		}
	case queryir.Or:
		children := make([]func(recipe.Recipe) bool, len(pred.Predicates))
		for i, c := range pred.Predicates {
			children[i] = compilePredicate(c)
		}
		return func(r recipe.Recipe) bool {
			for _, c := range children {
				if c(r) {
					return true
				}
			}
			return false
		}
	default:
		return func(recipe.Recipe) bool { return false }
	}
}

func fieldValue(r recipe.Recipe, f queryir.Field) string {
	switch f {
	case queryir.FieldName:
		return r.Name
	case queryir.FieldDescription:
		return r.Description
	case queryir.FieldInstructions:
		return r.Instructions
	}
	return ""
}
