package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/larder/internal/livequery"
	"github.com/roach88/larder/internal/recipe"
	"github.com/roach88/larder/internal/store"
)

// AssertionContext provides the state assertions inspect.
type AssertionContext struct {
	Store *store.Store
	Query *livequery.LiveQuery
	Ctx   context.Context
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s seq=%d rows=%v\n", event.Step, event.Action, event.Seq, event.Rows)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertStoreIDs:
			err = assertStoreIDs(actx, a)
		case AssertRecipe:
			err = assertRecipe(actx, a)
		case AssertRows:
			err = assertRows(actx, a)
		case AssertCommitCount:
			err = assertCommitCount(actx, a)
		case AssertLoading:
			err = assertLoading(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			var ae *AssertionError
			if errors.As(err, &ae) {
				ae.Trace = result.Trace
			}
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertStoreIDs checks the stored id set, ignoring order.
func assertStoreIDs(actx *AssertionContext, a Assertion) error {
	snap, err := actx.Store.Snapshot(actx.Ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	got := snap.IDs()
	want := slices.Clone(a.IDs)
	sort.Strings(got)
	sort.Strings(want)

	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertStoreIDs,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// assertRecipe checks the expected fields of one stored recipe (subset match).
func assertRecipe(actx *AssertionContext, a Assertion) error {
	r, err := actx.Store.Get(actx.Ctx, a.ID)
	if errors.Is(err, store.ErrNotFound) {
		return &AssertionError{
			Type:     AssertRecipe,
			Expected: fmt.Sprintf("recipe %s", a.ID),
			Actual:   "not found",
		}
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", a.ID, err)
	}

	fields := recipeFields(r)
	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		got, ok := fields[k]
		if !ok {
			return fmt.Errorf("recipe %s: unknown field %q", a.ID, k)
		}
		if !sameValue(a.Expect[k], got) {
			return &AssertionError{
				Type:     AssertRecipe,
				Expected: fmt.Sprintf("%s.%s = %v", a.ID, k, a.Expect[k]),
				Actual:   fmt.Sprintf("%v", got),
			}
		}
	}
	return nil
}

// recipeFields exposes a recipe under its scenario field names.
func recipeFields(r recipe.Recipe) map[string]any {
	fields := map[string]any{
		"name":         r.Name,
		"description":  r.Description,
		"instructions": r.Instructions,
		"difficulty":   r.Difficulty,
		"images":       r.Images,
		"last_updated": nil,
	}
	if r.HasLastUpdated() {
		fields["last_updated"] = r.LastUpdated.Unix()
	}
	return fields
}

// sameValue compares YAML-decoded and Go values by their JSON encoding,
// so 5 (int) equals 5 (int64) and [a] ([]any) equals [a] ([]string).
func sameValue(want, got any) bool {
	w, err := json.Marshal(want)
	if err != nil {
		return false
	}
	g, err := json.Marshal(got)
	if err != nil {
		return false
	}
	return string(w) == string(g)
}

// assertRows checks the live query rows in order.
func assertRows(actx *AssertionContext, a Assertion) error {
	rows := actx.Query.CurrentRows()
	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r.ID
	}

	if !slices.Equal(got, a.IDs) {
		return &AssertionError{
			Type:     AssertRows,
			Expected: fmt.Sprintf("%v", a.IDs),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// assertCommitCount checks how many commits the store recorded.
func assertCommitCount(actx *AssertionContext, a Assertion) error {
	stats, err := actx.Store.Stats(actx.Ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	if stats.Commits != a.Count {
		return &AssertionError{
			Type:     AssertCommitCount,
			Expected: fmt.Sprintf("%d commits", a.Count),
			Actual:   fmt.Sprintf("%d commits", stats.Commits),
		}
	}
	return nil
}

// assertLoading checks the live query loading flag.
func assertLoading(actx *AssertionContext, a Assertion) error {
	got := actx.Query.State().Loading
	if got != *a.Loading {
		return &AssertionError{
			Type:     AssertLoading,
			Expected: fmt.Sprintf("loading=%t", *a.Loading),
			Actual:   fmt.Sprintf("loading=%t", got),
		}
	}
	return nil
}
