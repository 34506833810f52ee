package queryir

import (
	"fmt"
	"strings"
)

// Sort selects the row order of a View. Exactly one is active at a time.
type Sort interface {
	sortNode() // Marker method - seals interface to this package

	// Key is the stable name used in config files and CLI flags.
	Key() string
}

// ByName orders rows by case-folded name, ascending. Recipes without a name
// sort as the empty string, i.e. first. Ties keep snapshot order.
type ByName struct{}

func (ByName) sortNode()   {}
func (ByName) Key() string { return SortKeyName }

// ByLastUpdated orders rows by lastUpdated, newest first. Recipes without a
// timestamp sort after all dated ones, keeping snapshot order among
// themselves.
type ByLastUpdated struct{}

func (ByLastUpdated) sortNode()   {}
func (ByLastUpdated) Key() string { return SortKeyLastUpdated }

// Sort keys accepted by ParseSort.
const (
	SortKeyName        = "name"
	SortKeyLastUpdated = "last_updated"
)

// SortKeys lists every accepted sort key in display order.
var SortKeys = []string{SortKeyName, SortKeyLastUpdated}

// ParseSort maps a sort key to its Sort variant.
func ParseSort(key string) (Sort, error) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case SortKeyName, "":
		return ByName{}, nil
	case SortKeyLastUpdated, "lastupdated", "updated":
		return ByLastUpdated{}, nil
	default:
		return nil, fmt.Errorf("unknown sort %q: must be one of %v", key, SortKeys)
	}
}

// Field names a searchable Recipe text field.
type Field string

const (
	FieldName         Field = "name"
	FieldDescription  Field = "description"
	FieldInstructions Field = "instructions"
)

// SearchFields are the fields a search filter matches against (logical OR).
var SearchFields = []Field{FieldName, FieldDescription, FieldInstructions}

// Predicate is a row filter.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Contains matches when Text occurs in Field ignoring case. An absent field
// never matches a non-empty Text.
type Contains struct {
	Field Field
	Text  string
}

func (Contains) predicateNode() {}

// Or matches when any child matches. An empty Or matches nothing.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Search builds the filter for free-text search input: a case-insensitive
// substring match against name, description and instructions. Blank input
// means "no filter" and returns nil.
func Search(text string) Predicate {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	preds := make([]Predicate, 0, len(SearchFields))
	for _, f := range SearchFields {
		preds = append(preds, Contains{Field: f, Text: text})
	}
	return Or{Predicates: preds}
}

// SearchText returns the text of a filter built by Search, or "" for nil
// and for predicates that did not come from Search.
func SearchText(p Predicate) string {
	switch pred := p.(type) {
	case Contains:
		return pred.Text
	case Or:
		if len(pred.Predicates) > 0 {
			return SearchText(pred.Predicates[0])
		}
	}
	return ""
}

// View is one standing query: sort plus optional filter.
type View struct {
	Sort   Sort
	Filter Predicate // nil = match all
}

// DefaultView sorts by name with no filter.
func DefaultView() View {
	return View{Sort: ByName{}}
}

// WithSort returns a copy of v using s.
func (v View) WithSort(s Sort) View {
	v.Sort = s
	return v
}

// WithFilter returns a copy of v using p.
func (v View) WithFilter(p Predicate) View {
	v.Filter = p
	return v
}

// String renders the view for logs.
func (v View) String() string {
	key := SortKeyName
	if v.Sort != nil {
		key = v.Sort.Key()
	}
	if text := SearchText(v.Filter); text != "" {
		return fmt.Sprintf("sort=%s search=%q", key, text)
	}
	return "sort=" + key
}
