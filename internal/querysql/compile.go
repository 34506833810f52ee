package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/larder/internal/queryir"
	"github.com/roach88/larder/internal/recipe"
)

// Table and column names of the recipe table. The store owns the schema;
// they live here so compiled SQL and the store's scanners agree.
const (
	Table   = "recipes"
	Columns = "id, name, description, instructions, difficulty, images, last_updated"
)

// FoldFunc is the SQL function name the store registers on every
// connection. It applies recipe.Fold so SQL and in-memory evaluation fold
// case identically.
const FoldFunc = "fold"

// SQLCompiler compiles a queryir.View to parameterized SQL for SQLite.
//
// CRITICAL: Every query ends with rowid ASC so ties keep insertion order,
// matching the stable sort used by Live Query over a snapshot.
// CRITICAL: Search text is always a ? parameter, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a View to a SELECT over the recipe table.
// Returns (sql, params, error).
func (c *SQLCompiler) Compile(v queryir.View) (string, []any, error) {
	if err := queryir.Validate(v); err != nil {
		return "", nil, fmt.Errorf("compile view: %w", err)
	}

	var whereClause string
	var params []any
	if v.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(v.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		whereClause = " WHERE " + filterSQL
		params = filterParams
	}

	orderBy, err := c.compileSort(v.Sort)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		Columns,
		Table,
		whereClause,
		orderBy)

	return sql, params, nil
}

// compileSort returns the ORDER BY list for a sort variant.
func (c *SQLCompiler) compileSort(s queryir.Sort) (string, error) {
	switch s.(type) {
	case queryir.ByName:
		return FoldFunc + "(name) ASC, rowid ASC", nil
	case queryir.ByLastUpdated:
		// NULLs last: "IS NULL" is 0 for dated rows, 1 for undated.
		return "last_updated IS NULL ASC, last_updated DESC, rowid ASC", nil
	default:
		return "", fmt.Errorf("unsupported sort type: %T", s)
	}
}

// compilePredicate compiles a predicate to a WHERE fragment.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Contains:
		return c.compileContains(pred)
	case queryir.Or:
		return c.compileOr(pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileContains compiles to instr(fold(field), ?) > 0. instr is used
// instead of LIKE so % and _ in user input need no escaping.
func (c *SQLCompiler) compileContains(ct queryir.Contains) (string, []any, error) {
	sql := fmt.Sprintf("instr(%s(%s), ?) > 0", FoldFunc, string(ct.Field))
	return sql, []any{recipe.Fold(ct.Text)}, nil
}

// compileOr joins children with OR inside parentheses.
func (c *SQLCompiler) compileOr(or queryir.Or) (string, []any, error) {
	if len(or.Predicates) == 0 {
		return "1 = 0", nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range or.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	return "(" + strings.Join(sqlParts, " OR ") + ")", allParams, nil
}
