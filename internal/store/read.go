package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/larder/internal/queryir"
	"github.com/roach88/larder/internal/querysql"
	"github.com/roach88/larder/internal/recipe"
)

// Snapshot is a consistent, point-in-time copy of the store.
type Snapshot struct {
	// Seq is the last commit included; 0 means no commit has happened yet.
	Seq int64

	// Recipes in insertion order (rowid ASC).
	Recipes []recipe.Recipe
}

// Synced reports whether at least one Upsert has committed.
func (s Snapshot) Synced() bool {
	return s.Seq > 0
}

// IDs returns the recipe ids in snapshot order.
func (s Snapshot) IDs() []string {
	ids := make([]string, len(s.Recipes))
	for i, r := range s.Recipes {
		ids[i] = r.ID
	}
	return ids
}

// Snapshot returns every stored Recipe together with the seq of the last
// commit they reflect. Both reads run in one read transaction, so a
// concurrent Upsert is either entirely visible or not at all.
//
// Returns an empty slice (not nil) when the store is empty.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	tx, err := s.reader.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	var snap Snapshot
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM commits`).Scan(&snap.Seq); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: read seq: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT `+querysql.Columns+`
		FROM `+querysql.Table+`
		ORDER BY rowid ASC
	`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: query recipes: %w", err)
	}
	defer rows.Close()

	snap.Recipes, err = scanRecipes(rows)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}

	return snap, nil
}

// Get retrieves a single Recipe by id.
// Returns ErrNotFound if no such recipe exists.
func (s *Store) Get(ctx context.Context, id string) (recipe.Recipe, error) {
	row := s.reader.QueryRowContext(ctx, `
		SELECT `+querysql.Columns+`
		FROM `+querysql.Table+`
		WHERE id = ?
	`, id)

	r, err := scanRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return recipe.Recipe{}, ErrNotFound
	}
	if err != nil {
		return recipe.Recipe{}, fmt.Errorf("get %s: %w", id, err)
	}
	return r, nil
}

// Query evaluates a View in SQL and returns the matching rows in view order.
// Results are identical to evaluating the View over Snapshot in memory.
func (s *Store) Query(ctx context.Context, v queryir.View) ([]recipe.Recipe, error) {
	query, params, err := s.compiler.Compile(v)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	rows, err := s.reader.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	recipes, err := scanRecipes(rows)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return recipes, nil
}

// Stats summarizes store contents.
type Stats struct {
	Recipes      int
	Commits      int
	LastSeq      int64
	LastCommitAt time.Time // zero before the first commit
}

// Stats returns recipe and commit counts plus the last commit time.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var lastAt sql.NullInt64

	err := s.reader.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM recipes),
			(SELECT COUNT(*) FROM commits),
			(SELECT COALESCE(MAX(seq), 0) FROM commits),
			(SELECT committed_at FROM commits ORDER BY seq DESC LIMIT 1)
	`).Scan(&st.Recipes, &st.Commits, &st.LastSeq, &lastAt)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	st.LastCommitAt = unmarshalTime(lastAt)

	return st, nil
}

// HasSynced reports whether any Upsert has committed.
func (s *Store) HasSynced(ctx context.Context) (bool, error) {
	var n int
	if err := s.reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM commits`).Scan(&n); err != nil {
		return false, fmt.Errorf("has synced: %w", err)
	}
	return n > 0, nil
}

// scanRecipes drains rows produced by a SELECT of querysql.Columns.
func scanRecipes(rows *sql.Rows) ([]recipe.Recipe, error) {
	recipes := []recipe.Recipe{}
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipes: %w", err)
	}
	return recipes, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecipe scans one row of querysql.Columns.
func scanRecipe(row rowScanner) (recipe.Recipe, error) {
	var r recipe.Recipe
	var imagesJSON string
	var lastUpdated sql.NullInt64

	if err := row.Scan(
		&r.ID, &r.Name, &r.Description, &r.Instructions,
		&r.Difficulty, &imagesJSON, &lastUpdated,
	); err != nil {
		return recipe.Recipe{}, err
	}

	images, err := unmarshalImages(imagesJSON)
	if err != nil {
		return recipe.Recipe{}, fmt.Errorf("recipe %s: %w", r.ID, err)
	}
	r.Images = images
	r.LastUpdated = unmarshalTime(lastUpdated)

	return r, nil
}
