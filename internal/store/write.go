package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/larder/internal/recipe"
)

// CommitResult describes one successful Upsert.
type CommitResult struct {
	Seq         int64    // commit sequence number, strictly increasing
	CommitID    string   // UUIDv7
	Inserted    int      // records new to the store
	Updated     int      // records whose id already existed
	Dropped     int      // records discarded by parsing (no resolvable id)
	InsertedIDs []string // in batch order
	UpdatedIDs  []string // in batch order
}

// Upsert parses a batch of raw remote records and applies every valid one
// in a single transaction. Existing ids have all fields replaced; new ids
// are inserted. Records without a resolvable id are dropped and counted.
//
// The batch is atomic: on any failure the transaction is rolled back, no
// record of the batch is visible, and a *StorageError is returned.
// Subscribers receive one CommitEvent after the commit is visible.
func (s *Store) Upsert(ctx context.Context, batch []recipe.RawRecord) (CommitResult, error) {
	recipes, dropped := recipe.ParseBatch(batch)
	return s.commit(ctx, recipes, dropped)
}

// UpsertRecipes applies already-built recipes with the same atomicity and
// notification guarantees as Upsert. Difficulty is clamped and malformed
// images are dropped, so stored rows always satisfy the entity invariants.
func (s *Store) UpsertRecipes(ctx context.Context, recipes []recipe.Recipe) (CommitResult, error) {
	normalized := make([]recipe.Recipe, 0, len(recipes))
	index := make(map[string]int, len(recipes))
	dropped := 0

	for _, r := range recipes {
		if r.ID == "" {
			dropped++
			continue
		}
		n := normalize(r)
		if i, seen := index[n.ID]; seen {
			normalized[i] = n
			continue
		}
		index[n.ID] = len(normalized)
		normalized = append(normalized, n)
	}

	return s.commit(ctx, normalized, dropped)
}

// normalize enforces the entity invariants on a hand-built Recipe.
func normalize(r recipe.Recipe) recipe.Recipe {
	n := r.Clone()
	n.Difficulty = recipe.ClampDifficulty(r.Difficulty)
	images := make([]string, 0, len(r.Images))
	for _, img := range r.Images {
		if u, ok := recipe.ParseImageURI(img); ok {
			images = append(images, u)
		}
	}
	n.Images = images
	return n
}

// commit writes recipes and one commits row in a single transaction, then
// publishes the CommitEvent. recipes must have unique ids.
func (s *Store) commit(ctx context.Context, recipes []recipe.Recipe, dropped int) (CommitResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	commitID := s.newID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CommitResult{}, &StorageError{Op: "begin", Err: err}
	}
	defer tx.Rollback() // No-op if committed

	// Claim the commit seq first; recipe rows reference it.
	res, err := tx.ExecContext(ctx, `
		INSERT INTO commits (id, dropped, committed_at)
		VALUES (?, ?, ?)
	`, commitID, dropped, s.now().UnixNano())
	if err != nil {
		return CommitResult{}, &StorageError{Op: "insert commit", Err: err}
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return CommitResult{}, &StorageError{Op: "commit seq", Err: err}
	}

	result := CommitResult{
		Seq:         seq,
		CommitID:    commitID,
		Dropped:     dropped,
		InsertedIDs: []string{},
		UpdatedIDs:  []string{},
	}

	for _, r := range recipes {
		exists, err := rowExists(ctx, tx, r.ID)
		if err != nil {
			return CommitResult{}, &StorageError{Op: "write", Err: err}
		}

		if err := writeRecipe(ctx, tx, r, seq); err != nil {
			return CommitResult{}, &StorageError{Op: "write", Err: err}
		}

		if exists {
			result.UpdatedIDs = append(result.UpdatedIDs, r.ID)
		} else {
			result.InsertedIDs = append(result.InsertedIDs, r.ID)
		}
	}
	result.Inserted = len(result.InsertedIDs)
	result.Updated = len(result.UpdatedIDs)

	if _, err := tx.ExecContext(ctx, `
		UPDATE commits SET inserted = ?, updated = ? WHERE seq = ?
	`, result.Inserted, result.Updated, seq); err != nil {
		return CommitResult{}, &StorageError{Op: "update commit", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return CommitResult{}, &StorageError{Op: "commit", Err: err}
	}

	slog.Debug("store commit",
		"seq", seq,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"dropped", dropped)

	// Publish strictly after the batch is visible to Snapshot. Still under
	// writeMu, so events leave in seq order.
	s.notifier.publish(CommitEvent{
		Seq:      seq,
		CommitID: commitID,
		Inserted: result.InsertedIDs,
		Updated:  result.UpdatedIDs,
	})

	return result, nil
}

func rowExists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM recipes WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s: %w", id, err)
	}
	return true, nil
}

// writeRecipe inserts or fully replaces one row. ON CONFLICT DO UPDATE keeps
// the rowid, so an updated recipe keeps its snapshot position.
func writeRecipe(ctx context.Context, tx *sql.Tx, r recipe.Recipe, seq int64) error {
	imagesJSON, err := marshalImages(r.Images)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recipes
		(id, name, description, instructions, difficulty, images, last_updated, content_hash, created_seq, updated_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			instructions = excluded.instructions,
			difficulty = excluded.difficulty,
			images = excluded.images,
			last_updated = excluded.last_updated,
			content_hash = excluded.content_hash,
			updated_seq = excluded.updated_seq
	`,
		r.ID,
		r.Name,
		r.Description,
		r.Instructions,
		r.Difficulty,
		imagesJSON,
		marshalTime(r.LastUpdated),
		recipe.ContentHash(r),
		seq,
		seq,
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", r.ID, err)
	}
	return nil
}
