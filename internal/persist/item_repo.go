package persist

import (
	"context"
	"fmt"

	"github.com/ehce/ehce/internal/mods"
	"go.uber.org/zap"
)

// ItemRepo stores the files of a mod, items and images alike, keyed by
// mod id and relative path.
type ItemRepo struct {
	db *DB
}

func NewItemRepo(db *DB) *ItemRepo {
	return &ItemRepo{db: db}
}

// LoadMod returns every file of a mod ordered by path. An unknown mod
// yields no files.
func (r *ItemRepo) LoadMod(ctx context.Context, modID string) ([]mods.File, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT path, body FROM mod_items WHERE mod_id = $1 ORDER BY path`, modID,
	)
	if err != nil {
		return nil, fmt.Errorf("query mod %s: %w", modID, err)
	}
	defer rows.Close()

	var result []mods.File
	for rows.Next() {
		var f mods.File
		if err := rows.Scan(&f.Path, &f.Data); err != nil {
			return nil, fmt.Errorf("scan mod %s: %w", modID, err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

// SaveMod replaces all files of a mod (delete + bulk insert).
func (r *ItemRepo) SaveMod(ctx context.Context, modID string, files []mods.File) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM mod_items WHERE mod_id = $1`, modID); err != nil {
		return fmt.Errorf("clear mod %s: %w", modID, err)
	}

	for _, f := range files {
		if _, err := tx.Exec(ctx,
			`INSERT INTO mod_items (mod_id, path, body, updated_at) VALUES ($1, $2, $3, now())`,
			modID, f.Path, f.Data,
		); err != nil {
			return fmt.Errorf("insert %s: %w", f.Path, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.db.log.Info("mod saved", zap.String("mod", modID), zap.Int("files", len(files)))
	return nil
}
