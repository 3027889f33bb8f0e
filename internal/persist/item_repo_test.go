package persist

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ehce/ehce/internal/config"
	"github.com/ehce/ehce/internal/mods"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("EHCE_TEST_DSN")
	if dsn == "" {
		t.Skip("EHCE_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := NewDB(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 4, MaxIdleConns: 1}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	version, err := RunMigrations(ctx, db)
	require.NoError(t, err)
	require.EqualValues(t, 1, version)
	return db
}

func TestItemRepoRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewItemRepo(db)
	ctx := context.Background()
	modID := "test-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM mod_items WHERE mod_id = $1`, modID)
	})

	files := []mods.File{
		{Path: "ships/frigate.yaml", Data: []byte("id: frigate\ntype: Ship\n")},
		{Path: "images/frigate.png", Data: []byte{0x89, 'P', 'N', 'G'}},
	}
	require.NoError(t, repo.SaveMod(ctx, modID, files))

	got, err := repo.LoadMod(ctx, modID)
	require.NoError(t, err)
	assert.Equal(t, []mods.File{files[1], files[0]}, got)

	require.NoError(t, repo.SaveMod(ctx, modID, files[:1]))
	got, err = repo.LoadMod(ctx, modID)
	require.NoError(t, err)
	assert.Equal(t, files[:1], got, "save replaces every file of the mod")
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := testDB(t)
	version, err := RunMigrations(context.Background(), db)
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)

	var name string
	require.NoError(t, db.Pool.QueryRow(context.Background(), `SELECT current_setting('application_name')`).Scan(&name))
	assert.Equal(t, applicationName, name)
}

func TestItemRepoUnknownMod(t *testing.T) {
	repo := NewItemRepo(testDB(t))
	got, err := repo.LoadMod(context.Background(), "missing-"+uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, got)
}
