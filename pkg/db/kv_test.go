package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dtnitsch/ragebait-block/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	database := &DB{path: ":memory:"}
	var err error
	database.DB, err = openDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestGetSet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "first write", key: "settings", value: `{"debugMode":false}`},
		{name: "overwrite replaces value", key: "settings", value: `{"debugMode":true}`},
		{name: "second key", key: "permissions", value: `{"granted":["trialML"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, db.Set(ctx, tt.key, []byte(tt.value)))

			got, err := db.Get(ctx, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.value, string(got))
		})
	}

	entries, err := db.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "permissions", entries[0].Key)
	assert.Equal(t, "settings", entries[1].Key)
}

func TestGetMissingKey(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestOpenCreatesSchemaOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kv.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Set(context.Background(), "settings", []byte("{}")))
	require.NoError(t, db.Close())

	// Reopening keeps the data and does not re-run the schema.
	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.Get(context.Background(), "settings")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))
	assert.Equal(t, path, db.Path())
}

func TestEntries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Set(ctx, "settings", []byte(`{"debugMode":true}`)))
	require.NoError(t, db.Set(ctx, "permissions", []byte(`{}`)))

	entries, err := db.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "permissions", entries[0].Key)
	assert.Equal(t, int64(2), entries[0].SizeBytes)
	assert.Equal(t, "settings", entries[1].Key)
	assert.Equal(t, int64(18), entries[1].SizeBytes)
	assert.False(t, entries[1].UpdatedAt.IsZero())
}
