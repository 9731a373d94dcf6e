//go:build integration
// +build integration

package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/pos-ledger/internal/adapters/db"
	"github.com/ammerola/pos-ledger/test/helpers"
)

func TestMigrator_ResetThenUp(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB := helpers.SetupTestDB(t)

	tableExists := func(name string) bool {
		var exists bool
		require.NoError(t, testDB.Database.QueryRow(ctx,
			"SELECT to_regclass($1) IS NOT NULL", "public."+name).Scan(&exists))
		return exists
	}

	migrator, err := db.NewMigrator(&db.MigrationConfig{DatabaseURL: testDB.Config.DSN()}, helpers.TestLogger())
	require.NoError(t, err)
	defer migrator.Close()

	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	assert.False(t, dirty)

	require.NoError(t, migrator.Reset(ctx))
	version, _, err = migrator.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, tableExists("products"))
	assert.False(t, tableExists("activity_logs"))

	// a second reset has nothing to do
	require.NoError(t, migrator.Reset(ctx))

	require.NoError(t, migrator.Up(ctx))
	assert.True(t, tableExists("products"))
	assert.True(t, tableExists("purchase_items"))
}
