//go:build integration

package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/accio/pkg/testhelpers"
	"github.com/floroz/accio/services/profile-service/internal/adapters/database"
	"github.com/floroz/accio/services/profile-service/internal/domain/profiles"
	"github.com/floroz/accio/services/profile-service/migrations"
)

func TestActivityRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB := testhelpers.NewTestDatabase(t, migrations.FS)
	repo := database.NewActivityRepository(testDB.Pool)

	_, err := repo.GetActivity(ctx, "nobody")
	assert.ErrorIs(t, err, profiles.ErrActivityNotFound)

	first := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	tx, err := testDB.Pool.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.IncrementCounter(ctx, tx, "u1", profiles.CounterItemsUploaded, later))
	require.NoError(t, repo.IncrementCounter(ctx, tx, "u1", profiles.CounterItemsUploaded, first))
	require.NoError(t, repo.IncrementCounter(ctx, tx, "u1", profiles.CounterItemsReturned, first))
	assert.Error(t, repo.IncrementCounter(ctx, tx, "u1", profiles.Counter("bogus"), first))
	require.NoError(t, tx.Rollback(ctx))

	tx, err = testDB.Pool.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.IncrementCounter(ctx, tx, "u1", profiles.CounterItemsUploaded, later))
	require.NoError(t, repo.IncrementCounter(ctx, tx, "u1", profiles.CounterItemsUploaded, first))
	require.NoError(t, repo.IncrementCounter(ctx, tx, "u1", profiles.CounterItemsReturned, first))
	require.NoError(t, repo.IncrementCounter(ctx, tx, "u1", profiles.CounterItemsRecovered, first))
	require.NoError(t, tx.Commit(ctx))

	activity, err := repo.GetActivity(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, activity.ItemsUploaded)
	assert.Equal(t, 0, activity.ItemsClaimed)
	assert.Equal(t, 1, activity.ItemsReturned)
	assert.Equal(t, 1, activity.ItemsRecovered)
	require.NotNil(t, activity.LastActivityAt)
	assert.True(t, activity.LastActivityAt.Equal(later))

	eventID := uuid.New()
	tx, err = testDB.Pool.Begin(ctx)
	require.NoError(t, err)
	processed, err := repo.IsEventProcessed(ctx, tx, eventID)
	require.NoError(t, err)
	assert.False(t, processed)
	require.NoError(t, repo.MarkEventProcessed(ctx, tx, eventID))
	processed, err = repo.IsEventProcessed(ctx, tx, eventID)
	require.NoError(t, err)
	assert.True(t, processed)
	require.NoError(t, tx.Commit(ctx))
}
