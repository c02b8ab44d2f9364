package clientdata

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/findata/internal/database"
	"github.com/aristath/findata/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurgeJob_Name(t *testing.T) {
	job := NewPurgeJob(nil, 0, zerolog.Nop())
	assert.Equal(t, "client_data_purge", job.Name())
}

func TestPurgeJob_DisabledWithoutRetention(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRepository(db, database.NewGate(4), zerolog.Nop())

	require.NoError(t, repo.Upsert(context.Background(), priceRecord(`[]`, time.Now().Add(-365*24*time.Hour))))

	job := NewPurgeJob(repo, 0, zerolog.Nop())
	require.NoError(t, job.Run())

	rec, err := repo.Get(context.Background(), domain.CategoryPrices, aaplJan)
	require.NoError(t, err)
	assert.NotNil(t, rec, "rows are never removed without a retention window")
}

func TestPurgeJob_RemovesRowsPastRetention(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewRepository(db, database.NewGate(4), zerolog.Nop())

	require.NoError(t, repo.Upsert(context.Background(), priceRecord(`[]`, time.Now().Add(-48*time.Hour))))

	job := NewPurgeJob(repo, 24*time.Hour, zerolog.Nop())
	require.NoError(t, job.Run())

	rec, err := repo.Get(context.Background(), domain.CategoryPrices, aaplJan)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPurgeJob_ReportsErrors(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, database.NewGate(4), zerolog.Nop())
	require.NoError(t, db.Close())

	job := NewPurgeJob(repo, time.Hour, zerolog.Nop())
	assert.Error(t, job.Run())
}
