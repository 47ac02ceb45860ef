package infrastructure

import (
	"context"
	"fmt"
	"os"
	"testing"

	"adperf/internal/domain"
	"adperf/pkg/config"
	"adperf/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupPostgresStore connects to TEST_DATABASE_URL and empties the table.
// Tests are skipped when the variable is unset.
func setupPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := NewPostgresStore(ctx, config.StoreConfig{PostgresDSN: dsn, MaxConns: 4, MinConns: 1}, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))

	_, err = store.pool.Exec(ctx, `TRUNCATE performance_records RESTART IDENTITY`)
	require.NoError(t, err)

	t.Cleanup(store.Close)
	return store
}

func TestPostgresStore_UpsertIsIdempotent(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	rows := []domain.PerformanceRecord{
		rec("A1", "2025-08-16", "feed", 100),
		rec("A1", "2025-08-16", "story", 50),
		rec("A1", "2025-08-16", "reels", 0),
	}

	for i := 0; i < 2; i++ {
		n, err := store.UpsertBatch(ctx, rows)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	changed := rows[0]
	changed.AmountSpent = 7
	_, err = store.UpsertBatch(ctx, []domain.PerformanceRecord{changed})
	require.NoError(t, err)

	page, err := store.ScanPage(ctx, domain.RangeFilter{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, 7.0, page[0].Record.AmountSpent)
	assert.True(t, page[0].UpdatedAt.After(page[0].CreatedAt) || page[0].UpdatedAt.Equal(page[0].CreatedAt))
}

func TestPostgresStore_ScanPageAndStats(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	var rows []domain.PerformanceRecord
	for i := 0; i < 25; i++ {
		r := rec(fmt.Sprintf("A%02d", i), fmt.Sprintf("2025-08-%02d", 10+i%5), "feed", 1)
		if i%2 == 0 {
			r.CampaignID = "C2"
		}
		rows = append(rows, r)
	}
	_, err := store.UpsertBatch(ctx, rows)
	require.NoError(t, err)

	var total int
	var after int64
	for {
		page, err := store.ScanPage(ctx, domain.RangeFilter{}, after, 10)
		require.NoError(t, err)
		total += len(page)
		if len(page) < 10 {
			break
		}
		after = page[len(page)-1].ID
	}
	assert.Equal(t, 25, total)

	page, err := store.ScanPage(ctx, domain.RangeFilter{StartDate: "2025-08-11", EndDate: "2025-08-11", CampaignIDs: []string{"C2"}}, 0, 100)
	require.NoError(t, err)
	for _, stored := range page {
		assert.Equal(t, "2025-08-11", stored.Record.Day)
		assert.Equal(t, "C2", stored.Record.CampaignID)
	}

	summary, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25, summary.TotalRecords)
	assert.Equal(t, domain.DateRange{Start: "2025-08-10", End: "2025-08-14"}, summary.DateRange)
	assert.Equal(t, 2, summary.DistinctCampaigns)
	assert.Equal(t, 25, summary.DistinctAds)
	assert.False(t, summary.LastUpdated.IsZero())
}

func TestBuildUpsertSQL(t *testing.T) {
	assert.Contains(t, upsertSQL, "ON CONFLICT (ad_id, day, placement, platform) DO UPDATE SET")
	assert.Contains(t, upsertSQL, "updated_at = now()")
	assert.Contains(t, upsertSQL, "$24")
	assert.NotContains(t, upsertSQL, "ad_id = EXCLUDED.ad_id")
	assert.Len(t, recordArgs(domain.PerformanceRecord{}), len(recordColumns))
}
