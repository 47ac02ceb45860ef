package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"adperf/internal/domain"
	"adperf/pkg/config"
	"adperf/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS performance_records (
	id               BIGSERIAL PRIMARY KEY,
	campaign_id      TEXT NOT NULL,
	campaign_name    TEXT NOT NULL,
	ad_set_id        TEXT NOT NULL DEFAULT '',
	ad_set_name      TEXT NOT NULL DEFAULT '',
	ad_id            TEXT NOT NULL DEFAULT '',
	ad_name          TEXT NOT NULL,
	placement        TEXT NOT NULL DEFAULT '',
	platform         TEXT NOT NULL DEFAULT '',
	delivery_status  TEXT NOT NULL DEFAULT '',
	delivery_level   TEXT NOT NULL DEFAULT '',
	day              TEXT NOT NULL DEFAULT '',
	reach            BIGINT NOT NULL DEFAULT 0,
	impressions      BIGINT NOT NULL DEFAULT 0,
	frequency        DOUBLE PRECISION NOT NULL DEFAULT 0,
	results          DOUBLE PRECISION NOT NULL DEFAULT 0,
	amount_spent     DOUBLE PRECISION NOT NULL DEFAULT 0,
	cost_per_result  DOUBLE PRECISION NOT NULL DEFAULT 0,
	purchase_roas    DOUBLE PRECISION NOT NULL DEFAULT 0,
	ctr_all          DOUBLE PRECISION NOT NULL DEFAULT 0,
	result_rate      DOUBLE PRECISION NOT NULL DEFAULT 0,
	starts           TEXT NOT NULL DEFAULT '',
	ends             TEXT NOT NULL DEFAULT '',
	reporting_starts TEXT NOT NULL DEFAULT '',
	reporting_ends   TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (ad_id, day, placement, platform)
);
CREATE INDEX IF NOT EXISTS performance_records_day_idx ON performance_records (day);
CREATE INDEX IF NOT EXISTS performance_records_campaign_idx ON performance_records (campaign_id);
`

var recordColumns = []string{
	"campaign_id", "campaign_name", "ad_set_id", "ad_set_name", "ad_id", "ad_name",
	"placement", "platform", "delivery_status", "delivery_level", "day",
	"reach", "impressions", "frequency", "results", "amount_spent",
	"cost_per_result", "purchase_roas", "ctr_all", "result_rate",
	"starts", "ends", "reporting_starts", "reporting_ends",
}

var upsertSQL = buildUpsertSQL()

func buildUpsertSQL() string {
	placeholders := make([]string, len(recordColumns))
	var updates []string
	for i, col := range recordColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		switch col {
		case "ad_id", "day", "placement", "platform":
		default:
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}
	updates = append(updates, "updated_at = now()")

	return fmt.Sprintf(`
		INSERT INTO performance_records (%s)
		VALUES (%s)
		ON CONFLICT (ad_id, day, placement, platform) DO UPDATE SET
			%s`,
		strings.Join(recordColumns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ",\n\t\t\t"),
	)
}

// implements domain.RecordStore on PostgreSQL
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewPostgresStore opens a connection pool and checks the database is reachable.
func NewPostgresStore(ctx context.Context, cfg config.StoreConfig, logger *logger.Logger) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.WithFields(map[string]any{
		"max_conns": cfg.MaxConns,
		"min_conns": cfg.MinConns,
	}).Info("Connected to PostgreSQL")

	return &PostgresStore{pool: pool, logger: logger}, nil
}

// EnsureSchema creates the records table and its indexes if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
	s.logger.Info("PostgreSQL connection pool closed")
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UpsertBatch writes the batch in one transaction; any failure rolls it back.
func (s *PostgresStore) UpsertBatch(ctx context.Context, records []domain.PerformanceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, domain.WrapStoreError("upsert", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(upsertSQL, recordArgs(r)...)
	}

	results := tx.SendBatch(ctx, batch)
	affected := 0
	for i := range records {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, domain.WrapStoreError("upsert", fmt.Errorf("failed to upsert record %d: %w", i, err))
		}
		affected += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, domain.WrapStoreError("upsert", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, domain.WrapStoreError("upsert", fmt.Errorf("failed to commit: %w", err))
	}
	return affected, nil
}

func (s *PostgresStore) ScanPage(ctx context.Context, filter domain.RangeFilter, afterID int64, limit int) ([]domain.StoredRecord, error) {
	campaignIDs := filter.CampaignIDs
	if campaignIDs == nil {
		campaignIDs = []string{}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, `+strings.Join(recordColumns, ", ")+`, created_at, updated_at
		FROM performance_records
		WHERE id > $1
		  AND ($2 = '' OR day >= $2)
		  AND ($3 = '' OR day <= $3)
		  AND (cardinality($4::text[]) = 0 OR campaign_id = ANY($4))
		ORDER BY id
		LIMIT $5
	`, afterID, filter.StartDate, filter.EndDate, campaignIDs, limit)
	if err != nil {
		return nil, domain.WrapStoreError("scan_page", fmt.Errorf("failed to query records: %w", err))
	}
	defer rows.Close()

	var page []domain.StoredRecord
	for rows.Next() {
		var stored domain.StoredRecord
		r := &stored.Record
		if err := rows.Scan(
			&stored.ID,
			&r.CampaignID, &r.CampaignName, &r.AdSetID, &r.AdSetName, &r.AdID, &r.AdName,
			&r.Placement, &r.Platform, &r.DeliveryStatus, &r.DeliveryLevel, &r.Day,
			&r.Reach, &r.Impressions, &r.Frequency, &r.Results, &r.AmountSpent,
			&r.CostPerResult, &r.PurchaseRoas, &r.CtrAll, &r.ResultRate,
			&r.Starts, &r.Ends, &r.ReportingStarts, &r.ReportingEnds,
			&stored.CreatedAt, &stored.UpdatedAt,
		); err != nil {
			return nil, domain.WrapStoreError("scan_page", err)
		}
		page = append(page, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStoreError("scan_page", err)
	}
	return page, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM performance_records`).Scan(&n); err != nil {
		return 0, domain.WrapStoreError("count", err)
	}
	return n, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (domain.StoreSummary, error) {
	var summary domain.StoreSummary
	var lastUpdated *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT count(*),
		       coalesce(min(day) FILTER (WHERE day <> ''), ''),
		       coalesce(max(day) FILTER (WHERE day <> ''), ''),
		       count(DISTINCT campaign_id),
		       count(DISTINCT ad_set_id),
		       count(DISTINCT ad_id),
		       max(updated_at)
		FROM performance_records
	`).Scan(
		&summary.TotalRecords,
		&summary.DateRange.Start,
		&summary.DateRange.End,
		&summary.DistinctCampaigns,
		&summary.DistinctAdSets,
		&summary.DistinctAds,
		&lastUpdated,
	)
	if err != nil {
		return domain.StoreSummary{}, domain.WrapStoreError("stats", err)
	}
	if lastUpdated != nil {
		summary.LastUpdated = *lastUpdated
	}
	return summary, nil
}

// PostgreSQL returns whatever LIMIT asks for.
func (s *PostgresStore) PageLimit() int {
	return 0
}

func recordArgs(r domain.PerformanceRecord) []any {
	return []any{
		r.CampaignID, r.CampaignName, r.AdSetID, r.AdSetName, r.AdID, r.AdName,
		r.Placement, r.Platform, r.DeliveryStatus, r.DeliveryLevel, r.Day,
		r.Reach, r.Impressions, r.Frequency, r.Results, r.AmountSpent,
		r.CostPerResult, r.PurchaseRoas, r.CtrAll, r.ResultRate,
		r.Starts, r.Ends, r.ReportingStarts, r.ReportingEnds,
	}
}
