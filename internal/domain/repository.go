package domain

import (
	"context"
	"time"
)

// bounds for reading records back from a store
type RangeFilter struct {
	StartDate   string   `json:"start_date,omitempty"`
	EndDate     string   `json:"end_date,omitempty"`
	CampaignIDs []string `json:"campaign_ids,omitempty"`
}

// Matches reports whether r falls inside the filter; date bounds are inclusive.
func (f RangeFilter) Matches(r PerformanceRecord) bool {
	if f.StartDate != "" && r.Day < f.StartDate {
		return false
	}
	if f.EndDate != "" && r.Day > f.EndDate {
		return false
	}
	if len(f.CampaignIDs) > 0 {
		for _, id := range f.CampaignIDs {
			if id == r.CampaignID {
				return true
			}
		}
		return false
	}
	return true
}

// interface for a generic keyed record store addressed by NaturalKey
type RecordStore interface {
	// UpsertBatch writes all records or none, replacing on key conflict.
	UpsertBatch(ctx context.Context, records []PerformanceRecord) (int, error)
	// ScanPage returns up to limit records with ID > afterID in ID order.
	ScanPage(ctx context.Context, filter RangeFilter, afterID int64, limit int) ([]StoredRecord, error)
	Count(ctx context.Context) (int, error)
	Stats(ctx context.Context) (StoreSummary, error)
	// PageLimit is the largest page the store will return; 0 means no cap.
	PageLimit() int
}

// interface for a natural-key index kept alongside the store
type KeyIndex interface {
	Count(ctx context.Context) (int, error)
	ExistingKeys(ctx context.Context, filter RangeFilter) (KeySet, error)
	Remember(ctx context.Context, keys []NaturalKey) error
}

// interface for data export
type ExportClient interface {
	Export(ctx context.Context, data []AggregateSummary, window RangeFilter, at time.Time) error
}
