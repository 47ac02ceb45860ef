package infrastructure

import (
	"context"
	"sort"
	"sync"
	"time"

	"adperf/internal/domain"
	"adperf/pkg/logger"
)

// implements domain.RecordStore in process memory
type MemoryStore struct {
	records   map[domain.NaturalKey]*domain.StoredRecord
	ids       []int64 // ascending, one per stored record
	byID      map[int64]domain.NaturalKey
	nextID    int64
	pageLimit int
	mutex     sync.RWMutex
	logger    *logger.Logger
}

// NewMemoryStore creates an empty store. pageLimit caps every ScanPage the way
// hosted stores cap result sizes; 0 disables the cap.
func NewMemoryStore(pageLimit int, logger *logger.Logger) *MemoryStore {
	return &MemoryStore{
		records:   make(map[domain.NaturalKey]*domain.StoredRecord),
		byID:      make(map[int64]domain.NaturalKey),
		pageLimit: pageLimit,
		logger:    logger,
	}
}

func (s *MemoryStore) UpsertBatch(ctx context.Context, records []domain.PerformanceRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now().UTC()
	inserted := 0
	for _, r := range records {
		key := r.Key()
		if existing, ok := s.records[key]; ok {
			existing.Record = r
			existing.UpdatedAt = now
			continue
		}
		s.nextID++
		s.records[key] = &domain.StoredRecord{
			ID:        s.nextID,
			Record:    r,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.ids = append(s.ids, s.nextID)
		s.byID[s.nextID] = key
		inserted++
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"count":    len(records),
		"inserted": inserted,
		"updated":  len(records) - inserted,
	}).Debug("Upserted records in memory")

	return len(records), nil
}

func (s *MemoryStore) ScanPage(ctx context.Context, filter domain.RangeFilter, afterID int64, limit int) ([]domain.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.pageLimit > 0 && (limit <= 0 || limit > s.pageLimit) {
		limit = s.pageLimit
	}

	start := sort.Search(len(s.ids), func(i int) bool { return s.ids[i] > afterID })
	var page []domain.StoredRecord
	for _, id := range s.ids[start:] {
		if limit > 0 && len(page) == limit {
			break
		}
		stored := s.records[s.byID[id]]
		if filter.Matches(stored.Record) {
			page = append(page, *stored)
		}
	}
	return page, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.records), nil
}

func (s *MemoryStore) Stats(ctx context.Context) (domain.StoreSummary, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	campaigns := make(map[string]struct{})
	adSets := make(map[string]struct{})
	ads := make(map[string]struct{})
	summary := domain.StoreSummary{TotalRecords: len(s.records)}

	for _, stored := range s.records {
		r := stored.Record
		campaigns[r.CampaignID] = struct{}{}
		adSets[r.AdSetID] = struct{}{}
		ads[r.AdID] = struct{}{}
		summary.DateRange.Extend(r.Day)
		if stored.UpdatedAt.After(summary.LastUpdated) {
			summary.LastUpdated = stored.UpdatedAt
		}
	}

	summary.DistinctCampaigns = len(campaigns)
	summary.DistinctAdSets = len(adSets)
	summary.DistinctAds = len(ads)
	return summary, nil
}

func (s *MemoryStore) PageLimit() int {
	return s.pageLimit
}
