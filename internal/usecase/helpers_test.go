package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"adperf/internal/domain"
	"adperf/pkg/logger"
	"adperf/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

var errStoreDown = errors.New("connection refused")

func testDeps() (*logger.Logger, *metrics.Metrics) {
	return logger.Discard(), metrics.NewWithRegistry(prometheus.NewRegistry())
}

// fakeStore is a RecordStore whose calls can be made to fail.
type fakeStore struct {
	mu        sync.Mutex
	records   map[domain.NaturalKey]domain.StoredRecord
	nextID    int64
	pageLimit int

	upsertCalls int
	scanCalls   int
	// failUpsert decides per call (1-based) whether UpsertBatch fails
	failUpsert func(call int) bool
	failScan   bool
	failCount  bool
	failStats  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[domain.NaturalKey]domain.StoredRecord)}
}

func (s *fakeStore) UpsertBatch(ctx context.Context, records []domain.PerformanceRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertCalls++
	if s.failUpsert != nil && s.failUpsert(s.upsertCalls) {
		return 0, errStoreDown
	}
	for _, r := range records {
		stored, ok := s.records[r.Key()]
		if !ok {
			s.nextID++
			stored = domain.StoredRecord{ID: s.nextID, CreatedAt: time.Now()}
		}
		stored.Record = r
		stored.UpdatedAt = time.Now()
		s.records[r.Key()] = stored
	}
	return len(records), nil
}

func (s *fakeStore) ScanPage(ctx context.Context, filter domain.RangeFilter, afterID int64, limit int) ([]domain.StoredRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scanCalls++
	if s.failScan {
		return nil, errStoreDown
	}
	if s.pageLimit > 0 && limit > s.pageLimit {
		limit = s.pageLimit
	}

	var all []domain.StoredRecord
	for _, stored := range s.records {
		if stored.ID > afterID && filter.Matches(stored.Record) {
			all = append(all, stored)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *fakeStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCount {
		return 0, errStoreDown
	}
	return len(s.records), nil
}

func (s *fakeStore) Stats(ctx context.Context) (domain.StoreSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failStats {
		return domain.StoreSummary{}, errStoreDown
	}
	summary := domain.StoreSummary{TotalRecords: len(s.records)}
	for _, stored := range s.records {
		summary.DateRange.Extend(stored.Record.Day)
	}
	return summary, nil
}

func (s *fakeStore) PageLimit() int {
	return s.pageLimit
}

func (s *fakeStore) get(key domain.NaturalKey) (domain.PerformanceRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[key]
	return stored.Record, ok
}

func newTestGateway(store domain.RecordStore, pageSize, batchSize int) *Gateway {
	log, m := testDeps()
	return NewGateway(store, pageSize, batchSize, log, m)
}

func record(adID, day, placement, platform string, spend, roas float64) domain.PerformanceRecord {
	return domain.PerformanceRecord{
		CampaignID:   "C1",
		CampaignName: "Campaign",
		AdSetID:      "S1",
		AdSetName:    "Ad set",
		AdID:         adID,
		AdName:       "Ad " + adID,
		Placement:    placement,
		Platform:     platform,
		Day:          day,
		AmountSpent:  spend,
		PurchaseRoas: roas,
	}
}
