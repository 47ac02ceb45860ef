package usecase

import (
	"context"
	"iter"
	"time"

	"adperf/internal/domain"
	"adperf/pkg/logger"
	"adperf/pkg/metrics"

	"github.com/hashicorp/go-multierror"
)

// UpsertResult reports how an upsert went chunk by chunk.
type UpsertResult struct {
	Written int     `json:"written"`
	Failed  int     `json:"failed"`
	Errors  []error `json:"-"`
}

// Gateway is the single entry point to the record store. It hides chunking,
// paging and error classification from the services above it.
type Gateway struct {
	store     domain.RecordStore
	pageSize  int
	batchSize int
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewGateway(store domain.RecordStore, pageSize, batchSize int, logger *logger.Logger, metrics *metrics.Metrics) *Gateway {
	if pageSize <= 0 {
		pageSize = 1000
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Gateway{
		store:     store,
		pageSize:  pageSize,
		batchSize: batchSize,
		logger:    logger,
		metrics:   metrics,
	}
}

// Upsert writes records by natural key, replacing on conflict. Records are
// sent in chunks and each chunk is all-or-nothing. When every chunk fails the
// error is a *domain.StoreUnavailableError; when only some do it is a
// *domain.PartialWriteError.
func (g *Gateway) Upsert(ctx context.Context, records []domain.PerformanceRecord) (UpsertResult, error) {
	var result UpsertResult
	if len(records) == 0 {
		return result, nil
	}
	log := g.logger.WithContext(ctx)

	records = collapseByKey(records)
	chunks := chunk(records, g.batchSize)

	var errs *multierror.Error
	for i, batch := range chunks {
		start := time.Now()
		n, err := g.store.UpsertBatch(ctx, batch)
		g.metrics.RecordStoreCall("upsert", err, time.Since(start))
		if err != nil {
			log.WithError(err).WithFields(map[string]any{
				"chunk":   i,
				"records": len(batch),
			}).Error("Upsert chunk failed")
			result.Failed += len(batch)
			errs = multierror.Append(errs, domain.WrapStoreError("upsert", err))
			continue
		}
		result.Written += n
	}
	g.metrics.RecordWritten(result.Written)

	if errs == nil {
		return result, nil
	}
	result.Errors = errs.Errors

	if result.Failed == len(records) {
		if len(errs.Errors) == 1 {
			return result, errs.Errors[0]
		}
		return result, &domain.StoreUnavailableError{Op: "upsert", Err: errs}
	}
	return result, &domain.PartialWriteError{
		Written: result.Written,
		Failed:  result.Failed,
		Errors:  errs.Errors,
	}
}

// Pages yields stored records one page at a time, following the surrogate id
// until the store returns a short page. Iteration stops after the first error.
func (g *Gateway) Pages(ctx context.Context, filter domain.RangeFilter) iter.Seq2[[]domain.StoredRecord, error] {
	size := g.effectivePageSize()
	return func(yield func([]domain.StoredRecord, error) bool) {
		var after int64
		for {
			start := time.Now()
			page, err := g.store.ScanPage(ctx, filter, after, size)
			g.metrics.RecordStoreCall("scan_page", err, time.Since(start))
			if err != nil {
				yield(nil, domain.WrapStoreError("read_range", err))
				return
			}
			g.metrics.RecordPageRead()
			if len(page) > 0 {
				if !yield(page, nil) {
					return
				}
				after = page[len(page)-1].ID
			}
			if len(page) < size {
				return
			}
		}
	}
}

// ReadRange returns every record matching filter, however many pages that takes.
func (g *Gateway) ReadRange(ctx context.Context, filter domain.RangeFilter) ([]domain.PerformanceRecord, error) {
	var records []domain.PerformanceRecord
	pages := 0
	for page, err := range g.Pages(ctx, filter) {
		if err != nil {
			return nil, err
		}
		pages++
		for _, stored := range page {
			records = append(records, stored.Record)
		}
	}

	g.logger.WithContext(ctx).WithFields(map[string]any{
		"records":    len(records),
		"pages":      pages,
		"start_date": filter.StartDate,
		"end_date":   filter.EndDate,
	}).Debug("Read record range")

	return records, nil
}

// ExistingKeys collects the natural keys stored inside filter.
func (g *Gateway) ExistingKeys(ctx context.Context, filter domain.RangeFilter) (domain.KeySet, error) {
	keys := domain.NewKeySet()
	for page, err := range g.Pages(ctx, filter) {
		if err != nil {
			return nil, err
		}
		for _, stored := range page {
			keys.Add(stored.Record.Key())
		}
	}
	return keys, nil
}

func (g *Gateway) Count(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := g.store.Count(ctx)
	g.metrics.RecordStoreCall("count", err, time.Since(start))
	if err != nil {
		return 0, domain.WrapStoreError("count", err)
	}
	return n, nil
}

// Summarize is a read-only health check over the whole store.
func (g *Gateway) Summarize(ctx context.Context) (domain.StoreSummary, error) {
	start := time.Now()
	summary, err := g.store.Stats(ctx)
	g.metrics.RecordStoreCall("stats", err, time.Since(start))
	if err != nil {
		return domain.StoreSummary{}, domain.WrapStoreError("summarize", err)
	}
	return summary, nil
}

// effectivePageSize never asks for more than the store will hand back, so a
// capped page is not mistaken for the last one.
func (g *Gateway) effectivePageSize() int {
	if limit := g.store.PageLimit(); limit > 0 && limit < g.pageSize {
		return limit
	}
	return g.pageSize
}

// collapseByKey keeps one record per natural key. The last occurrence wins
// but takes the position of the first.
func collapseByKey(records []domain.PerformanceRecord) []domain.PerformanceRecord {
	index := make(map[domain.NaturalKey]int, len(records))
	out := make([]domain.PerformanceRecord, 0, len(records))
	for _, r := range records {
		key := r.Key()
		if i, ok := index[key]; ok {
			out[i] = r
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	return out
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for size < len(items) {
		items, out = items[size:], append(out, items[:size:size])
	}
	return append(out, items)
}
