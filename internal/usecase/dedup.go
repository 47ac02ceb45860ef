package usecase

import (
	"context"

	"adperf/internal/domain"
	"adperf/pkg/logger"
)

// KeySource answers which natural keys are already persisted.
type KeySource interface {
	Count(ctx context.Context) (int, error)
	ExistingKeys(ctx context.Context, filter domain.RangeFilter) (domain.KeySet, error)
}

type DedupResult struct {
	Records []domain.PerformanceRecord
	Skipped int
	// Warning is set when the lookup failed and every candidate was kept.
	Warning error
}

// Deduplicator decides which candidates are new. The record store is the
// only authority for skipping a row. The optional index is a prefilter: when
// none of the candidates are in it the store lookup is skipped, and its hits
// are always confirmed against the store, so a stale index can cost a
// redundant write but never a lost row.
type Deduplicator struct {
	store  KeySource
	index  KeySource
	logger *logger.Logger
}

// NewDeduplicator builds a deduplicator over store. index may be nil.
func NewDeduplicator(store KeySource, index KeySource, logger *logger.Logger) *Deduplicator {
	return &Deduplicator{store: store, index: index, logger: logger}
}

// ComputeIncremental returns the candidates whose key is not in existing,
// preserving input order.
func ComputeIncremental(candidates []domain.PerformanceRecord, existing domain.KeySet) []domain.PerformanceRecord {
	out := make([]domain.PerformanceRecord, 0, len(candidates))
	for _, r := range candidates {
		if !existing.Has(r.Key()) {
			out = append(out, r)
		}
	}
	return out
}

// Incremental filters candidates down to the rows the store has not seen. A
// failing lookup never blocks an import: all candidates are returned with a
// warning and the upsert resolves any overlap.
func (d *Deduplicator) Incremental(ctx context.Context, candidates []domain.PerformanceRecord) DedupResult {
	if len(candidates) == 0 {
		return DedupResult{}
	}
	log := d.logger.WithContext(ctx)

	count, err := d.store.Count(ctx)
	if err != nil {
		log.WithError(err).Warn("Key count failed, importing all rows")
		return DedupResult{Records: candidates, Warning: domain.WrapStoreError("count", err)}
	}
	if count == 0 {
		return DedupResult{Records: candidates}
	}

	bounds := dayBounds(candidates)
	if d.index != nil && !d.indexHits(ctx, candidates, bounds) {
		log.WithField("candidates", len(candidates)).Debug("No candidate in key index")
		return DedupResult{Records: candidates}
	}

	existing, err := d.store.ExistingKeys(ctx, bounds)
	if err != nil {
		log.WithError(err).Warn("Existing key lookup failed, importing all rows")
		return DedupResult{Records: candidates, Warning: domain.WrapStoreError("existing_keys", err)}
	}

	fresh := ComputeIncremental(candidates, existing)
	log.WithFields(map[string]any{
		"candidates": len(candidates),
		"new":        len(fresh),
		"existing":   len(existing),
	}).Debug("Deduplicated candidates")

	return DedupResult{Records: fresh, Skipped: len(candidates) - len(fresh)}
}

// indexHits reports whether any candidate may already be stored. An index
// error counts as a hit so the store is asked instead.
func (d *Deduplicator) indexHits(ctx context.Context, candidates []domain.PerformanceRecord, bounds domain.RangeFilter) bool {
	known, err := d.index.ExistingKeys(ctx, bounds)
	if err != nil {
		d.logger.WithContext(ctx).WithError(err).Warn("Key index lookup failed, asking the store")
		return true
	}
	for _, r := range candidates {
		if known.Has(r.Key()) {
			return true
		}
	}
	return false
}

// dayBounds narrows the lookup to the candidates' days. Rows without a
// day leave the range open so their keys are still found.
func dayBounds(records []domain.PerformanceRecord) domain.RangeFilter {
	var span domain.DateRange
	for _, r := range records {
		if r.Day == "" {
			return domain.RangeFilter{}
		}
		span.Extend(r.Day)
	}
	return domain.RangeFilter{StartDate: span.Start, EndDate: span.End}
}
