package usecase

import (
	"context"
	"fmt"

	"adperf/internal/domain"
	"adperf/pkg/logger"
	"adperf/pkg/metrics"
)

// one dashboard request
type ViewQuery struct {
	Level  domain.Level
	Range  domain.RangeFilter
	Filter domain.Filter
	Sort   domain.Sort
}

type ViewResult struct {
	Level domain.Level  `json:"level"`
	Sort  domain.Sort   `json:"sort"`
	Total int           `json:"total"`
	Items []domain.Item `json:"items"`
}

type Overview struct {
	Range        domain.DateRange          `json:"range"`
	Totals       domain.AggregateSummary   `json:"totals"`
	TopCampaigns []domain.AggregateSummary `json:"top_campaigns"`
}

const topCampaigns = 5

// ReportService builds read-only views over stored records. Every view is
// recomputed from the store on each call.
type ReportService struct {
	gateway *Gateway
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewReportService(gateway *Gateway, logger *logger.Logger, metrics *metrics.Metrics) *ReportService {
	return &ReportService{
		gateway: gateway,
		logger:  logger,
		metrics: metrics,
	}
}

// View reads the records in range, rolls them up to the requested level and
// applies the selection. Date bounds narrow the store read for every level,
// but only filter items directly at levels whose items carry a day.
func (s *ReportService) View(ctx context.Context, q ViewQuery) (*ViewResult, error) {
	log := s.logger.WithContext(ctx)
	log.WithFields(map[string]any{
		"level":     q.Level,
		"range":     q.Range,
		"sort":      q.Sort.Key,
		"direction": q.Sort.Direction,
	}).Info("Building view")

	rng := withFilterDates(q.Range, q.Filter)
	records, err := s.gateway.ReadRange(ctx, rng)
	if err != nil {
		log.WithError(err).Error("Failed to read records for view")
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	var items []domain.Item
	filter := q.Filter
	switch q.Level {
	case domain.LevelRaw:
		items = make([]domain.Item, len(records))
		for i, r := range records {
			items[i] = domain.Granular(r)
		}
	default:
		summaries, err := Aggregate(records, q.Level)
		if err != nil {
			return nil, err
		}
		items = make([]domain.Item, len(summaries))
		for i, summary := range summaries {
			items[i] = domain.Aggregated(summary)
		}
		if q.Level != domain.LevelDay {
			filter = filter.WithoutDates()
		}
	}

	if q.Sort.Key == "" {
		q.Sort = domain.DefaultSort()
	}
	selected := Select(items, filter, q.Sort)
	s.metrics.RecordView(string(q.Level))

	log.WithFields(map[string]any{
		"records": len(records),
		"items":   len(selected),
	}).Info("View built")

	return &ViewResult{
		Level: q.Level,
		Sort:  q.Sort,
		Total: len(selected),
		Items: selected,
	}, nil
}

// Timeline returns one summary per day in calendar order.
func (s *ReportService) Timeline(ctx context.Context, rng domain.RangeFilter) ([]domain.AggregateSummary, error) {
	records, err := s.gateway.ReadRange(ctx, rng)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to read records for timeline")
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	s.metrics.RecordView("timeline")
	return Timeline(records), nil
}

// Overview returns account-wide totals and the highest-spending campaigns.
func (s *ReportService) Overview(ctx context.Context, rng domain.RangeFilter) (*Overview, error) {
	records, err := s.gateway.ReadRange(ctx, rng)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to read records for overview")
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	campaigns, err := Aggregate(records, domain.LevelCampaign)
	if err != nil {
		return nil, err
	}
	if len(campaigns) > topCampaigns {
		campaigns = campaigns[:topCampaigns]
	}

	var span domain.DateRange
	for _, r := range records {
		span.Extend(r.Day)
	}

	s.metrics.RecordView("overview")
	return &Overview{
		Range:        span,
		Totals:       Totals(records),
		TopCampaigns: campaigns,
	}, nil
}

func (s *ReportService) StoreSummary(ctx context.Context) (domain.StoreSummary, error) {
	summary, err := s.gateway.Summarize(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to summarize store")
		return domain.StoreSummary{}, fmt.Errorf("failed to summarize store: %w", err)
	}
	return summary, nil
}

// withFilterDates narrows rng to the filter's date bounds where they are tighter.
func withFilterDates(rng domain.RangeFilter, f domain.Filter) domain.RangeFilter {
	if f.DateStart != nil && *f.DateStart > rng.StartDate {
		rng.StartDate = *f.DateStart
	}
	if f.DateEnd != nil && (rng.EndDate == "" || *f.DateEnd < rng.EndDate) {
		rng.EndDate = *f.DateEnd
	}
	return rng
}
