package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adperf/internal/domain"
	"adperf/pkg/logger"
	"adperf/pkg/metrics"
)

var ErrNothingToExport = errors.New("no records in export window")

type ExportResult struct {
	Window     domain.RangeFilter `json:"window"`
	Summaries  int                `json:"summaries"`
	ExportedAt time.Time          `json:"exported_at"`
}

// ExportService pushes campaign summaries to the configured sink.
type ExportService struct {
	gateway      *Gateway
	exportClient domain.ExportClient
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

func NewExportService(gateway *Gateway, exportClient domain.ExportClient, logger *logger.Logger, metrics *metrics.Metrics) *ExportService {
	return &ExportService{
		gateway:      gateway,
		exportClient: exportClient,
		logger:       logger,
		metrics:      metrics,
	}
}

// Export sends the campaign roll-up of window to the sink.
func (s *ExportService) Export(ctx context.Context, window domain.RangeFilter) (*ExportResult, error) {
	log := s.logger.WithContext(ctx)
	log.WithFields(map[string]any{
		"start_date": window.StartDate,
		"end_date":   window.EndDate,
	}).Info("Starting summary export")

	records, err := s.gateway.ReadRange(ctx, window)
	if err != nil {
		log.WithError(err).Error("Failed to read records for export")
		return nil, fmt.Errorf("failed to read records for export: %w", err)
	}
	if len(records) == 0 {
		log.Warn("No records found for export window")
		return nil, ErrNothingToExport
	}

	summaries, err := Aggregate(records, domain.LevelCampaign)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.exportClient.Export(ctx, summaries, window, now); err != nil {
		log.WithError(err).Error("Failed to export summaries")
		return nil, fmt.Errorf("failed to export summaries: %w", err)
	}

	s.metrics.RecordView("export")
	log.WithField("summaries", len(summaries)).Info("Summary export completed")

	return &ExportResult{Window: window, Summaries: len(summaries), ExportedAt: now}, nil
}
