package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"adperf/internal/domain"
	"adperf/pkg/logger"
	"adperf/pkg/metrics"

	"github.com/google/uuid"
)

type IngestStatus string

const (
	StatusImported       IngestStatus = "imported"
	StatusRowsRejected   IngestStatus = "imported_with_rejections"
	StatusAllRejected    IngestStatus = "all_rows_invalid"
	StatusNothingToDo    IngestStatus = "nothing_to_import"
	StatusPartialWrite   IngestStatus = "partial"
	StatusStoreUnreached IngestStatus = "store_unavailable"
	StatusMalformed      IngestStatus = "malformed"
)

// Message is the user-facing line for a status; each outcome needs a
// different remedy so they never share wording.
func (s IngestStatus) Message() string {
	switch s {
	case StatusImported:
		return "All rows imported"
	case StatusRowsRejected:
		return "Rows imported; some rows were invalid and skipped"
	case StatusAllRejected:
		return "No rows imported: every row was invalid; check the file's columns"
	case StatusNothingToDo:
		return "Nothing to import: no new rows found"
	case StatusPartialWrite:
		return "Some rows could not be saved; retry the upload"
	case StatusStoreUnreached:
		return "Record store unreachable; nothing was saved"
	case StatusMalformed:
		return "File could not be read as a delimited export"
	}
	return string(s)
}

type IngestReport struct {
	BatchID    string        `json:"batch_id"`
	Status     IngestStatus  `json:"status"`
	Message    string        `json:"message"`
	Parse      ParseReport   `json:"parse"`
	Candidates int           `json:"candidates"`
	New        int           `json:"new"`
	Skipped    int           `json:"skipped"`
	Written    int           `json:"written"`
	Failed     int           `json:"failed"`
	Warnings   []string      `json:"warnings,omitempty"`
	Errors     []string      `json:"errors,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// IngestService runs one upload through parse, dedup and upsert.
type IngestService struct {
	dedup    *Deduplicator
	gateway  *Gateway
	keyIndex domain.KeyIndex
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// NewIngestService wires the pipeline. keyIndex may be nil.
func NewIngestService(
	dedup *Deduplicator,
	gateway *Gateway,
	keyIndex domain.KeyIndex,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *IngestService {
	return &IngestService{
		dedup:    dedup,
		gateway:  gateway,
		keyIndex: keyIndex,
		logger:   logger,
		metrics:  metrics,
	}
}

// Ingest imports one export. The report is always filled in; the error is
// non-nil for malformed input, an unreachable store or a partial write.
func (s *IngestService) Ingest(ctx context.Context, r io.Reader) (IngestReport, error) {
	start := time.Now()
	report := IngestReport{BatchID: uuid.New().String()}
	ctx = context.WithValue(ctx, logger.BatchIDKey, report.BatchID)

	log := s.logger.WithContext(ctx)
	log.Info("Starting ingest")

	finish := func(status IngestStatus) {
		report.Status = status
		report.Message = status.Message()
		report.Duration = time.Since(start)
		s.metrics.RecordIngestRun(string(status), report.Duration)
	}

	parsed, err := Parse(r)
	if err != nil {
		finish(StatusMalformed)
		log.WithError(err).Warn("Rejected malformed upload")
		return report, err
	}
	report.Parse = parsed.Report
	report.Candidates = len(parsed.Records)

	s.metrics.RecordIngestRows("accepted", parsed.Report.Accepted)
	s.metrics.RecordIngestRows("rejected", len(parsed.Report.Rejected))
	s.metrics.RecordIngestRows("coerced", parsed.Report.CoercedValues)

	log.WithFields(map[string]any{
		"rows":     parsed.Report.TotalRows,
		"accepted": parsed.Report.Accepted,
		"rejected": len(parsed.Report.Rejected),
		"coerced":  parsed.Report.CoercedValues,
	}).Info("Parsed upload")

	if len(parsed.Records) == 0 {
		if len(parsed.Report.Rejected) > 0 {
			finish(StatusAllRejected)
			log.WithField("rejected", len(parsed.Report.Rejected)).Warn("Every row rejected")
		} else {
			finish(StatusNothingToDo)
		}
		return report, nil
	}

	deduped := s.dedup.Incremental(ctx, parsed.Records)
	if deduped.Warning != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("duplicate check skipped: %v", deduped.Warning))
	}
	report.New = len(deduped.Records)
	report.Skipped = deduped.Skipped

	if len(deduped.Records) == 0 {
		finish(StatusNothingToDo)
		log.WithField("skipped", report.Skipped).Info("Every row already stored")
		return report, nil
	}

	result, err := s.gateway.Upsert(ctx, deduped.Records)
	report.Written = result.Written
	report.Failed = result.Failed
	for _, e := range result.Errors {
		report.Errors = append(report.Errors, e.Error())
	}

	if err != nil {
		var partial *domain.PartialWriteError
		if errors.As(err, &partial) {
			finish(StatusPartialWrite)
			log.WithError(err).Warn("Ingest partially written")
		} else {
			finish(StatusStoreUnreached)
			log.WithError(err).Error("Ingest failed, store unavailable")
		}
		return report, err
	}

	s.rememberKeys(ctx, deduped.Records, &report)

	if len(parsed.Report.Rejected) > 0 {
		finish(StatusRowsRejected)
	} else {
		finish(StatusImported)
	}

	log.WithFields(map[string]any{
		"duration": report.Duration,
		"written":  report.Written,
		"skipped":  report.Skipped,
	}).Info("Ingest completed")

	return report, nil
}

func (s *IngestService) rememberKeys(ctx context.Context, records []domain.PerformanceRecord, report *IngestReport) {
	if s.keyIndex == nil {
		return
	}
	keys := make([]domain.NaturalKey, len(records))
	for i, r := range records {
		keys[i] = r.Key()
	}
	if err := s.keyIndex.Remember(ctx, keys); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to update key index")
		report.Warnings = append(report.Warnings, fmt.Sprintf("key index not updated: %v", err))
	}
}
