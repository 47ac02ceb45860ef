package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"adperf/internal/domain"
	"adperf/internal/usecase"
	"adperf/pkg/logger"

	"github.com/gin-gonic/gin"
)

// handles HTTP requests
type HTTPHandlers struct {
	ingestService  *usecase.IngestService
	reportService  *usecase.ReportService
	exportService  *usecase.ExportService
	maxUploadBytes int64
	logger         *logger.Logger
}

// creates new HTTP handlers
func NewHTTPHandlers(
	ingestService *usecase.IngestService,
	reportService *usecase.ReportService,
	exportService *usecase.ExportService,
	maxUploadBytes int64,
	logger *logger.Logger,
) *HTTPHandlers {
	return &HTTPHandlers{
		ingestService:  ingestService,
		reportService:  reportService,
		exportService:  exportService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// IngestUpload imports an export sent as multipart field "file" or as the raw body.
func (h *HTTPHandlers) IngestUpload(c *gin.Context) {
	ctx, requestID := requestContext(c)
	log := h.logger.WithContext(ctx)

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	body, name, err := uploadBody(c)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{
			"error":      "Invalid upload",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}
	defer body.Close()

	log.WithField("file", name).Info("Starting upload ingest")

	report, err := h.ingestService.Ingest(ctx, body)
	if err != nil {
		var malformed *domain.MalformedInputError
		var partial *domain.PartialWriteError
		var unavailable *domain.StoreUnavailableError
		var tooLarge *http.MaxBytesError

		status := http.StatusInternalServerError
		switch {
		case errors.As(err, &tooLarge):
			status = http.StatusRequestEntityTooLarge
		case errors.As(err, &malformed):
			status = http.StatusBadRequest
		case errors.As(err, &partial):
			status = http.StatusMultiStatus
		case errors.As(err, &unavailable):
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"error":      report.Message,
			"message":    err.Error(),
			"report":     report,
			"request_id": requestID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    report.Message,
		"report":     report,
		"request_id": requestID,
	})
}

// GetView returns one roll-up level, filtered and sorted.
func (h *HTTPHandlers) GetView(c *gin.Context) {
	ctx, requestID := requestContext(c)

	level, err := domain.ParseLevel(c.Param("level"))
	if err != nil || level == domain.LevelAccount {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid level",
			"message":    fmt.Sprintf("level must be one of raw, ad, adset, campaign, day; got %q", c.Param("level")),
			"request_id": requestID,
		})
		return
	}

	query, err := parseViewQuery(c)
	if err != nil {
		badParams(c, requestID, err)
		return
	}
	query.Level = level

	result, err := h.reportService.View(ctx, query)
	if err != nil {
		h.storeFailure(ctx, c, requestID, "Failed to build view", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"level":      result.Level,
		"sort":       result.Sort,
		"total":      result.Total,
		"data":       result.Items,
		"request_id": requestID,
	})
}

func (h *HTTPHandlers) GetTimeline(c *gin.Context) {
	ctx, requestID := requestContext(c)

	rng, err := parseRange(c)
	if err != nil {
		badParams(c, requestID, err)
		return
	}

	days, err := h.reportService.Timeline(ctx, rng)
	if err != nil {
		h.storeFailure(ctx, c, requestID, "Failed to build timeline", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       days,
		"total":      len(days),
		"request_id": requestID,
	})
}

func (h *HTTPHandlers) GetOverview(c *gin.Context) {
	ctx, requestID := requestContext(c)

	rng, err := parseRange(c)
	if err != nil {
		badParams(c, requestID, err)
		return
	}

	overview, err := h.reportService.Overview(ctx, rng)
	if err != nil {
		h.storeFailure(ctx, c, requestID, "Failed to build overview", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       overview,
		"request_id": requestID,
	})
}

func (h *HTTPHandlers) GetStoreSummary(c *gin.Context) {
	ctx, requestID := requestContext(c)

	summary, err := h.reportService.StoreSummary(ctx)
	if err != nil {
		h.storeFailure(ctx, c, requestID, "Failed to summarize store", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       summary,
		"request_id": requestID,
	})
}

// ExportRun pushes the campaign roll-up for a date window to the sink.
func (h *HTTPHandlers) ExportRun(c *gin.Context) {
	ctx, requestID := requestContext(c)

	rng, err := parseRange(c)
	if err != nil {
		badParams(c, requestID, err)
		return
	}

	result, err := h.exportService.Export(ctx, rng)
	if err != nil {
		if errors.Is(err, usecase.ErrNothingToExport) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":      "Nothing to export",
				"message":    err.Error(),
				"request_id": requestID,
			})
			return
		}
		h.storeFailure(ctx, c, requestID, "Export failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Export completed successfully",
		"data":       result,
		"request_id": requestID,
	})
}

// GetAPIInfo returns API v1 information and available endpoints
func (h *HTTPHandlers) GetAPIInfo(c *gin.Context) {
	_, requestID := requestContext(c)

	rangeParams := gin.H{
		"start_date":   "Optional: first day, inclusive (YYYY-MM-DD)",
		"end_date":     "Optional: last day, inclusive (YYYY-MM-DD)",
		"campaign_ids": "Optional: comma separated campaign ids",
	}

	c.JSON(http.StatusOK, gin.H{
		"api_version": "v1",
		"service":     "adperf",
		"version":     "1.0.0",
		"description": "Ingests ad performance exports and serves roll-up views",
		"endpoints": gin.H{
			"ingest": gin.H{
				"path":        "/api/v1/ingest/upload",
				"method":      "POST",
				"description": "Upload a delimited export as multipart field 'file' or as the request body",
			},
			"views": gin.H{
				"path":        "/api/v1/views/:level",
				"method":      "GET",
				"description": "Roll-up at level raw, ad, adset, campaign or day",
				"parameters": gin.H{
					"start_date":        rangeParams["start_date"],
					"end_date":          rangeParams["end_date"],
					"campaign_ids":      rangeParams["campaign_ids"],
					"spend_min":         "Optional: minimum spend, inclusive",
					"roas_min":          "Optional: minimum ROAS, inclusive",
					"roas_max":          "Optional: maximum ROAS, inclusive",
					"sort":              "Optional: spend, results, roas or ctr (default: spend)",
					"direction":         "Optional: asc or desc (default: desc)",
					"toggle":            "Optional: sort key the user selected; combined with current_sort and current_direction",
					"current_sort":      "Optional: sort key currently applied",
					"current_direction": "Optional: direction currently applied",
				},
				"example": "/api/v1/views/campaign?start_date=2025-08-01&end_date=2025-08-31&sort=roas",
			},
			"timeline": gin.H{
				"path":       "/api/v1/timeline",
				"method":     "GET",
				"parameters": rangeParams,
			},
			"overview": gin.H{
				"path":       "/api/v1/overview",
				"method":     "GET",
				"parameters": rangeParams,
			},
			"store_summary": gin.H{
				"path":   "/api/v1/store/summary",
				"method": "GET",
			},
			"export": gin.H{
				"path":       "/api/v1/export/run",
				"method":     "POST",
				"parameters": rangeParams,
			},
		},
		"metrics": gin.H{
			"avg_roas":        "Spend-weighted purchase ROAS",
			"avg_ctr":         "Spend-weighted CTR (all)",
			"cost_per_result": "Total spend / total results",
		},
		"request_id": requestID,
	})
}

// HealthCheck returns the health status of the service
func (h *HTTPHandlers) HealthCheck(c *gin.Context) {
	_, requestID := requestContext(c)

	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"service":    "adperf",
		"version":    "1.0.0",
		"request_id": requestID,
	})
}

func (h *HTTPHandlers) storeFailure(ctx context.Context, c *gin.Context, requestID, msg string, err error) {
	h.logger.WithContext(ctx).WithError(err).Error(msg)

	status := http.StatusInternalServerError
	var unavailable *domain.StoreUnavailableError
	if errors.As(err, &unavailable) {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"error":      msg,
		"message":    err.Error(),
		"request_id": requestID,
	})
}

func badParams(c *gin.Context, requestID string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":      "Invalid parameters",
		"message":    err.Error(),
		"request_id": requestID,
	})
}

// requestContext returns the request context and the id set by the
// RequestID middleware.
func requestContext(c *gin.Context) (context.Context, string) {
	ctx := c.Request.Context()
	requestID := c.GetString("request_id")
	if requestID == "" {
		if id, ok := ctx.Value(logger.RequestIDKey).(string); ok {
			requestID = id
		}
	}
	return ctx, requestID
}

func uploadBody(c *gin.Context) (io.ReadCloser, string, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("missing multipart field \"file\": %w", err)
		}
		f, err := header.Open()
		if err != nil {
			return nil, "", fmt.Errorf("failed to open upload: %w", err)
		}
		return f, header.Filename, nil
	}
	if c.Request.Body == nil {
		return nil, "", errors.New("empty request body")
	}
	return c.Request.Body, "body", nil
}

// parseRange reads the store-side bounds shared by all read endpoints.
func parseRange(c *gin.Context) (domain.RangeFilter, error) {
	var rng domain.RangeFilter
	for _, p := range []struct {
		name string
		dst  *string
	}{
		{"start_date", &rng.StartDate},
		{"end_date", &rng.EndDate},
	} {
		v := c.Query(p.name)
		if v == "" {
			continue
		}
		if _, err := time.Parse(domain.DayLayout, v); err != nil {
			return rng, fmt.Errorf("%s must be in YYYY-MM-DD format", p.name)
		}
		*p.dst = v
	}
	if rng.StartDate != "" && rng.EndDate != "" && rng.StartDate > rng.EndDate {
		return rng, errors.New("start_date must not be after end_date")
	}
	if ids := c.Query("campaign_ids"); ids != "" {
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				rng.CampaignIDs = append(rng.CampaignIDs, id)
			}
		}
	}
	return rng, nil
}

// parseViewQuery turns query parameters into a view query. Date bounds become
// selection bounds; the report service also pushes them down to the store read.
func parseViewQuery(c *gin.Context) (usecase.ViewQuery, error) {
	var q usecase.ViewQuery

	rng, err := parseRange(c)
	if err != nil {
		return q, err
	}
	q.Range = domain.RangeFilter{CampaignIDs: rng.CampaignIDs}
	if rng.StartDate != "" {
		q.Filter.DateStart = &rng.StartDate
	}
	if rng.EndDate != "" {
		q.Filter.DateEnd = &rng.EndDate
	}

	for _, p := range []struct {
		name string
		dst  **float64
	}{
		{"spend_min", &q.Filter.SpendMin},
		{"roas_min", &q.Filter.RoasMin},
		{"roas_max", &q.Filter.RoasMax},
	} {
		v := c.Query(p.name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return q, fmt.Errorf("%s must be a number", p.name)
		}
		*p.dst = &f
	}

	q.Sort, err = parseSort(c)
	return q, err
}

func parseSort(c *gin.Context) (domain.Sort, error) {
	if toggle := c.Query("toggle"); toggle != "" {
		key, err := domain.ParseSortKey(toggle)
		if err != nil {
			return domain.Sort{}, err
		}
		current, err := sortFrom(c.Query("current_sort"), c.Query("current_direction"))
		if err != nil {
			return domain.Sort{}, err
		}
		return current.Toggle(key), nil
	}
	return sortFrom(c.Query("sort"), c.Query("direction"))
}

func sortFrom(key, direction string) (domain.Sort, error) {
	s := domain.DefaultSort()
	if key != "" {
		k, err := domain.ParseSortKey(key)
		if err != nil {
			return s, err
		}
		s.Key = k
	}
	if direction != "" {
		d, err := domain.ParseDirection(direction)
		if err != nil {
			return s, err
		}
		s.Direction = d
	}
	return s, nil
}
