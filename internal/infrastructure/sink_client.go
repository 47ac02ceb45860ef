package infrastructure

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"adperf/internal/domain"
	"adperf/pkg/logger"
	"adperf/pkg/metrics"

	"golang.org/x/time/rate"
)

// body posted to the sink
type exportPayload struct {
	GeneratedAt string                    `json:"generated_at"`
	Window      domain.RangeFilter        `json:"window"`
	Summaries   []domain.AggregateSummary `json:"summaries"`
}

// implements domain.ExportClient against an HTTP sink
type SinkClient struct {
	client      *http.Client
	sinkURL     string
	sinkSecret  string
	logger      *logger.Logger
	metrics     *metrics.Metrics
	rateLimiter *rate.Limiter
}

func NewSinkClient(sinkURL, sinkSecret string, timeout time.Duration, perSecond int, logger *logger.Logger, metrics *metrics.Metrics) *SinkClient {
	if perSecond <= 0 {
		perSecond = 10
	}
	return &SinkClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		sinkURL:     sinkURL,
		sinkSecret:  sinkSecret,
		logger:      logger,
		metrics:     metrics,
		rateLimiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

// Export posts summaries for window to the sink, signed when a secret is set.
func (c *SinkClient) Export(ctx context.Context, data []domain.AggregateSummary, window domain.RangeFilter, at time.Time) error {
	if c.sinkURL == "" {
		return fmt.Errorf("sink URL not configured")
	}

	start := time.Now()

	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.metrics.RecordExternalAPIFailure("sink", "rate_limit")
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	payload, err := json.Marshal(exportPayload{
		GeneratedAt: at.UTC().Format(time.RFC3339),
		Window:      window,
		Summaries:   data,
	})
	if err != nil {
		c.metrics.RecordExternalAPIFailure("sink", "json_marshal")
		return fmt.Errorf("failed to marshal export data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sinkURL, bytes.NewReader(payload))
	if err != nil {
		c.metrics.RecordExternalAPIFailure("sink", "request_creation")
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.sinkSecret != "" {
		req.Header.Set("X-Signature", Sign(c.sinkSecret, payload))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("sink", "network_error")
		return fmt.Errorf("failed to export data: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.RecordExternalAPICall("sink", fmt.Sprintf("error_%d", resp.StatusCode), duration)
		return fmt.Errorf("sink API returned status %d", resp.StatusCode)
	}

	c.metrics.RecordExternalAPICall("sink", "success", duration)

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"url":        c.sinkURL,
		"duration":   duration,
		"summaries":  len(data),
		"start_date": window.StartDate,
		"end_date":   window.EndDate,
	}).Info("Exported summaries")

	return nil
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
