package infrastructure

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adperf/internal/domain"
	"adperf/pkg/logger"
	"adperf/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(url, secret string) *SinkClient {
	return NewSinkClient(url, secret, 5*time.Second, 100, logger.Discard(), metrics.NewWithRegistry(prometheus.NewRegistry()))
}

func TestSinkClient_Export(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC)
	window := domain.RangeFilter{StartDate: "2025-08-01", EndDate: "2025-08-19"}
	data := []domain.AggregateSummary{{Level: domain.LevelCampaign, CampaignID: "C1", TotalSpend: 42}}

	t.Run("posts signed payload", func(t *testing.T) {
		var gotBody []byte
		var gotSignature string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			gotSignature = r.Header.Get("X-Signature")
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		err := newTestSink(server.URL, "s3cret").Export(ctx, data, window, at)
		require.NoError(t, err)

		assert.Equal(t, Sign("s3cret", gotBody), gotSignature)

		var payload exportPayload
		require.NoError(t, json.Unmarshal(gotBody, &payload))
		assert.Equal(t, "2025-08-20T12:00:00Z", payload.GeneratedAt)
		assert.Equal(t, window, payload.Window)
		require.Len(t, payload.Summaries, 1)
		assert.Equal(t, "C1", payload.Summaries[0].CampaignID)
	})

	t.Run("no secret means no signature", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.Header.Get("X-Signature"))
		}))
		defer server.Close()

		require.NoError(t, newTestSink(server.URL, "").Export(ctx, data, window, at))
	})

	t.Run("non 2xx is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		err := newTestSink(server.URL, "").Export(ctx, data, window, at)
		assert.ErrorContains(t, err, "502")
	})

	t.Run("missing URL", func(t *testing.T) {
		err := newTestSink("", "").Export(ctx, data, window, at)
		assert.ErrorContains(t, err, "not configured")
	})
}

func TestSign(t *testing.T) {
	// HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	assert.Equal(t,
		"f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8",
		Sign("key", []byte("The quick brown fox jumps over the lazy dog")),
	)
}
