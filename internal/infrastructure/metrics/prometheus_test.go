package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegisterOnSeparateRegistries(t *testing.T) {
	for i := 0; i < 2; i++ {
		reg := NewRegistry()
		assert.NotPanics(t, func() {
			NewHandlerMetrics(reg)
			NewServiceMetrics(reg)
			NewRepositoryMetrics(reg)
			NewMessagingMetrics(reg)
			NewSweepMetrics(reg)
		})
	}
}

func TestHTTPHandlerServesOwnRegistry(t *testing.T) {
	reg := NewRegistry()
	hm := NewHandlerMetrics(reg)
	mm := NewMessagingMetrics(reg)

	mm.PublishCount.WithLabelValues("listing-status-changed", "success").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.PublishCount.WithLabelValues("listing-status-changed", "success")))

	srv := httptest.NewServer(hm.HTTPHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `messaging_events_published_total{status="success",subject="listing-status-changed"} 1`)
}

func TestInitTracerWithoutEndpoint(t *testing.T) {
	tp, err := InitTracer("listing-service", "test", "dev", "")
	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.NoError(t, tp.Shutdown(context.Background()))
}
