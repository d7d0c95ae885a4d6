package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/internal/auth/metrics"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
)

func TestObserveAuth(t *testing.T) {
	m := metrics.New()

	m.ObserveAuth("DPoP", "")
	m.ObserveAuth("DPoP", jwtx.KindReplayedProof)
	m.ObserveAuth("Bearer", jwtx.KindExpiredToken)
	m.ObserveAuth("", jwtx.KindMissingScheme)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	series := map[string]int{}
	for _, mf := range families {
		series[mf.GetName()] = len(mf.GetMetric())
	}
	require.Equal(t, 4, series["gatehouse_auth_requests_total"])
	require.Equal(t, 1, series["gatehouse_dpop_replays_total"])

	body := scrape(t, m)
	require.Contains(t, body, `gatehouse_auth_requests_total{outcome="missing_scheme",scheme="none"} 1`)
	require.Contains(t, body, `gatehouse_dpop_replays_total 1`)
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.ObserveTokenOp("login", "", time.Now())
	m.ObserveTokenOp("refresh", "token_not_found", time.Now())
	m.ObserveSweep(3)

	body := scrape(t, m)
	require.Contains(t, body, `gatehouse_token_operations_total{operation="login",outcome="ok"} 1`)
	require.Contains(t, body, `gatehouse_token_operations_total{operation="refresh",outcome="token_not_found"} 1`)
	require.Contains(t, body, `gatehouse_cache_swept_entries_total 3`)
	require.Contains(t, body, "go_goroutines")
}

func TestNew_Independent(t *testing.T) {
	require.NotPanics(t, func() {
		metrics.New()
		metrics.New()
	})
}
