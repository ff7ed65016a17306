package prometheus

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sifan077/shortng/config"
	"github.com/sifan077/shortng/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.EditDecision(model.EditAllowed)
	m.EditDecision(model.EditDeniedAge)
	m.EditDecision(model.EditDeniedAge)
	m.LinkSaved(model.SourceSlack, false)
	m.ObserveShorten("web", "authorization")
	m.ObserveRequest("POST", "/shortng", 200, 12*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("allowed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("denied_age")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.saves.WithLabelValues("slack", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.responses.WithLabelValues("web", "authorization")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "/shortng", "200")))
}

func TestNewServer_ExposesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.EditDecision(model.EditDeniedPassword)

	srv := NewServer(config.PrometheusConfig{}, reg)
	assert.Equal(t, ":9090", srv.Addr)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `shortng_edit_decisions_total{decision="denied_password"} 1`)
}
