package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("site", 150*time.Millisecond)
	pr.IncStageResult("site", ResultSuccess)
	pr.IncStageResult("site", ResultSuccess)
	pr.ObserveRunDuration("build", 2*time.Second)
	pr.IncRunOutcome("build", OutcomeSuccess)
	pr.SetFiguresCopied(12)
	pr.SetLastSuccess("build", time.Unix(1700000000, 0))

	assert.Equal(t, 2.0, readValue(t, pr.stageResults.WithLabelValues("site", "success")))
	assert.Equal(t, 12.0, readValue(t, pr.figuresCopied))
	assert.Equal(t, 1700000000.0, readValue(t, pr.lastSuccessSec.WithLabelValues("build")))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestPrometheusRecorder_WriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncRunOutcome("ci", OutcomeFailed)

	path := filepath.Join(t.TempDir(), "docpublish.prom")
	require.NoError(t, pr.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `docpublish_run_outcomes_total{kind="ci",outcome="failed"} 1`)
}

func TestHTTPHandler(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.SetFiguresCopied(3)

	rec := httptest.NewRecorder()
	HTTPHandler(pr.Registry()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "docpublish_figures_copied 3"))
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("x", time.Second)
	r.IncRunOutcome("build", OutcomeSkipped)
}

func readValue(t *testing.T, m prom.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}
