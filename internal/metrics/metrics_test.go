package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

// counterValue sums every sample of a gathered counter family matching labelValue.
func counterValue(t *testing.T, reg *prometheus.Registry, name, labelValue string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelValue != "" {
				matched := false
				for _, lp := range m.GetLabel() {
					if lp.GetValue() == labelValue {
						matched = true
					}
				}
				if !matched {
					continue
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestObservers(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	before := counterValue(t, reg, "mirador_netlog_analyses_total", OutcomeError)
	ObserveAnalysis(-time.Second, "boom")
	ObserveAnalysis(time.Second, OutcomeError)
	assert.Equal(t, before+1, counterValue(t, reg, "mirador_netlog_analyses_total", OutcomeError))

	cached := counterValue(t, reg, "mirador_netlog_dashboard_requests_total", OutcomeCached)
	ObserveDashboard(OutcomeCached)
	assert.Equal(t, cached+1, counterValue(t, reg, "mirador_netlog_dashboard_requests_total", OutcomeCached))

	abnormal := counterValue(t, reg, "mirador_netlog_rows_classified_total", "abnormal")
	skipped := counterValue(t, reg, "mirador_netlog_rows_skipped_total", "")
	ObserveRows(map[string]int{"abnormal": 3, "normal": 2}, 1)
	assert.Equal(t, abnormal+3, counterValue(t, reg, "mirador_netlog_rows_classified_total", "abnormal"))
	assert.Equal(t, skipped+1, counterValue(t, reg, "mirador_netlog_rows_skipped_total", ""))
}
