package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// TestMustRegister verifies every collector is exported under the namespace.
func TestMustRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegister(reg)

	CyclesTotal.WithLabelValues(OutcomePublished).Inc()
	TriggersRejected.Inc()
	FeedRequestDuration.WithLabelValues("success").Observe(0.2)
	DetectionsTotal.WithLabelValues("happy").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) != 4 {
		t.Fatalf("expected 4 metric families, got %d", len(families))
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), namespace+"_") {
			t.Errorf("metric %s lacks the %s prefix", mf.GetName(), namespace)
		}
		if mf.GetName() == namespace+"_triggers_rejected_total" && mf.GetMetric()[0].GetCounter().GetValue() < 1 {
			t.Errorf("triggers_rejected_total not incremented")
		}
	}
}
