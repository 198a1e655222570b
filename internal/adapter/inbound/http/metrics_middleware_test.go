package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsMiddleware_RecordsRequestCountAndDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	handler := MetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/carteira-logistica", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	var sawCount, sawDuration bool
	for _, mf := range families {
		switch mf.GetName() {
		case "datagate_requests_total":
			for _, m := range mf.GetMetric() {
				if hasLabel(m, "method", "GET") && hasLabel(m, "status", "200") {
					sawCount = true
					if m.GetCounter().GetValue() != 1 {
						t.Errorf("requests_total = %v, want 1", m.GetCounter().GetValue())
					}
				}
			}
		case "datagate_request_duration_seconds":
			for _, m := range mf.GetMetric() {
				if hasLabel(m, "method", "GET") {
					sawDuration = true
					if m.GetHistogram().GetSampleCount() != 1 {
						t.Errorf("request_duration_seconds sample count = %d, want 1", m.GetHistogram().GetSampleCount())
					}
				}
			}
		}
	}
	if !sawCount {
		t.Error("expected a requests_total series for GET/200")
	}
	if !sawDuration {
		t.Error("expected a request_duration_seconds series for GET")
	}
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
