package monitoring

import (
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
)

func TestNewMonitorImplementsInterface(t *testing.T) {
	logger := zerolog.Nop()
	m := NewMonitor(&logger)

	i := reflect.TypeOf((*MonitorInterface)(nil)).Elem()

	if !reflect.TypeOf(m).Implements(i) {
		t.Fatal("Monitor doesn't implement MonitorInterface")
	}
}

func TestMonitorSetLDAPMetricSucceeds(t *testing.T) {
	logger := zerolog.Nop()
	m := NewMonitor(&logger)

	labels := map[string]string{"type": "conns"}
	if err := m.SetLDAPMetric(labels, float64(3)); err != nil {
		t.Fatal(err)
	}

	gauge := dto.Metric{}
	m.ldapMetric.With(labels).Write(&gauge)

	if gauge.GetGauge().GetValue() != float64(3) {
		t.Fatalf("gauge = %v, want 3", gauge.GetGauge().GetValue())
	}
}

func TestMonitorSetResponseTimeMetricSucceeds(t *testing.T) {
	logger := zerolog.Nop()
	m := NewMonitor(&logger)

	labels := map[string]string{"operation": "bind", "status": "0"}
	if err := m.SetResponseTimeMetric(labels, 0.25); err != nil {
		t.Fatal(err)
	}

	hist := dto.Metric{}
	m.responseTime.With(labels).(prometheus.Metric).Write(&hist)

	if hist.GetHistogram().GetSampleSum() != 0.25 {
		t.Fatalf("sample sum = %v, want 0.25", hist.GetHistogram().GetSampleSum())
	}
	if hist.GetHistogram().GetSampleCount() != 1 {
		t.Fatalf("sample count = %v, want 1", hist.GetHistogram().GetSampleCount())
	}

	for _, bucket := range hist.GetHistogram().GetBucket() {
		if bucket.GetUpperBound() < 0.25 && bucket.GetCumulativeCount() != 0 {
			t.Fatal("observation landed below its bucket")
		}
		if bucket.GetUpperBound() >= 0.25 && bucket.GetCumulativeCount() != 1 {
			t.Fatal("observation missing from a covering bucket")
		}
	}
}

func TestMonitorRejectsUninstantiatedMetrics(t *testing.T) {
	m := &Monitor{}

	if err := m.SetLDAPMetric(map[string]string{"type": "conns"}, 1); err == nil {
		t.Fatal("nil gauge should be reported")
	}
	if err := m.SetResponseTimeMetric(map[string]string{"operation": "bind", "status": "0"}, 1); err == nil {
		t.Fatal("nil histogram should be reported")
	}
}
