package interceptor

import (
	"context"
	"fmt"
	"time"

	"github.com/ofiterev/ldapsdk-inmem/internal/monitoring"
)

const startedAtKey = "metrics.startedAt"

// MetricsRecorder feeds per-operation counts and response times into the
// prometheus monitor.
type MetricsRecorder struct {
	monitor monitoring.MonitorInterface
}

func NewMetricsRecorder(monitor monitoring.MonitorInterface) *MetricsRecorder {
	return &MetricsRecorder{monitor: monitor}
}

func (m *MetricsRecorder) Name() string { return "metrics" }

func (m *MetricsRecorder) PreOperation(ctx context.Context, op *Operation) error {
	op.Set(startedAtKey, time.Now())
	return nil
}

func (m *MetricsRecorder) PostOperation(ctx context.Context, op *Operation) error {
	started, ok := op.Get(startedAtKey)
	if !ok {
		return nil
	}
	elapsed := time.Since(started.(time.Time)).Seconds()
	return m.monitor.SetResponseTimeMetric(map[string]string{
		"operation": op.Kind().String(),
		"status":    fmt.Sprintf("%d", int(op.Result().Code)),
	}, elapsed)
}
