package monitoring

import (
	"testing"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

//go:generate mockgen -build_flags=--mod=mod -package monitoring -destination ./mock_interfaces.go -source=./interfaces.go

func TestNewLDAPMonitorWatcherEnablesStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockMonitor := NewMockMonitorInterface(ctrl)
	mockLDAPServer := NewMockLDAPServerInterface(ctrl)

	mockLDAPServer.EXPECT().SetStats(true).Times(1)
	mockLDAPServer.EXPECT().GetStats().AnyTimes().Return(Stats{})
	mockMonitor.EXPECT().SetLDAPMetric(gomock.Any(), gomock.Any()).AnyTimes()

	logger := zerolog.Nop()
	m := NewLDAPMonitorWatcher(mockLDAPServer, mockMonitor, &logger)
	m.Stop()
}

func TestStoreMetricsPublishesEveryCounter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockMonitor := NewMockMonitorInterface(ctrl)
	mockLDAPServer := NewMockLDAPServerInterface(ctrl)

	stats := Stats{Conns: 3, Binds: 2, Unbinds: 1, Searches: 7}

	mockLDAPServer.EXPECT().SetStats(true).Times(1)
	mockLDAPServer.EXPECT().GetStats().MinTimes(1).Return(stats)
	mockMonitor.EXPECT().SetLDAPMetric(map[string]string{"type": "conns"}, float64(3)).MinTimes(1)
	mockMonitor.EXPECT().SetLDAPMetric(map[string]string{"type": "binds"}, float64(2)).MinTimes(1)
	mockMonitor.EXPECT().SetLDAPMetric(map[string]string{"type": "unbinds"}, float64(1)).MinTimes(1)
	mockMonitor.EXPECT().SetLDAPMetric(map[string]string{"type": "searches"}, float64(7)).MinTimes(1)

	logger := zerolog.Nop()
	m := NewLDAPMonitorWatcher(mockLDAPServer, mockMonitor, &logger)
	defer m.Stop()

	m.storeMetrics()
}
