package monitoring

import (
	"time"

	"github.com/rs/zerolog"
)

const syncInterval = 15 * time.Second

// LDAPMonitorWatcher periodically copies the server's connection counters
// into the prometheus gauge so scrapes see current totals.
type LDAPMonitorWatcher struct {
	syncTicker *time.Ticker

	ldap LDAPServerInterface

	monitor MonitorInterface
	logger  *zerolog.Logger
}

func (m *LDAPMonitorWatcher) sync() {
	for tick := range m.syncTicker.C {
		m.logger.Debug().Time("value", tick).Msg("Tick")
		m.storeMetrics()
	}
}

// Stop halts the periodic sync. Metrics already published stay visible.
func (m *LDAPMonitorWatcher) Stop() {
	m.syncTicker.Stop()
}

func (m *LDAPMonitorWatcher) storeMetrics() {
	stats := m.ldap.GetStats()

	counters := map[string]int64{
		"conns":    stats.Conns,
		"binds":    stats.Binds,
		"unbinds":  stats.Unbinds,
		"searches": stats.Searches,
	}
	for kind, value := range counters {
		if err := m.monitor.SetLDAPMetric(map[string]string{"type": kind}, float64(value)); err != nil {
			m.logger.Error().Err(err).Str("type", kind).Msg("failed to set metric")
		}
	}
}

func NewLDAPMonitorWatcher(ldap LDAPServerInterface, monitor MonitorInterface, logger *zerolog.Logger) *LDAPMonitorWatcher {
	m := new(LDAPMonitorWatcher)

	m.syncTicker = time.NewTicker(syncInterval)
	m.ldap = ldap
	m.monitor = monitor
	m.logger = logger

	m.ldap.SetStats(true)

	go m.sync()

	return m
}
