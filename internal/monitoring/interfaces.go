package monitoring

// Stats is a snapshot of a server's operation counters.
type Stats struct {
	Conns    int64
	Binds    int64
	Unbinds  int64
	Searches int64
}

type MonitorInterface interface {
	SetResponseTimeMetric(map[string]string, float64) error
	SetLDAPMetric(map[string]string, float64) error
}

type LDAPServerInterface interface {
	SetStats(bool)
	GetStats() Stats
}
