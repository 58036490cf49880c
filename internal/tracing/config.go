package tracing

import (
	"github.com/rs/zerolog"
)

// Config selects the exporter the tracer bootstrap uses. When both
// endpoints are empty a stdout exporter is used; when Enabled is false the
// tracer is a noop.
type Config struct {
	OtelHTTPEndpoint string
	OtelGRPCEndpoint string
	Logger           *zerolog.Logger

	Enabled bool
}

func NewConfig(enabled bool, otelGRPCEndpoint, otelHTTPEndpoint string, logger *zerolog.Logger) *Config {
	return &Config{
		OtelGRPCEndpoint: otelGRPCEndpoint,
		OtelHTTPEndpoint: otelHTTPEndpoint,
		Logger:           logger,
		Enabled:          enabled,
	}
}
