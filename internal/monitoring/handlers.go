package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// API exposes the prometheus scrape endpoint on the web frontend.
type API struct {
	metrics http.Handler

	logger zerolog.Logger
}

func (a *API) RegisterEndpoints(router *http.ServeMux) {
	a.logger.Debug().Str("endpoint", "/metrics").Msg("registering monitoring endpoint")
	router.Handle("/metrics", a.metrics)
}

func NewAPI(logger zerolog.Logger) *API {
	a := new(API)

	a.logger = logger
	a.metrics = promhttp.Handler()

	return a
}
