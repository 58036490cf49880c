package assets

import (
	"net/http"

	"github.com/rs/zerolog"
)

// API serves the embedded status console: the index page at / and the
// static js/css under /assets/.
type API struct {
	fileServer http.Handler

	logger zerolog.Logger
}

func (a *API) RegisterEndpoints(router *http.ServeMux) {
	router.HandleFunc("/", a.console)
	router.Handle("/assets/", http.StripPrefix("/assets/", a.fileServer))
}

func (a *API) console(w http.ResponseWriter, r *http.Request) {
	a.logger.Info().Str("path", r.URL.Path).Msg("Console")

	// Everything but the index lives under /assets/.
	if r.URL.Path != "/" {
		a.logger.Info().Str("path", r.URL.Path).Msg("Console 404")
		http.NotFound(w, r)
		return
	}

	a.fileServer.ServeHTTP(w, r)
}

func NewAPI(logger zerolog.Logger) *API {
	a := new(API)

	a.logger = logger
	a.fileServer = http.FileServer(http.FS(Content))
	return a
}
