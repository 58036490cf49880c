package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/arl/statsviz"
	docopt "github.com/docopt/docopt-go"
	"github.com/fsnotify/fsnotify"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog"

	"github.com/ofiterev/ldapsdk-inmem/internal/monitoring"
	_tls "github.com/ofiterev/ldapsdk-inmem/internal/tls"
	"github.com/ofiterev/ldapsdk-inmem/internal/toml"
	"github.com/ofiterev/ldapsdk-inmem/internal/tracing"
	"github.com/ofiterev/ldapsdk-inmem/internal/version"
	"github.com/ofiterev/ldapsdk-inmem/pkg/config"
	"github.com/ofiterev/ldapsdk-inmem/pkg/frontend"
	"github.com/ofiterev/ldapsdk-inmem/pkg/interceptor"
	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
	"github.com/ofiterev/ldapsdk-inmem/pkg/logging"
	"github.com/ofiterev/ldapsdk-inmem/pkg/matching"
	"github.com/ofiterev/ldapsdk-inmem/pkg/server"
	"github.com/ofiterev/ldapsdk-inmem/pkg/stats"
	"github.com/ofiterev/ldapsdk-inmem/pkg/store"
)

const programName = "ldapsdk"

var usage = `ldapsdk: an in-memory LDAP server

Usage:
  ldapsdk [options] -c <file>
  ldapsdk -h --help
  ldapsdk --version

Options:
  -c, --config <file>       Config file or directory of config files.
  --ldap <address>          Listen address for the LDAP server.
  --ldaps <address>         Listen address for the LDAPS server.
  --ldaps-cert <cert-file>  Path to cert file for the LDAPS server.
  --ldaps-key <key-file>    Path to key file for the LDAPS server.
  --check-config            Check configuration file and exit.
  -h, --help                Show this screen.
  --version                 Show version.
`

var (
	log  zerolog.Logger
	args map[string]interface{}

	activeConfig = &config.Config{}
)

func main() {
	if err := parseArgs(); err != nil {
		fmt.Println("Could not parse command-line arguments")
		fmt.Println(err)
		os.Exit(1)
	}
	checkConfig := false
	if cc, ok := args["--check-config"]; ok {
		if cc == true {
			checkConfig = true
		}
	}

	cfg, err := toml.NewConfig(getConfigLocation(), args)

	if err != nil {
		fmt.Println("Configuration file error")
		fmt.Println(err)
		os.Exit(1)
	}

	if checkConfig {
		fmt.Println("Config file seems ok")
		return
	}

	if err := copier.Copy(activeConfig, cfg); err != nil {
		log.Info().Err(err).Msg("Could not save loaded config")
	}

	log = logging.InitLogging(activeConfig.Debug, activeConfig.Syslog, activeConfig.StructuredLog)

	if cfg.Debug {
		log.Info().Msg("Debugging enabled")
	}
	if cfg.Syslog {
		log.Info().Msg("Syslog enabled")
	}

	log.Info().Msg("AP start")

	startService()
}

func startService() {
	// stats
	stats.General.Set("version", stats.Stringer(version.Version))

	// web API
	if activeConfig.API.Enabled {
		log.Info().Msg("Web API enabled")

		if activeConfig.API.Internals {
			statsviz.Register(
				http.DefaultServeMux,
				statsviz.Root("/internals"),
				statsviz.SendFrequency(1000*time.Millisecond),
			)
		}

		go frontend.RunAPI(
			frontend.Logger(log),
			frontend.Config(&activeConfig.API),
		)
	}

	monitor := monitoring.NewMonitor(&log)
	tracer := tracing.NewTracer(
		tracing.NewConfig(
			activeConfig.Tracing.Enabled,
			activeConfig.Tracing.GRPCEndpoint,
			activeConfig.Tracing.HTTPEndpoint,
			&log,
		),
	)

	st, err := buildStore(activeConfig)
	if err != nil {
		log.Error().Err(err).Msg("could not build entry store")
		os.Exit(1)
	}

	chain := interceptor.NewChain(&log)
	if err := chain.Register(
		interceptor.NewTracingInterceptor(tracer),
		interceptor.NewMetricsRecorder(monitor),
		interceptor.NewTOTPGuard(st),
		interceptor.NewAccessLogger(&log),
	); err != nil {
		log.Error().Err(err).Msg("could not register interceptors")
		os.Exit(1)
	}

	var ldapsTLSConfig *tls.Config
	if c := activeConfig.LDAPS; c.Enabled {
		ldapsTLSConfig, err = _tls.MakeTLS([]byte(c.Cert), []byte(c.Key))

		if err != nil {
			log.Error().Err(err).Msg("unable to configure TLS for LDAPS")
			os.Exit(1)
		}
	}

	s, err := server.NewServer(
		server.Logger(log),
		server.Config(activeConfig),
		server.Store(st),
		server.Chain(chain),
		server.Tracer(tracer),
		server.TLSConfig(ldapsTLSConfig),
	)

	if err != nil {
		log.Error().Err(err).Msg("could not create server")
		os.Exit(1)
	}

	monitoring.NewLDAPMonitorWatcher(s, monitor, &log)

	startConfigWatcher(st)

	if activeConfig.LDAP.Enabled {
		go func() {
			if err := s.ListenAndServe(); err != nil && err != server.ErrServerClosed {
				log.Error().Err(err).Msg("could not start LDAP server")
				os.Exit(1)
			}
		}()
	}

	if activeConfig.LDAPS.Enabled {
		go func() {
			if err := s.ListenAndServeTLS(); err != nil && err != server.ErrServerClosed {
				log.Error().Err(err).Msg("could not start LDAPS server")
				os.Exit(1)
			}
		}()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Block until we receive our signal.
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Doesn't block if no connections, but will otherwise wait
	// until the timeout deadline.
	s.Shutdown(ctx)

	log.Info().Msg("AP exit")
	os.Exit(0)
}

// buildStore assembles the schema from the configured matching rule
// overrides and seeds the store with the configured entries.
func buildStore(cfg *config.Config) (*store.Store, error) {
	schema := store.DefaultSchema()
	for _, r := range cfg.Rules {
		rule, err := matching.Lookup(r.Matching)
		if err != nil {
			return nil, err
		}
		schema[strings.ToLower(r.Attribute)] = rule
	}

	st := store.New(schema)
	if err := seedStore(st, cfg); err != nil {
		return nil, err
	}
	return st, nil
}

// seedStore adds the configured entries, parents before children. Entries
// already present are left alone so a config reload only picks up new ones.
func seedStore(st *store.Store, cfg *config.Config) error {
	entries := make([]config.Entry, len(cfg.Entries))
	copy(entries, cfg.Entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return strings.Count(entries[i].DN, ",") < strings.Count(entries[j].DN, ",")
	})

	for _, e := range entries {
		if _, ok := st.Get(e.DN); ok {
			continue
		}
		req := &ldap.AddRequest{DN: e.DN}
		for attr, values := range e.Attributes {
			a := ldap.Attribute{Type: attr}
			for _, v := range values {
				a.Values = append(a.Values, []byte(v))
			}
			req.Attributes = append(req.Attributes, a)
		}
		if err := st.Add(context.Background(), req); err != nil {
			return fmt.Errorf("seed entry %s: %w", e.DN, err)
		}
		stats.Store.Add("seeded", 1)
	}
	return nil
}

func startConfigWatcher(st *store.Store) {
	configFileLocation := getConfigLocation()
	if !activeConfig.WatchConfig {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error().Err(err).Msg("could not start config-watcher")
		return
	}

	ticker := time.NewTicker(1 * time.Second)
	go func() {
		isChanged, isRemoved := false, false
		for {
			select {
			case event := <-watcher.Events:
				log.Info().Str("e", event.Op.String()).Msg("watcher got event")
				if event.Op&fsnotify.Write == fsnotify.Write {
					isChanged = true
				} else if event.Op&fsnotify.Remove == fsnotify.Remove { // vim edit file with rename/remove
					isChanged, isRemoved = true, true
				} else if event.Op&fsnotify.Create == fsnotify.Create { // only when watching a directory
					isChanged = true
				}
			case err := <-watcher.Errors:
				log.Error().Err(err).Msg("watcher error")
			case <-ticker.C:
				// wakeup, try finding removed config
			}
			if _, err := os.Stat(configFileLocation); !os.IsNotExist(err) && (isRemoved || isChanged) {
				if isRemoved {
					log.Info().Str("file", configFileLocation).Msg("rewatching config")
					watcher.Add(configFileLocation) // overwrite
					isChanged, isRemoved = true, false
				}
				if isChanged {
					cfg, err := toml.NewConfig(configFileLocation, args)

					if err != nil {
						log.Info().Err(err).Msg("Could not reload config. Holding on to old config")
					} else {
						log.Info().Msg("Config was reloaded")

						if err := copier.Copy(activeConfig, cfg); err != nil {
							log.Info().Err(err).Msg("Could not save reloaded config. Holding on to old config")
						}
						if err := seedStore(st, activeConfig); err != nil {
							log.Info().Err(err).Msg("Could not seed new entries from reloaded config")
						}
					}
					isChanged = false
				}
			}
		}
	}()

	watcher.Add(configFileLocation)
}

func parseArgs() error {
	var err error

	if args, err = docopt.Parse(usage, nil, true, version.GetVersion(), false); err != nil {
		return err
	}

	return nil
}

func getConfigLocation() string {
	return args["--config"].(string)
}
