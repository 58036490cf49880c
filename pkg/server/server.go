// Package server implements the LDAP connection and operation state
// machine: BER framing against the wire, per-connection sequential
// dispatch through the interceptor chain into the entry store, SASL bind
// sessions and connection-level signals (abandon, unbind).
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ofiterev/ldapsdk-inmem/internal/monitoring"
	"github.com/ofiterev/ldapsdk-inmem/internal/tracing"
	"github.com/ofiterev/ldapsdk-inmem/pkg/config"
	"github.com/ofiterev/ldapsdk-inmem/pkg/interceptor"
	"github.com/ofiterev/ldapsdk-inmem/pkg/ldap"
	"github.com/ofiterev/ldapsdk-inmem/pkg/stats"
	"github.com/ofiterev/ldapsdk-inmem/pkg/store"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("ldap: server closed")

// Server accepts LDAP connections and processes their operations.
type Server struct {
	log     zerolog.Logger
	c       *config.Config
	store   *store.Store
	chain   *interceptor.Chain
	tracer  *tracing.Tracer
	tlsCfg  *tls.Config
	baseCtx context.Context

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	conns     map[*conn]struct{}
	closed    bool

	nextConnID atomic.Uint64
	stats      serverStats
	trackStats atomic.Bool
}

type serverStats struct {
	conns    atomic.Int64
	binds    atomic.Int64
	unbinds  atomic.Int64
	searches atomic.Int64
}

// NewServer assembles a server from options. Config and Store are
// required; Chain and Tracer fall back to no-ops.
func NewServer(opts ...Option) (*Server, error) {
	options := newOptions(opts...)

	if options.Config == nil {
		return nil, &ldap.ConfigurationError{Message: "server requires a config"}
	}
	if options.Store == nil {
		return nil, &ldap.ConfigurationError{Message: "server requires an entry store"}
	}
	if options.Chain == nil {
		logger := options.Logger
		options.Chain = interceptor.NewChain(&logger)
	}
	if options.Tracer == nil {
		logger := options.Logger
		options.Tracer = tracing.NewTracer(tracing.NewConfig(false, "", "", &logger))
	}
	if options.Context == nil {
		options.Context = context.Background()
	}

	s := &Server{
		log:       options.Logger,
		c:         options.Config,
		store:     options.Store,
		chain:     options.Chain,
		tracer:    options.Tracer,
		tlsCfg:    options.TLSConfig,
		baseCtx:   options.Context,
		listeners: map[net.Listener]struct{}{},
		conns:     map[*conn]struct{}{},
	}
	return s, nil
}

// ListenAndServe listens on the configured LDAP address. The interceptor
// registration list freezes when serving begins.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.c.LDAP.Listen)
	if err != nil {
		return err
	}
	s.log.Info().Str("address", s.c.LDAP.Listen).Msg("LDAP server listening")
	return s.Serve(ln)
}

// ListenAndServeTLS listens on the configured LDAPS address.
func (s *Server) ListenAndServeTLS() error {
	if s.tlsCfg == nil {
		return &ldap.ConfigurationError{Message: "LDAPS requires a TLS config"}
	}
	ln, err := tls.Listen("tcp", s.c.LDAPS.Listen, s.tlsCfg)
	if err != nil {
		return err
	}
	s.log.Info().Str("address", s.c.LDAPS.Listen).Msg("LDAPS server listening")
	return s.Serve(ln)
}

// Serve accepts connections from ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.chain.Freeze()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listeners[ln] = struct{}{}
	s.mu.Unlock()

	for {
		nc, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}

		c := s.newConn(nc)
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			nc.Close()
			return ErrServerClosed
		}
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.addStat(&s.stats.conns, 1)
		stats.Server.Add("connections", 1)
		go c.serve()
	}
}

// Shutdown closes the listeners and waits for in-flight connections to
// drain or ctx to expire, whichever comes first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for ln := range s.listeners {
		ln.Close()
	}
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, c := range conns {
			c.wait()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		for _, c := range conns {
			c.close()
		}
		return ctx.Err()
	}
}

func (s *Server) removeConn(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.addStat(&s.stats.conns, -1)
}

func (s *Server) addStat(v *atomic.Int64, delta int64) {
	if s.trackStats.Load() {
		v.Add(delta)
	}
}

// SetStats enables stats aggregation for the monitoring watcher.
func (s *Server) SetStats(enable bool) {
	s.trackStats.Store(enable)
}

// GetStats snapshots the server counters.
func (s *Server) GetStats() monitoring.Stats {
	return monitoring.Stats{
		Conns:    s.stats.conns.Load(),
		Binds:    s.stats.binds.Load(),
		Unbinds:  s.stats.unbinds.Load(),
		Searches: s.stats.searches.Load(),
	}
}
