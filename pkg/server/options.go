package server

import (
	"context"
	"crypto/tls"

	"github.com/rs/zerolog"

	"github.com/ofiterev/ldapsdk-inmem/internal/tracing"
	"github.com/ofiterev/ldapsdk-inmem/pkg/config"
	"github.com/ofiterev/ldapsdk-inmem/pkg/interceptor"
	"github.com/ofiterev/ldapsdk-inmem/pkg/store"
)

// Option defines a single option function.
type Option func(o *Options)

// Options defines the available options for this package.
type Options struct {
	Logger    zerolog.Logger
	Config    *config.Config
	Store     *store.Store
	Chain     *interceptor.Chain
	Tracer    *tracing.Tracer
	TLSConfig *tls.Config
	Context   context.Context
}

// newOptions initializes the available default options.
func newOptions(opts ...Option) Options {
	opt := Options{}

	for _, o := range opts {
		o(&opt)
	}

	return opt
}

// Logger provides a function to set the logger option.
func Logger(val zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = val
	}
}

// Config provides a function to set the config option.
func Config(val *config.Config) Option {
	return func(o *Options) {
		o.Config = val
	}
}

// Store provides a function to set the entry store option.
func Store(val *store.Store) Option {
	return func(o *Options) {
		o.Store = val
	}
}

// Chain provides a function to set the interceptor chain option.
func Chain(val *interceptor.Chain) Option {
	return func(o *Options) {
		o.Chain = val
	}
}

// Tracer provides a function to set the tracer option.
func Tracer(val *tracing.Tracer) Option {
	return func(o *Options) {
		o.Tracer = val
	}
}

// TLSConfig provides a function to set the TLS config option.
func TLSConfig(val *tls.Config) Option {
	return func(o *Options) {
		o.TLSConfig = val
	}
}

// Context provides a function to set the context option.
func Context(val context.Context) Option {
	return func(o *Options) {
		o.Context = val
	}
}
