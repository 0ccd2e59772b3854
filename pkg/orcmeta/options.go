package orcmeta

import (
	"github.com/go-kit/log"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("pkg/orcmeta")

// Option is a functional option for Aggregate construction.
type Option func(*readerOptions)

type readerOptions struct {
	logger  log.Logger
	metrics *Metrics
	cfg     Config
}

func defaultOptions() readerOptions {
	o := readerOptions{logger: log.NewNopLogger()}
	o.cfg.applyDefaults()
	return o
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l log.Logger) Option {
	return func(o *readerOptions) { o.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(o *readerOptions) { o.metrics = m }
}

// WithConfig replaces the config. Zero fields take their defaults.
func WithConfig(cfg Config) Option {
	return func(o *readerOptions) {
		o.cfg = cfg
		o.cfg.applyDefaults()
	}
}
