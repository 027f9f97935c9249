package cairngo

import (
	"log/slog"

	"github.com/cairndb/cairngo/codec"
)

// ResourceConfig bounds what the runtime bridge admits for one connection.
// Zero values are permissive.
type ResourceConfig struct {
	// MaxConcurrentCalls is the maximum number of engine calls in flight.
	// If 0, defaults to the number of CPUs.
	MaxConcurrentCalls int64

	// IngestLimitBytesPerSec throttles row ingestion throughput.
	// If 0, unlimited.
	IngestLimitBytesPerSec int64

	// MemoryLimitBytes bounds in-flight decoded payload bytes.
	// If 0, no admission control.
	MemoryLimitBytes int64
}

type options struct {
	codec            codec.Codec
	logger           *Logger
	metricsCollector MetricsCollector
	resources        ResourceConfig
}

// Option configures connect behavior.
type Option func(*options)

// WithCodec configures the codec used for wire documents (schemas, query
// configs, results).
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger configures structured logging for boundary operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := cairngo.NewJSONLogger(slog.LevelInfo)
//	conn, _ := cairngo.Connect(uri, cairngo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &cairngo.BasicMetricsCollector{}
//	conn, _ := cairngo.Connect(uri, cairngo.WithMetricsCollector(metrics))
//	// ... use conn ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithResourceConfig configures admission limits for this connection.
func WithResourceConfig(cfg ResourceConfig) Option {
	return func(o *options) {
		o.resources = cfg
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
