package solentbase

import (
	"log/slog"

	"github.com/RogerMarsh/solentware-base-sub000/model"
)

type fileSpec struct {
	name   string
	fields []string
}

type options struct {
	geometry  model.Geometry
	cacheSize int
	metrics   MetricsCollector
	logger    *Logger
	files     []fileSpec
}

// Option configures Open.
//
// Options exist to keep the constructor surface flat: geometry, file
// declarations and observability all arrive the same way.
type Option func(*options)

// WithGeometry sets the segment geometry shared by every file.
//
// The default is model.DefaultGeometry(). Tests commonly shrink it so
// representation conversions happen within a handful of records:
//
//	db, _ := solentbase.Open(st,
//	    solentbase.WithGeometry(model.Geometry{SegmentSize: 16, ConversionLimit: 4}),
//	    solentbase.WithFile("games", "white", "black"),
//	)
func WithGeometry(g model.Geometry) Option {
	return func(o *options) {
		o.geometry = g
	}
}

// WithSegmentSize sets the record-slot count per segment, keeping the
// configured conversion limit.
func WithSegmentSize(n int) Option {
	return func(o *options) {
		o.geometry.SegmentSize = n
	}
}

// WithConversionLimit sets the member count above which a segment is stored
// as a bitmap rather than a list.
func WithConversionLimit(n int) Option {
	return func(o *options) {
		o.geometry.ConversionLimit = n
	}
}

// WithFile declares a file: one primary table of appended records plus one
// secondary index per field. Every file named here gets its tables created
// at Open so read-only transactions work from the start.
//
// Declaring the same file twice is a configuration error.
func WithFile(name string, fields ...string) Option {
	return func(o *options) {
		o.files = append(o.files, fileSpec{name: name, fields: fields})
	}
}

// WithCacheSize sets the per-index segment cache capacity. Zero keeps the
// index default.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &solentbase.BasicMetricsCollector{}
//	db, _ := solentbase.Open(st, solentbase.WithMetricsCollector(metrics), ...)
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Puts: %d, Bitmap conversions: %d\n", stats.PutCount, stats.ListToBitmap)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metrics = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
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

func applyOptions(optFns []Option) options {
	o := options{
		geometry: model.DefaultGeometry(),
		metrics:  NoopMetricsCollector{},
		logger:   NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metrics == nil {
		o.metrics = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
