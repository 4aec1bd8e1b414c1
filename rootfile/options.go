package rootfile

import (
	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/forestrie/go-rootio/compression"
	"github.com/forestrie/go-rootio/records"
	"github.com/forestrie/go-rootio/workers"
)

const (
	// DefaultReadStep is the size of the first read of a file and the minimum
	// size of each readahead growth.
	DefaultReadStep = 512
	// DefaultPoolSize is used when no pool or size is given
	DefaultPoolSize = 1
)

// Options configures a File. Options are copied per file, nothing here is
// shared unless the caller passes the same registry, pool or metrics.
type Options struct {
	readStep  int64
	poolSize  int
	pool      *workers.Pool
	classes   *records.ClassRegistry
	codecs    *compression.Registry
	metrics   *Metrics
	log       logger.Logger
	sizeCheck bool
}

type Option func(*Options)

// NewOptions applies opts over the defaults
func NewOptions(opts ...Option) Options {
	o := Options{
		readStep: DefaultReadStep,
		poolSize: DefaultPoolSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.readStep <= 0 {
		o.readStep = DefaultReadStep
	}
	if o.pool == nil {
		o.pool = workers.NewPool(o.poolSize)
	}
	if o.classes == nil {
		o.classes = records.NewClassRegistry()
	}
	if o.codecs == nil {
		o.codecs = compression.NewRegistry()
	}
	if o.log == nil {
		o.log = logger.Sugar.WithServiceName("rootfile")
	}
	return o
}

// WithReadStep sets the readahead step used while opening a file
func WithReadStep(n int64) Option {
	return func(o *Options) {
		o.readStep = n
	}
}

// WithPoolSize sizes the decompression pool the file creates for itself. It
// is ignored when WithDecompressPool is also given.
func WithPoolSize(n int) Option {
	return func(o *Options) {
		o.poolSize = n
	}
}

// WithDecompressPool shares a pool between files
func WithDecompressPool(p *workers.Pool) Option {
	return func(o *Options) {
		o.pool = p
	}
}

func WithClassRegistry(r *records.ClassRegistry) Option {
	return func(o *Options) {
		o.classes = r
	}
}

func WithCodecRegistry(r *compression.Registry) Option {
	return func(o *Options) {
		o.codecs = r
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *Options) {
		o.metrics = m
	}
}

func WithLogger(log logger.Logger) Option {
	return func(o *Options) {
		o.log = log
	}
}

// WithSizeCheck makes Open stat the source and reject files whose header
// records an end offset beyond the size of the source.
func WithSizeCheck() Option {
	return func(o *Options) {
		o.sizeCheck = true
	}
}
