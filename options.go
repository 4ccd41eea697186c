package clusterkit

import (
	"github.com/clusterkit/clusterkit/resource"
)

// Options configures an Index.
type Options struct {
	// Distance is the distance metric used to compare vectors.
	Distance DistanceKind

	// MaxElements is a sizing hint for internal tables.
	MaxElements int

	// M is the maximum number of graph connections per node.
	M int

	// EFConstruction is the size of the dynamic candidate list during
	// construction. It also seeds the initial search beam width.
	EFConstruction int

	// Seed, when set, makes graph construction deterministic. A seeded
	// index inserts batches serially.
	Seed *uint64

	// Logger receives structured operation logs.
	Logger *Logger

	// Metrics receives operation counts and latencies.
	Metrics MetricsCollector

	// Resources bounds worker parallelism for batch inserts.
	Resources *resource.Controller

	distanceErr error
}

// DefaultOptions are the defaults used by New.
var DefaultOptions = Options{
	Distance:       DistanceEuclidean,
	MaxElements:    10_000,
	M:              16,
	EFConstruction: 200,
}

// WithDistance sets the distance metric.
func WithDistance(d DistanceKind) func(*Options) {
	return func(o *Options) {
		o.Distance = d
	}
}

// WithDistanceName sets the distance metric by its stable name
// ("euclidean", "cosine", "inner_product"). Unknown names surface as
// ErrUnknownDistance from New.
func WithDistanceName(name string) func(*Options) {
	return func(o *Options) {
		d, err := ParseDistanceKind(name)
		if err != nil {
			o.distanceErr = err
			return
		}
		o.Distance = d
	}
}

// WithMaxElements sets the capacity hint.
func WithMaxElements(n int) func(*Options) {
	return func(o *Options) {
		o.MaxElements = n
	}
}

// WithM sets the graph connectivity parameter.
func WithM(m int) func(*Options) {
	return func(o *Options) {
		o.M = m
	}
}

// WithEFConstruction sets the construction beam width.
func WithEFConstruction(ef int) func(*Options) {
	return func(o *Options) {
		o.EFConstruction = ef
	}
}

// WithSeed makes index construction deterministic.
func WithSeed(seed uint64) func(*Options) {
	return func(o *Options) {
		s := seed
		o.Seed = &s
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *Logger) func(*Options) {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMetricsCollector sets the metrics sink.
func WithMetricsCollector(m MetricsCollector) func(*Options) {
	return func(o *Options) {
		o.Metrics = m
	}
}

// WithResources sets the resource controller for batch inserts.
func WithResources(rc *resource.Controller) func(*Options) {
	return func(o *Options) {
		o.Resources = rc
	}
}
