package clustering

import (
	"context"
	"fmt"
	"time"

	"github.com/clusterkit/clusterkit"
	"github.com/clusterkit/clusterkit/matrix"
)

// NoiseLabel marks rows a density clusterer left unassigned.
const NoiseLabel = -1

// DensityClusterer is the external density-based clustering algorithm.
// Implementations return one label per row, with NoiseLabel for rows that
// belong to no cluster. The parameters arrive already clamped to the input
// size.
type DensityClusterer interface {
	Cluster(ctx context.Context, rows [][]float64, minSamples, minClusterSize int) ([]int, error)
}

// HDBSCANOptions tunes a density clustering run.
type HDBSCANOptions struct {
	// MinSamples is the core-point neighborhood size. Clamped to
	// [1, n-1].
	MinSamples int

	// MinClusterSize is the smallest cluster the algorithm keeps.
	// Clamped to [2, n].
	MinClusterSize int

	Logger  *clusterkit.Logger
	Metrics clusterkit.MetricsCollector
}

// DefaultHDBSCANOptions are the defaults used by HDBSCAN.
var DefaultHDBSCANOptions = HDBSCANOptions{
	MinSamples:     5,
	MinClusterSize: 5,
}

// WithMinSamples sets the core-point neighborhood size.
func WithMinSamples(n int) func(*HDBSCANOptions) {
	return func(o *HDBSCANOptions) {
		o.MinSamples = n
	}
}

// WithMinClusterSize sets the smallest cluster kept.
func WithMinClusterSize(n int) func(*HDBSCANOptions) {
	return func(o *HDBSCANOptions) {
		o.MinClusterSize = n
	}
}

// WithHDBSCANLogger sets the structured logger.
func WithHDBSCANLogger(l *clusterkit.Logger) func(*HDBSCANOptions) {
	return func(o *HDBSCANOptions) {
		o.Logger = l
	}
}

// WithHDBSCANMetrics sets the metrics sink.
func WithHDBSCANMetrics(m clusterkit.MetricsCollector) func(*HDBSCANOptions) {
	return func(o *HDBSCANOptions) {
		o.Metrics = m
	}
}

// HDBSCANResult holds the outcome of a density clustering run.
type HDBSCANResult struct {
	// Labels assigns each row a cluster id, or NoiseLabel.
	Labels []int

	// Probabilities is 1.0 for clustered rows and 0.0 for noise.
	Probabilities []float64

	// OutlierScores is the inverse of Probabilities: 0.0 for clustered
	// rows, 1.0 for noise.
	OutlierScores []float64
}

// NClusters returns the number of distinct non-noise clusters.
func (r *HDBSCANResult) NClusters() int {
	seen := make(map[int]struct{})
	for _, label := range r.Labels {
		if label != NoiseLabel {
			seen[label] = struct{}{}
		}
	}
	return len(seen)
}

// HDBSCAN runs a density clusterer over rows, clamping the parameters to
// the input size and synthesizing per-row probabilities and outlier scores
// from the labels.
func HDBSCAN(ctx context.Context, rows [][]float64, clusterer DensityClusterer, optFns ...func(*HDBSCANOptions)) (*HDBSCANResult, error) {
	opts := DefaultHDBSCANOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = clusterkit.NoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = clusterkit.NoopMetricsCollector{}
	}
	start := time.Now()

	result, err := hdbscan(ctx, rows, clusterer, opts)
	logger.LogFit(ctx, len(rows), opts.MinClusterSize, err)
	if err != nil {
		metrics.RecordError("hdbscan")
		return nil, err
	}

	metrics.RecordFit(len(rows), time.Since(start))

	return result, nil
}

func hdbscan(ctx context.Context, rows [][]float64, clusterer DensityClusterer, opts HDBSCANOptions) (*HDBSCANResult, error) {
	if clusterer == nil {
		return nil, fmt.Errorf("density clusterer: %w", clusterkit.ErrNotImplemented)
	}

	if _, err := matrix.Validate(rows); err != nil {
		return nil, err
	}
	n := len(rows)

	minSamples := clamp(opts.MinSamples, 1, n-1)
	minClusterSize := clamp(opts.MinClusterSize, 2, n)

	labels, err := clusterer.Cluster(ctx, rows, minSamples, minClusterSize)
	if err != nil {
		return nil, err
	}
	if len(labels) != n {
		return nil, fmt.Errorf("%w: clusterer returned %d labels for %d rows", clusterkit.ErrInvalidArgument, len(labels), n)
	}

	probabilities := make([]float64, n)
	outlierScores := make([]float64, n)
	for i, label := range labels {
		if label == NoiseLabel {
			outlierScores[i] = 1.0
		} else {
			probabilities[i] = 1.0
		}
	}

	return &HDBSCANResult{
		Labels:        labels,
		Probabilities: probabilities,
		OutlierScores: outlierScores,
	}, nil
}

// clamp bounds v to [lo, hi]. lo wins when the bounds cross (tiny inputs).
func clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
