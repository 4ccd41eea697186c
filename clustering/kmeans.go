// Package clustering provides a K-means clustering engine and glue for
// external density-based clusterers.
package clustering

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/clusterkit/clusterkit"
	"github.com/clusterkit/clusterkit/matrix"
	"github.com/clusterkit/clusterkit/metric"
)

// Options configures a clustering run.
type Options struct {
	// Seed makes centroid seeding deterministic.
	Seed *uint64

	Logger  *clusterkit.Logger
	Metrics clusterkit.MetricsCollector
}

// WithSeed makes the run deterministic.
func WithSeed(seed uint64) func(*Options) {
	return func(o *Options) {
		s := seed
		o.Seed = &s
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *clusterkit.Logger) func(*Options) {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMetricsCollector sets the metrics sink.
func WithMetricsCollector(m clusterkit.MetricsCollector) func(*Options) {
	return func(o *Options) {
		o.Metrics = m
	}
}

func (o *Options) logger() *clusterkit.Logger {
	if o.Logger == nil {
		return clusterkit.NoopLogger()
	}
	return o.Logger
}

func (o *Options) metrics() clusterkit.MetricsCollector {
	if o.Metrics == nil {
		return clusterkit.NoopMetricsCollector{}
	}
	return o.Metrics
}

// KMeansResult holds the outcome of a K-means run.
type KMeansResult struct {
	// Labels assigns each input row a cluster in [0, k).
	Labels []int

	// Centroids are the final cluster centers, k rows.
	Centroids [][]float64

	// Inertia is the sum of squared distances from each row to its
	// assigned centroid, computed against the final centroids.
	Inertia float64
}

// KMeans clusters rows into k groups using K-means++ seeding and Lloyd
// iterations, stopping after maxIter rounds or when assignments stabilize.
func KMeans(ctx context.Context, rows [][]float64, k, maxIter int, optFns ...func(*Options)) (*KMeansResult, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := opts.logger()
	metrics := opts.metrics()
	start := time.Now()

	result, err := kmeans(rows, k, maxIter, opts.Seed)
	logger.LogFit(ctx, len(rows), k, err)
	if err != nil {
		metrics.RecordError("kmeans")
		return nil, err
	}

	metrics.RecordFit(len(rows), time.Since(start))

	return result, nil
}

func kmeans(rows [][]float64, k, maxIter int, seed *uint64) (*KMeansResult, error) {
	if _, err := matrix.Validate(rows); err != nil {
		return nil, err
	}
	n := len(rows)

	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1 (got %d)", clusterkit.ErrInvalidArgument, k)
	}
	if k > n {
		return nil, fmt.Errorf("%w: k (%d) cannot exceed the number of rows (%d)", clusterkit.ErrInvalidArgument, k, n)
	}
	if maxIter < 1 {
		return nil, fmt.Errorf("%w: max iterations must be at least 1 (got %d)", clusterkit.ErrInvalidArgument, maxIter)
	}

	var rngSeed int64 = 1
	if seed != nil {
		rngSeed = int64(*seed)
	} else {
		rngSeed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(rngSeed))

	centroids := seedCentroids(rows, k, rng)
	labels := make([]int, n)

	for iteration := 0; iteration < maxIter; iteration++ {
		changed := false
		for i, row := range rows {
			c := nearestCentroid(row, centroids)
			if c != labels[i] {
				labels[i] = c
				changed = true
			}
		}

		// The first pass always assigns from scratch, so stability is
		// only meaningful from the second pass on.
		if !changed && iteration > 0 {
			break
		}

		updateCentroids(rows, labels, centroids)
	}

	var inertia float64
	for i, row := range rows {
		inertia += metric.SquaredL264(row, centroids[labels[i]])
	}

	return &KMeansResult{
		Labels:    labels,
		Centroids: centroids,
		Inertia:   inertia,
	}, nil
}

// seedCentroids picks k starting centers with K-means++: the first uniformly
// at random, each subsequent one by roulette-wheel selection proportional to
// squared distance from the nearest chosen center. If every remaining point
// coincides with a chosen center the wheel degenerates; the fallback walks
// the unused points in index order, then settles on the first point.
func seedCentroids(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(rows)
	centroids := make([][]float64, 0, k)
	chosen := make([]bool, n)

	first := rng.Intn(n)
	centroids = append(centroids, append([]float64(nil), rows[first]...))
	chosen[first] = true

	dist := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i, row := range rows {
			best := metric.SquaredL264(row, centroids[0])
			for _, c := range centroids[1:] {
				if d := metric.SquaredL264(row, c); d < best {
					best = d
				}
			}
			dist[i] = best
			total += best
		}

		next := -1
		if total > 0 {
			r := rng.Float64() * total
			var cum float64
			for i, d := range dist {
				cum += d
				if cum >= r {
					next = i
					break
				}
			}
		}
		if next == -1 {
			for i := range rows {
				if !chosen[i] {
					next = i
					break
				}
			}
		}
		if next == -1 {
			next = 0
		}

		centroids = append(centroids, append([]float64(nil), rows[next]...))
		chosen[next] = true
	}

	return centroids
}

// nearestCentroid returns the index of the closest centroid, preferring the
// lowest index on ties.
func nearestCentroid(row []float64, centroids [][]float64) int {
	best := 0
	bestDist := metric.SquaredL264(row, centroids[0])
	for c := 1; c < len(centroids); c++ {
		if d := metric.SquaredL264(row, centroids[c]); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

// updateCentroids recomputes each centroid as the mean of its assigned
// rows. A cluster that lost all its rows keeps its previous centroid.
func updateCentroids(rows [][]float64, labels []int, centroids [][]float64) {
	dim := len(rows[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}

	for i, row := range rows {
		c := labels[i]
		counts[c]++
		for d, v := range row {
			sums[c][d] += v
		}
	}

	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for d := range centroids[c] {
			centroids[c][d] = sums[c][d] / float64(counts[c])
		}
	}
}

// KMeansPredict assigns each row to its nearest centroid, using the same
// lowest-index tie-break as KMeans.
func KMeansPredict(rows [][]float64, centroids [][]float64) ([]int, error) {
	dim, err := matrix.Validate(rows)
	if err != nil {
		return nil, err
	}
	cdim, err := matrix.Validate(centroids)
	if err != nil {
		return nil, err
	}
	if dim != cdim {
		return nil, &clusterkit.ErrDimensionMismatch{Expected: cdim, Actual: dim}
	}

	labels := make([]int, len(rows))
	for i, row := range rows {
		labels[i] = nearestCentroid(row, centroids)
	}
	return labels, nil
}
