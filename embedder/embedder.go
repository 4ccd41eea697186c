// Package embedder provides a graph-based dimensionality reduction pipeline:
// fit a low-dimensional layout from a k-nearest-neighbor graph over the
// training data, then place new points by interpolating among their nearest
// training neighbors.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/clusterkit/clusterkit"
	"github.com/clusterkit/clusterkit/matrix"
)

var (
	// ErrModelNotFitted is returned by operations that need a trained
	// model before FitTransform or LoadModel has run.
	ErrModelNotFitted = errors.New("model must be fitted before use")
)

// ErrEmbeddingFailed indicates the layout solver failed or produced no
// embedded points. The solver's error (if any) is available via
// errors.Unwrap.
type ErrEmbeddingFailed struct {
	cause error
}

func (e *ErrEmbeddingFailed) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("embedding failed: %v", e.cause)
	}
	return "embedding failed: solver produced no points"
}

func (e *ErrEmbeddingFailed) Unwrap() error { return e.cause }

// Options configures an Embedder.
type Options struct {
	// NComponents is the output dimensionality.
	NComponents int

	// NNeighbors is the k-nearest-neighbor graph degree. Capped at the
	// training-set size.
	NNeighbors int

	// GradBatches is the number of gradient batches per edge epoch.
	GradBatches int

	// SamplingPerEdge is the number of negative samples drawn per edge.
	SamplingPerEdge int

	// Seed makes the fit deterministic. Loaded models carry no seed.
	Seed *uint64

	// Solver computes the low-dimensional layout. Nil selects the
	// built-in stochastic-gradient solver.
	Solver Solver

	Logger  *clusterkit.Logger
	Metrics clusterkit.MetricsCollector
}

// DefaultOptions are the defaults used by New.
var DefaultOptions = Options{
	NComponents:     2,
	NNeighbors:      15,
	GradBatches:     10,
	SamplingPerEdge: 8,
}

// WithNComponents sets the output dimensionality.
func WithNComponents(n int) func(*Options) {
	return func(o *Options) {
		o.NComponents = n
	}
}

// WithNNeighbors sets the neighbor-graph degree.
func WithNNeighbors(n int) func(*Options) {
	return func(o *Options) {
		o.NNeighbors = n
	}
}

// WithGradBatches sets the number of gradient batches per epoch.
func WithGradBatches(n int) func(*Options) {
	return func(o *Options) {
		o.GradBatches = n
	}
}

// WithSamplingPerEdge sets the negative samples drawn per edge.
func WithSamplingPerEdge(n int) func(*Options) {
	return func(o *Options) {
		o.SamplingPerEdge = n
	}
}

// WithSeed makes the fit deterministic.
func WithSeed(seed uint64) func(*Options) {
	return func(o *Options) {
		s := seed
		o.Seed = &s
	}
}

// WithSolver replaces the built-in layout solver.
func WithSolver(s Solver) func(*Options) {
	return func(o *Options) {
		o.Solver = s
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

// Embedder fits and applies a graph-based dimensionality reduction. All
// methods are safe for concurrent use once FitTransform has returned.
type Embedder struct {
	opts    Options
	solver  Solver
	logger  *clusterkit.Logger
	metrics clusterkit.MetricsCollector

	mu sync.RWMutex
	// Model state. Both are nil until a successful fit; a failed fit
	// leaves them untouched.
	trainVectors [][]float32
	embeddings   [][]float64
}

// New creates an Embedder.
func New(optFns ...func(*Options)) (*Embedder, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.NComponents < 1 {
		return nil, fmt.Errorf("%w: n_components must be at least 1 (got %d)", clusterkit.ErrInvalidArgument, opts.NComponents)
	}
	if opts.NNeighbors < 1 {
		return nil, fmt.Errorf("%w: n_neighbors must be at least 1 (got %d)", clusterkit.ErrInvalidArgument, opts.NNeighbors)
	}
	if opts.GradBatches < 1 {
		return nil, fmt.Errorf("%w: grad batches must be at least 1 (got %d)", clusterkit.ErrInvalidArgument, opts.GradBatches)
	}
	if opts.SamplingPerEdge < 1 {
		return nil, fmt.Errorf("%w: sampling per edge must be at least 1 (got %d)", clusterkit.ErrInvalidArgument, opts.SamplingPerEdge)
	}

	solver := opts.Solver
	if solver == nil {
		solver = &sgdSolver{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = clusterkit.NoopLogger()
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = clusterkit.NoopMetricsCollector{}
	}

	return &Embedder{
		opts:    opts,
		solver:  solver,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// NComponents returns the output dimensionality.
func (e *Embedder) NComponents() int { return e.opts.NComponents }

// NNeighbors returns the configured neighbor-graph degree.
func (e *Embedder) NNeighbors() int { return e.opts.NNeighbors }

// Fitted reports whether the embedder holds a trained model.
func (e *Embedder) Fitted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.embeddings != nil
}

// FitTransform trains the model on rows and returns their embeddings. On
// any failure the embedder keeps its previous model state.
func (e *Embedder) FitTransform(ctx context.Context, rows [][]float64) ([][]float64, error) {
	start := time.Now()

	out, err := e.fitTransform(ctx, rows)
	e.logger.LogFit(ctx, len(rows), e.opts.NComponents, err)
	if err != nil {
		e.metrics.RecordError("fit_transform")
		return nil, err
	}

	e.metrics.RecordFit(len(rows), time.Since(start))

	return out, nil
}

func (e *Embedder) fitTransform(ctx context.Context, rows [][]float64) ([][]float64, error) {
	dim, err := matrix.Validate(rows)
	if err != nil {
		return nil, err
	}

	graph, train, err := e.neighborGraph(ctx, rows, dim)
	if err != nil {
		return nil, err
	}

	embeddings, err := e.solver.Embed(ctx, rows, graph, SolverConfig{
		NComponents:     e.opts.NComponents,
		GradBatches:     e.opts.GradBatches,
		SamplingPerEdge: e.opts.SamplingPerEdge,
		Seed:            e.opts.Seed,
	})
	if err != nil {
		return nil, &ErrEmbeddingFailed{cause: err}
	}
	if len(embeddings) != len(rows) {
		return nil, &ErrEmbeddingFailed{}
	}

	e.mu.Lock()
	e.trainVectors = train
	e.embeddings = embeddings
	e.mu.Unlock()

	out := make([][]float64, len(embeddings))
	for i, row := range embeddings {
		out[i] = append([]float64(nil), row...)
	}
	return out, nil
}

// neighborGraph builds the k-NN graph by indexing the training rows and
// querying each row back, dropping the self hit.
func (e *Embedder) neighborGraph(ctx context.Context, rows [][]float64, dim int) (NeighborGraph, [][]float32, error) {
	indexOpts := []func(*clusterkit.Options){
		clusterkit.WithMaxElements(len(rows)),
	}
	if e.opts.Seed != nil {
		indexOpts = append(indexOpts, clusterkit.WithSeed(*e.opts.Seed))
	}

	idx, err := clusterkit.New(dim, indexOpts...)
	if err != nil {
		return NeighborGraph{}, nil, err
	}

	train := matrix.ToFloat32(rows)
	if _, err := idx.InsertBatch(ctx, train, nil, nil); err != nil {
		return NeighborGraph{}, nil, err
	}

	k := e.opts.NNeighbors
	if k > len(rows)-1 {
		k = len(rows) - 1
	}

	graph := NeighborGraph{
		Indices:   make([][]int, len(rows)),
		Distances: make([][]float64, len(rows)),
	}

	for i, vec := range train {
		var neighbors []clusterkit.SearchResult
		if k > 0 {
			neighbors, err = idx.Search(ctx, vec, k+1)
			if err != nil {
				return NeighborGraph{}, nil, err
			}
		}

		indices := make([]int, 0, k)
		distances := make([]float64, 0, k)
		for _, hit := range neighbors {
			if hit.ID == uint64(i) {
				continue
			}
			if len(indices) == k {
				break
			}
			indices = append(indices, int(hit.ID))
			distances = append(distances, float64(hit.Distance))
		}
		graph.Indices[i] = indices
		graph.Distances[i] = distances
	}

	return graph, train, nil
}
