package clusterkit

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/TFMV/hnsw"
	"golang.org/x/sync/errgroup"
)

// graphLevelFactor is the level-generation multiplier passed to the graph
// library. Matches its recommended default.
const graphLevelFactor = 0.25

// Index is a concurrency-safe approximate nearest-neighbor index with
// label and metadata bookkeeping. The numeric search core is delegated to
// github.com/coder/hnsw; Index owns identity, dimensional hygiene,
// concurrency, and persistence.
type Index struct {
	dim      int
	distance DistanceKind
	distFn   hnsw.DistanceFunc
	opts     Options

	// mu guards graph and ef. The graph library is not safe for
	// concurrent use; writers take the lock exclusively, searches share
	// it.
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	ef    int

	table   *labelTable
	filters *metadataIndex

	logger  *Logger
	metrics MetricsCollector
}

// SearchResult is one nearest-neighbor hit, nearest first.
type SearchResult struct {
	ID       uint64
	Label    string
	Distance float32

	// Metadata is populated by SearchWithMetadata and SearchWithFilter.
	Metadata map[string]string
}

// IndexConfig is the immutable construction-time configuration of an Index.
type IndexConfig struct {
	Dimension      int
	Distance       DistanceKind
	MaxElements    int
	M              int
	EFConstruction int
	Seeded         bool
}

// IndexStats is a point-in-time view of an Index.
type IndexStats struct {
	Size      int
	Dimension int
	EFSearch  int
	Distance  DistanceKind
}

// New creates an empty Index for vectors of the given dimension.
func New(dimension int, optFns ...func(*Options)) (*Index, error) {
	if dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dimension}
	}

	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.distanceErr != nil {
		return nil, opts.distanceErr
	}

	distFn, err := opts.Distance.distanceFunc()
	if err != nil {
		return nil, err
	}

	graph, err := hnsw.NewGraphWithConfig[uint64](opts.M, graphLevelFactor, opts.EFConstruction, distFn)
	if err != nil {
		return nil, err
	}

	if opts.Seed != nil {
		graph.Rng = rand.New(rand.NewSource(int64(*opts.Seed)))
	}

	logger := opts.Logger
	if logger == nil {
		logger = NoopLogger()
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetricsCollector{}
	}

	return &Index{
		dim:      dimension,
		distance: opts.Distance,
		distFn:   distFn,
		opts:     opts,
		graph:    graph,
		ef:       opts.EFConstruction,
		table:    newLabelTable(opts.MaxElements),
		filters:  newMetadataIndex(),
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// InsertOptions carries the optional label and metadata for one vector.
type InsertOptions struct {
	// Label is a caller-visible identifier; must be unique within the
	// index. Empty labels are auto-generated from the internal id.
	Label string

	// Metadata is an arbitrary string map attached to the vector.
	Metadata map[string]string
}

// WithLabel sets the vector's label.
func WithLabel(label string) func(*InsertOptions) {
	return func(o *InsertOptions) {
		o.Label = label
	}
}

// WithMetadata attaches metadata to the vector.
func WithMetadata(metadata map[string]string) func(*InsertOptions) {
	return func(o *InsertOptions) {
		o.Metadata = metadata
	}
}

// Insert adds one vector and returns its internal id.
func (i *Index) Insert(ctx context.Context, vector []float32, optFns ...func(*InsertOptions)) (uint64, error) {
	start := time.Now()

	var opts InsertOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	id, err := i.insert(vector, opts.Label, opts.Metadata)
	i.logger.LogInsert(ctx, id, len(vector), err)
	if err != nil {
		i.metrics.RecordError("insert")
		return 0, err
	}

	i.metrics.RecordInsert(time.Since(start))

	return id, nil
}

// insert registers the label and metadata, then adds the vector to the
// graph. A failed graph add rolls the registration back so the table never
// references a vector the graph cannot serve.
func (i *Index) insert(vector []float32, label string, metadata map[string]string) (uint64, error) {
	if len(vector) != i.dim {
		return 0, &ErrDimensionMismatch{Expected: i.dim, Actual: len(vector)}
	}

	id, effectiveLabel, err := i.table.register(label, metadata)
	if err != nil {
		return 0, err
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)

	i.mu.Lock()
	err = i.graph.Add(hnsw.MakeNode(id, vec))
	i.mu.Unlock()
	if err != nil {
		i.table.unregister(id, effectiveLabel)
		return 0, err
	}

	i.filters.add(id, metadata)

	return id, nil
}

// BatchOptions tunes one InsertBatch call.
type BatchOptions struct {
	// Parallel allows concurrent graph insertion. A seeded index ignores
	// it and always inserts serially to keep construction deterministic.
	Parallel bool
}

// WithSerialInsert forces serial insertion for this batch.
func WithSerialInsert() func(*BatchOptions) {
	return func(o *BatchOptions) {
		o.Parallel = false
	}
}

// InsertBatch adds vectors in bulk and returns their internal ids in input
// order. labels may be nil or must match len(vectors); empty entries are
// auto-generated.
//
// The batch is not atomic: rows are committed incrementally and the first
// failing row aborts the rest, leaving earlier rows in the index. A seeded
// index inserts serially to keep construction deterministic; otherwise rows
// are inserted in parallel, bounded by the resource controller.
func (i *Index) InsertBatch(ctx context.Context, vectors [][]float32, labels []string, metadata []map[string]string, optFns ...func(*BatchOptions)) ([]uint64, error) {
	start := time.Now()

	opts := BatchOptions{Parallel: true}
	for _, fn := range optFns {
		fn(&opts)
	}

	ids, err := i.insertBatch(ctx, vectors, labels, metadata, opts)
	i.logger.LogBatchInsert(ctx, len(vectors), len(ids), err)
	if err != nil {
		i.metrics.RecordError("insert_batch")
		return ids, err
	}

	i.metrics.RecordBatchInsert(len(vectors), time.Since(start))

	return ids, nil
}

func (i *Index) insertBatch(ctx context.Context, vectors [][]float32, labels []string, metadata []map[string]string, opts BatchOptions) ([]uint64, error) {
	if labels != nil && len(labels) != len(vectors) {
		return nil, &ErrBatchShape{Field: "labels", Expected: len(vectors), Actual: len(labels)}
	}
	if metadata != nil && len(metadata) != len(vectors) {
		return nil, &ErrBatchShape{Field: "metadata", Expected: len(vectors), Actual: len(metadata)}
	}

	if i.opts.Seed != nil || !opts.Parallel {
		return i.insertBatchSerial(vectors, labels, metadata)
	}
	return i.insertBatchParallel(ctx, vectors, labels, metadata)
}

func (i *Index) insertBatchSerial(vectors [][]float32, labels []string, metadata []map[string]string) ([]uint64, error) {
	ids := make([]uint64, 0, len(vectors))
	for row, vec := range vectors {
		id, err := i.insert(vec, batchLabel(labels, row), batchMetadata(metadata, row))
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// insertBatchParallel registers rows serially, so duplicate labels surface
// in input order, and hands the graph work to a bounded worker group.
func (i *Index) insertBatchParallel(ctx context.Context, vectors [][]float32, labels []string, metadata []map[string]string) ([]uint64, error) {
	parent := ctx
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(i.opts.Resources.MaxWorkers())

	ids := make([]uint64, len(vectors))
	committed := 0

dispatch:
	for row, vec := range vectors {
		if len(vec) != i.dim {
			err := g.Wait()
			if err == nil {
				err = &ErrDimensionMismatch{Expected: i.dim, Actual: len(vec)}
			}
			return ids[:committed], err
		}

		id, effectiveLabel, err := i.table.register(batchLabel(labels, row), batchMetadata(metadata, row))
		if err != nil {
			if werr := g.Wait(); werr != nil {
				err = werr
			}
			return ids[:committed], err
		}
		ids[row] = id
		committed++

		select {
		case <-ctx.Done():
			i.table.unregister(id, effectiveLabel)
			committed--
			break dispatch
		default:
		}

		vecCopy := make([]float32, len(vec))
		copy(vecCopy, vec)
		md := batchMetadata(metadata, row)

		g.Go(func() error {
			i.mu.Lock()
			err := i.graph.Add(hnsw.MakeNode(id, vecCopy))
			i.mu.Unlock()
			if err != nil {
				i.table.unregister(id, effectiveLabel)
				return err
			}
			i.filters.add(id, md)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return ids[:committed], err
	}
	if err := parent.Err(); err != nil {
		return ids[:committed], err
	}
	return ids[:committed], nil
}

func batchLabel(labels []string, row int) string {
	if labels == nil {
		return ""
	}
	return labels[row]
}

func batchMetadata(metadata []map[string]string, row int) map[string]string {
	if metadata == nil {
		return nil
	}
	return metadata[row]
}

// SearchOptions tunes one query.
type SearchOptions struct {
	// EF overrides the search beam width. The override persists for
	// subsequent queries. Zero leaves the current value unchanged.
	EF int
}

// WithEF overrides the search beam width for this and later queries.
func WithEF(ef int) func(*SearchOptions) {
	return func(o *SearchOptions) {
		o.EF = ef
	}
}

// Search returns up to k nearest neighbors of query, nearest first.
// Hits whose bookkeeping record has gone missing are skipped and logged.
func (i *Index) Search(ctx context.Context, query []float32, k int, optFns ...func(*SearchOptions)) ([]SearchResult, error) {
	start := time.Now()

	results, err := i.search(ctx, query, k, false, optFns...)
	i.logger.LogSearch(ctx, k, len(results), err)
	if err != nil {
		i.metrics.RecordError("search")
		return nil, err
	}

	i.metrics.RecordSearch(time.Since(start), len(results))

	return results, nil
}

// SearchWithMetadata is Search with each hit's metadata attached.
func (i *Index) SearchWithMetadata(ctx context.Context, query []float32, k int, optFns ...func(*SearchOptions)) ([]SearchResult, error) {
	start := time.Now()

	results, err := i.search(ctx, query, k, true, optFns...)
	i.logger.LogSearch(ctx, k, len(results), err)
	if err != nil {
		i.metrics.RecordError("search")
		return nil, err
	}

	i.metrics.RecordSearch(time.Since(start), len(results))

	return results, nil
}

func (i *Index) search(ctx context.Context, query []float32, k int, includeMetadata bool, optFns ...func(*SearchOptions)) ([]SearchResult, error) {
	if len(query) != i.dim {
		return nil, &ErrDimensionMismatch{Expected: i.dim, Actual: len(query)}
	}
	if k <= 0 {
		return nil, ErrInvalidArgument
	}

	var opts SearchOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.EF > 0 {
		i.mu.Lock()
		i.ef = opts.EF
		i.graph.EfSearch = opts.EF
		i.mu.Unlock()
	}

	i.mu.RLock()
	nodes, err := i.graph.Search(query, k)
	i.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(nodes))
	for _, node := range nodes {
		rec, ok := i.table.lookup(node.Key)
		if !ok {
			i.logger.LogMissingMetadata(ctx, node.Key)
			continue
		}

		result := SearchResult{
			ID:       node.Key,
			Label:    rec.Label,
			Distance: i.distFn(query, node.Value),
		}
		if includeMetadata {
			result.Metadata = rec.Metadata
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Distance < results[b].Distance
	})

	return results, nil
}

// Size returns the number of vectors in the index.
func (i *Index) Size() int {
	return i.table.len()
}

// Empty reports whether the index contains no vectors.
func (i *Index) Empty() bool {
	return i.Size() == 0
}

// Dimension returns the configured vector dimension.
func (i *Index) Dimension() int {
	return i.dim
}

// EF returns the current search beam width.
func (i *Index) EF() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.ef
}

// SetEF sets the search beam width for subsequent queries.
func (i *Index) SetEF(ef int) error {
	if ef <= 0 {
		return ErrInvalidArgument
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.ef = ef
	i.graph.EfSearch = ef
	return nil
}

// Config returns the construction-time configuration.
func (i *Index) Config() IndexConfig {
	return IndexConfig{
		Dimension:      i.dim,
		Distance:       i.distance,
		MaxElements:    i.opts.MaxElements,
		M:              i.opts.M,
		EFConstruction: i.opts.EFConstruction,
		Seeded:         i.opts.Seed != nil,
	}
}

// Stats returns a point-in-time view of the index.
func (i *Index) Stats() IndexStats {
	return IndexStats{
		Size:      i.Size(),
		Dimension: i.dim,
		EFSearch:  i.EF(),
		Distance:  i.distance,
	}
}

// Lookup returns the stored vector and record for a label.
func (i *Index) Lookup(label string) ([]float32, map[string]string, bool) {
	id, ok := i.table.id(label)
	if !ok {
		return nil, nil, false
	}

	rec, ok := i.table.lookup(id)
	if !ok {
		return nil, nil, false
	}

	i.mu.RLock()
	vec, ok := i.graph.Lookup(id)
	i.mu.RUnlock()
	if !ok {
		return nil, nil, false
	}

	out := make([]float32, len(vec))
	copy(out, vec)
	return out, rec.Metadata, true
}
