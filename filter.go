package clusterkit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// metadataIndex is an inverted index from metadata key=value pairs to the
// internal ids that carry them, backed by roaring bitmaps.
type metadataIndex struct {
	mu       sync.RWMutex
	postings map[string]*roaring64.Bitmap
}

func newMetadataIndex() *metadataIndex {
	return &metadataIndex{
		postings: make(map[string]*roaring64.Bitmap),
	}
}

func postingKey(key, value string) string {
	return key + "\x00" + value
}

func (m *metadataIndex) add(id uint64, metadata map[string]string) {
	if len(metadata) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, value := range metadata {
		pk := postingKey(key, value)
		bm, ok := m.postings[pk]
		if !ok {
			bm = roaring64.New()
			m.postings[pk] = bm
		}
		bm.Add(id)
	}
}

// matching returns the ids whose metadata matches every key=value pair in
// filter. A pair with no postings short-circuits to the empty set.
func (m *metadataIndex) matching(filter map[string]string) *roaring64.Bitmap {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var acc *roaring64.Bitmap
	for key, value := range filter {
		bm, ok := m.postings[postingKey(key, value)]
		if !ok {
			return roaring64.New()
		}
		if acc == nil {
			acc = bm.Clone()
			continue
		}
		acc.And(bm)
		if acc.IsEmpty() {
			return acc
		}
	}
	if acc == nil {
		return roaring64.New()
	}
	return acc
}

// SearchWithFilter returns up to k nearest neighbors of query among vectors
// whose metadata matches every key=value pair in filter. The candidate set
// comes from the inverted metadata index and is scanned exactly, so results
// are not subject to graph recall.
func (i *Index) SearchWithFilter(ctx context.Context, query []float32, k int, filter map[string]string) ([]SearchResult, error) {
	start := time.Now()

	results, err := i.searchWithFilter(ctx, query, k, filter)
	i.logger.LogSearch(ctx, k, len(results), err)
	if err != nil {
		i.metrics.RecordError("search_filter")
		return nil, err
	}

	i.metrics.RecordSearch(time.Since(start), len(results))

	return results, nil
}

func (i *Index) searchWithFilter(ctx context.Context, query []float32, k int, filter map[string]string) ([]SearchResult, error) {
	if len(query) != i.dim {
		return nil, &ErrDimensionMismatch{Expected: i.dim, Actual: len(query)}
	}
	if k <= 0 || len(filter) == 0 {
		return nil, ErrInvalidArgument
	}

	candidates := i.filters.matching(filter)

	results := make([]SearchResult, 0, candidates.GetCardinality())

	i.mu.RLock()
	it := candidates.Iterator()
	for it.HasNext() {
		id := it.Next()

		vec, ok := i.graph.Lookup(id)
		if !ok {
			continue
		}

		rec, ok := i.table.lookup(id)
		if !ok {
			i.logger.LogMissingMetadata(ctx, id)
			continue
		}

		results = append(results, SearchResult{
			ID:       id,
			Label:    rec.Label,
			Distance: i.distFn(query, vec),
			Metadata: rec.Metadata,
		})
	}
	i.mu.RUnlock()

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Distance < results[b].Distance
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}
