package embedder

import (
	"context"
	"sort"
	"time"

	"github.com/clusterkit/clusterkit"
	"github.com/clusterkit/clusterkit/matrix"
	"github.com/clusterkit/clusterkit/metric"
)

// transformEpsilon keeps inverse-distance weights finite for exact matches.
const transformEpsilon = 0.001

// Transform places new rows into the fitted space by inverse-distance
// weighted interpolation among each row's nearest training neighbors. It is
// deterministic and does not change the model.
func (e *Embedder) Transform(ctx context.Context, rows [][]float64) ([][]float64, error) {
	start := time.Now()

	out, err := e.transform(rows)
	if err != nil {
		e.metrics.RecordError("transform")
		return nil, err
	}

	e.metrics.RecordTransform(len(rows), time.Since(start))

	return out, nil
}

func (e *Embedder) transform(rows [][]float64) ([][]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.embeddings == nil {
		return nil, ErrModelNotFitted
	}

	dim, err := matrix.Validate(rows)
	if err != nil {
		return nil, err
	}
	if trainDim := len(e.trainVectors[0]); dim != trainDim {
		return nil, &clusterkit.ErrDimensionMismatch{Expected: trainDim, Actual: dim}
	}

	k := e.opts.NNeighbors
	if k > len(e.trainVectors) {
		k = len(e.trainVectors)
	}

	queries := matrix.ToFloat32(rows)

	out := make([][]float64, len(rows))
	for i, query := range queries {
		out[i] = e.interpolate(query, k)
	}
	return out, nil
}

// interpolate averages the embeddings of the k nearest training vectors,
// weighted by inverse distance.
func (e *Embedder) interpolate(query []float32, k int) []float64 {
	type hit struct {
		row  int
		dist float64
	}

	hits := make([]hit, len(e.trainVectors))
	for row, vec := range e.trainVectors {
		d, _ := metric.Euclidean(query, vec)
		hits[row] = hit{row: row, dist: float64(d)}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].dist < hits[b].dist
	})
	hits = hits[:k]

	weights := make([]float64, k)
	var total float64
	for i, h := range hits {
		w := 1.0 / (h.dist + transformEpsilon)
		weights[i] = w
		total += w
	}

	point := make([]float64, e.opts.NComponents)
	for i, h := range hits {
		w := weights[i] / total
		for d, v := range e.embeddings[h.row] {
			point[d] += w * v
		}
	}
	return point
}
