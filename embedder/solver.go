package embedder

import (
	"context"
	"math"
	"math/rand"
)

// NeighborGraph is the k-nearest-neighbor adjacency handed to a Solver.
// Indices[i] lists the neighbor row indices of point i, nearest first, with
// Distances[i] the matching distances. Rows may be shorter than the
// configured degree for small inputs.
type NeighborGraph struct {
	Indices   [][]int
	Distances [][]float64
}

// SolverConfig carries the layout parameters to a Solver.
type SolverConfig struct {
	NComponents     int
	GradBatches     int
	SamplingPerEdge int
	Seed            *uint64
}

// Solver computes a low-dimensional layout from data and its neighbor
// graph. Implementations return one embedding row per input row.
type Solver interface {
	Embed(ctx context.Context, data [][]float64, graph NeighborGraph, cfg SolverConfig) ([][]float64, error)
}

// sgdSolver is the built-in layout optimizer: random initialization, then
// stochastic gradient passes that pull edge endpoints together and push
// negatively sampled pairs apart. Deterministic under a fixed seed.
type sgdSolver struct{}

const (
	sgdEpochsPerBatch = 20
	sgdInitialRate    = 0.1
	sgdInitScale      = 10.0
	sgdMinGap         = 1e-3
	sgdMaxStep        = 4.0
)

func (s *sgdSolver) Embed(ctx context.Context, data [][]float64, graph NeighborGraph, cfg SolverConfig) ([][]float64, error) {
	n := len(data)
	if n == 0 {
		return nil, nil
	}

	var seed int64 = 1
	if cfg.Seed != nil {
		seed = int64(*cfg.Seed)
	}
	rng := rand.New(rand.NewSource(seed))

	emb := make([][]float64, n)
	for i := range emb {
		row := make([]float64, cfg.NComponents)
		for d := range row {
			row[d] = (rng.Float64()*2 - 1) * sgdInitScale
		}
		emb[i] = row
	}

	if n == 1 {
		return emb, nil
	}

	totalEpochs := cfg.GradBatches * sgdEpochsPerBatch
	for epoch := 0; epoch < totalEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rate := sgdInitialRate * (1 - float64(epoch)/float64(totalEpochs))

		for i := range graph.Indices {
			for rank, j := range graph.Indices[i] {
				// Closer neighbors attract harder.
				weight := 1.0 / float64(rank+1)
				attract(emb[i], emb[j], rate*weight)

				for sample := 0; sample < cfg.SamplingPerEdge; sample++ {
					neg := rng.Intn(n)
					if neg == i || neg == j {
						continue
					}
					repel(emb[i], emb[neg], rate)
				}
			}
		}
	}

	return emb, nil
}

// attract moves a and b toward each other along their difference.
func attract(a, b []float64, rate float64) {
	for d := range a {
		delta := (b[d] - a[d]) * rate
		delta = clampStep(delta)
		a[d] += delta
		b[d] -= delta
	}
}

// repel pushes a away from b, with force falling off as squared distance
// grows.
func repel(a, b []float64, rate float64) {
	var sq float64
	for d := range a {
		diff := a[d] - b[d]
		sq += diff * diff
	}

	force := rate / (sq + sgdMinGap)
	if force > rate {
		force = rate
	}

	norm := math.Sqrt(sq)
	if norm < sgdMinGap {
		norm = sgdMinGap
	}

	for d := range a {
		delta := clampStep((a[d] - b[d]) / norm * force)
		a[d] += delta
	}
}

func clampStep(delta float64) float64 {
	if delta > sgdMaxStep {
		return sgdMaxStep
	}
	if delta < -sgdMaxStep {
		return -sgdMaxStep
	}
	return delta
}
