package embedder

import (
	"context"
	"errors"
	"os"

	"github.com/clusterkit/clusterkit"
	"github.com/clusterkit/clusterkit/persist"
)

// modelVersion tags the persisted model layout.
const modelVersion = 1

// modelBlob is the persisted model state. Loaded models can transform but
// carry no seed, so they cannot be refit deterministically.
type modelBlob struct {
	Version         int
	NComponents     int
	NNeighbors      int
	GradBatches     int
	SamplingPerEdge int
	Embeddings      [][]float64
	Original        [][]float32
}

// SaveModel writes the fitted model to path as a single compressed blob.
func (e *Embedder) SaveModel(ctx context.Context, path string) error {
	err := e.saveModel(path)
	e.logger.LogSnapshot(ctx, "save_model", path, err)
	return err
}

func (e *Embedder) saveModel(path string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.embeddings == nil {
		return ErrModelNotFitted
	}

	blob := modelBlob{
		Version:         modelVersion,
		NComponents:     e.opts.NComponents,
		NNeighbors:      e.opts.NNeighbors,
		GradBatches:     e.opts.GradBatches,
		SamplingPerEdge: e.opts.SamplingPerEdge,
		Embeddings:      e.embeddings,
		Original:        e.trainVectors,
	}

	if err := persist.WriteFile(path, blob); err != nil {
		return &clusterkit.ErrPersistence{Op: "save", Path: path, Cause: err}
	}
	return nil
}

// LoadModel reads a model written by SaveModel and returns an Embedder
// ready to Transform.
func LoadModel(ctx context.Context, path string, optFns ...func(*Options)) (*Embedder, error) {
	var blob modelBlob
	if err := persist.ReadFile(path, &blob); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &clusterkit.ErrPersistence{Op: "load", Path: path, Cause: err}
		}
		return nil, &clusterkit.ErrCorruptState{Reason: "model blob unreadable", Cause: err}
	}

	if blob.Version != modelVersion {
		return nil, &clusterkit.ErrCorruptState{Reason: "unsupported model version"}
	}
	if len(blob.Embeddings) == 0 || len(blob.Embeddings) != len(blob.Original) {
		return nil, &clusterkit.ErrCorruptState{Reason: "model blob has inconsistent shapes"}
	}

	e, err := New(append([]func(*Options){
		WithNComponents(blob.NComponents),
		WithNNeighbors(blob.NNeighbors),
		WithGradBatches(blob.GradBatches),
		WithSamplingPerEdge(blob.SamplingPerEdge),
	}, optFns...)...)
	if err != nil {
		return nil, &clusterkit.ErrCorruptState{Reason: "model blob has invalid parameters", Cause: err}
	}
	e.opts.Seed = nil

	e.trainVectors = blob.Original
	e.embeddings = blob.Embeddings

	e.logger.LogSnapshot(ctx, "load_model", path, nil)

	return e, nil
}
