package clusterkit

import (
	"bytes"
	"context"
	"errors"
	"os"

	"github.com/clusterkit/clusterkit/blobstore"
	"github.com/clusterkit/clusterkit/persist"
	"github.com/TFMV/hnsw"
	"github.com/google/renameio"
)

// sidecarVersion tags the bookkeeping sidecar layout.
const sidecarVersion = 1

const (
	graphSuffix   = ".graph"
	sidecarSuffix = ".meta"
)

// indexSidecar is the bookkeeping state persisted next to the graph blob.
// The graph blob itself is the library's opaque export format.
type indexSidecar struct {
	Version   int
	Items     map[uint64]itemRecord
	Labels    map[string]uint64
	NextID    uint64
	Dimension int
	Space     string
}

// Save writes the index to path+".graph" (opaque graph blob) and
// path+".meta" (bookkeeping sidecar). Both writes are atomic replacements.
func (i *Index) Save(ctx context.Context, path string) error {
	graphBlob, sidecar, err := i.snapshot()
	if err != nil {
		err = &ErrPersistence{Op: "save", Path: path, Cause: err}
		i.logger.LogSnapshot(ctx, "save", path, err)
		return err
	}

	if err := renameio.WriteFile(path+graphSuffix, graphBlob, 0o644); err != nil {
		err = &ErrPersistence{Op: "save", Path: path + graphSuffix, Cause: err}
		i.logger.LogSnapshot(ctx, "save", path, err)
		return err
	}

	if err := persist.WriteFile(path+sidecarSuffix, sidecar); err != nil {
		err = &ErrPersistence{Op: "save", Path: path + sidecarSuffix, Cause: err}
		i.logger.LogSnapshot(ctx, "save", path, err)
		return err
	}

	i.logger.LogSnapshot(ctx, "save", path, nil)

	return nil
}

// SaveToStore writes the index artifacts to a blob store under name+".graph"
// and name+".meta". Writes go through the resource controller's IO throttle.
func (i *Index) SaveToStore(ctx context.Context, store blobstore.BlobStore, name string) error {
	graphBlob, sidecar, err := i.snapshot()
	if err != nil {
		err = &ErrPersistence{Op: "save", Path: name, Cause: err}
		i.logger.LogSnapshot(ctx, "save", name, err)
		return err
	}

	sidecarBlob, err := persist.Marshal(sidecar)
	if err != nil {
		err = &ErrPersistence{Op: "save", Path: name + sidecarSuffix, Cause: err}
		i.logger.LogSnapshot(ctx, "save", name, err)
		return err
	}

	if err := i.opts.Resources.AcquireIO(ctx, len(graphBlob)+len(sidecarBlob)); err != nil {
		return &ErrPersistence{Op: "save", Path: name, Cause: err}
	}

	if err := store.Put(ctx, name+graphSuffix, graphBlob); err != nil {
		err = &ErrPersistence{Op: "save", Path: name + graphSuffix, Cause: err}
		i.logger.LogSnapshot(ctx, "save", name, err)
		return err
	}

	if err := store.Put(ctx, name+sidecarSuffix, sidecarBlob); err != nil {
		err = &ErrPersistence{Op: "save", Path: name + sidecarSuffix, Cause: err}
		i.logger.LogSnapshot(ctx, "save", name, err)
		return err
	}

	i.logger.LogSnapshot(ctx, "save", name, nil)

	return nil
}

// snapshot exports the graph blob and sidecar under the read lock, so the
// two artifacts describe the same state.
func (i *Index) snapshot() ([]byte, indexSidecar, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var buf bytes.Buffer
	if err := i.graph.Export(&buf); err != nil {
		return nil, indexSidecar{}, err
	}

	byID, byLabel, nextID := i.table.snapshot()

	return buf.Bytes(), indexSidecar{
		Version:   sidecarVersion,
		Items:     byID,
		Labels:    byLabel,
		NextID:    nextID,
		Dimension: i.dim,
		Space:     i.distance.String(),
	}, nil
}

// Load reads an index written by Save. Construction parameters not captured
// in the sidecar (M, beam widths, sizing hints) come from the options; the
// dimension and distance space come from the sidecar itself.
func Load(ctx context.Context, path string, optFns ...func(*Options)) (*Index, error) {
	graphBlob, err := os.ReadFile(path + graphSuffix)
	if err != nil {
		return nil, &ErrPersistence{Op: "load", Path: path + graphSuffix, Cause: err}
	}

	var sidecar indexSidecar
	if err := persist.ReadFile(path+sidecarSuffix, &sidecar); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ErrPersistence{Op: "load", Path: path + sidecarSuffix, Cause: err}
		}
		return nil, &ErrCorruptState{Reason: "sidecar unreadable", Cause: err}
	}

	return restoreIndex(ctx, graphBlob, sidecar, optFns)
}

// LoadFromStore reads an index written by SaveToStore.
func LoadFromStore(ctx context.Context, store blobstore.BlobStore, name string, optFns ...func(*Options)) (*Index, error) {
	graphBlob, err := store.Get(ctx, name+graphSuffix)
	if err != nil {
		return nil, &ErrPersistence{Op: "load", Path: name + graphSuffix, Cause: err}
	}

	sidecarBlob, err := store.Get(ctx, name+sidecarSuffix)
	if err != nil {
		return nil, &ErrPersistence{Op: "load", Path: name + sidecarSuffix, Cause: err}
	}

	var sidecar indexSidecar
	if err := persist.Unmarshal(sidecarBlob, &sidecar); err != nil {
		return nil, &ErrCorruptState{Reason: "sidecar unreadable", Cause: err}
	}

	return restoreIndex(ctx, graphBlob, sidecar, optFns)
}

// restoreIndex rebuilds a fully owned Index from the two persisted
// artifacts. The imported graph is private to the returned Index; nothing
// else holds a reference to it.
func restoreIndex(ctx context.Context, graphBlob []byte, sidecar indexSidecar, optFns []func(*Options)) (*Index, error) {
	if sidecar.Version != sidecarVersion {
		return nil, &ErrCorruptState{Reason: "unsupported sidecar version"}
	}
	if sidecar.Dimension <= 0 {
		return nil, &ErrCorruptState{Reason: "sidecar has non-positive dimension"}
	}

	distance, err := ParseDistanceKind(sidecar.Space)
	if err != nil {
		return nil, &ErrCorruptState{Reason: "unknown distance space in sidecar", Cause: err}
	}

	opts := DefaultOptions
	opts.Distance = distance
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Distance = distance

	distFn, err := distance.distanceFunc()
	if err != nil {
		return nil, err
	}

	graph, err := hnsw.NewGraphWithConfig[uint64](opts.M, graphLevelFactor, opts.EFConstruction, distFn)
	if err != nil {
		return nil, err
	}

	if err := graph.Import(bytes.NewReader(graphBlob)); err != nil {
		return nil, &ErrCorruptState{Reason: "graph blob unreadable", Cause: err}
	}
	graph.Distance = distFn
	graph.EfSearch = opts.EFConstruction

	idx := &Index{
		dim:      sidecar.Dimension,
		distance: distance,
		distFn:   distFn,
		opts:     opts,
		graph:    graph,
		ef:       opts.EFConstruction,
		table:    restoreLabelTable(sidecar.Items, sidecar.Labels, sidecar.NextID),
		filters:  newMetadataIndex(),
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
	if idx.logger == nil {
		idx.logger = NoopLogger()
	}
	if idx.metrics == nil {
		idx.metrics = NoopMetricsCollector{}
	}

	for id, rec := range sidecar.Items {
		idx.filters.add(id, rec.Metadata)
	}

	idx.logger.LogSnapshot(ctx, "load", sidecar.Space, nil)

	return idx, nil
}
