package clusterkit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/clusterkit/clusterkit/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populateIndex(t *testing.T) *Index {
	t.Helper()

	idx, err := New(2, WithSeed(7))
	require.NoError(t, err)

	_, err = idx.InsertBatch(context.Background(),
		[][]float32{{0, 0}, {0, 1}, {10, 10}},
		[]string{"a", "b", "c"},
		[]map[string]string{
			{"group": "low"},
			{"group": "low"},
			{"group": "high"},
		},
	)
	require.NoError(t, err)

	return idx
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		idx := populateIndex(t)

		path := filepath.Join(t.TempDir(), "index")
		require.NoError(t, idx.Save(ctx, path))

		loaded, err := Load(ctx, path)
		require.NoError(t, err)

		assert.Equal(t, 3, loaded.Size())
		assert.Equal(t, 2, loaded.Dimension())
		assert.Equal(t, DistanceEuclidean, loaded.Config().Distance)

		results, err := loaded.SearchWithMetadata(ctx, []float32{0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "a", results[0].Label)
		assert.Equal(t, "low", results[0].Metadata["group"])

		vec, _, ok := loaded.Lookup("c")
		require.True(t, ok)
		assert.Equal(t, []float32{10, 10}, vec)
	})

	t.Run("InsertAfterLoad", func(t *testing.T) {
		idx := populateIndex(t)

		path := filepath.Join(t.TempDir(), "index")
		require.NoError(t, idx.Save(ctx, path))

		loaded, err := Load(ctx, path)
		require.NoError(t, err)

		id, err := loaded.Insert(ctx, []float32{5, 5}, WithLabel("d"))
		require.NoError(t, err)
		assert.Equal(t, uint64(3), id)
		assert.Equal(t, 4, loaded.Size())
	})

	t.Run("FilterSurvivesLoad", func(t *testing.T) {
		idx := populateIndex(t)

		path := filepath.Join(t.TempDir(), "index")
		require.NoError(t, idx.Save(ctx, path))

		loaded, err := Load(ctx, path)
		require.NoError(t, err)

		results, err := loaded.SearchWithFilter(ctx, []float32{0, 0}, 10, map[string]string{"group": "low"})
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("MissingArtifacts", func(t *testing.T) {
		_, err := Load(ctx, filepath.Join(t.TempDir(), "absent"))
		var perr *ErrPersistence
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "load", perr.Op)
	})
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	t.Run("Memory", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		idx := populateIndex(t)

		require.NoError(t, idx.SaveToStore(ctx, store, "snapshots/index"))

		loaded, err := LoadFromStore(ctx, store, "snapshots/index")
		require.NoError(t, err)
		assert.Equal(t, 3, loaded.Size())

		results, err := loaded.Search(ctx, []float32{10, 10}, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "c", results[0].Label)
	})

	t.Run("Local", func(t *testing.T) {
		store := blobstore.NewLocalStore(t.TempDir())
		idx := populateIndex(t)

		require.NoError(t, idx.SaveToStore(ctx, store, "index"))

		loaded, err := LoadFromStore(ctx, store, "index")
		require.NoError(t, err)
		assert.Equal(t, 3, loaded.Size())
	})

	t.Run("MissingBlob", func(t *testing.T) {
		store := blobstore.NewMemoryStore()

		_, err := LoadFromStore(ctx, store, "nothing")
		var perr *ErrPersistence
		require.ErrorAs(t, err, &perr)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}
