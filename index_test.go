package clusterkit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		idx, err := New(3)
		require.NoError(t, err)

		cfg := idx.Config()
		assert.Equal(t, 3, cfg.Dimension)
		assert.Equal(t, DistanceEuclidean, cfg.Distance)
		assert.Equal(t, 10_000, cfg.MaxElements)
		assert.Equal(t, 16, cfg.M)
		assert.Equal(t, 200, cfg.EFConstruction)
		assert.False(t, cfg.Seeded)
		assert.Equal(t, 200, idx.EF())
		assert.True(t, idx.Empty())
	})

	t.Run("InvalidDimension", func(t *testing.T) {
		_, err := New(0)
		var dimErr *ErrInvalidDimension
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 0, dimErr.Dimension)

		_, err = New(-4)
		require.ErrorAs(t, err, &dimErr)
	})

	t.Run("UnsupportedDistance", func(t *testing.T) {
		_, err := New(3, WithDistance(DistanceCosine))
		var unsupported *ErrUnsupportedDistance
		require.ErrorAs(t, err, &unsupported)

		_, err = New(3, WithDistance(DistanceInnerProduct))
		require.ErrorAs(t, err, &unsupported)
	})

	t.Run("UnknownDistanceName", func(t *testing.T) {
		_, err := New(3, WithDistanceName("manhattan"))
		var unknown *ErrUnknownDistance
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "manhattan", unknown.Name)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("EuclideanByName", func(t *testing.T) {
		idx, err := New(3, WithDistanceName("euclidean"))
		require.NoError(t, err)
		assert.Equal(t, DistanceEuclidean, idx.Config().Distance)
	})
}

func TestInsert(t *testing.T) {
	ctx := context.Background()

	t.Run("AutoLabel", func(t *testing.T) {
		idx, err := New(2)
		require.NoError(t, err)

		id, err := idx.Insert(ctx, []float32{1, 2})
		require.NoError(t, err)
		assert.Equal(t, uint64(0), id)

		id, err = idx.Insert(ctx, []float32{3, 4})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), id)

		assert.Equal(t, 2, idx.Size())

		vec, _, ok := idx.Lookup("0")
		require.True(t, ok)
		assert.Equal(t, []float32{1, 2}, vec)
	})

	t.Run("ExplicitLabelAndMetadata", func(t *testing.T) {
		idx, err := New(2)
		require.NoError(t, err)

		_, err = idx.Insert(ctx, []float32{1, 2},
			WithLabel("a"),
			WithMetadata(map[string]string{"color": "red"}),
		)
		require.NoError(t, err)

		vec, md, ok := idx.Lookup("a")
		require.True(t, ok)
		assert.Equal(t, []float32{1, 2}, vec)
		assert.Equal(t, map[string]string{"color": "red"}, md)
	})

	t.Run("DuplicateLabel", func(t *testing.T) {
		idx, err := New(2)
		require.NoError(t, err)

		_, err = idx.Insert(ctx, []float32{1, 2}, WithLabel("a"))
		require.NoError(t, err)

		_, err = idx.Insert(ctx, []float32{3, 4}, WithLabel("a"))
		var dup *ErrDuplicateLabel
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "a", dup.Label)
		assert.Equal(t, 1, idx.Size())
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		idx, err := New(3)
		require.NoError(t, err)

		_, err = idx.Insert(ctx, []float32{1, 2})
		var mismatch *ErrDimensionMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, 3, mismatch.Expected)
		assert.Equal(t, 2, mismatch.Actual)
		assert.True(t, idx.Empty())
	})
}

func TestInsertBatch(t *testing.T) {
	ctx := context.Background()

	vectors := [][]float32{
		{0, 0}, {0, 1}, {10, 10}, {10, 11},
	}

	t.Run("Parallel", func(t *testing.T) {
		idx, err := New(2)
		require.NoError(t, err)

		ids, err := idx.InsertBatch(ctx, vectors, nil, nil)
		require.NoError(t, err)
		assert.Len(t, ids, 4)
		assert.Equal(t, 4, idx.Size())
	})

	t.Run("Seeded", func(t *testing.T) {
		idx, err := New(2, WithSeed(42))
		require.NoError(t, err)

		ids, err := idx.InsertBatch(ctx, vectors, []string{"a", "b", "c", "d"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 1, 2, 3}, ids)
	})

	t.Run("ForcedSerial", func(t *testing.T) {
		idx, err := New(2)
		require.NoError(t, err)

		ids, err := idx.InsertBatch(ctx, vectors, nil, nil, WithSerialInsert())
		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 1, 2, 3}, ids)
	})

	t.Run("LabelShapeMismatch", func(t *testing.T) {
		idx, err := New(2)
		require.NoError(t, err)

		_, err = idx.InsertBatch(ctx, vectors, []string{"a"}, nil)
		var shape *ErrBatchShape
		require.ErrorAs(t, err, &shape)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.True(t, idx.Empty())
	})

	t.Run("DuplicateAbortsKeepsEarlier", func(t *testing.T) {
		idx, err := New(2, WithSeed(1))
		require.NoError(t, err)

		ids, err := idx.InsertBatch(ctx, vectors, []string{"a", "b", "a", "d"}, nil)
		var dup *ErrDuplicateLabel
		require.ErrorAs(t, err, &dup)
		assert.Len(t, ids, 2)
		assert.Equal(t, 2, idx.Size())
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	newPopulated := func(t *testing.T, optFns ...func(*Options)) *Index {
		t.Helper()

		idx, err := New(2, optFns...)
		require.NoError(t, err)

		_, err = idx.InsertBatch(ctx,
			[][]float32{{0, 0}, {0, 1}, {10, 10}, {10, 11}},
			[]string{"a", "b", "c", "d"},
			[]map[string]string{
				{"group": "low"},
				{"group": "low"},
				{"group": "high"},
				{"group": "high"},
			},
		)
		require.NoError(t, err)

		return idx
	}

	t.Run("AscendingDistance", func(t *testing.T) {
		idx := newPopulated(t)

		results, err := idx.Search(ctx, []float32{0, 0}, 3)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, "a", results[0].Label)
		assert.Equal(t, "b", results[1].Label)
		assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
		assert.InDelta(t, 1.0, results[1].Distance, 1e-6)
		assert.LessOrEqual(t, results[1].Distance, results[2].Distance)
		assert.Nil(t, results[0].Metadata)
	})

	t.Run("WithMetadata", func(t *testing.T) {
		idx := newPopulated(t)

		results, err := idx.SearchWithMetadata(ctx, []float32{10, 10}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "c", results[0].Label)
		assert.Equal(t, map[string]string{"group": "high"}, results[0].Metadata)
	})

	t.Run("EFOverridePersists", func(t *testing.T) {
		idx := newPopulated(t)

		_, err := idx.Search(ctx, []float32{0, 0}, 1, WithEF(321))
		require.NoError(t, err)
		assert.Equal(t, 321, idx.EF())
	})

	t.Run("SetEF", func(t *testing.T) {
		idx := newPopulated(t)

		require.NoError(t, idx.SetEF(55))
		assert.Equal(t, 55, idx.EF())

		assert.ErrorIs(t, idx.SetEF(0), ErrInvalidArgument)
	})

	t.Run("QueryDimensionMismatch", func(t *testing.T) {
		idx := newPopulated(t)

		_, err := idx.Search(ctx, []float32{0, 0, 0}, 1)
		var mismatch *ErrDimensionMismatch
		require.ErrorAs(t, err, &mismatch)
	})

	t.Run("InvalidK", func(t *testing.T) {
		idx := newPopulated(t)

		_, err := idx.Search(ctx, []float32{0, 0}, 0)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("Filter", func(t *testing.T) {
		idx := newPopulated(t)

		results, err := idx.SearchWithFilter(ctx, []float32{0, 0}, 10, map[string]string{"group": "high"})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "c", results[0].Label)
		assert.Equal(t, "d", results[1].Label)
		for _, r := range results {
			assert.Equal(t, "high", r.Metadata["group"])
		}
	})

	t.Run("FilterNoMatch", func(t *testing.T) {
		idx := newPopulated(t)

		results, err := idx.SearchWithFilter(ctx, []float32{0, 0}, 10, map[string]string{"group": "none"})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("FilterRequiresPredicate", func(t *testing.T) {
		idx := newPopulated(t)

		_, err := idx.SearchWithFilter(ctx, []float32{0, 0}, 10, nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestStats(t *testing.T) {
	ctx := context.Background()

	idx, err := New(2, WithMetricsCollector(NewBasicMetricsCollector()))
	require.NoError(t, err)

	_, err = idx.Insert(ctx, []float32{1, 1})
	require.NoError(t, err)

	stats := idx.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 2, stats.Dimension)
	assert.Equal(t, DistanceEuclidean, stats.Distance)
}

func TestMetricsCollection(t *testing.T) {
	ctx := context.Background()

	collector := NewBasicMetricsCollector()
	idx, err := New(2, WithMetricsCollector(collector))
	require.NoError(t, err)

	_, err = idx.Insert(ctx, []float32{1, 1})
	require.NoError(t, err)

	_, err = idx.Search(ctx, []float32{1, 1}, 1)
	require.NoError(t, err)

	_, err = idx.Insert(ctx, []float32{1})
	require.Error(t, err)

	snap := collector.Snapshot()
	assert.Equal(t, int64(1), snap.Inserts)
	assert.Equal(t, int64(1), snap.Searches)
	assert.Equal(t, int64(1), snap.SearchResults)
	assert.Equal(t, int64(1), snap.Errors)
}

func TestParseDistanceKind(t *testing.T) {
	for _, tc := range []struct {
		name string
		want DistanceKind
	}{
		{"euclidean", DistanceEuclidean},
		{"cosine", DistanceCosine},
		{"inner_product", DistanceInnerProduct},
	} {
		got, err := ParseDistanceKind(tc.name)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.name, got.String())
	}

	_, err := ParseDistanceKind("chebyshev")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}
