package clustering

import (
	"context"
	"errors"
	"testing"

	"github.com/clusterkit/clusterkit"
	"github.com/clusterkit/clusterkit/matrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingClusterer captures the clamped parameters and returns canned
// labels.
type recordingClusterer struct {
	minSamples     int
	minClusterSize int
	labels         []int
	err            error
}

func (c *recordingClusterer) Cluster(_ context.Context, rows [][]float64, minSamples, minClusterSize int) ([]int, error) {
	c.minSamples = minSamples
	c.minClusterSize = minClusterSize
	if c.err != nil {
		return nil, c.err
	}
	if c.labels != nil {
		return c.labels, nil
	}
	return make([]int, len(rows)), nil
}

func fiveRows() [][]float64 {
	return [][]float64{
		{0, 0}, {0, 1}, {1, 0}, {10, 10}, {10, 11},
	}
}

func TestHDBSCAN(t *testing.T) {
	ctx := context.Background()

	t.Run("ClampsParameters", func(t *testing.T) {
		clusterer := &recordingClusterer{}

		_, err := HDBSCAN(ctx, fiveRows(), clusterer,
			WithMinSamples(10),
			WithMinClusterSize(10),
		)
		require.NoError(t, err)

		assert.Equal(t, 4, clusterer.minSamples)
		assert.Equal(t, 5, clusterer.minClusterSize)
	})

	t.Run("ClampsFloor", func(t *testing.T) {
		clusterer := &recordingClusterer{}

		_, err := HDBSCAN(ctx, fiveRows(), clusterer,
			WithMinSamples(0),
			WithMinClusterSize(0),
		)
		require.NoError(t, err)

		assert.Equal(t, 1, clusterer.minSamples)
		assert.Equal(t, 2, clusterer.minClusterSize)
	})

	t.Run("PassesThroughInRange", func(t *testing.T) {
		clusterer := &recordingClusterer{}

		_, err := HDBSCAN(ctx, fiveRows(), clusterer,
			WithMinSamples(3),
			WithMinClusterSize(4),
		)
		require.NoError(t, err)

		assert.Equal(t, 3, clusterer.minSamples)
		assert.Equal(t, 4, clusterer.minClusterSize)
	})

	t.Run("SynthesizesScores", func(t *testing.T) {
		clusterer := &recordingClusterer{
			labels: []int{0, 0, NoiseLabel, 1, 1},
		}

		result, err := HDBSCAN(ctx, fiveRows(), clusterer)
		require.NoError(t, err)

		assert.Equal(t, []int{0, 0, -1, 1, 1}, result.Labels)
		assert.Equal(t, []float64{1, 1, 0, 1, 1}, result.Probabilities)
		assert.Equal(t, []float64{0, 0, 1, 0, 0}, result.OutlierScores)
		assert.Equal(t, 2, result.NClusters())
	})

	t.Run("NilClusterer", func(t *testing.T) {
		_, err := HDBSCAN(ctx, fiveRows(), nil)
		assert.ErrorIs(t, err, clusterkit.ErrNotImplemented)
	})

	t.Run("ClustererError", func(t *testing.T) {
		wantErr := errors.New("mst failed")
		clusterer := &recordingClusterer{err: wantErr}

		_, err := HDBSCAN(ctx, fiveRows(), clusterer)
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("LabelCountMismatch", func(t *testing.T) {
		clusterer := &recordingClusterer{labels: []int{0}}

		_, err := HDBSCAN(ctx, fiveRows(), clusterer)
		assert.ErrorIs(t, err, clusterkit.ErrInvalidArgument)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		_, err := HDBSCAN(ctx, nil, &recordingClusterer{})
		assert.ErrorIs(t, err, matrix.ErrEmpty)
	})
}
