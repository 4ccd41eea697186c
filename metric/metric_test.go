package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEuclidean(t *testing.T) {
	t.Run("KnownDistance", func(t *testing.T) {
		d, err := Euclidean([]float32{0, 0}, []float32{3, 4})
		require.NoError(t, err)
		assert.InDelta(t, 5.0, d, 1e-6)
	})

	t.Run("ZeroDistance", func(t *testing.T) {
		d, err := Euclidean([]float32{1, 2, 3}, []float32{1, 2, 3})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, d, 1e-6)
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		_, err := Euclidean([]float32{1}, []float32{1, 2})
		assert.ErrorIs(t, err, ErrLengthMismatch)
	})
}

func TestSquaredL2(t *testing.T) {
	d, err := SquaredL2([]float32{0, 0}, []float32{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 25.0, d, 1e-5)
}

func TestMagnitude(t *testing.T) {
	assert.InDelta(t, 5.0, Magnitude([]float32{3, 4}), 1e-6)
	assert.InDelta(t, 0.0, Magnitude([]float32{0, 0}), 1e-6)
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("Parallel", func(t *testing.T) {
		s, err := CosineSimilarity([]float32{1, 0}, []float32{2, 0})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, s, 1e-6)
	})

	t.Run("Orthogonal", func(t *testing.T) {
		s, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, s, 1e-6)
	})

	t.Run("ZeroVector", func(t *testing.T) {
		s, err := CosineSimilarity([]float32{0, 0}, []float32{1, 1})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, s, 1e-6)
	})
}

func TestFloat64Variants(t *testing.T) {
	assert.InDelta(t, 5.0, Euclidean64([]float64{0, 0}, []float64{3, 4}), 1e-12)
	assert.InDelta(t, 25.0, SquaredL264([]float64{0, 0}, []float64{3, 4}), 1e-12)
}
