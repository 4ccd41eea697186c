// Package metric provides the distance kernels shared by the index, the
// embedding pipeline, and the clustering engine.
package metric

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/viterin/vek"
	"github.com/viterin/vek/vek32"
)

// ErrLengthMismatch is returned when two vectors have different lengths.
var ErrLengthMismatch = errors.New("vector sizes do not match")

// Euclidean calculates the Euclidean (L2) distance between two float32 slices.
func Euclidean(v1, v2 []float32) (float32, error) {
	if len(v1) != len(v2) {
		return 0, ErrLengthMismatch
	}
	return vek32.Distance(v1, v2), nil
}

// SquaredL2 calculates the squared L2 distance between two float32 slices.
func SquaredL2(v1, v2 []float32) (float32, error) {
	if len(v1) != len(v2) {
		return 0, ErrLengthMismatch
	}
	d := vek32.Distance(v1, v2)
	return d * d, nil
}

// Magnitude calculates the magnitude (length) of a float32 slice.
func Magnitude(v []float32) float32 {
	return math32.Sqrt(vek32.Dot(v, v))
}

// CosineSimilarity calculates the cosine similarity between two float32 slices.
func CosineSimilarity(v1, v2 []float32) (float32, error) {
	if len(v1) != len(v2) {
		return 0, ErrLengthMismatch
	}

	magA := Magnitude(v1)
	magB := Magnitude(v2)

	// Avoid division by zero.
	if magA == 0 || magB == 0 {
		return 0, nil
	}

	return vek32.Dot(v1, v2) / (magA * magB), nil
}

// Euclidean64 calculates the Euclidean distance between two float64 slices.
// The clustering engine operates in double precision.
func Euclidean64(v1, v2 []float64) float64 {
	return vek.Distance(v1, v2)
}

// SquaredL264 calculates the squared L2 distance between two float64 slices.
func SquaredL264(v1, v2 []float64) float64 {
	d := vek.Distance(v1, v2)
	return d * d
}
