package clusterkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimators(t *testing.T) {
	rows := [][]float64{{1, 2}, {3, 4}}

	_, err := EstimateIntrinsicDimension(rows)
	assert.ErrorIs(t, err, ErrNotImplemented)

	_, err = EstimateHubness(rows)
	assert.ErrorIs(t, err, ErrNotImplemented)
}
