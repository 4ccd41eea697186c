package clusterkit

import "fmt"

// EstimateIntrinsicDimension estimates the intrinsic dimensionality of a
// dataset. Not yet implemented; kept for API parity.
func EstimateIntrinsicDimension(rows [][]float64) (float64, error) {
	return 0, fmt.Errorf("intrinsic dimension estimation: %w", ErrNotImplemented)
}

// EstimateHubness estimates the hubness of a dataset. Not yet implemented;
// kept for API parity.
func EstimateHubness(rows [][]float64) (float64, error) {
	return 0, fmt.Errorf("hubness estimation: %w", ErrNotImplemented)
}
