package clusterkit

import (
	"github.com/TFMV/hnsw"
)

// DistanceKind identifies the distance space of an index. It is fixed at
// construction and immutable thereafter.
type DistanceKind int

const (
	// DistanceEuclidean is the L2 distance. The only space currently backed
	// by the graph library.
	DistanceEuclidean DistanceKind = iota

	// DistanceCosine is recognized but not yet implemented.
	DistanceCosine

	// DistanceInnerProduct is recognized but not yet implemented.
	DistanceInnerProduct
)

// String returns the stable name persisted in the index sidecar.
func (dk DistanceKind) String() string {
	switch dk {
	case DistanceEuclidean:
		return "euclidean"
	case DistanceCosine:
		return "cosine"
	case DistanceInnerProduct:
		return "inner_product"
	default:
		return "unknown"
	}
}

// ParseDistanceKind parses a distance-space name. Unrecognized names fail
// with ErrUnknownDistance.
func ParseDistanceKind(name string) (DistanceKind, error) {
	switch name {
	case "euclidean":
		return DistanceEuclidean, nil
	case "cosine":
		return DistanceCosine, nil
	case "inner_product":
		return DistanceInnerProduct, nil
	default:
		return 0, &ErrUnknownDistance{Name: name}
	}
}

// distanceFunc returns the graph-library kernel for the distance kind, or an
// ErrUnsupportedDistance for recognized-but-unimplemented kinds.
func (dk DistanceKind) distanceFunc() (hnsw.DistanceFunc, error) {
	switch dk {
	case DistanceEuclidean:
		return hnsw.EuclideanDistance, nil
	case DistanceCosine, DistanceInnerProduct:
		return nil, &ErrUnsupportedDistance{Space: dk}
	default:
		return nil, &ErrUnknownDistance{Name: dk.String()}
	}
}
