package clusterkit

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for arguments that are recognized as
	// malformed rather than unsupported (e.g. an unknown distance space).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotImplemented is returned by stub surfaces kept for API parity.
	ErrNotImplemented = errors.New("not implemented")
)

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("dim must be a positive integer (got %d)", e.Dimension)
}

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrDuplicateLabel indicates an insert with a label that is already present.
type ErrDuplicateLabel struct {
	Label string
}

func (e *ErrDuplicateLabel) Error() string {
	return fmt.Sprintf("label %q already exists in index", e.Label)
}

// ErrUnsupportedDistance indicates a distance space that is recognized but not
// yet implemented.
type ErrUnsupportedDistance struct {
	Space DistanceKind
}

func (e *ErrUnsupportedDistance) Error() string {
	return fmt.Sprintf("%s distance is not yet implemented, use euclidean", e.Space)
}

// ErrUnknownDistance indicates a distance space name that is not recognized
// at all. It unwraps to ErrInvalidArgument.
type ErrUnknownDistance struct {
	Name string
}

func (e *ErrUnknownDistance) Error() string {
	return fmt.Sprintf("space must be euclidean, cosine, or inner_product (got: %s)", e.Name)
}

func (e *ErrUnknownDistance) Unwrap() error { return ErrInvalidArgument }

// ErrBatchShape indicates a batch side-array whose length does not match the
// vector count. It unwraps to ErrInvalidArgument.
type ErrBatchShape struct {
	Field    string
	Expected int
	Actual   int
}

func (e *ErrBatchShape) Error() string {
	return fmt.Sprintf("batch %s length %d does not match %d vectors", e.Field, e.Actual, e.Expected)
}

func (e *ErrBatchShape) Unwrap() error { return ErrInvalidArgument }

// ErrPersistence indicates a failed read or write of a persisted artifact
// (missing file, unreadable store, failed write).
type ErrPersistence struct {
	Op    string // "save" or "load"
	Path  string
	Cause error
}

func (e *ErrPersistence) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Cause)
}

func (e *ErrPersistence) Unwrap() error { return e.Cause }

// ErrCorruptState indicates a persisted artifact that was read but could not
// be understood: sidecar decode failures and unknown enum values.
type ErrCorruptState struct {
	Reason string
	Cause  error
}

func (e *ErrCorruptState) Error() string {
	return fmt.Sprintf("corrupt persisted state: %s", e.Reason)
}

func (e *ErrCorruptState) Unwrap() error { return e.Cause }
