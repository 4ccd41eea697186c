// Package matrix provides validation and precision conversion for the
// rectangular numeric matrices accepted by the public API surfaces.
package matrix

import (
	"errors"
	"fmt"
)

// ErrEmpty is returned when an input matrix has no rows.
var ErrEmpty = errors.New("input data cannot be empty")

// ErrRowLengthMismatch indicates a ragged input matrix.
//
// Row is the index of the first offending row.
type ErrRowLengthMismatch struct {
	Row      int
	Expected int
	Actual   int
}

func (e *ErrRowLengthMismatch) Error() string {
	return fmt.Sprintf("row %d has %d elements, expected %d", e.Row, e.Actual, e.Expected)
}

// Validate checks that rows form a non-empty rectangular matrix and returns
// its width. The first inconsistent row aborts validation.
func Validate(rows [][]float64) (int, error) {
	if len(rows) == 0 {
		return 0, ErrEmpty
	}

	width := len(rows[0])
	for i, row := range rows {
		if len(row) != width {
			return 0, &ErrRowLengthMismatch{Row: i, Expected: width, Actual: len(row)}
		}
	}

	return width, nil
}

// Validate32 is Validate for single-precision matrices.
func Validate32(rows [][]float32) (int, error) {
	if len(rows) == 0 {
		return 0, ErrEmpty
	}

	width := len(rows[0])
	for i, row := range rows {
		if len(row) != width {
			return 0, &ErrRowLengthMismatch{Row: i, Expected: width, Actual: len(row)}
		}
	}

	return width, nil
}

// ToFloat32 lowers a double-precision matrix to single precision.
// Rows are copied; the input is not retained.
func ToFloat32(rows [][]float64) [][]float32 {
	out := make([][]float32, len(rows))
	for i, row := range rows {
		lowered := make([]float32, len(row))
		for j, v := range row {
			lowered[j] = float32(v)
		}
		out[i] = lowered
	}
	return out
}

// ToFloat64 widens a single-precision matrix to double precision.
func ToFloat64(rows [][]float32) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		widened := make([]float64, len(row))
		for j, v := range row {
			widened[j] = float64(v)
		}
		out[i] = widened
	}
	return out
}

// Clone returns a deep copy of a double-precision matrix.
func Clone(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		cp := make([]float64, len(row))
		copy(cp, row)
		out[i] = cp
	}
	return out
}
