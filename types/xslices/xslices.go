// Package xslices provides the slice helpers used throughout graphopt, a
// complement to the standard `slices` package.
package xslices

import (
	"golang.org/x/exp/constraints"
)

// Number is a Go numeric type usable as a slice element for the arithmetic
// helpers of this package.
type Number interface {
	constraints.Integer | constraints.Float
}

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// Iota returns a slice of incremental int values, starting with start and of length count.
// E.g: Iota(3.0, 2) -> []float64{3.0, 4.0}.
func Iota[T Number](start T, count int) (slice []T) {
	slice = make([]T, count)
	for ii := range slice {
		slice[ii] = start + T(ii)
	}
	return
}

// FillSlice with the given value, in place.
func FillSlice[T any](slice []T, value T) {
	for ii := range slice {
		slice[ii] = value
	}
}

// SliceWithValue creates a slice of the given size filled with the given value.
func SliceWithValue[T any](size int, value T) []T {
	slice := make([]T, size)
	FillSlice(slice, value)
	return slice
}

// Copy returns a new copy of the given slice. A nil slice yields a nil copy.
func Copy[T any](slice []T) []T {
	if slice == nil {
		return nil
	}
	slice2 := make([]T, len(slice))
	copy(slice2, slice)
	return slice2
}

// At returns the element at the given index. A negative idx counts from the
// end of the slice, so At(slice, -1) is the last element.
// Like normal indexing, it panics on out-of-bounds access.
func At[T any](slice []T, idx int) T {
	if idx < 0 {
		idx = len(slice) + idx
	}
	return slice[idx]
}

// Last returns the last element of the slice.
func Last[T any](slice []T) T {
	return At(slice, -1)
}

// Pop removes the last element of the slice and returns it along with the
// shortened slice. It panics on an empty slice.
func Pop[T any](slice []T) (T, []T) {
	element := Last(slice)
	return element, slice[:len(slice)-1]
}
