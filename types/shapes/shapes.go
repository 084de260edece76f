// Package shapes defines Shape, the dtype and dimensions of a tensor value.
//
// A Shape describes either a tensors.Tensor held in memory or the value a
// graph node is expected to produce: a DType (the element type, an alias of
// github.com/gomlx/gopjrt/dtypes.DType) plus one dimension per axis. A rank 0
// shape with a valid DType is a scalar.
//
// Example: `[][]int32{{0, 1, 2}, {3, 4, 5}}` converted to a tensor has shape
// `(Int32)[2 3]`: rank 2, axis 0 with dimension 2 and axis 1 with dimension 3.
// It would be created with `shapes.Make(dtypes.Int32, 2, 3)`.
//
// Float16 values use the github.com/x448/float16 implementation, and bfloat16
// the one in github.com/gomlx/gopjrt/dtypes/bfloat16.
package shapes

import (
	"encoding/gob"
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Shape of a tensor value: element DType plus one dimension per axis.
//
// Use Make to create one; the zero value is invalid (Ok returns false).
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// Make returns a Shape with the given element type and dimensions.
//
// All dimensions must be positive: there is no representation for empty
// tensors. It panics otherwise.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}
	for _, dim := range dimensions {
		if dim <= 0 {
			exceptions.Panicf("shapes.Make(%s): dimensions must be > 0", s)
		}
	}
	return s
}

// Scalar returns the rank 0 shape holding one element of the given type.
func Scalar[T dtypes.Number]() Shape {
	return Shape{DType: dtypes.FromGenericsType[T]()}
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok reports whether the shape is valid. The zero value Shape{} is not.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, the number of axes. Scalars have rank 0.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar reports whether the shape is valid and has rank 0.
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// Dim returns the dimension of the given axis. Negative values count from the
// end, so Dim(-1) is the dimension of the last axis. It panics if the axis is
// out of bounds.
func (s Shape) Dim(axis int) int {
	idx := axis
	if idx < 0 {
		idx += s.Rank()
	}
	if idx < 0 || idx >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d): shape %s has rank %d", axis, s, s.Rank())
	}
	return s.Dimensions[idx]
}

// String implements fmt.Stringer, printing "(DType)[dims...]".
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	return fmt.Sprintf("(%s)%v", s.DType, s.Dimensions)
}

// Size is the total number of elements, the product of all dimensions.
// Scalars have size 1.
func (s Shape) Size() int {
	size := 1
	for _, dim := range s.Dimensions {
		size *= dim
	}
	return size
}

// Memory is the number of bytes needed to store Size elements of DType.
func (s Shape) Memory() uintptr {
	return s.DType.Memory() * uintptr(s.Size())
}

// Equal reports whether both shapes have the same DType and dimensions.
func (s Shape) Equal(s2 Shape) bool {
	return s.DType == s2.DType && slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a copy of the shape that shares no storage with the original.
func (s Shape) Clone() Shape {
	return Shape{DType: s.DType, Dimensions: slices.Clone(s.Dimensions)}
}

// GobSerialize the shape to the encoder.
func (s Shape) GobSerialize(encoder *gob.Encoder) error {
	if err := encoder.Encode(s.DType); err != nil {
		return errors.Wrapf(err, "failed to serialize Shape %s", s)
	}
	if err := encoder.Encode(s.Dimensions); err != nil {
		return errors.Wrapf(err, "failed to serialize Shape %s", s)
	}
	return nil
}

// GobDeserialize a Shape from the decoder. Returns the new Shape or an error.
func GobDeserialize(decoder *gob.Decoder) (s Shape, err error) {
	if err = decoder.Decode(&s.DType); err != nil {
		return s, errors.Wrapf(err, "failed to deserialize Shape")
	}
	if err = decoder.Decode(&s.Dimensions); err != nil {
		return s, errors.Wrapf(err, "failed to deserialize Shape")
	}
	return s, nil
}
