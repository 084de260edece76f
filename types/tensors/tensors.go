// Package tensors implements a Tensor, a representation of a multidimensional array kept in host memory.
//
// Tensors are multidimensional arrays (from scalar with 0 dimensions, to arbitrarily large dimensions),
// defined by their shape (a data type and its axes' dimensions) and their actual content, stored as a
// flat (1D) slice of the Go type corresponding to the DType.
//
// In graphopt they serve two roles: the payload of a Const node attribute, and the value computed by the
// evaluator for a folded subgraph.
//
// There are various ways to construct a Tensor:
//
//   - FromShape(shape shapes.Shape): creates a tensor with the given shape, and zero values.
//
//   - FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int): creates a Tensor with the
//     given dimensions, filled with the scalar value given. `T` must be one of the supported types.
//
//   - FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int): creates a Tensor with the
//     given dimensions and sets the flattened values with the given data. Example:
//
//     t := FromFlatDataAndDimensions([]int8{1, 2, 3, 4}, 2, 2) // Tensor with [[1,2], [3,4]]
//
//   - FromValue[S MultiDimensionSlice](value S): Generic conversion that works with the scalar supported
//     `DType`s as well as with any arbitrary multidimensional slice of them. Slices of rank > 1 must be
//     regular, that is, all the sub-slices must have the same shape. Example:
//
//     t := FromValue([][]float32{{1, 2}, {3, 5}, {7, 11}})
//
//   - FromAnyValue(value any): same as FromValue but non-generic, it takes an anonymous type `any`. The
//     exception is if `value` is already a tensor, then it is a no-op, and it returns the tensor itself.
package tensors

import (
	"encoding/gob"
	"fmt"
	"reflect"
	"strconv"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/gomlx/graphopt/types/shapes"
	"github.com/gomlx/graphopt/types/xslices"
)

// Tensor represents a multidimensional array of one of the supported DTypes, stored in host memory
// as a flat slice.
//
// The shape is immutable after construction. The flat data can be read with Tensor.ConstFlatData (or
// the generic ConstFlatData[T]) and mutated with Tensor.MutableFlatData.
type Tensor struct {
	// shape of the tensor. Immutable.
	shape shapes.Shape

	// flat holds the actual data, a slice of the Go type for shape.DType, of length shape.Size().
	flat any
}

// MaxSizeToPrint is the largest number of elements Tensor.String prints in full. Larger tensors
// print only their shape and memory size.
const MaxSizeToPrint = 32

// FromShape returns a Tensor with the given shape, with the data initialized with zeros.
//
// It panics if the shape is invalid.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		exceptions.Panicf("tensors.FromShape: invalid shape %s", shape)
	}
	flatV := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), shape.Size(), shape.Size())
	return &Tensor{
		shape: shape.Clone(),
		flat:  flatV.Interface(),
	}
}

// Shape of the tensor, includes the DType.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's shape.
func (t *Tensor) DType() dtypes.DType {
	if t == nil {
		return dtypes.InvalidDType
	}
	return t.shape.DType
}

// Rank of the tensor's shape.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// IsScalar returns whether the tensor represents a scalar value.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// Size is the number of elements stored in the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory returns the number of bytes used to store the tensor data.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// Ok returns whether the Tensor is in a valid state.
func (t *Tensor) Ok() bool {
	return t != nil && t.shape.Ok() && t.flat != nil
}

// CheckValid returns an error if the tensor is nil or in an invalid state.
func (t *Tensor) CheckValid() error {
	if t == nil {
		return errors.New("Tensor is nil")
	}
	if !t.shape.Ok() {
		return errors.New("Tensor shape is invalid")
	}
	if t.flat == nil {
		return errors.New("Tensor has no data")
	}
	return nil
}

// AssertValid panics if the tensor is nil or in an invalid state.
func (t *Tensor) AssertValid() {
	if err := t.CheckValid(); err != nil {
		panic(err)
	}
}

// ConstFlatData calls accessFn with the flattened data as a slice of the Go type corresponding to
// the DType. Even scalar values have a flattened representation of one element.
//
// The slice is the actual Tensor data (not a copy), owned by the Tensor; it must not be changed --
// see Tensor.MutableFlatData for that.
func (t *Tensor) ConstFlatData(accessFn func(flat any)) {
	t.AssertValid()
	accessFn(t.flat)
}

// MutableFlatData calls accessFn with the flattened data as a slice of the Go type corresponding to
// the DType. The contents of the slice can be changed until accessFn returns.
func (t *Tensor) MutableFlatData(accessFn func(flat any)) {
	t.AssertValid()
	accessFn(t.flat)
}

// ConstFlatData calls accessFn with the flattened data as a slice of the given type T.
//
// It is the "generics" version of Tensor.ConstFlatData, and panics if T doesn't match the tensor's
// DType.
func ConstFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	if t.shape.DType != dtypes.FromGenericsType[T]() {
		var v T
		exceptions.Panicf("tensors.ConstFlatData[%T] is incompatible with Tensor's dtype %s", v, t.shape.DType)
	}
	t.ConstFlatData(func(anyFlat any) {
		accessFn(anyFlat.([]T))
	})
}

// MutableFlatData calls accessFn with the flattened data as a slice of the given type T, which can
// be mutated until accessFn returns.
//
// It is the "generics" version of Tensor.MutableFlatData, and panics if T doesn't match the tensor's
// DType.
func MutableFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	if t.shape.DType != dtypes.FromGenericsType[T]() {
		var v T
		exceptions.Panicf("tensors.MutableFlatData[%T] is incompatible with Tensor's dtype %s", v, t.shape.DType)
	}
	t.MutableFlatData(func(anyFlat any) {
		accessFn(anyFlat.([]T))
	})
}

// CopyFlatData returns a copy of the flat data of the Tensor.
//
// It panics if the given generic type doesn't match the DType of the tensor.
func CopyFlatData[T dtypes.Supported](t *Tensor) []T {
	var flatCopy []T
	ConstFlatData(t, func(flat []T) {
		flatCopy = xslices.Copy(flat)
	})
	return flatCopy
}

// ToScalar returns the scalar value of the Tensor.
//
// It panics if the given generic type doesn't match the DType of the tensor, or if the tensor is not
// a scalar.
func ToScalar[T dtypes.Supported](t *Tensor) T {
	t.AssertValid()
	if t.shape.DType != dtypes.FromGenericsType[T]() {
		var v T
		exceptions.Panicf("tensors.ToScalar[%T] is incompatible with Tensor's dtype %s", v, t.shape.DType)
	}
	if !t.shape.IsScalar() {
		var v T
		exceptions.Panicf("tensors.ToScalar[%T] requires scalar Tensor, got shape %s instead", v, t.shape)
	}
	return t.flat.([]T)[0]
}

// FromScalar creates a scalar tensor with the given value.
// The `DType` is inferred from the value.
func FromScalar[T dtypes.Supported](value T) *Tensor {
	return FromScalarAndDimensions(value)
}

// FromScalarAndDimensions creates a tensor with the given dimensions, filled with the given scalar
// value replicated everywhere. The `DType` is inferred from the value.
func FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	t := FromShape(shape)
	MutableFlatData(t, func(flat []T) {
		xslices.FillSlice(flat, value)
	})
	return t
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with the flattened
// values given in `data`. The data is copied into the Tensor. The `DType` is inferred from the
// `data` element type.
//
// It panics if the size of data doesn't match the dimensions.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("tensors.FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d",
			shape, len(data), shape.Size())
	}
	t := FromShape(shape)
	var dummy T
	if _, isInt := any(dummy).(int); isInt {
		// The underlying storage is int32 or int64 depending on the platform; copy the raw bytes.
		t.mutableBytes(func(tensorData []byte) {
			dataAsBytes := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(data))), uintptr(len(data))*unsafe.Sizeof(dummy))
			copy(tensorData, dataAsBytes)
		})
	} else {
		MutableFlatData(t, func(flat []T) {
			copy(flat, data)
		})
	}
	return t
}

// MultiDimensionSlice lists the Go types a Tensor can be converted to/from. There are no recursions in
// generics' constraint definitions, so we list up to 5 levels of slices.
type MultiDimensionSlice interface {
	bool | int | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64 |
		[]bool | []int | []int8 | []int16 | []int32 | []int64 | []uint8 | []uint16 | []uint32 | []uint64 | []float32 | []float64 |
		[][]bool | [][]int | [][]int8 | [][]int16 | [][]int32 | [][]int64 | [][]uint8 | [][]uint16 | [][]uint32 | [][]uint64 | [][]float32 | [][]float64 |
		[][][]bool | [][][]int | [][][]int8 | [][][]int16 | [][][]int32 | [][][]int64 | [][][]uint8 | [][][]uint16 | [][][]uint32 | [][][]uint64 | [][][]float32 | [][][]float64 |
		[][][][]bool | [][][][]int | [][][][]int8 | [][][][]int16 | [][][][]int32 | [][][][]int64 | [][][][]uint8 | [][][][]uint16 | [][][][]uint32 | [][][][]uint64 | [][][][]float32 | [][][][]float64
}

// FromValue returns a Tensor constructed from the given multi-dimension slice (or scalar).
// If the rank of the `value` is larger than 1, the shape of all sub-slices must be the same.
//
// It panics if the shape is not regular.
//
// Notice that FromFlatDataAndDimensions is faster if speed is a concern.
func FromValue[S MultiDimensionSlice](value S) *Tensor {
	return FromAnyValue(value)
}

// FromAnyValue is a non-generic version of FromValue.
// The input is expected to be either a scalar or a slice of slices with homogeneous dimensions.
// If the input is a tensor already, it is simply returned.
//
// It panics if the value type is unsupported or if the shape is not regular.
func FromAnyValue(value any) *Tensor {
	if valueT, ok := value.(*Tensor); ok {
		return valueT
	}
	shape, err := shapeForValue(value)
	if err != nil {
		panic(errors.Wrapf(err, "cannot create a tensor from %T", value))
	}
	t := FromShape(shape)
	t.MutableFlatData(func(flatAny any) {
		if baseType(reflect.TypeOf(value)) == reflect.TypeOf(int(0)) {
			// Go `int` is int32 or int64 depending on the architecture. Recast the flat slice as
			// []int so reflect.Copy below works without converting values one by one.
			if strconv.IntSize == 64 {
				flatRef := flatAny.([]int64)
				flatAny = unsafe.Slice((*int)(unsafe.Pointer(unsafe.SliceData(flatRef))), len(flatRef))
			} else {
				flatRef := flatAny.([]int32)
				flatAny = unsafe.Slice((*int)(unsafe.Pointer(unsafe.SliceData(flatRef))), len(flatRef))
			}
		}
		flatV := reflect.ValueOf(flatAny)
		if shape.IsScalar() {
			flatV.Index(0).Set(reflect.ValueOf(value))
			return
		}
		copySlicesRecursively(flatV, reflect.ValueOf(value), strides(shape))
	})
	return t
}

// Value returns a multidimensional slice (except if the shape is a scalar) containing a copy of the
// values stored in the tensor. This is relatively expensive, and usually only used for smaller
// tensors in tests and to print results.
func (t *Tensor) Value() any {
	t.AssertValid()
	var mdSlice any
	t.ConstFlatData(func(flat any) {
		if t.shape.IsScalar() {
			mdSlice = reflect.ValueOf(flat).Index(0).Interface()
			return
		}
		// Copy the flat data, and if multidimensional, build slices pointing into the copy.
		flatCopyV := reflect.MakeSlice(reflect.SliceOf(t.shape.DType.GoType()), t.Size(), t.Size())
		reflect.Copy(flatCopyV, reflect.ValueOf(flat))
		if t.shape.Rank() == 1 {
			mdSlice = flatCopyV.Interface()
			return
		}
		mdSlice = convertDataToSlices(flatCopyV, t.shape.Dimensions...).Interface()
	})
	return mdSlice
}

// Equal checks whether t == otherTensor: same shape and same values.
// If they are the same pointer, they are considered equal.
// If either side is invalid (nil), it panics.
//
// Slow implementation: fine for the small tensors the optimizer folds.
func (t *Tensor) Equal(otherTensor *Tensor) bool {
	t.AssertValid()
	otherTensor.AssertValid()
	if t == otherTensor {
		return true
	}
	if !t.shape.Equal(otherTensor.shape) {
		return false
	}
	equal := true
	t.ConstFlatData(func(flat0 any) {
		otherTensor.ConstFlatData(func(flat1 any) {
			t0V := reflect.ValueOf(flat0)
			t1V := reflect.ValueOf(flat1)
			for ii := range t0V.Len() {
				if !t0V.Index(ii).Equal(t1V.Index(ii)) {
					equal = false
					return
				}
			}
		})
	})
	return equal
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	t.AssertValid()
	clone := FromShape(t.shape)
	t.ConstFlatData(func(flat any) {
		clone.MutableFlatData(func(cloneFlat any) {
			reflect.Copy(reflect.ValueOf(cloneFlat), reflect.ValueOf(flat))
		})
	})
	return clone
}

// String prints the shape and, if the tensor is small enough (MaxSizeToPrint), its values.
func (t *Tensor) String() string {
	if t.CheckValid() != nil {
		return "Tensor(<invalid>)"
	}
	if t.Size() <= MaxSizeToPrint {
		return fmt.Sprintf("%s: %v", t.shape, t.Value())
	}
	return fmt.Sprintf("%s: %s", t.shape, humanize.Bytes(uint64(t.Memory())))
}

// GobSerialize Tensor in binary format.
//
// It returns an error for I/O errors. It panics for invalid tensors.
func (t *Tensor) GobSerialize(encoder *gob.Encoder) error {
	t.AssertValid()
	if err := t.shape.GobSerialize(encoder); err != nil {
		return err
	}
	var err error
	t.ConstFlatData(func(flat any) {
		err = encoder.Encode(flat)
		if err != nil {
			err = errors.Wrapf(err, "failed to serialize Tensor data")
		}
	})
	return err
}

// GobDeserialize a Tensor from the decoder. Returns the new Tensor or an error.
func GobDeserialize(decoder *gob.Decoder) (*Tensor, error) {
	shape, err := shapes.GobDeserialize(decoder)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to deserialize Tensor shape")
	}
	flatPtrV := reflect.New(reflect.SliceOf(shape.DType.GoType()))
	err = decoder.Decode(flatPtrV.Interface())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to deserialize Tensor data")
	}
	return &Tensor{
		shape: shape,
		flat:  flatPtrV.Elem().Interface(),
	}, nil
}

// mutableBytes gives mutable access to the tensor storage as raw bytes.
func (t *Tensor) mutableBytes(accessFn func(data []byte)) {
	t.MutableFlatData(func(flat any) {
		flatV := reflect.ValueOf(flat)
		element0 := flatV.Index(0)
		flatValuesPtr := element0.Addr().UnsafePointer()
		sizeBytes := uintptr(flatV.Len()) * element0.Type().Size()
		accessFn(unsafe.Slice((*byte)(flatValuesPtr), sizeBytes))
	})
}

// strides returns the stride (in elements) for each axis of the shape.
func strides(shape shapes.Shape) []int {
	rank := shape.Rank()
	result := make([]int, rank)
	currentStride := 1
	for axis := rank - 1; axis >= 0; axis-- {
		result[axis] = currentStride
		currentStride *= shape.Dimensions[axis]
	}
	return result
}

// copySlicesRecursively copies values of a multidimensional slice into a flat data slice, assuming
// the given strides for each axis.
func copySlicesRecursively(data reflect.Value, mdSlice reflect.Value, strides []int) {
	if len(strides) == 1 {
		reflect.Copy(data, mdSlice)
		return
	}
	numElements := mdSlice.Len()
	subStrides := strides[1:]
	for ii := 0; ii < numElements; ii++ {
		subData := data.Slice(ii*strides[0], (ii+1)*strides[0])
		copySlicesRecursively(subData, mdSlice.Index(ii), subStrides)
	}
}

// convertDataToSlices takes data as a flat slice and creates a multidimensional slice with the given
// dimensions that points to the given data.
func convertDataToSlices(dataV reflect.Value, dimensions ...int) reflect.Value {
	if len(dimensions) <= 1 {
		return dataV
	}
	resultT := dataV.Type().Elem()
	for range dimensions {
		resultT = reflect.SliceOf(resultT)
	}
	axesStrides := make([]int, len(dimensions))
	currentStride := 1
	for axis := len(dimensions) - 1; axis >= 0; axis-- {
		axesStrides[axis] = currentStride
		currentStride *= dimensions[axis]
	}
	return createSlicesRecursively(resultT, dataV, dimensions, axesStrides)
}

// createSlicesRecursively builds the nested slices of convertDataToSlices.
func createSlicesRecursively(resultT reflect.Type, data reflect.Value, dimensions []int, strides []int) reflect.Value {
	if len(strides) == 1 {
		return data
	}
	numElements := dimensions[0]
	slice := reflect.MakeSlice(resultT, numElements, numElements)
	subStrides := strides[1:]
	subDimensions := dimensions[1:]
	subResultT := resultT.Elem()
	for ii := 0; ii < numElements; ii++ {
		subData := data.Slice(ii*strides[0], (ii+1)*strides[0])
		slice.Index(ii).Set(createSlicesRecursively(subResultT, subData, subDimensions, subStrides))
	}
	return slice
}

// shapeForValue returns the Shape of a multidimensional slice (or scalar) value, validating that the
// slices are regular (all sub-slices of the same length).
func shapeForValue(v any) (shapes.Shape, error) {
	var shape shapes.Shape
	err := shapeForValueRecursive(&shape, reflect.ValueOf(v), reflect.TypeOf(v))
	return shape, err
}

func shapeForValueRecursive(shape *shapes.Shape, v reflect.Value, t reflect.Type) error {
	switch t.Kind() {
	case reflect.Slice:
		t = t.Elem()
		shape.Dimensions = append(shape.Dimensions, v.Len())
		shapePrefix := shape.Clone()

		// The first element is the reference.
		if v.Len() == 0 {
			return errors.Errorf("value with empty slice not valid for Tensor conversion, there is no "+
				"representation for empty tensors: %v", v)
		}
		err := shapeForValueRecursive(shape, v.Index(0), t)
		if err != nil {
			return err
		}

		// Test that other elements have the same shape as the first one.
		for ii := 1; ii < v.Len(); ii++ {
			shapeTest := shapePrefix.Clone()
			err = shapeForValueRecursive(&shapeTest, v.Index(ii), t)
			if err != nil {
				return err
			}
			if !shape.Equal(shapeTest) {
				return errors.Errorf("sub-slices have irregular shapes, found shapes %q and %q", shape, shapeTest)
			}
		}
	case reflect.Pointer:
		return errors.Errorf("cannot convert a pointer (%s) to a tensor value", t)
	default:
		shape.DType = dtypes.FromGoType(t)
		if shape.DType == dtypes.InvalidDType {
			return errors.Errorf("cannot convert type %s to a tensor value", t)
		}
	}
	return nil
}

// baseType returns the underlying element type of a multidimensional slice type, so
// baseType([][]int{...}) returns int.
func baseType(valueType reflect.Type) reflect.Type {
	for valueType.Kind() == reflect.Slice {
		valueType = valueType.Elem()
	}
	return valueType
}
