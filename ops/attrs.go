package ops

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/gomlx/graphopt/types/shapes"
	"github.com/gomlx/graphopt/types/tensors"
)

//go:generate go tool enumer -type=AttrKind -trimprefix=AttrKind -output=gen_attrkind_enumer.go attrs.go

// AttrKind enumerates the variants an attribute value can hold.
type AttrKind int

const (
	AttrKindInvalid AttrKind = iota
	AttrKindInt
	AttrKindFloat
	AttrKindBool
	AttrKindString
	AttrKindTensor
	AttrKindShape
	AttrKindDType
)

// Well-known attribute names. Nothing enforces these, they are the conventional vocabulary shared
// by node builders, kernels and the optimization passes.
const (
	// AttrKeyValue holds the Tensor payload of a Const node.
	AttrKeyValue = "value"

	// AttrKeyDType holds the element type of a Const, Parameter or RandomUniform node.
	AttrKeyDType = "dtype"

	// AttrKeyShape holds the declared shape of a Parameter or RandomUniform node.
	AttrKeyShape = "shape"

	// AttrKeyTensorName holds the rendezvous name under which a Send or Recv node transfers its
	// value.
	AttrKeyTensorName = "tensor_name"
)

// AttrValue is a tagged union of the variants an attribute can hold. The zero value is invalid.
//
// Two access styles are provided: the Value() style accessors panic on a wrong-variant access and
// serve code that already validated the attribute; the Attrs.Get*() getters return an *AttrError
// and serve code reading node definitions it does not control.
type AttrValue struct {
	kind   AttrKind
	i      int64
	f      float64
	b      bool
	s      string
	tensor *tensors.Tensor
	shape  shapes.Shape
	dtype  dtypes.DType
}

// IntAttr returns an AttrValue holding an integer.
func IntAttr(v int64) AttrValue { return AttrValue{kind: AttrKindInt, i: v} }

// FloatAttr returns an AttrValue holding a float.
func FloatAttr(v float64) AttrValue { return AttrValue{kind: AttrKindFloat, f: v} }

// BoolAttr returns an AttrValue holding a bool.
func BoolAttr(v bool) AttrValue { return AttrValue{kind: AttrKindBool, b: v} }

// StringAttr returns an AttrValue holding a string.
func StringAttr(v string) AttrValue { return AttrValue{kind: AttrKindString, s: v} }

// TensorAttr returns an AttrValue holding a tensor. The tensor is referenced, not copied, and is
// treated as immutable from here on.
func TensorAttr(t *tensors.Tensor) AttrValue { return AttrValue{kind: AttrKindTensor, tensor: t} }

// ShapeAttr returns an AttrValue holding a shape.
func ShapeAttr(s shapes.Shape) AttrValue { return AttrValue{kind: AttrKindShape, shape: s} }

// DTypeAttr returns an AttrValue holding a data type.
func DTypeAttr(dt dtypes.DType) AttrValue { return AttrValue{kind: AttrKindDType, dtype: dt} }

// Kind returns the variant held by the attribute value.
func (v AttrValue) Kind() AttrKind { return v.kind }

func (v AttrValue) assertKind(want AttrKind) {
	if v.kind != want {
		exceptions.Panicf("AttrValue holds %s, accessed as %s", v.kind, want)
	}
}

// Int returns the integer held. It panics if the value holds a different variant.
func (v AttrValue) Int() int64 {
	v.assertKind(AttrKindInt)
	return v.i
}

// Float returns the float held. It panics if the value holds a different variant.
func (v AttrValue) Float() float64 {
	v.assertKind(AttrKindFloat)
	return v.f
}

// Bool returns the bool held. It panics if the value holds a different variant.
func (v AttrValue) Bool() bool {
	v.assertKind(AttrKindBool)
	return v.b
}

// String returns the string held. It panics if the value holds a different variant.
//
// Notice this is not a fmt.Stringer implementation: AttrValue is a union, and String accesses its
// string variant like Int accesses its integer variant.
func (v AttrValue) String() string {
	v.assertKind(AttrKindString)
	return v.s
}

// Tensor returns the tensor held. It panics if the value holds a different variant.
func (v AttrValue) Tensor() *tensors.Tensor {
	v.assertKind(AttrKindTensor)
	return v.tensor
}

// Shape returns the shape held. It panics if the value holds a different variant.
func (v AttrValue) Shape() shapes.Shape {
	v.assertKind(AttrKindShape)
	return v.shape
}

// DType returns the data type held. It panics if the value holds a different variant.
func (v AttrValue) DType() dtypes.DType {
	v.assertKind(AttrKindDType)
	return v.dtype
}

// AttrError reports a missing attribute or an attribute read with the wrong kind.
type AttrError struct {
	// Name of the attribute accessed.
	Name string

	// Want is the kind the caller asked for.
	Want AttrKind

	// Got is the kind actually stored, or AttrKindInvalid if the attribute is missing.
	Got AttrKind
}

// Error implements the error interface.
func (e *AttrError) Error() string {
	if e.Got == AttrKindInvalid {
		return "attribute " + e.Name + " not set"
	}
	return "attribute " + e.Name + " holds " + e.Got.String() + ", want " + e.Want.String()
}

// Attrs maps attribute names to values. A nil Attrs behaves as empty.
type Attrs map[string]AttrValue

// Clone returns a copy of the attribute map. The held values are copied as values: tensors and
// shape dimensions are shared with the original, under the convention that attribute payloads are
// immutable.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	clone := make(Attrs, len(a))
	for key, value := range a {
		clone[key] = value
	}
	return clone
}

func (a Attrs) get(name string, want AttrKind) (AttrValue, error) {
	value, found := a[name]
	if !found {
		return AttrValue{}, &AttrError{Name: name, Want: want, Got: AttrKindInvalid}
	}
	if value.kind != want {
		return AttrValue{}, &AttrError{Name: name, Want: want, Got: value.kind}
	}
	return value, nil
}

// GetInt returns the named integer attribute, or an *AttrError if it is missing or holds another
// kind.
func (a Attrs) GetInt(name string) (int64, error) {
	value, err := a.get(name, AttrKindInt)
	if err != nil {
		return 0, err
	}
	return value.i, nil
}

// GetFloat returns the named float attribute, or an *AttrError if it is missing or holds another
// kind.
func (a Attrs) GetFloat(name string) (float64, error) {
	value, err := a.get(name, AttrKindFloat)
	if err != nil {
		return 0, err
	}
	return value.f, nil
}

// GetBool returns the named bool attribute, or an *AttrError if it is missing or holds another
// kind.
func (a Attrs) GetBool(name string) (bool, error) {
	value, err := a.get(name, AttrKindBool)
	if err != nil {
		return false, err
	}
	return value.b, nil
}

// GetString returns the named string attribute, or an *AttrError if it is missing or holds
// another kind.
func (a Attrs) GetString(name string) (string, error) {
	value, err := a.get(name, AttrKindString)
	if err != nil {
		return "", err
	}
	return value.s, nil
}

// GetTensor returns the named tensor attribute, or an *AttrError if it is missing or holds
// another kind.
func (a Attrs) GetTensor(name string) (*tensors.Tensor, error) {
	value, err := a.get(name, AttrKindTensor)
	if err != nil {
		return nil, err
	}
	return value.tensor, nil
}

// GetShape returns the named shape attribute, or an *AttrError if it is missing or holds another
// kind.
func (a Attrs) GetShape(name string) (shapes.Shape, error) {
	value, err := a.get(name, AttrKindShape)
	if err != nil {
		return shapes.Invalid(), err
	}
	return value.shape, nil
}

// GetDType returns the named data type attribute, or an *AttrError if it is missing or holds
// another kind.
func (a Attrs) GetDType(name string) (dtypes.DType, error) {
	value, err := a.get(name, AttrKindDType)
	if err != nil {
		return dtypes.InvalidDType, err
	}
	return value.dtype, nil
}
