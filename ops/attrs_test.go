package ops

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/graphopt/types/shapes"
	"github.com/gomlx/graphopt/types/tensors"
)

func TestAttrValue(t *testing.T) {
	assert.Equal(t, int64(7), IntAttr(7).Int())
	assert.Equal(t, 0.5, FloatAttr(0.5).Float())
	assert.Equal(t, true, BoolAttr(true).Bool())
	assert.Equal(t, "x", StringAttr("x").String())
	assert.Equal(t, dtypes.Float32, DTypeAttr(dtypes.Float32).DType())

	shape := shapes.Make(dtypes.Int32, 2, 3)
	assert.True(t, shape.Equal(ShapeAttr(shape).Shape()))

	tensor := tensors.FromScalar(int32(3))
	assert.Same(t, tensor, TensorAttr(tensor).Tensor())

	// Wrong-variant accesses panic.
	require.Panics(t, func() { IntAttr(7).Float() })
	require.Panics(t, func() { StringAttr("x").Tensor() })
	require.Panics(t, func() { AttrValue{}.Int() })
}

func TestAttrsGetters(t *testing.T) {
	attrs := Attrs{
		"count": IntAttr(3),
		"name":  StringAttr("send0"),
	}

	count, err := attrs.GetInt("count")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	_, err = attrs.GetInt("missing")
	var attrErr *AttrError
	require.ErrorAs(t, err, &attrErr)
	assert.Equal(t, "missing", attrErr.Name)
	assert.Equal(t, AttrKindInvalid, attrErr.Got)
	assert.ErrorContains(t, err, "not set")

	_, err = attrs.GetFloat("count")
	require.ErrorAs(t, err, &attrErr)
	assert.Equal(t, AttrKindInt, attrErr.Got)
	assert.Equal(t, AttrKindFloat, attrErr.Want)
	assert.ErrorContains(t, err, "holds Int, want Float")

	// A nil Attrs reads as empty.
	var nilAttrs Attrs
	_, err = nilAttrs.GetString("anything")
	assert.ErrorAs(t, err, &attrErr)
	assert.Nil(t, nilAttrs.Clone())
}

func TestAttrsClone(t *testing.T) {
	attrs := Attrs{"a": IntAttr(1)}
	clone := attrs.Clone()
	clone["b"] = IntAttr(2)
	assert.NotContains(t, attrs, "b")
	assert.Contains(t, clone, "a")
}
