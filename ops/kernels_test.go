package ops

import (
	"math"
	"testing"

	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/gomlx/graphopt/types/tensors"
)

// runKernel invokes the registered kernel of opType on the given inputs.
func runKernel(opType OpType, attrs Attrs, inputs ...*tensors.Tensor) (*tensors.Tensor, error) {
	if attrs == nil {
		attrs = Attrs{}
	}
	return MustGet(opType).Kernel(&KernelCall{
		Op:       opType,
		NodeName: "test_" + opType.String(),
		Attrs:    attrs,
		Inputs:   inputs,
	})
}

func TestConstKernel(t *testing.T) {
	value := tensors.FromValue([]int32{1, 2, 3})
	got, err := runKernel(OpTypeConst, Attrs{AttrKeyValue: TensorAttr(value)})
	require.NoError(t, err)
	assert.Same(t, value, got)

	_, err = runKernel(OpTypeConst, nil)
	assert.ErrorContains(t, err, AttrKeyValue)
}

func TestNoOpKernel(t *testing.T) {
	got, err := runKernel(OpTypeNoOp, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIdentityKernel(t *testing.T) {
	value := tensors.FromScalar(float32(1.5))
	got, err := runKernel(OpTypeIdentity, nil, value)
	require.NoError(t, err)
	assert.Same(t, value, got)

	_, err = runKernel(OpTypeIdentity, nil)
	assert.ErrorContains(t, err, "got 0 inputs, want 1")
}

func TestBinaryKernels(t *testing.T) {
	lhs := tensors.FromValue([]int32{6, -4, 9})
	rhs := tensors.FromValue([]int32{3, 2, -3})

	got, err := runKernel(OpTypeAdd, nil, lhs, rhs)
	require.NoError(t, err)
	assert.Equal(t, []int32{9, -2, 6}, tensors.CopyFlatData[int32](got))

	got, err = runKernel(OpTypeSub, nil, lhs, rhs)
	require.NoError(t, err)
	assert.Equal(t, []int32{3, -6, 12}, tensors.CopyFlatData[int32](got))

	got, err = runKernel(OpTypeMul, nil, lhs, rhs)
	require.NoError(t, err)
	assert.Equal(t, []int32{18, -8, -27}, tensors.CopyFlatData[int32](got))

	got, err = runKernel(OpTypeDiv, nil, lhs, rhs)
	require.NoError(t, err)
	assert.Equal(t, []int32{2, -2, -3}, tensors.CopyFlatData[int32](got))

	// Inputs are never mutated.
	assert.Equal(t, []int32{6, -4, 9}, tensors.CopyFlatData[int32](lhs))

	t.Run("float64", func(t *testing.T) {
		got, err := runKernel(OpTypeMul, nil, tensors.FromScalar(1.5), tensors.FromScalar(4.0))
		require.NoError(t, err)
		assert.Equal(t, 6.0, tensors.ToScalar[float64](got))
	})

	t.Run("float16", func(t *testing.T) {
		lhs := tensors.FromFlatDataAndDimensions([]float16.Float16{float16.Fromfloat32(1.5), float16.Fromfloat32(-2)}, 2)
		rhs := tensors.FromFlatDataAndDimensions([]float16.Float16{float16.Fromfloat32(0.5), float16.Fromfloat32(3)}, 2)
		got, err := runKernel(OpTypeAdd, nil, lhs, rhs)
		require.NoError(t, err)
		flat := tensors.CopyFlatData[float16.Float16](got)
		assert.Equal(t, float32(2), flat[0].Float32())
		assert.Equal(t, float32(1), flat[1].Float32())
	})

	t.Run("bfloat16", func(t *testing.T) {
		lhs := tensors.FromFlatDataAndDimensions([]bfloat16.BFloat16{bfloat16.FromFloat32(2), bfloat16.FromFloat32(4)}, 2)
		rhs := tensors.FromFlatDataAndDimensions([]bfloat16.BFloat16{bfloat16.FromFloat32(3), bfloat16.FromFloat32(-1)}, 2)
		got, err := runKernel(OpTypeMul, nil, lhs, rhs)
		require.NoError(t, err)
		flat := tensors.CopyFlatData[bfloat16.BFloat16](got)
		assert.Equal(t, float32(6), flat[0].Float32())
		assert.Equal(t, float32(-4), flat[1].Float32())
	})
}

func TestBinaryKernelErrors(t *testing.T) {
	_, err := runKernel(OpTypeAdd, nil, tensors.FromScalar(int32(1)))
	assert.ErrorContains(t, err, "got 1 inputs, want 2")

	_, err = runKernel(OpTypeAdd, nil, tensors.FromScalar(int32(1)), tensors.FromValue([]int32{1, 2}))
	assert.ErrorContains(t, err, "no implicit broadcasting")

	_, err = runKernel(OpTypeAdd, nil, tensors.FromScalar(true), tensors.FromScalar(false))
	assert.ErrorContains(t, err, "unsupported data type")
}

func TestDivKernelByZero(t *testing.T) {
	// Integer division by zero fails the call.
	_, err := runKernel(OpTypeDiv, nil, tensors.FromValue([]int64{1, 2}), tensors.FromValue([]int64{1, 0}))
	require.ErrorContains(t, err, "division by zero")

	// IEEE division by zero produces infinities instead.
	got, err := runKernel(OpTypeDiv, nil, tensors.FromScalar(float32(1)), tensors.FromScalar(float32(0)))
	require.NoError(t, err)
	assert.True(t, math.IsInf(float64(tensors.ToScalar[float32](got)), 1))
}

func TestUnaryKernels(t *testing.T) {
	input := tensors.FromValue([]float32{1.5, -2, 0})

	got, err := runKernel(OpTypeNeg, nil, input)
	require.NoError(t, err)
	assert.Equal(t, []float32{-1.5, 2, 0}, tensors.CopyFlatData[float32](got))

	got, err = runKernel(OpTypeAbs, nil, input)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, 2, 0}, tensors.CopyFlatData[float32](got))

	t.Run("int64", func(t *testing.T) {
		got, err := runKernel(OpTypeAbs, nil, tensors.FromValue([]int64{-7, 7}))
		require.NoError(t, err)
		assert.Equal(t, []int64{7, 7}, tensors.CopyFlatData[int64](got))
	})

	t.Run("float16", func(t *testing.T) {
		got, err := runKernel(OpTypeNeg, nil, tensors.FromScalar(float16.Fromfloat32(2.5)))
		require.NoError(t, err)
		assert.Equal(t, float32(-2.5), tensors.ToScalar[float16.Float16](got).Float32())
	})

	t.Run("bfloat16", func(t *testing.T) {
		got, err := runKernel(OpTypeAbs, nil, tensors.FromScalar(bfloat16.FromFloat32(-3)))
		require.NoError(t, err)
		assert.Equal(t, float32(3), tensors.ToScalar[bfloat16.BFloat16](got).Float32())
	})
}
