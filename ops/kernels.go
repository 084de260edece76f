package ops

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"

	"github.com/gomlx/graphopt/types/tensors"
)

// This file implements the host kernels of the operations the local executor can compute by
// itself. The executor serves Parameter, Send and Recv without a kernel, and control-flow and
// stateful operations have none, which is exactly what keeps them out of constant folding.

// KernelCall packages everything a kernel invocation can see: which node is being computed, its
// attributes and its already-evaluated data inputs, indexed by input slot.
type KernelCall struct {
	// Op being computed.
	Op OpType

	// NodeName identifies the node in error messages.
	NodeName string

	// Attrs of the node being computed. Never nil.
	Attrs Attrs

	// Inputs holds one evaluated tensor per data input slot.
	Inputs []*tensors.Tensor
}

// Kernel computes one operation on host tensors.
//
// Kernels are pure functions of the call: they never mutate their inputs, and the returned tensor
// is either freshly allocated or an input passed through (tensors are immutable by convention).
// Operations that produce no value (NoOp) return a nil tensor. All failures are reported as
// errors: a kernel error aborts the evaluation that issued it, it is never a process-level panic.
type Kernel func(call *KernelCall) (*tensors.Tensor, error)

func init() {
	registry[OpTypeNoOp].Kernel = execNoOp
	registry[OpTypeConst].Kernel = execConst
	registry[OpTypeIdentity].Kernel = execIdentity
	registry[OpTypeAdd].Kernel = execAdd
	registry[OpTypeSub].Kernel = execSub
	registry[OpTypeMul].Kernel = execMul
	registry[OpTypeDiv].Kernel = execDiv
	registry[OpTypeNeg].Kernel = execNeg
	registry[OpTypeAbs].Kernel = execAbs
}

// numericPODConstraints are the native Go element types kernels compute on directly. Float16 and
// BFloat16 have no native arithmetic and are computed via conversion to float32.
type numericPODConstraints interface {
	int32 | int64 | float32 | float64
}

func execNoOp(_ *KernelCall) (*tensors.Tensor, error) { return nil, nil }

func execConst(call *KernelCall) (*tensors.Tensor, error) {
	value, err := call.Attrs.GetTensor(AttrKeyValue)
	if err != nil {
		return nil, errors.WithMessagef(err, "Const kernel for node %q", call.NodeName)
	}
	return value, nil
}

func execIdentity(call *KernelCall) (*tensors.Tensor, error) {
	if err := checkNumKernelInputs(call, 1); err != nil {
		return nil, err
	}
	return call.Inputs[0], nil
}

// checkNumKernelInputs verifies the call carries exactly want non-nil inputs.
func checkNumKernelInputs(call *KernelCall, want int) error {
	if len(call.Inputs) != want {
		return errors.Errorf("%s kernel for node %q: got %d inputs, want %d",
			call.Op, call.NodeName, len(call.Inputs), want)
	}
	for slot, input := range call.Inputs {
		if input == nil {
			return errors.Errorf("%s kernel for node %q: input slot %d is nil",
				call.Op, call.NodeName, slot)
		}
	}
	return nil
}

// binaryOperands validates and unpacks the two operands of an arithmetic kernel. Operands must
// have identical shapes, there is no implicit broadcasting.
func binaryOperands(call *KernelCall) (lhs, rhs *tensors.Tensor, err error) {
	if err = checkNumKernelInputs(call, 2); err != nil {
		return
	}
	lhs, rhs = call.Inputs[0], call.Inputs[1]
	if !lhs.Shape().Equal(rhs.Shape()) {
		return nil, nil, errors.Errorf("%s kernel for node %q: operand shapes %s and %s differ (no implicit broadcasting)",
			call.Op, call.NodeName, lhs.Shape(), rhs.Shape())
	}
	return
}

// execBinaryGeneric computes output[i] = fn(lhs[i], rhs[i]) for POD element types.
func execBinaryGeneric[T numericPODConstraints](lhs, rhs, output *tensors.Tensor, fn func(a, b T) T) {
	tensors.ConstFlatData(lhs, func(lhsFlat []T) {
		tensors.ConstFlatData(rhs, func(rhsFlat []T) {
			tensors.MutableFlatData(output, func(outputFlat []T) {
				for ii := range outputFlat {
					outputFlat[ii] = fn(lhsFlat[ii], rhsFlat[ii])
				}
			})
		})
	})
}

func execBinaryF16(lhs, rhs, output *tensors.Tensor, fn func(a, b float32) float32) {
	tensors.ConstFlatData(lhs, func(lhsFlat []float16.Float16) {
		tensors.ConstFlatData(rhs, func(rhsFlat []float16.Float16) {
			tensors.MutableFlatData(output, func(outputFlat []float16.Float16) {
				for ii := range outputFlat {
					outputFlat[ii] = float16.Fromfloat32(fn(lhsFlat[ii].Float32(), rhsFlat[ii].Float32()))
				}
			})
		})
	})
}

func execBinaryBF16(lhs, rhs, output *tensors.Tensor, fn func(a, b float32) float32) {
	tensors.ConstFlatData(lhs, func(lhsFlat []bfloat16.BFloat16) {
		tensors.ConstFlatData(rhs, func(rhsFlat []bfloat16.BFloat16) {
			tensors.MutableFlatData(output, func(outputFlat []bfloat16.BFloat16) {
				for ii := range outputFlat {
					outputFlat[ii] = bfloat16.FromFloat32(fn(lhsFlat[ii].Float32(), rhsFlat[ii].Float32()))
				}
			})
		})
	})
}

func execAdd(call *KernelCall) (*tensors.Tensor, error) {
	lhs, rhs, err := binaryOperands(call)
	if err != nil {
		return nil, err
	}
	output := tensors.FromShape(lhs.Shape())
	switch lhs.DType() {
	case dtypes.Int32:
		execBinaryGeneric(lhs, rhs, output, func(a, b int32) int32 { return a + b })
	case dtypes.Int64:
		execBinaryGeneric(lhs, rhs, output, func(a, b int64) int64 { return a + b })
	case dtypes.Float32:
		execBinaryGeneric(lhs, rhs, output, func(a, b float32) float32 { return a + b })
	case dtypes.Float64:
		execBinaryGeneric(lhs, rhs, output, func(a, b float64) float64 { return a + b })
	case dtypes.Float16:
		execBinaryF16(lhs, rhs, output, func(a, b float32) float32 { return a + b })
	case dtypes.BFloat16:
		execBinaryBF16(lhs, rhs, output, func(a, b float32) float32 { return a + b })
	default:
		return nil, errors.Errorf("%s kernel for node %q: unsupported data type %s", call.Op, call.NodeName, lhs.DType())
	}
	return output, nil
}

func execSub(call *KernelCall) (*tensors.Tensor, error) {
	lhs, rhs, err := binaryOperands(call)
	if err != nil {
		return nil, err
	}
	output := tensors.FromShape(lhs.Shape())
	switch lhs.DType() {
	case dtypes.Int32:
		execBinaryGeneric(lhs, rhs, output, func(a, b int32) int32 { return a - b })
	case dtypes.Int64:
		execBinaryGeneric(lhs, rhs, output, func(a, b int64) int64 { return a - b })
	case dtypes.Float32:
		execBinaryGeneric(lhs, rhs, output, func(a, b float32) float32 { return a - b })
	case dtypes.Float64:
		execBinaryGeneric(lhs, rhs, output, func(a, b float64) float64 { return a - b })
	case dtypes.Float16:
		execBinaryF16(lhs, rhs, output, func(a, b float32) float32 { return a - b })
	case dtypes.BFloat16:
		execBinaryBF16(lhs, rhs, output, func(a, b float32) float32 { return a - b })
	default:
		return nil, errors.Errorf("%s kernel for node %q: unsupported data type %s", call.Op, call.NodeName, lhs.DType())
	}
	return output, nil
}

func execMul(call *KernelCall) (*tensors.Tensor, error) {
	lhs, rhs, err := binaryOperands(call)
	if err != nil {
		return nil, err
	}
	output := tensors.FromShape(lhs.Shape())
	switch lhs.DType() {
	case dtypes.Int32:
		execBinaryGeneric(lhs, rhs, output, func(a, b int32) int32 { return a * b })
	case dtypes.Int64:
		execBinaryGeneric(lhs, rhs, output, func(a, b int64) int64 { return a * b })
	case dtypes.Float32:
		execBinaryGeneric(lhs, rhs, output, func(a, b float32) float32 { return a * b })
	case dtypes.Float64:
		execBinaryGeneric(lhs, rhs, output, func(a, b float64) float64 { return a * b })
	case dtypes.Float16:
		execBinaryF16(lhs, rhs, output, func(a, b float32) float32 { return a * b })
	case dtypes.BFloat16:
		execBinaryBF16(lhs, rhs, output, func(a, b float32) float32 { return a * b })
	default:
		return nil, errors.Errorf("%s kernel for node %q: unsupported data type %s", call.Op, call.NodeName, lhs.DType())
	}
	return output, nil
}

// execDivIntGeneric is the integer division loop: unlike the IEEE float cases a zero divisor has
// no value to produce, so it fails the whole call.
func execDivIntGeneric[T int32 | int64](call *KernelCall, lhs, rhs, output *tensors.Tensor) (err error) {
	tensors.ConstFlatData(lhs, func(lhsFlat []T) {
		tensors.ConstFlatData(rhs, func(rhsFlat []T) {
			tensors.MutableFlatData(output, func(outputFlat []T) {
				for ii := range outputFlat {
					if rhsFlat[ii] == 0 {
						err = errors.Errorf("%s kernel for node %q: integer division by zero at flat index %d",
							call.Op, call.NodeName, ii)
						return
					}
					outputFlat[ii] = lhsFlat[ii] / rhsFlat[ii]
				}
			})
		})
	})
	return
}

func execDiv(call *KernelCall) (*tensors.Tensor, error) {
	lhs, rhs, err := binaryOperands(call)
	if err != nil {
		return nil, err
	}
	output := tensors.FromShape(lhs.Shape())
	switch lhs.DType() {
	case dtypes.Int32:
		err = execDivIntGeneric[int32](call, lhs, rhs, output)
	case dtypes.Int64:
		err = execDivIntGeneric[int64](call, lhs, rhs, output)
	case dtypes.Float32:
		execBinaryGeneric(lhs, rhs, output, func(a, b float32) float32 { return a / b })
	case dtypes.Float64:
		execBinaryGeneric(lhs, rhs, output, func(a, b float64) float64 { return a / b })
	case dtypes.Float16:
		execBinaryF16(lhs, rhs, output, func(a, b float32) float32 { return a / b })
	case dtypes.BFloat16:
		execBinaryBF16(lhs, rhs, output, func(a, b float32) float32 { return a / b })
	default:
		return nil, errors.Errorf("%s kernel for node %q: unsupported data type %s", call.Op, call.NodeName, lhs.DType())
	}
	if err != nil {
		return nil, err
	}
	return output, nil
}

// execUnaryGeneric computes output[i] = fn(input[i]) for POD element types.
func execUnaryGeneric[T numericPODConstraints](input, output *tensors.Tensor, fn func(v T) T) {
	tensors.ConstFlatData(input, func(inputFlat []T) {
		tensors.MutableFlatData(output, func(outputFlat []T) {
			for ii := range outputFlat {
				outputFlat[ii] = fn(inputFlat[ii])
			}
		})
	})
}

func execUnaryF16(input, output *tensors.Tensor, fn func(v float32) float32) {
	tensors.ConstFlatData(input, func(inputFlat []float16.Float16) {
		tensors.MutableFlatData(output, func(outputFlat []float16.Float16) {
			for ii := range outputFlat {
				outputFlat[ii] = float16.Fromfloat32(fn(inputFlat[ii].Float32()))
			}
		})
	})
}

func execUnaryBF16(input, output *tensors.Tensor, fn func(v float32) float32) {
	tensors.ConstFlatData(input, func(inputFlat []bfloat16.BFloat16) {
		tensors.MutableFlatData(output, func(outputFlat []bfloat16.BFloat16) {
			for ii := range outputFlat {
				outputFlat[ii] = bfloat16.FromFloat32(fn(inputFlat[ii].Float32()))
			}
		})
	})
}

func execNeg(call *KernelCall) (*tensors.Tensor, error) {
	if err := checkNumKernelInputs(call, 1); err != nil {
		return nil, err
	}
	input := call.Inputs[0]
	output := tensors.FromShape(input.Shape())
	switch input.DType() {
	case dtypes.Int32:
		execUnaryGeneric(input, output, func(v int32) int32 { return -v })
	case dtypes.Int64:
		execUnaryGeneric(input, output, func(v int64) int64 { return -v })
	case dtypes.Float32:
		execUnaryGeneric(input, output, func(v float32) float32 { return -v })
	case dtypes.Float64:
		execUnaryGeneric(input, output, func(v float64) float64 { return -v })
	case dtypes.Float16:
		execUnaryF16(input, output, func(v float32) float32 { return -v })
	case dtypes.BFloat16:
		execUnaryBF16(input, output, func(v float32) float32 { return -v })
	default:
		return nil, errors.Errorf("%s kernel for node %q: unsupported data type %s", call.Op, call.NodeName, input.DType())
	}
	return output, nil
}

func absGeneric[T numericPODConstraints](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

func execAbs(call *KernelCall) (*tensors.Tensor, error) {
	if err := checkNumKernelInputs(call, 1); err != nil {
		return nil, err
	}
	input := call.Inputs[0]
	output := tensors.FromShape(input.Shape())
	switch input.DType() {
	case dtypes.Int32:
		execUnaryGeneric(input, output, absGeneric[int32])
	case dtypes.Int64:
		execUnaryGeneric(input, output, absGeneric[int64])
	case dtypes.Float32:
		execUnaryGeneric(input, output, absGeneric[float32])
	case dtypes.Float64:
		execUnaryGeneric(input, output, absGeneric[float64])
	case dtypes.Float16:
		execUnaryF16(input, output, absGeneric[float32])
	case dtypes.BFloat16:
		execUnaryBF16(input, output, absGeneric[float32])
	default:
		return nil, errors.Errorf("%s kernel for node %q: unsupported data type %s", call.Op, call.NodeName, input.DType())
	}
	return output, nil
}
