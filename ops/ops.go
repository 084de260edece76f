// Package ops defines the operation types a dataflow graph node can take, the registry with
// per-operation metadata (statefulness, classification, arity) and the kernels that the local
// executor uses to compute operations on host tensors.
//
// The registry is the narrow interface between the graph-optimization passes and the operator
// implementations: the passes only ask "is this op stateful / control-flow / send / recv?" and
// "give me something runnable for it"; everything else about an operation is opaque to them.
package ops

import (
	"github.com/gomlx/exceptions"
)

//go:generate go tool enumer -type=OpType -trimprefix=OpType -output=gen_optype_enumer.go ops.go

// OpType is an enum of the operations a graph node can compute.
//
// The set is intentionally small: the optimizer only needs representatives of each structural
// class (constants, parameters, elementwise math, stateful sources, transfers and control flow);
// richer operator libraries live with the surrounding system, behind the same registry.
type OpType int

const (
	OpTypeInvalid OpType = iota
	OpTypeSource
	OpTypeSink
	OpTypeNoOp
	OpTypeConst
	OpTypeParameter
	OpTypeIdentity
	OpTypeAdd
	OpTypeSub
	OpTypeMul
	OpTypeDiv
	OpTypeNeg
	OpTypeAbs
	OpTypeRandomUniform
	OpTypeSend
	OpTypeRecv
	OpTypeSwitch
	OpTypeMerge
	OpTypeEnter
	OpTypeExit
	OpTypeNextIteration

	// OpTypeLast should always be kept the last, it is used as a counter/marker for OpType.
	OpTypeLast
)

// OpClass groups operation types by their structural role in the graph. The optimization passes
// decide eligibility by class, never by individual OpType.
type OpClass int

const (
	// OpClassStandard are plain value-producing operations.
	OpClassStandard OpClass = iota

	// OpClassSentinel marks the source/sink nodes bounding every graph.
	OpClassSentinel

	// OpClassControlFlow marks the loop-structure operations (Switch, Merge, Enter, Exit,
	// NextIteration). They are never constant-folded.
	OpClassControlFlow

	// OpClassSendRecv marks the cross-device transfer operations. They are never constant-folded,
	// and the local executor serves them through a rendezvous.
	OpClassSendRecv
)

// String implements fmt.Stringer.
func (c OpClass) String() string {
	switch c {
	case OpClassStandard:
		return "Standard"
	case OpClassSentinel:
		return "Sentinel"
	case OpClassControlFlow:
		return "ControlFlow"
	case OpClassSendRecv:
		return "SendRecv"
	}
	return "OpClass(?)"
}

// VariadicInputs is used as OpDef.NumInputs for operations that take any number of data inputs.
const VariadicInputs = -1

// OpDef holds the registry metadata for one operation type.
type OpDef struct {
	// Type of the operation this definition describes.
	Type OpType

	// Class is the structural classification, see OpClass.
	Class OpClass

	// NumInputs is the exact number of data inputs the operation consumes, or VariadicInputs.
	NumInputs int

	// Stateful marks operations with side effects (random generation, variable mutation). Stateful
	// nodes are never constant-folded and never removed by dead-code elimination.
	Stateful bool

	// Kernel computes the operation on host tensors. It is nil for operations the local executor
	// cannot run (control flow, stateful ops); Parameter, Send and Recv are served by the executor
	// itself and also carry no kernel.
	Kernel Kernel
}

// IsControlFlow returns whether the operation is a loop-structure operation.
func (def *OpDef) IsControlFlow() bool { return def.Class == OpClassControlFlow }

// IsSentinel returns whether the operation is one of the source/sink graph bounds.
func (def *OpDef) IsSentinel() bool { return def.Class == OpClassSentinel }

// IsSend returns whether the operation is the Send transfer op.
func (def *OpDef) IsSend() bool { return def.Type == OpTypeSend }

// IsRecv returns whether the operation is the Recv transfer op.
func (def *OpDef) IsRecv() bool { return def.Type == OpTypeRecv }

// registry holds one OpDef per OpType. It is populated before any init() function runs, so kernel
// registration (done in init() of the kernels files) can rely on it.
var registry = buildRegistry()

func buildRegistry() (reg [OpTypeLast]*OpDef) {
	add := func(def *OpDef) { reg[def.Type] = def }
	add(&OpDef{Type: OpTypeSource, Class: OpClassSentinel})
	add(&OpDef{Type: OpTypeSink, Class: OpClassSentinel})
	add(&OpDef{Type: OpTypeNoOp})
	add(&OpDef{Type: OpTypeConst})
	add(&OpDef{Type: OpTypeParameter})
	add(&OpDef{Type: OpTypeIdentity, NumInputs: 1})
	add(&OpDef{Type: OpTypeAdd, NumInputs: 2})
	add(&OpDef{Type: OpTypeSub, NumInputs: 2})
	add(&OpDef{Type: OpTypeMul, NumInputs: 2})
	add(&OpDef{Type: OpTypeDiv, NumInputs: 2})
	add(&OpDef{Type: OpTypeNeg, NumInputs: 1})
	add(&OpDef{Type: OpTypeAbs, NumInputs: 1})
	add(&OpDef{Type: OpTypeRandomUniform, Stateful: true})
	add(&OpDef{Type: OpTypeSend, Class: OpClassSendRecv, NumInputs: 1})
	add(&OpDef{Type: OpTypeRecv, Class: OpClassSendRecv})
	add(&OpDef{Type: OpTypeSwitch, Class: OpClassControlFlow, NumInputs: 2})
	add(&OpDef{Type: OpTypeMerge, Class: OpClassControlFlow, NumInputs: VariadicInputs})
	add(&OpDef{Type: OpTypeEnter, Class: OpClassControlFlow, NumInputs: 1})
	add(&OpDef{Type: OpTypeExit, Class: OpClassControlFlow, NumInputs: 1})
	add(&OpDef{Type: OpTypeNextIteration, Class: OpClassControlFlow, NumInputs: 1})
	return
}

// Get returns the definition registered for the given operation type, or nil if there is none
// (OpTypeInvalid, out-of-range values).
func Get(opType OpType) *OpDef {
	if opType <= OpTypeInvalid || opType >= OpTypeLast {
		return nil
	}
	return registry[opType]
}

// MustGet returns the definition registered for the given operation type, panicking if there is
// none. Graph construction validates operation types up front, so a miss here is a programming
// error.
func MustGet(opType OpType) *OpDef {
	def := Get(opType)
	if def == nil {
		exceptions.Panicf("ops.MustGet: operation type %s is not registered", opType)
	}
	return def
}
