// Package exec implements a minimal single-device local executor for
// dataflow graphs: it computes every node of a graph on host tensors,
// scheduling nodes as their data and control dependencies complete.
//
// The executor exists to serve constant folding -- the fold pass extracts a
// side-effect-free subgraph, appends Send nodes for the values it needs and
// runs the subgraph here, draining the results from a Rendezvous -- but it is
// usable standalone for any graph built from kernel-backed operations,
// Parameters (fed through RunArgs.Feeds) and Send/Recv pairs.
//
// Concurrency is injected: a Runner decides whether ready nodes run inline on
// the dispatching goroutine or are spread over a Device's worker pool.
// Control-flow operations are out of scope and rejected at construction.
package exec

import (
	"github.com/gomlx/exceptions"

	"github.com/gomlx/graphopt/types/tensors"
)

// Value is what flows along data edges during an evaluation: either a tensor
// or the explicit "dead" marker of an absent value (the output of an
// operation that produces nothing, like NoOp).
//
// The zero Value is invalid; construct with TensorValue or DeadValue.
type Value struct {
	tensor *tensors.Tensor
	dead   bool
}

// TensorValue returns a live Value carrying the given tensor. It panics on a
// nil tensor: absence is spelled DeadValue, never nil.
func TensorValue(t *tensors.Tensor) Value {
	if t == nil {
		exceptions.Panicf("exec.TensorValue: nil tensor, use DeadValue for absent values")
	}
	return Value{tensor: t}
}

// DeadValue returns the Value marking an absent result.
func DeadValue() Value { return Value{dead: true} }

// IsDead returns whether the value marks an absent result.
func (v Value) IsDead() bool { return v.dead }

// Tensor returns the tensor carried by a live value. It panics if the value
// is dead or was never constructed.
func (v Value) Tensor() *tensors.Tensor {
	if v.dead {
		exceptions.Panicf("exec.Value is dead, it carries no tensor")
	}
	if v.tensor == nil {
		exceptions.Panicf("zero exec.Value accessed, construct with TensorValue or DeadValue")
	}
	return v.tensor
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.dead {
		return "Value[dead]"
	}
	if v.tensor == nil {
		return "Value[invalid]"
	}
	return "Value[" + v.tensor.Shape().String() + "]"
}
