package exec

import (
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/graphopt/graph"
	"github.com/gomlx/graphopt/ops"
	"github.com/gomlx/graphopt/types/tensors"
	"github.com/gomlx/graphopt/types/xsync"
)

// ExecutorParams configures executor construction.
type ExecutorParams struct {
	// CreateKernel overrides the registry lookup of node kernels. Leave
	// nil for the default (the ops registry). Useful to instrument or
	// stub kernels in tests.
	CreateKernel func(node *graph.Node) (ops.Kernel, error)
}

// Executor runs a whole graph on one Device, scheduling each node once all
// its data and control dependencies have completed.
//
// Construction validates the graph: every node must be covered by a kernel
// or served by the executor itself (Parameter, Send, Recv and the
// sentinels), so Run cannot discover an unrunnable node halfway through.
// The graph must not be mutated between NewExecutor and the end of a run.
type Executor struct {
	device *Device
	graph  *graph.Graph

	// kernels is indexed by node id; nil entries are executor-served.
	kernels     []ops.Kernel
	hasTransfer bool
}

// NewExecutor validates g and prepares it for execution on device.
//
// Control-flow operations (Switch, Merge, Enter, Exit, NextIteration) are
// outside the local executor's scope and fail construction, as do nodes
// whose operation has no registered kernel, wrong data-input arity, data
// outputs on slots other than 0, or Send/Recv nodes without a tensor-name
// attribute.
func NewExecutor(device *Device, g *graph.Graph, params ExecutorParams) (*Executor, error) {
	if device == nil {
		return nil, errors.New("NewExecutor: nil device")
	}
	if g == nil {
		return nil, errors.New("NewExecutor: nil graph")
	}
	e := &Executor{
		device:  device,
		graph:   g,
		kernels: make([]ops.Kernel, g.NumNodeIds()),
	}
	for _, n := range g.Nodes() {
		if n.IsSentinel() {
			continue
		}
		for _, edge := range n.OutEdges() {
			if !edge.IsControl() && edge.SrcOutput() != 0 {
				return nil, errors.Errorf("NewExecutor: node %q: data output on slot %d, the local executor only supports single-output operations",
					n.Name(), edge.SrcOutput())
			}
		}
		def := n.Def()
		if def.IsControlFlow() {
			return nil, errors.Errorf("NewExecutor: node %q: control-flow operation %s is outside the local executor's scope",
				n.Name(), n.Type())
		}
		if def.NumInputs >= 0 && n.NumInDataEdges() != def.NumInputs {
			return nil, errors.Errorf("NewExecutor: node %q: %s takes %d data inputs, found %d",
				n.Name(), n.Type(), def.NumInputs, n.NumInDataEdges())
		}
		if n.Type() == ops.OpTypeParameter {
			continue // fed from RunArgs.Feeds
		}
		if def.IsSend() || def.IsRecv() {
			if _, err := n.Attrs().GetString(ops.AttrKeyTensorName); err != nil {
				return nil, errors.WithMessagef(err, "NewExecutor: node %q", n.Name())
			}
			e.hasTransfer = true
			continue
		}
		kernel := def.Kernel
		if params.CreateKernel != nil {
			var err error
			kernel, err = params.CreateKernel(n)
			if err != nil {
				return nil, errors.WithMessagef(err, "NewExecutor: node %q: creating kernel", n.Name())
			}
		}
		if kernel == nil {
			return nil, errors.Errorf("NewExecutor: node %q: no kernel registered for operation %s", n.Name(), n.Type())
		}
		e.kernels[n.Id()] = kernel
	}
	return e, nil
}

// Device returns the device the executor runs on.
func (e *Executor) Device() *Device { return e.device }

// RunArgs carries the per-run inputs of Executor.Run.
type RunArgs struct {
	// Feeds provides the value of each Parameter node, keyed by node
	// name. Required iff the graph has Parameter nodes.
	Feeds map[string]*tensors.Tensor

	// Rendezvous serves the graph's Send and Recv nodes, and is where
	// callers drain sent values from after the run. Required iff the
	// graph has Send or Recv nodes.
	Rendezvous *Rendezvous

	// Runner schedules node computations. Nil defaults to
	// NewInlineRunner(); use Device.PoolRunner() for parallel execution
	// of independent nodes.
	Runner Runner
}

// Run executes the graph and blocks until every node completed or the first
// error. On error the remaining nodes are abandoned and the rendezvous (if
// any) is aborted, so concurrent drains fail fast instead of hanging.
func (e *Executor) Run(args RunArgs) error {
	state, err := e.newRun(args)
	if err != nil {
		return err
	}
	state.dispatch()
	return state.latch.Wait()
}

// RunAsync is Run returning immediately; done is invoked exactly once with
// the run's final status, from another goroutine.
func (e *Executor) RunAsync(args RunArgs, done func(error)) {
	state, err := e.newRun(args)
	if err != nil {
		go done(err)
		return
	}
	go func() {
		state.dispatch()
		done(state.latch.Wait())
	}()
}

// runState is the mutable state of one Run: dependency counters, produced
// values and the completion latch. A fresh one is built per run, so an
// Executor can be reused (even concurrently, runs do not share state).
type runState struct {
	exec   *Executor
	feeds  map[string]*tensors.Tensor
	rdv    *Rendezvous
	runner Runner

	mu        sync.Mutex
	remaining []int   // unsatisfied in-edges, by node id
	values    []Value // node outputs, by node id
	pending   int     // live nodes not yet completed
	failed    error

	// readyCh buffers nodes whose dependencies are all satisfied; its
	// capacity covers every node, so completions never block on it.
	readyCh chan *graph.Node
	latch   *xsync.LatchWithValue[error]
}

func (e *Executor) newRun(args RunArgs) (*runState, error) {
	if e.hasTransfer && args.Rendezvous == nil {
		return nil, errors.Errorf("executor for graph %q: the graph has Send/Recv nodes, RunArgs.Rendezvous is required", e.graph.Name())
	}
	runner := args.Runner
	if runner == nil {
		runner = NewInlineRunner()
	}
	g := e.graph
	state := &runState{
		exec:      e,
		feeds:     args.Feeds,
		rdv:       args.Rendezvous,
		runner:    runner,
		remaining: make([]int, g.NumNodeIds()),
		values:    make([]Value, g.NumNodeIds()),
		pending:   g.NumNodes(),
		readyCh:   make(chan *graph.Node, g.NumNodeIds()),
		latch:     xsync.NewLatchWithValue[error](),
	}
	for _, n := range g.Nodes() {
		state.remaining[n.Id()] = len(n.InEdges())
		if state.remaining[n.Id()] == 0 {
			// Only the source qualifies: the hookup invariant gives
			// every other node at least one in-edge.
			state.readyCh <- n
		}
	}
	return state, nil
}

// dispatch pumps ready nodes into the runner until the run completes or
// fails. It returns once the latch has been triggered.
func (s *runState) dispatch() {
	for {
		select {
		case <-s.latch.WaitChan():
			return
		case n := <-s.readyCh:
			s.runner.Schedule(func() { s.execNode(n) })
		}
	}
}

// execNode computes one node and marks it complete, converting panics
// (kernel bugs, rendezvous violations) into a run failure.
func (s *runState) execNode(n *graph.Node) {
	s.mu.Lock()
	alreadyFailed := s.failed != nil
	s.mu.Unlock()
	if alreadyFailed {
		return
	}
	var value Value
	err := exceptions.TryCatch[error](func() {
		value = s.computeNode(n)
	})
	if err != nil {
		s.fail(err)
		return
	}
	s.complete(n, value)
}

// computeNode produces n's output value. Failures panic (with an error) and
// are converted by execNode; reads of completed dependencies are safe
// without extra locking because completion ordering already synchronizes
// them.
func (s *runState) computeNode(n *graph.Node) Value {
	device := s.exec.device
	switch {
	case n.IsSentinel():
		return DeadValue()

	case n.Type() == ops.OpTypeParameter:
		fed := s.feeds[n.Name()]
		if fed == nil {
			exceptions.Panicf("no feed value for parameter %q", n.Name())
		}
		return TensorValue(fed)

	case n.Def().IsSend():
		name := mustTensorName(n)
		value := s.gatherInputs(n)[0]
		if err := s.rdv.Send(FetchKey(device, name), TensorValue(value)); err != nil {
			panic(errors.WithMessagef(err, "node %q", n.Name()))
		}
		klog.V(2).Infof("exec %s: sent %q (%s)", device.Name(), name, value.Shape())
		return TensorValue(value)

	case n.Def().IsRecv():
		name := mustTensorName(n)
		s.runner.Sleeping()
		received, err := s.rdv.Recv(FetchKey(device, name))
		s.runner.Awake()
		if err != nil {
			panic(errors.WithMessagef(err, "node %q", n.Name()))
		}
		return received

	default:
		kernel := s.exec.kernels[n.Id()]
		result, err := kernel(&ops.KernelCall{
			Op:       n.Type(),
			NodeName: n.Name(),
			Attrs:    n.Attrs(),
			Inputs:   s.gatherInputs(n),
		})
		if err != nil {
			panic(err)
		}
		if result == nil {
			return DeadValue()
		}
		return TensorValue(result)
	}
}

// mustTensorName reads the transfer name of a Send/Recv node, validated at
// construction.
func mustTensorName(n *graph.Node) string {
	name, err := n.Attrs().GetString(ops.AttrKeyTensorName)
	if err != nil {
		panic(errors.WithMessagef(err, "node %q", n.Name()))
	}
	return name
}

// gatherInputs collects n's data inputs by slot, panicking (with an error)
// on a dead input: evaluation never propagates absent values.
func (s *runState) gatherInputs(n *graph.Node) []*tensors.Tensor {
	dataEdges := n.InDataEdges()
	inputs := make([]*tensors.Tensor, len(dataEdges))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range dataEdges {
		value := s.values[e.Src().Id()]
		if value.IsDead() {
			exceptions.Panicf("node %q: input %d from %q is dead (absent value)", n.Name(), e.DstInput(), e.Src().Name())
		}
		inputs[i] = value.Tensor()
	}
	return inputs
}

// complete records n's value, unblocks its dependents and detects the end of
// the run.
func (s *runState) complete(n *graph.Node, value Value) {
	var newlyReady []*graph.Node
	s.mu.Lock()
	s.values[n.Id()] = value
	s.pending--
	finished := s.pending == 0
	for _, e := range n.OutEdges() {
		dst := e.Dst()
		s.remaining[dst.Id()]--
		if s.remaining[dst.Id()] == 0 {
			newlyReady = append(newlyReady, dst)
		}
	}
	s.mu.Unlock()
	for _, m := range newlyReady {
		s.readyCh <- m
	}
	if finished {
		s.latch.Trigger(nil)
	}
}

// fail records the first error, aborts the rendezvous so nothing can strand
// on a value that will never be sent, and releases Run.
func (s *runState) fail(err error) {
	s.mu.Lock()
	first := s.failed == nil
	if first {
		s.failed = err
	}
	s.mu.Unlock()
	if !first {
		return
	}
	klog.V(1).Infof("exec %s: run of graph %q failed: %v", s.exec.device.Name(), s.exec.graph.Name(), err)
	if s.rdv != nil {
		s.rdv.Abort(err)
	}
	s.latch.Trigger(err)
}
