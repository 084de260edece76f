package ops

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
	_ = flag.Set("logtostderr", "true")
}

func TestRegistry(t *testing.T) {
	for opType := OpTypeInvalid + 1; opType < OpTypeLast; opType++ {
		def := Get(opType)
		require.NotNilf(t, def, "op type %s has no registered definition", opType)
		assert.Equal(t, opType, def.Type)
	}
	assert.Nil(t, Get(OpTypeInvalid))
	assert.Nil(t, Get(OpTypeLast))
	assert.Nil(t, Get(OpType(-1)))
	require.Panics(t, func() { MustGet(OpTypeInvalid) })
}

func TestRegistryClassification(t *testing.T) {
	assert.True(t, MustGet(OpTypeSource).IsSentinel())
	assert.True(t, MustGet(OpTypeSink).IsSentinel())
	assert.True(t, MustGet(OpTypeSend).IsSend())
	assert.True(t, MustGet(OpTypeRecv).IsRecv())
	assert.False(t, MustGet(OpTypeSend).IsRecv())
	assert.True(t, MustGet(OpTypeRandomUniform).Stateful)

	for _, opType := range []OpType{OpTypeSwitch, OpTypeMerge, OpTypeEnter, OpTypeExit, OpTypeNextIteration} {
		assert.Truef(t, MustGet(opType).IsControlFlow(), "%s must classify as control flow", opType)
	}
	assert.False(t, MustGet(OpTypeAdd).IsControlFlow())
}

func TestRegistryKernels(t *testing.T) {
	withKernel := []OpType{OpTypeNoOp, OpTypeConst, OpTypeIdentity, OpTypeAdd, OpTypeSub, OpTypeMul, OpTypeDiv, OpTypeNeg, OpTypeAbs}
	for _, opType := range withKernel {
		assert.NotNilf(t, MustGet(opType).Kernel, "%s must have a kernel", opType)
	}

	// Executor-served and non-runnable operations carry no kernel.
	withoutKernel := []OpType{OpTypeSource, OpTypeSink, OpTypeParameter, OpTypeSend, OpTypeRecv,
		OpTypeRandomUniform, OpTypeSwitch, OpTypeMerge, OpTypeEnter, OpTypeExit, OpTypeNextIteration}
	for _, opType := range withoutKernel {
		assert.Nilf(t, MustGet(opType).Kernel, "%s must not have a kernel", opType)
	}
}
