package exec

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDevice(t *testing.T) {
	d := NewDevice("", 4)
	assert.Equal(t, DefaultDeviceName, d.Name())
	assert.Equal(t, 4, d.Pool().MaxParallelism())
	assert.NotZero(t, d.Incarnation())
	assert.Contains(t, d.String(), DefaultDeviceName)

	// Incarnations are random per device instance.
	other := NewDevice("local:1", -1)
	assert.Equal(t, "local:1", other.Name())
	assert.NotEqual(t, d.Incarnation(), other.Incarnation())
	assert.True(t, other.Pool().IsUnlimited())
}

func TestDeviceParallelismFromEnv(t *testing.T) {
	t.Setenv(ParallelismEnvVar, "3")
	d := NewDevice("", 0)
	assert.Equal(t, 3, d.Pool().MaxParallelism())

	// Explicit parallelism wins over the environment.
	d = NewDevice("", 2)
	assert.Equal(t, 2, d.Pool().MaxParallelism())

	// Unparseable values fall back to the pool default.
	t.Setenv(ParallelismEnvVar, "lots")
	d = NewDevice("", 0)
	assert.Equal(t, runtime.NumCPU(), d.Pool().MaxParallelism())
}

func TestFetchKey(t *testing.T) {
	d := NewDevice("local:0", 1)
	key := FetchKey(d, "add:0")
	parsed, err := ParseKey(key)
	require.NoError(t, err)
	assert.Equal(t, d.Name(), parsed.SrcDevice)
	assert.Equal(t, d.Incarnation(), parsed.SrcIncarnation)
	assert.Equal(t, HostDeviceName, parsed.DstDevice)
	assert.Equal(t, "add:0", parsed.Name)
	assert.Equal(t, DefaultFrameIter, parsed.FrameIter)
}
