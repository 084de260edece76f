package exec

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/gomlx/graphopt/internal/workerspool"
)

// DefaultDeviceName is used by NewDevice when no name is given.
const DefaultDeviceName = "local:0"

// ParallelismEnvVar is the environment variable consulted by NewDevice when
// the caller passes parallelism 0. The same values as the parallelism
// parameter apply.
const ParallelismEnvVar = "GRAPHOPT_PARALLELISM"

// Device is the execution context nodes run on: a name, a worker pool
// bounding kernel parallelism and a random incarnation number identifying
// this instance of the device in rendezvous keys.
//
// Hosts create a Device once and reuse it across evaluations; there are no
// process-wide device singletons.
type Device struct {
	name        string
	incarnation uint64
	pool        *workerspool.Pool
}

// NewDevice creates a device with the given name (DefaultDeviceName if
// empty).
//
// parallelism bounds how many nodes may execute concurrently: n > 0 for a
// fixed bound, -1 for unlimited, and 0 to consult ParallelismEnvVar, falling
// back to the number of CPUs. Parallelism 1 keeps evaluation effectively
// serial; results never depend on the setting.
func NewDevice(name string, parallelism int) *Device {
	if name == "" {
		name = DefaultDeviceName
	}
	if parallelism == 0 {
		parallelism = parallelismFromEnv()
	}
	pool := workerspool.New(parallelism)
	d := &Device{
		name:        name,
		incarnation: newIncarnation(),
		pool:        pool,
	}
	klog.V(1).Infof("exec: created device %s, max parallelism %d", d, pool.MaxParallelism())
	return d
}

func parallelismFromEnv() int {
	value := os.Getenv(ParallelismEnvVar)
	if value == "" {
		return 0
	}
	parallelism, err := strconv.Atoi(value)
	if err != nil {
		klog.Warningf("exec: ignoring %s=%q, not a number", ParallelismEnvVar, value)
		return 0
	}
	return parallelism
}

// newIncarnation returns a random non-zero 64-bit device incarnation. Zero is
// reserved as "never a live device", so rendezvous keys from a restarted
// device cannot alias an unset one.
func newIncarnation() uint64 {
	id := uuid.New()
	incarnation := binary.BigEndian.Uint64(id[:8])
	if incarnation == 0 {
		incarnation = 1
	}
	return incarnation
}

// Name returns the device name, e.g. "local:0".
func (d *Device) Name() string { return d.name }

// Incarnation returns the random id of this device instance, used in
// rendezvous keys.
func (d *Device) Incarnation() uint64 { return d.incarnation }

// Pool returns the device's worker pool.
func (d *Device) Pool() *workerspool.Pool { return d.pool }

// PoolRunner returns a Runner that spreads node computations over the
// device's worker pool.
func (d *Device) PoolRunner() Runner { return poolRunner{pool: d.pool} }

// String implements fmt.Stringer.
func (d *Device) String() string {
	return fmt.Sprintf("%s (incarnation %x)", d.name, d.incarnation)
}
