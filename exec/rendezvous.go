package exec

import (
	"strconv"
	"strings"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Rendezvous key conventions. Local evaluations name the producing device as
// the sender and the host drain loop as the receiver, and run in the root
// frame; Send nodes and the code draining their values build identical keys
// from the node's tensor-name attribute, so they always pair up.
const (
	// HostDeviceName is the receiver endpoint of locally drained values.
	HostDeviceName = "host"

	// DefaultFrameIter is the frame:iteration qualifier of keys minted
	// outside any loop frame.
	DefaultFrameIter = "0:0"
)

// CreateKey builds a rendezvous key. Keys carry the full transfer identity --
// producing device and its incarnation, receiving device, transfer name and
// loop frame -- so values from a dead device instance can never alias a live
// one.
func CreateKey(srcDevice string, srcIncarnation uint64, dstDevice, name, frameIter string) string {
	return strings.Join([]string{
		srcDevice,
		strconv.FormatUint(srcIncarnation, 16),
		dstDevice,
		name,
		frameIter,
	}, ";")
}

// ParsedKey is the decomposition of a rendezvous key, see CreateKey.
type ParsedKey struct {
	SrcDevice      string
	SrcIncarnation uint64
	DstDevice      string
	Name           string
	FrameIter      string
}

// String reassembles the key.
func (p ParsedKey) String() string {
	return CreateKey(p.SrcDevice, p.SrcIncarnation, p.DstDevice, p.Name, p.FrameIter)
}

// ParseKey validates and decomposes a key built by CreateKey: exactly five
// non-empty ";"-separated fields with a hexadecimal incarnation.
func ParseKey(key string) (ParsedKey, error) {
	parts := strings.Split(key, ";")
	if len(parts) != 5 {
		return ParsedKey{}, errors.Errorf("invalid rendezvous key %q: got %d fields, want 5", key, len(parts))
	}
	for _, part := range parts {
		if part == "" {
			return ParsedKey{}, errors.Errorf("invalid rendezvous key %q: empty field", key)
		}
	}
	incarnation, err := strconv.ParseUint(parts[1], 16, 64)
	if err != nil {
		return ParsedKey{}, errors.Errorf("invalid rendezvous key %q: bad incarnation %q", key, parts[1])
	}
	return ParsedKey{
		SrcDevice:      parts[0],
		SrcIncarnation: incarnation,
		DstDevice:      parts[2],
		Name:           parts[3],
		FrameIter:      parts[4],
	}, nil
}

// Rendezvous is the table through which produced values change hands: Send
// deposits a value under a key, Recv blocks until the matching Send. The
// table is keyed by the parsed transfer name, like the original simple
// rendezvous used for constant folding -- the remaining key fields are
// validated but not discriminated on.
//
// Each name accepts exactly one Send. Values are not consumed by Recv:
// receiving the same name twice returns the same value. All methods are safe
// for concurrent use.
type Rendezvous struct {
	mu       sync.Mutex
	items    map[string]*rendezvousItem
	abortErr error
}

type rendezvousItem struct {
	// ready is closed when value is set or the table is aborted.
	ready chan struct{}
	value Value
	sent  bool
}

// NewRendezvous returns an empty table.
func NewRendezvous() *Rendezvous {
	return &Rendezvous{items: make(map[string]*rendezvousItem)}
}

// lockedItem returns the entry for name, creating it if needed.
func (r *Rendezvous) lockedItem(name string) *rendezvousItem {
	item := r.items[name]
	if item == nil {
		item = &rendezvousItem{ready: make(chan struct{})}
		r.items[name] = item
	}
	return item
}

// Send deposits value under the given key, waking any blocked Recv.
//
// A malformed key or a send after Abort returns an error. A second send for
// the same name or a send of a dead value is a protocol violation no correct
// caller can produce, and panics (via exceptions).
func (r *Rendezvous) Send(key string, value Value) error {
	parsed, err := ParseKey(key)
	if err != nil {
		return errors.WithMessage(err, "Rendezvous.Send")
	}
	if value.IsDead() {
		exceptions.Panicf("Rendezvous.Send %q: refusing to send a dead value", parsed.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.abortErr != nil {
		return errors.WithMessagef(r.abortErr, "Rendezvous.Send %q: rendezvous aborted", parsed.Name)
	}
	item := r.lockedItem(parsed.Name)
	if item.sent {
		exceptions.Panicf("Rendezvous.Send %q: duplicate send for the same key", parsed.Name)
	}
	item.value = value
	item.sent = true
	close(item.ready)
	return nil
}

// Recv blocks until the value named by key has been sent and returns it.
// It returns an error on a malformed key or when the rendezvous is aborted
// before the send happens.
//
// Callers running inside a pooled executor must bracket Recv with the
// runner's Sleeping/Awake.
func (r *Rendezvous) Recv(key string) (Value, error) {
	parsed, err := ParseKey(key)
	if err != nil {
		return Value{}, errors.WithMessage(err, "Rendezvous.Recv")
	}
	r.mu.Lock()
	if r.abortErr != nil {
		defer r.mu.Unlock()
		return Value{}, errors.WithMessagef(r.abortErr, "Rendezvous.Recv %q: rendezvous aborted", parsed.Name)
	}
	item := r.lockedItem(parsed.Name)
	r.mu.Unlock()

	<-item.ready

	r.mu.Lock()
	defer r.mu.Unlock()
	if !item.sent {
		// Woken by Abort.
		return Value{}, errors.WithMessagef(r.abortErr, "Rendezvous.Recv %q: rendezvous aborted", parsed.Name)
	}
	return item.value, nil
}

// Abort poisons the table: every blocked or future Recv (and future Send)
// fails with the given error. Used by the executor's failure path so a drain
// loop can never be stranded waiting for values that will not come. Only the
// first abort error sticks.
func (r *Rendezvous) Abort(err error) {
	if err == nil {
		exceptions.Panicf("Rendezvous.Abort requires an error")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.abortErr != nil {
		return
	}
	r.abortErr = err
	for _, item := range r.items {
		if !item.sent {
			close(item.ready)
		}
	}
}

// FetchKey builds the key under which a locally evaluated value named name is
// sent and drained: device as the sender, the host as the receiver, root
// frame. See CreateKey.
func FetchKey(device *Device, name string) string {
	if device == nil {
		exceptions.Panicf("exec.FetchKey: nil device")
	}
	return CreateKey(device.Name(), device.Incarnation(), HostDeviceName, name, DefaultFrameIter)
}
