// Package node implements the reference-counted (filter-instance,
// output-index) handle: stream info exposure, the getFrame activation
// contract, and filter-instance teardown.
package node

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zsiec/framegraph/fctx"
	"github.com/zsiec/framegraph/frame"
)

// Activation is the reason tag a scheduler passes to a filter's
// GetFrameFunc on each call.
type Activation int

const (
	ArInitial Activation = iota
	ArAllFramesReady
	ArFrameReady
	ArError
)

func (a Activation) String() string {
	switch a {
	case ArInitial:
		return "arInitial"
	case ArAllFramesReady:
		return "arAllFramesReady"
	case ArFrameReady:
		return "arFrameReady"
	case ArError:
		return "arError"
	default:
		return fmt.Sprintf("Activation(%d)", int(a))
	}
}

// FilterMode constrains how many activations of one filter instance the
// scheduler may run concurrently.
type FilterMode int

const (
	// FmParallel allows any number of Contexts to run concurrently.
	FmParallel FilterMode = iota
	// FmParallelRequests allows concurrent arInitial phases but
	// serializes arAllFramesReady per instance.
	FmParallelRequests
	// FmUnordered serializes every activation on a per-instance mutex.
	FmUnordered
	// FmSerial is like FmUnordered but additionally requires output
	// frames to be produced in strictly ascending index order.
	FmSerial
)

// Flags is a bitmask of Node behavior flags.
type Flags uint32

// FlagNoCache marks a Node whose Cache should hold only the most
// recently produced frame.
const FlagNoCache Flags = 1 << 0

// API is the surface a filter's GetFrameFunc uses to interact with the
// scheduler: requesting dependency frames, releasing them early, and
// reporting errors. Declared here (rather than imported from sched) so
// this package never depends on the scheduler package; sched.Pool
// implements it.
type API interface {
	// RequestFrame declares a dependency on frame n of dep, attaching
	// it to ctx's pending count. Called during arInitial.
	RequestFrame(dep *Node, n int, ctx *fctx.Context)
	// ReleaseFrameEarly drops ctx's cached reference to frame n of dep
	// once a filter is done with it.
	ReleaseFrameEarly(dep *Node, n int, ctx *fctx.Context)
	// SetFilterError marks ctx errored with msg.
	SetFilterError(ctx *fctx.Context, msg string)
}

// GetFrameFunc is a filter's frame-production callback, invoked at
// least twice per output frame: once with ArInitial to declare
// dependencies, once with ArAllFramesReady to produce the Frame.
type GetFrameFunc func(n int, activation Activation, data interface{}, ctx *fctx.Context, api API, self *Node) (*frame.Frame, error)

// FreeFunc tears down filter-instance state when its last output Node
// is released.
type FreeFunc func(data interface{})

var nextID atomic.Uint64

func newID() uint64 { return nextID.Add(1) }

// instance is the shared state of a filter that may expose more than
// one output Node. It is not exported: callers only ever see *Node.
type instance struct {
	name        string
	mode        FilterMode
	getFrame    GetFrameFunc
	free        FreeFunc
	data        interface{}
	inputs      []*Node
	id          uint64
	liveOutputs atomic.Int32
	freeOnce    sync.Once

	// serial mode bookkeeping, one counter per output index.
	mu           sync.Mutex
	nextSerial   map[int]int
}

// Node is a reference-counted handle to one output of a filter
// instance. Node values are safe to Retain/Release from any thread.
type Node struct {
	id     uint64
	output int
	inst   *instance
	flags  Flags
	vinfo  *VideoInfo
	ainfo  *AudioInfo
	refs   atomic.Int32
}

// Spec is the filter-instance-wide state shared by New{Video,Audio}Node
// when a single filter constructor produces more than one output.
type Spec struct {
	Name     string
	Mode     FilterMode
	GetFrame GetFrameFunc
	Free     FreeFunc
	Data     interface{}
	Inputs   []*Node
}

func newInstance(s Spec) *instance {
	inst := &instance{
		name:       s.Name,
		mode:       s.Mode,
		getFrame:   s.GetFrame,
		free:       s.Free,
		data:       s.Data,
		inputs:     s.Inputs,
		id:         newID(),
		nextSerial: make(map[int]int),
	}
	for _, in := range s.Inputs {
		in.Retain()
	}
	return inst
}

// NewVideoNode creates a single-output video Node from spec.
func NewVideoNode(s Spec, flags Flags, vi VideoInfo) *Node {
	return newOutput(newInstance(s), 0, flags, &vi, nil)
}

// NewAudioNode creates a single-output audio Node from spec.
func NewAudioNode(s Spec, flags Flags, ai AudioInfo) *Node {
	return newOutput(newInstance(s), 0, flags, nil, &ai)
}

// NewVideoOutput attaches an additional video output at index output to
// an existing instance, sharing filter state with n. Used by filters
// that expose more than one output stream.
func NewVideoOutput(n *Node, output int, flags Flags, vi VideoInfo) *Node {
	return newOutput(n.inst, output, flags, &vi, nil)
}

// NewAudioOutput attaches an additional audio output at index output to
// an existing instance, sharing filter state with n.
func NewAudioOutput(n *Node, output int, flags Flags, ai AudioInfo) *Node {
	return newOutput(n.inst, output, flags, nil, &ai)
}

func newOutput(inst *instance, output int, flags Flags, vi *VideoInfo, ai *AudioInfo) *Node {
	n := &Node{id: newID(), output: output, inst: inst, flags: flags, vinfo: vi, ainfo: ai}
	n.refs.Store(1)
	inst.liveOutputs.Add(1)
	return n
}

// ID returns a process-unique identifier for this Node, suitable for
// use as a cache or fctx.Key component.
func (n *Node) ID() uint64 { return n.id }

// Output returns this Node's output index within its filter instance.
func (n *Node) Output() int { return n.output }

// Name returns the filter's registered name, for diagnostics.
func (n *Node) Name() string { return n.inst.name }

// Mode returns the filter's concurrency mode.
func (n *Node) Mode() FilterMode { return n.inst.mode }

// InstanceID returns an identifier shared by every output Node of the
// same filter instance, used by the scheduler to key per-instance
// concurrency-control state without needing to see the instance type.
func (n *Node) InstanceID() uint64 { return n.inst.id }

// Flags returns the Node's behavior flags.
func (n *Node) Flags() Flags { return n.flags }

// NoCache reports whether this Node carries FlagNoCache.
func (n *Node) NoCache() bool { return n.flags&FlagNoCache != 0 }

// IsVideo reports whether this Node exposes video stream info.
func (n *Node) IsVideo() bool { return n.vinfo != nil }

// IsAudio reports whether this Node exposes audio stream info.
func (n *Node) IsAudio() bool { return n.ainfo != nil }

// VideoInfo returns the video stream info. Valid only if IsVideo.
func (n *Node) VideoInfo() VideoInfo { return *n.vinfo }

// AudioInfo returns the audio stream info. Valid only if IsAudio.
func (n *Node) AudioInfo() AudioInfo { return *n.ainfo }

// NumFrames returns the total frame count of this output.
func (n *Node) NumFrames() int {
	if n.vinfo != nil {
		return n.vinfo.NumFrames
	}
	return int(n.ainfo.NumFrames())
}

// ClampIndex validates a requested frame index against [0, NumFrames-1].
// Negative indices are always an error. A non-negative index at or past
// NumFrames clamps to the last valid frame instead of erroring, matching
// requestFrame's documented out-of-range handling.
func (n *Node) ClampIndex(idx int) (int, error) {
	last := n.NumFrames() - 1
	if idx < 0 || last < 0 {
		return 0, fmt.Errorf("node %s: frame index %d out of range [0,%d)", n.inst.name, idx, n.NumFrames())
	}
	if idx > last {
		idx = last
	}
	return idx, nil
}

// Invoke calls the filter's GetFrameFunc for this output.
func (n *Node) Invoke(idx int, activation Activation, ctx *fctx.Context, api API) (*frame.Frame, error) {
	return n.inst.getFrame(idx, activation, n.inst.data, ctx, api, n)
}

// TryAdvanceSerial reports whether idx is the next frame this output is
// permitted to enter arAllFramesReady with under FmSerial, and if so
// atomically advances the expectation to idx+1. The scheduler calls
// this while holding the instance's ordering gate and, if it returns
// false, waits on the gate's condition variable and tries again.
func (n *Node) TryAdvanceSerial(idx int) bool {
	n.inst.mu.Lock()
	defer n.inst.mu.Unlock()
	if idx != n.inst.nextSerial[n.output] {
		return false
	}
	n.inst.nextSerial[n.output] = idx + 1
	return true
}

// Retain increments the Node's reference count and returns it.
func (n *Node) Retain() *Node {
	n.refs.Add(1)
	return n
}

// Release decrements the Node's reference count. When it reaches zero,
// the instance's live-output count is decremented; once every output
// Node of the instance has been released, the filter's free callback
// runs exactly once and its input Nodes are released in turn.
func (n *Node) Release() {
	if n.refs.Add(-1) > 0 {
		return
	}
	if n.inst.liveOutputs.Add(-1) > 0 {
		return
	}
	n.inst.freeOnce.Do(func() {
		if n.inst.free != nil {
			n.inst.free(n.inst.data)
		}
		for _, in := range n.inst.inputs {
			in.Release()
		}
	})
}
