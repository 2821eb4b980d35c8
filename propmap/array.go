package propmap

import "sync/atomic"

// array is the copy-on-write, reference-counted backing store for one Map
// key. A single array is shared between a Map and any Clone of it until
// one side needs to mutate, at which point detach copies it.
type array struct {
	refs   atomic.Int32
	kind   Kind
	ints   []int64
	floats []float64
	data   []Data
	vnodes []VideoNodeRef
	anodes []AudioNodeRef
	vfrms  []VideoFrameRef
	afrms  []AudioFrameRef
	funcs  []FuncRef
}

func newArray(k Kind) *array {
	a := &array{kind: k}
	a.refs.Store(1)
	return a
}

func (a *array) retain() *array {
	a.refs.Add(1)
	return a
}

func (a *array) shared() bool {
	return a.refs.Load() > 1
}

func (a *array) len() int {
	switch a.kind {
	case KindInt:
		return len(a.ints)
	case KindFloat:
		return len(a.floats)
	case KindData:
		return len(a.data)
	case KindVideoNode:
		return len(a.vnodes)
	case KindAudioNode:
		return len(a.anodes)
	case KindVideoFrame:
		return len(a.vfrms)
	case KindAudioFrame:
		return len(a.afrms)
	case KindFunc:
		return len(a.funcs)
	default:
		return 0
	}
}

// clone deep-copies the element slices (retaining any held refs an extra
// time) so the copy can be mutated independently. Called only when the
// array is shared and about to be written.
func (a *array) clone() *array {
	c := newArray(a.kind)
	c.ints = append([]int64(nil), a.ints...)
	c.floats = append([]float64(nil), a.floats...)
	c.data = append([]Data(nil), a.data...)
	c.vnodes = append([]VideoNodeRef(nil), a.vnodes...)
	c.anodes = append([]AudioNodeRef(nil), a.anodes...)
	c.vfrms = append([]VideoFrameRef(nil), a.vfrms...)
	c.afrms = append([]AudioFrameRef(nil), a.afrms...)
	c.funcs = append([]FuncRef(nil), a.funcs...)
	for i, n := range c.vnodes {
		c.vnodes[i] = n.Retain()
	}
	for i, n := range c.anodes {
		c.anodes[i] = n.Retain()
	}
	for i, f := range c.vfrms {
		c.vfrms[i] = f.Retain()
	}
	for i, f := range c.afrms {
		c.afrms[i] = f.Retain()
	}
	return c
}
