package frame

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zsiec/framegraph/propmap"
)

// Accountant charges and credits byte costs against a process-wide memory
// budget. core.Core implements this; frame only depends on the interface
// so it never imports core.
type Accountant interface {
	Charge(bytes int64)
	Credit(bytes int64)
}

// Kind distinguishes a video Frame from an audio Frame.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
)

// planeBuf is a single plane's backing allocation. It is shared (via
// planeSrc in NewVideoFrame2) by reference count so that filters which
// pass a source plane through untouched don't pay a copy.
type planeBuf struct {
	refs   atomic.Int32
	data   []byte
	stride int
	rows   int
	cost   int64
}

func newPlaneBuf(stride, rows int) *planeBuf {
	p := &planeBuf{data: make([]byte, stride*rows), stride: stride, rows: rows, cost: int64(stride * rows)}
	p.refs.Store(1)
	return p
}

func (p *planeBuf) retain() *planeBuf {
	p.refs.Add(1)
	return p
}

func (p *planeBuf) shared() bool {
	return p.refs.Load() > 1
}

// Frame is an immutable-after-publish buffer of either video plane data or
// planar audio channel data, plus a property map. It is reference-counted;
// call Retain/Release rather than sharing the pointer bare.
type Frame struct {
	mu   sync.Mutex
	refs atomic.Int32
	kind Kind
	acct Accountant

	vformat     VideoFormat
	width       int
	height      int
	planes      []*planeBuf
	planeWidth  []int
	planeHeight []int

	aformat    AudioFormat
	channels   ChannelLayout
	numSamples int
	achans     [][]byte // one buffer per present channel, planar

	props *propmap.Map
}

// NewVideoFrame allocates a video Frame with freshly-allocated planes.
// Row stride is aligned to 64 bytes. propSrc, if non-nil, seeds the new
// frame's property map with a clone of propSrc's contents.
func NewVideoFrame(format VideoFormat, w, h int, propSrc *propmap.Map, acct Accountant) *Frame {
	return NewVideoFrame2(format, w, h, nil, nil, propSrc, acct)
}

// NewVideoFrame2 allocates a video Frame, taking a shared reference to
// planeSrc[p]'s plane planes[p] instead of allocating whenever planeSrc[p]
// is non-nil. Shared planes are not writable until detached.
func NewVideoFrame2(format VideoFormat, w, h int, planeSrc []*Frame, srcPlanes []int, propSrc *propmap.Map, acct Accountant) *Frame {
	f := &Frame{kind: KindVideo, vformat: format, width: w, height: h, acct: acct}
	f.refs.Store(1)

	numPlanes := format.NumPlanes()
	f.planes = make([]*planeBuf, numPlanes)
	f.planeWidth = make([]int, numPlanes)
	f.planeHeight = make([]int, numPlanes)

	for p := 0; p < numPlanes; p++ {
		sw, sh := format.PlaneSubSampling(p)
		pw := w >> sw
		ph := h >> sh
		f.planeWidth[p] = pw
		f.planeHeight[p] = ph

		if planeSrc != nil && p < len(planeSrc) && planeSrc[p] != nil {
			srcFrame := planeSrc[p]
			srcPlaneIdx := srcPlanes[p]
			pb := srcFrame.planes[srcPlaneIdx].retain()
			f.planes[p] = pb
			continue
		}

		stride := align(pw*format.BytesPerSample(), 64)
		pb := newPlaneBuf(stride, ph)
		if acct != nil {
			acct.Charge(pb.cost)
		}
		f.planes[p] = pb
	}

	f.props = clonePropsOrNew(propSrc)
	return f
}

// NewAudioFrame allocates an audio Frame with one planar buffer per
// present channel. numSamples must not exceed the fixed audio frame
// sample count enforced by the caller (node.AudioFrameSamples).
func NewAudioFrame(format AudioFormat, channels ChannelLayout, numSamples int, propSrc *propmap.Map, acct Accountant) *Frame {
	f := &Frame{kind: KindAudio, aformat: format, channels: channels, numSamples: numSamples, acct: acct}
	f.refs.Store(1)

	n := channels.NumChannels()
	f.achans = make([][]byte, n)
	bytesPerChan := int64(numSamples * format.BytesPerSample())
	for i := 0; i < n; i++ {
		f.achans[i] = make([]byte, bytesPerChan)
		if acct != nil {
			acct.Charge(bytesPerChan)
		}
	}

	f.props = clonePropsOrNew(propSrc)
	return f
}

func clonePropsOrNew(src *propmap.Map) *propmap.Map {
	if src == nil {
		return propmap.New()
	}
	return src.Clone()
}

// Kind reports whether this is a video or audio Frame.
func (f *Frame) Kind() Kind { return f.kind }

// VideoFormat returns the pixel format. Valid only for video Frames.
func (f *Frame) VideoFormat() VideoFormat { return f.vformat }

// Width returns the luma-plane width. Valid only for video Frames.
func (f *Frame) Width() int { return f.width }

// Height returns the luma-plane height. Valid only for video Frames.
func (f *Frame) Height() int { return f.height }

// AudioFormat returns the sample format. Valid only for audio Frames.
func (f *Frame) AudioFormat() AudioFormat { return f.aformat }

// Channels returns the channel layout. Valid only for audio Frames.
func (f *Frame) Channels() ChannelLayout { return f.channels }

// NumSamples returns the declared sample count. Valid only for audio Frames.
func (f *Frame) NumSamples() int { return f.numSamples }

// Props returns the Frame's property map.
func (f *Frame) Props() *propmap.Map { return f.props }

// NumPlanes returns the number of video planes. Valid only for video Frames.
func (f *Frame) NumPlanes() int { return len(f.planes) }

// Stride returns the row stride in bytes for the given video plane.
func (f *Frame) Stride(plane int) int { return f.planes[plane].stride }

// PlaneWidth returns the pixel width of the given video plane.
func (f *Frame) PlaneWidth(plane int) int { return f.planeWidth[plane] }

// PlaneHeight returns the pixel height of the given video plane.
func (f *Frame) PlaneHeight(plane int) int { return f.planeHeight[plane] }

// ReadPlane returns a read-only view of a video plane's backing bytes.
func (f *Frame) ReadPlane(plane int) []byte {
	return f.planes[plane].data
}

// WritePlane returns a mutable view of a video plane's backing bytes. It
// panics if the Frame is not uniquely owned (refs > 1): frames become
// writable only when uniquely owned, matching the immutable-after-publish
// contract. If the plane is shared with a source frame (via
// NewVideoFrame2), it is detached (copied) first.
func (f *Frame) WritePlane(plane int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refs.Load() > 1 {
		panic("frame: WritePlane on a Frame with more than one reference")
	}
	pb := f.planes[plane]
	if pb.shared() {
		fresh := newPlaneBuf(pb.stride, pb.rows)
		copy(fresh.data, pb.data)
		if f.acct != nil {
			f.acct.Charge(fresh.cost)
		}
		pb.refs.Add(-1)
		f.planes[plane] = fresh
		pb = fresh
	}
	return pb.data
}

// ReadChannel returns a read-only view of an audio channel's samples, in
// the order the layout's channels are enumerated (low bit first).
func (f *Frame) ReadChannel(idx int) []byte {
	return f.achans[idx]
}

// WriteChannel returns a mutable view of an audio channel's samples. Like
// WritePlane, it requires sole ownership.
func (f *Frame) WriteChannel(idx int) []byte {
	if f.refs.Load() > 1 {
		panic("frame: WriteChannel on a Frame with more than one reference")
	}
	return f.achans[idx]
}

// Retain increments the reference count and returns the Frame for chaining.
func (f *Frame) Retain() *Frame {
	f.refs.Add(1)
	return f
}

// Release decrements the reference count, freeing plane/channel
// allocations and crediting the accountant when it reaches zero.
func (f *Frame) Release() {
	if f.refs.Add(-1) > 0 {
		return
	}
	switch f.kind {
	case KindVideo:
		for _, pb := range f.planes {
			if pb.refs.Add(-1) == 0 && f.acct != nil {
				f.acct.Credit(pb.cost)
			}
		}
	case KindAudio:
		bytesPerChan := int64(f.numSamples * f.aformat.BytesPerSample())
		if f.acct != nil {
			for range f.achans {
				f.acct.Credit(bytesPerChan)
			}
		}
	}
}

// ByteCost returns the total backing-allocation size of the Frame,
// used by the Cache to account against the global cache byte budget.
// Shared planes are counted at full size for every Frame sharing them,
// although the accountant is credited for a plane only once, when its
// last holder releases it.
func (f *Frame) ByteCost() int64 {
	var n int64
	switch f.kind {
	case KindVideo:
		for _, pb := range f.planes {
			n += pb.cost
		}
	case KindAudio:
		n = int64(len(f.achans)) * int64(f.numSamples*f.aformat.BytesPerSample())
	}
	return n
}

// Copy duplicates all planes/channels and the property map into a new,
// independently-owned Frame.
func (f *Frame) Copy() *Frame {
	switch f.kind {
	case KindVideo:
		c := NewVideoFrame(f.vformat, f.width, f.height, f.props, f.acct)
		for p := range c.planes {
			copy(c.WritePlane(p), f.ReadPlane(p))
		}
		return c
	case KindAudio:
		c := NewAudioFrame(f.aformat, f.channels, f.numSamples, f.props, f.acct)
		for i := range c.achans {
			copy(c.WriteChannel(i), f.ReadChannel(i))
		}
		return c
	default:
		panic(fmt.Sprintf("frame: unknown kind %d", f.kind))
	}
}

// VideoFrameRef adapts a *Frame to propmap.VideoFrameRef.
type VideoFrameRef struct{ *Frame }

func (r VideoFrameRef) Retain() propmap.VideoFrameRef { return VideoFrameRef{r.Frame.Retain()} }
func (r VideoFrameRef) Release()                      { r.Frame.Release() }

// AudioFrameRef adapts a *Frame to propmap.AudioFrameRef.
type AudioFrameRef struct{ *Frame }

func (r AudioFrameRef) Retain() propmap.AudioFrameRef { return AudioFrameRef{r.Frame.Retain()} }
func (r AudioFrameRef) Release()                      { r.Frame.Release() }
