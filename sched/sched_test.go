package sched

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/zsiec/framegraph/fctx"
	"github.com/zsiec/framegraph/frame"
	"github.com/zsiec/framegraph/node"
)

func audioFormat() frame.AudioFormat {
	return frame.AudioFormat{SampleType: frame.Integer, BitsPerSample: 16}
}

// sourceNode produces a fresh audio frame stamped with its own index,
// counting how many times ArAllFramesReady actually ran.
func sourceNode(name string, numFrames int, mode node.FilterMode, calls *atomic.Int32) *node.Node {
	getFrame := func(n int, activation node.Activation, data interface{}, ctx *fctx.Context, api node.API, self *node.Node) (*frame.Frame, error) {
		if activation != node.ArAllFramesReady {
			return nil, nil
		}
		if calls != nil {
			calls.Add(1)
		}
		f := frame.NewAudioFrame(audioFormat(), frame.StereoLayout, node.AudioFrameSamples, nil, nil)
		f.WriteChannel(0)[0] = byte(n)
		return f, nil
	}
	ai := node.AudioInfo{
		Format:     audioFormat(),
		Channels:   frame.StereoLayout,
		SampleRate: 48000,
		NumSamples: int64(numFrames) * node.AudioFrameSamples,
	}
	return node.NewAudioNode(node.Spec{Name: name, Mode: mode, GetFrame: getFrame}, 0, ai)
}

// passthroughNode requests frame n of src during arInitial and returns
// src's frame unchanged during arAllFramesReady.
func passthroughNode(src *node.Node) *node.Node {
	getFrame := func(n int, activation node.Activation, data interface{}, ctx *fctx.Context, api node.API, self *node.Node) (*frame.Frame, error) {
		s := data.(*node.Node)
		switch activation {
		case node.ArInitial:
			api.RequestFrame(s, n, ctx)
			return nil, nil
		case node.ArAllFramesReady:
			key := fctx.Key{NodeID: s.ID(), Index: n, Output: s.Output()}
			f, ok := ctx.Get(key)
			if !ok {
				return nil, nil
			}
			return f.Retain(), nil
		}
		return nil, nil
	}
	ai := src.AudioInfo()
	return node.NewAudioNode(node.Spec{Name: "Passthrough", Mode: node.FmParallel, GetFrame: getFrame, Data: src, Inputs: []*node.Node{src}}, 0, ai)
}

func TestGetFrameFromSource(t *testing.T) {
	t.Parallel()

	src := sourceNode("Src", 4, node.FmParallel, nil)
	defer src.Release()
	p := NewPool(4, 0)

	f, err := p.GetFrame(src, 2)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	defer f.Release()
	if got := f.ReadChannel(0)[0]; got != 2 {
		t.Errorf("frame content: got %d, want 2", got)
	}
}

func TestPassthroughResolvesDependency(t *testing.T) {
	t.Parallel()

	src := sourceNode("Src", 4, node.FmParallel, nil)
	pt := passthroughNode(src)
	defer pt.Release()
	p := NewPool(4, 0)

	f, err := p.GetFrame(pt, 3)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	defer f.Release()
	if got := f.ReadChannel(0)[0]; got != 3 {
		t.Errorf("frame content: got %d, want 3", got)
	}
}

func TestNegativeIndexErrors(t *testing.T) {
	t.Parallel()

	src := sourceNode("Src", 2, node.FmParallel, nil)
	defer src.Release()
	p := NewPool(2, 0)

	if _, err := p.GetFrame(src, -1); err == nil {
		t.Fatal("expected an error for a negative frame index")
	}
}

func TestPositiveOutOfRangeIndexClamps(t *testing.T) {
	t.Parallel()

	src := sourceNode("Src", 2, node.FmParallel, nil)
	defer src.Release()
	p := NewPool(2, 0)

	f, err := p.GetFrame(src, 99)
	if err != nil {
		t.Fatalf("GetFrame: unexpected error %v", err)
	}
	defer f.Release()
	if got := f.ReadChannel(0)[0]; got != byte(src.NumFrames()-1) {
		t.Errorf("clamped frame content: got %d, want %d", got, src.NumFrames()-1)
	}
}

func TestCacheAvoidsRecompute(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	src := sourceNode("Src", 4, node.FmParallel, &calls)
	defer src.Release()
	p := NewPool(4, 0)

	f1, err := p.GetFrame(src, 1)
	if err != nil {
		t.Fatal(err)
	}
	f1.Release()
	f2, err := p.GetFrame(src, 1)
	if err != nil {
		t.Fatal(err)
	}
	f2.Release()

	if got := calls.Load(); got != 1 {
		t.Errorf("filter invoked %d times for the same frame, want 1", got)
	}
}

func TestSerialModeEnforcesAscendingOrder(t *testing.T) {
	t.Parallel()

	var order []int
	getFrame := func(n int, activation node.Activation, data interface{}, ctx *fctx.Context, api node.API, self *node.Node) (*frame.Frame, error) {
		if activation != node.ArAllFramesReady {
			return nil, nil
		}
		order = append(order, n)
		return frame.NewAudioFrame(audioFormat(), frame.StereoLayout, node.AudioFrameSamples, nil, nil), nil
	}
	ai := node.AudioInfo{Format: audioFormat(), Channels: frame.StereoLayout, SampleRate: 48000, NumSamples: 5 * node.AudioFrameSamples}
	src := node.NewAudioNode(node.Spec{Name: "Serial", Mode: node.FmSerial, GetFrame: getFrame}, 0, ai)
	defer src.Release()
	p := NewPool(4, 0)

	done := make(chan struct{})
	for i := 4; i >= 0; i-- {
		go func(idx int) {
			f, err := p.GetFrame(src, idx)
			if err == nil {
				f.Release()
			}
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 5; i++ {
		<-done
	}

	for i := 1; i < len(order); i++ {
		if order[i] < order[i-1] {
			t.Fatalf("serial mode produced out-of-order frames: %v", order)
		}
	}
}

func TestFilterErrorPropagatesThroughDependency(t *testing.T) {
	t.Parallel()

	getFrame := func(n int, activation node.Activation, data interface{}, ctx *fctx.Context, api node.API, self *node.Node) (*frame.Frame, error) {
		if activation == node.ArAllFramesReady {
			api.SetFilterError(ctx, "boom")
		}
		return nil, nil
	}
	ai := node.AudioInfo{Format: audioFormat(), Channels: frame.StereoLayout, SampleRate: 48000, NumSamples: node.AudioFrameSamples}
	src := node.NewAudioNode(node.Spec{Name: "Failing", Mode: node.FmParallel, GetFrame: getFrame}, 0, ai)
	pt := passthroughNode(src)
	defer pt.Release()
	p := NewPool(4, 0)

	if _, err := p.GetFrame(pt, 0); err == nil {
		t.Fatal("expected dependency error to propagate")
	}
}

func TestGetFrameCompletesBeforeDeadline(t *testing.T) {
	t.Parallel()

	src := sourceNode("Src", 1, node.FmParallel, nil)
	defer src.Release()
	p := NewPool(1, 0)

	resultCh := make(chan struct{})
	go func() {
		f, err := p.GetFrame(src, 0)
		if err == nil {
			f.Release()
		}
		close(resultCh)
	}()

	select {
	case <-resultCh:
	case <-time.After(2 * time.Second):
		t.Fatal("GetFrame did not complete in time")
	}
}
