package core

import (
	"context"
	"log/slog"
	"testing"

	"github.com/zsiec/framegraph/fctx"
	"github.com/zsiec/framegraph/frame"
	"github.com/zsiec/framegraph/node"
	"github.com/zsiec/framegraph/plugin"
	"github.com/zsiec/framegraph/propmap"
)

func TestNewAssignsUniqueIDs(t *testing.T) {
	t.Parallel()

	a := New(Options{})
	defer a.Close()
	b := New(Options{})
	defer b.Close()

	if a.ID() == b.ID() {
		t.Error("two Cores were assigned the same ID")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	c := New(Options{})
	if err := c.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !c.Closed() {
		t.Error("Closed() false after Close")
	}
}

func TestChargeCreditTracksMemoryUsed(t *testing.T) {
	t.Parallel()

	c := New(Options{})
	defer c.Close()

	format := frame.VideoFormat{ColorFamily: frame.Gray, SampleType: frame.Integer, BitsPerSample: 8}
	f := frame.NewVideoFrame(format, 16, 16, nil, c)
	if c.MemoryUsed() == 0 {
		t.Fatal("expected Charge to register frame allocation")
	}
	f.Release()
	if c.MemoryUsed() != 0 {
		t.Errorf("MemoryUsed after release: got %d, want 0", c.MemoryUsed())
	}
}

func TestMessageHandlerFanoutReceivesRecords(t *testing.T) {
	t.Parallel()

	c := New(Options{})
	defer c.Close()

	rec := &recordingHandler{}
	id := c.AddMessageHandler(rec)
	c.Log().Info("hello")
	if rec.count != 1 {
		t.Fatalf("handler received %d records, want 1", rec.count)
	}

	c.RemoveMessageHandler(id)
	c.Log().Info("world")
	if rec.count != 1 {
		t.Fatalf("handler received a record after removal: count=%d", rec.count)
	}
}

type recordingHandler struct {
	count int
}

func (h *recordingHandler) Enabled(ctx context.Context, level slog.Level) bool { return true }
func (h *recordingHandler) Handle(ctx context.Context, r slog.Record) error {
	h.count++
	return nil
}
func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(name string) slog.Handler      { return h }

func TestInvokeRoutesThroughPluginRegistry(t *testing.T) {
	t.Parallel()

	c := New(Options{})
	defer c.Close()

	p := plugin.New("test", "Test Plugin")
	if err := p.RegisterFunction("Echo", "value:int", func(in *propmap.Map) *propmap.Map {
		v, _ := in.Int("value", 0)
		out := propmap.New()
		out.SetInt("result", v*2, propmap.Replace)
		return out
	}); err != nil {
		t.Fatal(err)
	}
	if err := c.RegisterPlugin(p); err != nil {
		t.Fatal(err)
	}

	args := propmap.New()
	args.SetInt("value", 21, propmap.Replace)
	out := c.Invoke("test", "Echo", args)
	if out.HasError() {
		msg, _ := out.Error()
		t.Fatalf("Invoke returned an error: %s", msg)
	}
	result, code := out.Int("result", 0)
	if code != propmap.ErrNone || result != 42 {
		t.Fatalf("Invoke result: got (%d, %v), want (42, ErrNone)", result, code)
	}
}

func TestGetFrameThroughCore(t *testing.T) {
	t.Parallel()

	c := New(Options{Threads: 2})
	defer c.Close()

	getFrame := func(n int, activation node.Activation, data interface{}, ctx *fctx.Context, api node.API, self *node.Node) (*frame.Frame, error) {
		if activation != node.ArAllFramesReady {
			return nil, nil
		}
		return frame.NewAudioFrame(frame.AudioFormat{SampleType: frame.Integer, BitsPerSample: 16}, frame.StereoLayout, node.AudioFrameSamples, nil, c), nil
	}
	ai := node.AudioInfo{Format: frame.AudioFormat{SampleType: frame.Integer, BitsPerSample: 16}, Channels: frame.StereoLayout, SampleRate: 48000, NumSamples: node.AudioFrameSamples}
	n := node.NewAudioNode(node.Spec{Name: "Src", Mode: node.FmParallel, GetFrame: getFrame}, 0, ai)
	defer n.Release()

	f, err := c.GetFrame(n, 0)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	f.Release()
}
