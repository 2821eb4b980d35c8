package filters

import (
	"encoding/binary"
	"testing"

	"github.com/zsiec/framegraph/node"
	"github.com/zsiec/framegraph/propmap"
	"github.com/zsiec/framegraph/sched"
)

func mustAudioClip(t *testing.T, out *propmap.Map) *node.Node {
	t.Helper()
	if out.HasError() {
		msg, _ := out.Error()
		t.Fatalf("filter returned an error: %s", msg)
	}
	ref, code := out.AudioNode("clip", 0)
	if code != propmap.ErrNone {
		t.Fatalf("filter did not return a clip node: %v", code)
	}
	return ref.(node.AudioNodeRef).Node
}

func blankArgs(length int64, extra map[string]int64) *propmap.Map {
	args := propmap.New()
	args.SetInt("length", length, propmap.Replace)
	for k, v := range extra {
		args.SetInt(k, v, propmap.Replace)
	}
	return args
}

func newTestPool() *sched.Pool {
	return sched.NewPool(4, 0)
}

func TestBlankAudioIsSilent(t *testing.T) {
	t.Parallel()
	pool := newTestPool()
	src := mustAudioClip(t, blankAudioCreate(blankArgs(node.AudioFrameSamples, nil)))

	f, err := pool.GetFrame(src, 0)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	defer f.Release()

	for ch := 0; ch < 2; ch++ {
		for _, b := range f.ReadChannel(ch) {
			if b != 0 {
				t.Fatalf("expected silence, got nonzero byte")
			}
		}
	}
}

func TestBlankAudioKeepCachesSingleFrame(t *testing.T) {
	t.Parallel()
	pool := newTestPool()
	src := mustAudioClip(t, blankAudioCreate(blankArgs(node.AudioFrameSamples*4, map[string]int64{"keep": 1})))

	f1, err := pool.GetFrame(src, 0)
	if err != nil {
		t.Fatal(err)
	}
	f2, err := pool.GetFrame(src, 2)
	if err != nil {
		t.Fatal(err)
	}
	if f1.NumSamples() != f2.NumSamples() {
		t.Fatalf("keep=1 frames should share the same generated buffer size")
	}
	if f1 != f2 {
		t.Fatalf("keep=1 should serve every frame from one generated frame")
	}
	f1.Release()
	f2.Release()
}

func TestTestAudioProducesRampPattern(t *testing.T) {
	t.Parallel()
	pool := newTestPool()
	src := mustAudioClip(t, testAudioCreate(blankArgs(node.AudioFrameSamples, nil)))

	f, err := pool.GetFrame(src, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Release()

	buf := f.ReadChannel(0)
	for i := 0; i < 10; i++ {
		got := binary.LittleEndian.Uint16(buf[i*2:])
		want := uint16(i % 0xFFFF)
		if got != want {
			t.Fatalf("sample %d: got %d, want %d", i, got, want)
		}
	}
}

func TestAudioGainScalesSamples(t *testing.T) {
	t.Parallel()
	pool := newTestPool()
	src := mustAudioClip(t, testAudioCreate(blankArgs(node.AudioFrameSamples, nil)))

	args := propmap.New()
	args.SetAudioNode("clip", node.AudioNodeRef{Node: src}, propmap.Replace)
	args.SetFloat("gain", 2.0, propmap.Replace)
	gained := mustAudioClip(t, audioGainCreate(args))

	orig, _ := pool.GetFrame(src, 0)
	out, err := pool.GetFrame(gained, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer orig.Release()
	defer out.Release()

	origBuf := orig.ReadChannel(0)
	outBuf := out.ReadChannel(0)
	for i := 0; i < 5; i++ {
		want := int16(binary.LittleEndian.Uint16(origBuf[i*2:])) * 2
		got := int16(binary.LittleEndian.Uint16(outBuf[i*2:]))
		if got != want {
			t.Fatalf("sample %d: got %d, want %d", i, got, want)
		}
	}
}

func TestAudioReverseFlipsSampleOrder(t *testing.T) {
	t.Parallel()
	pool := newTestPool()
	src := mustAudioClip(t, testAudioCreate(blankArgs(node.AudioFrameSamples, nil)))

	args := propmap.New()
	args.SetAudioNode("clip", node.AudioNodeRef{Node: src}, propmap.Replace)
	rev := mustAudioClip(t, audioReverseCreate(args))

	orig, _ := pool.GetFrame(src, 0)
	out, err := pool.GetFrame(rev, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer orig.Release()
	defer out.Release()

	n := orig.NumSamples()
	origBuf := orig.ReadChannel(0)
	outBuf := out.ReadChannel(0)
	first := binary.LittleEndian.Uint16(origBuf[0:])
	last := binary.LittleEndian.Uint16(outBuf[(n-1)*2:])
	if first != last {
		t.Fatalf("reversed clip's last sample should equal original's first: got %d, want %d", last, first)
	}
}

func TestAudioTrimIsNopWhenFullRange(t *testing.T) {
	t.Parallel()
	src := mustAudioClip(t, testAudioCreate(blankArgs(node.AudioFrameSamples, nil)))

	args := propmap.New()
	args.SetAudioNode("clip", node.AudioNodeRef{Node: src}, propmap.Replace)
	out := mustAudioClip(t, audioTrimCreate(args))
	if out != src {
		t.Fatalf("AudioTrim with no bounds should pass its input through unchanged")
	}
}

func TestAudioTrimShortensLength(t *testing.T) {
	t.Parallel()
	pool := newTestPool()
	src := mustAudioClip(t, testAudioCreate(blankArgs(node.AudioFrameSamples*2, nil)))

	args := propmap.New()
	args.SetAudioNode("clip", node.AudioNodeRef{Node: src}, propmap.Replace)
	args.SetInt("first", 10, propmap.Replace)
	args.SetInt("length", 100, propmap.Replace)
	trimmed := mustAudioClip(t, audioTrimCreate(args))

	if trimmed.AudioInfo().NumSamples != 100 {
		t.Fatalf("trimmed length: got %d, want 100", trimmed.AudioInfo().NumSamples)
	}

	f, err := pool.GetFrame(trimmed, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Release()
	if f.NumSamples() != 100 {
		t.Fatalf("frame length: got %d, want 100", f.NumSamples())
	}

	orig, _ := pool.GetFrame(src, 0)
	defer orig.Release()
	origBuf := orig.ReadChannel(0)
	trimBuf := f.ReadChannel(0)
	want := binary.LittleEndian.Uint16(origBuf[10*2:])
	got := binary.LittleEndian.Uint16(trimBuf[0:])
	if got != want {
		t.Fatalf("first trimmed sample: got %d, want %d", got, want)
	}
}

func TestAudioSpliceConcatenatesClips(t *testing.T) {
	t.Parallel()
	pool := newTestPool()
	a := mustAudioClip(t, testAudioCreate(blankArgs(100, nil)))
	b := mustAudioClip(t, testAudioCreate(blankArgs(50, nil)))

	args := propmap.New()
	args.SetAudioNode("clips", node.AudioNodeRef{Node: a}, propmap.Replace)
	args.SetAudioNode("clips", node.AudioNodeRef{Node: b}, propmap.Append)
	spliced := mustAudioClip(t, audioSpliceCreate(args))

	if spliced.AudioInfo().NumSamples != 150 {
		t.Fatalf("spliced length: got %d, want 150", spliced.AudioInfo().NumSamples)
	}

	f, err := pool.GetFrame(spliced, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Release()
	if f.NumSamples() != 150 {
		t.Fatalf("frame length: got %d, want 150", f.NumSamples())
	}
}

func TestAudioLoopMultipliesLength(t *testing.T) {
	t.Parallel()
	pool := newTestPool()
	src := mustAudioClip(t, testAudioCreate(blankArgs(100, nil)))

	args := propmap.New()
	args.SetAudioNode("clip", node.AudioNodeRef{Node: src}, propmap.Replace)
	args.SetInt("times", 3, propmap.Replace)
	looped := mustAudioClip(t, audioLoopCreate(args))

	if looped.AudioInfo().NumSamples != 300 {
		t.Fatalf("looped length: got %d, want 300", looped.AudioInfo().NumSamples)
	}

	f, err := pool.GetFrame(looped, 0)
	if err != nil {
		t.Fatal(err)
	}
	f.Release()
}

func TestAudioLoopRejectsNegativeTimes(t *testing.T) {
	t.Parallel()
	src := mustAudioClip(t, testAudioCreate(blankArgs(100, nil)))
	args := propmap.New()
	args.SetAudioNode("clip", node.AudioNodeRef{Node: src}, propmap.Replace)
	args.SetInt("times", -1, propmap.Replace)
	out := audioLoopCreate(args)
	if !out.HasError() {
		t.Fatal("expected an error for negative times")
	}
}

func TestSplitChannelsProducesOnePerChannel(t *testing.T) {
	t.Parallel()
	pool := newTestPool()
	src := mustAudioClip(t, testAudioCreate(blankArgs(node.AudioFrameSamples, nil)))

	args := propmap.New()
	args.SetAudioNode("clip", node.AudioNodeRef{Node: src}, propmap.Replace)
	out := splitChannelsCreate(args)
	if out.HasError() {
		msg, _ := out.Error()
		t.Fatalf("SplitChannels error: %s", msg)
	}
	if out.NumElements("clip") != 2 {
		t.Fatalf("expected 2 output clips, got %d", out.NumElements("clip"))
	}

	ref0, _ := out.AudioNode("clip", 0)
	n0 := ref0.(node.AudioNodeRef).Node
	f, err := pool.GetFrame(n0, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Release()
	if f.Channels().NumChannels() != 1 {
		t.Fatalf("split output should carry exactly one channel")
	}
}

func TestShuffleChannelsSwapsLeftAndRight(t *testing.T) {
	t.Parallel()
	pool := newTestPool()
	src := mustAudioClip(t, testAudioCreate(blankArgs(node.AudioFrameSamples, nil)))

	args := propmap.New()
	args.SetAudioNode("clip", node.AudioNodeRef{Node: src}, propmap.Replace)
	args.SetInt("channels_in", 1, propmap.Replace)
	args.SetInt("channels_in", 0, propmap.Append)
	args.SetInt("channels_out", 0, propmap.Replace)
	args.SetInt("channels_out", 1, propmap.Append)
	shuffled := mustAudioClip(t, shuffleChannelsCreate(args))

	orig, err := pool.GetFrame(src, 0)
	if err != nil {
		t.Fatal(err)
	}
	out, err := pool.GetFrame(shuffled, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer orig.Release()
	defer out.Release()

	if binary.LittleEndian.Uint16(orig.ReadChannel(0)) != binary.LittleEndian.Uint16(out.ReadChannel(1)) {
		t.Fatal("expected channel 0 of source to land on channel 1 of output")
	}
}

func TestAssumeSampleRateOverridesRate(t *testing.T) {
	t.Parallel()
	src := mustAudioClip(t, testAudioCreate(blankArgs(node.AudioFrameSamples, nil)))
	args := propmap.New()
	args.SetAudioNode("clip", node.AudioNodeRef{Node: src}, propmap.Replace)
	args.SetInt("samplerate", 48000, propmap.Replace)
	out := mustAudioClip(t, assumeSampleRateCreate(args))
	if out.AudioInfo().SampleRate != 48000 {
		t.Fatalf("sample rate: got %d, want 48000", out.AudioInfo().SampleRate)
	}
}

func TestAssumeSampleRateRejectsBothOptions(t *testing.T) {
	t.Parallel()
	src := mustAudioClip(t, testAudioCreate(blankArgs(node.AudioFrameSamples, nil)))
	other := mustAudioClip(t, testAudioCreate(blankArgs(node.AudioFrameSamples, nil)))
	args := propmap.New()
	args.SetAudioNode("clip", node.AudioNodeRef{Node: src}, propmap.Replace)
	args.SetInt("samplerate", 48000, propmap.Replace)
	args.SetAudioNode("src", node.AudioNodeRef{Node: other}, propmap.Replace)
	out := assumeSampleRateCreate(args)
	if !out.HasError() {
		t.Fatal("expected an error when both samplerate and src are given")
	}
}

func TestAudioMixSumsWeightedChannels(t *testing.T) {
	t.Parallel()
	pool := newTestPool()
	a := mustAudioClip(t, testAudioCreate(blankArgs(node.AudioFrameSamples, nil)))
	b := mustAudioClip(t, testAudioCreate(blankArgs(node.AudioFrameSamples, nil)))

	args := propmap.New()
	args.SetAudioNode("clips", node.AudioNodeRef{Node: a}, propmap.Replace)
	args.SetAudioNode("clips", node.AudioNodeRef{Node: b}, propmap.Append)
	// 4 source channels (a.L, a.R, b.L, b.R) mixed down to 1 mono output.
	args.SetFloatArray("matrix", []float64{0.25, 0.25, 0.25, 0.25})
	args.SetInt("channels_out", 2, propmap.Replace) // front center bit
	mixed := mustAudioClip(t, audioMixCreate(args))

	f, err := pool.GetFrame(mixed, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Release()
	if mixed.AudioInfo().Channels.NumChannels() != 1 {
		t.Fatalf("expected a single mixed-down channel")
	}
	// Every source channel carries the ramp x[i] = i, so 0.25 * 4 * i = i.
	for i := 0; i < 5; i++ {
		if got := int16(binary.LittleEndian.Uint16(f.ReadChannel(0)[i*2:])); got != int16(i) {
			t.Fatalf("mixed sample %d: got %d, want %d", i, got, i)
		}
	}
}
