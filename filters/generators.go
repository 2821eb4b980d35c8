package filters

import (
	"encoding/binary"
	"sync"

	"github.com/zsiec/framegraph/fctx"
	"github.com/zsiec/framegraph/frame"
	"github.com/zsiec/framegraph/node"
	"github.com/zsiec/framegraph/propmap"
)

// blankData generates silent frames on demand. When keep is set the
// filter runs FmUnordered and caches the single frame it first
// generates (every produced frame is identical), returning a retained
// clone on every subsequent call instead of reallocating.
type blankData struct {
	ai   node.AudioInfo
	keep bool

	mu sync.Mutex
	f  *frame.Frame
}

func blankGetFrame(n int, activation node.Activation, data interface{}, ctx *fctx.Context, api node.API, self *node.Node) (*frame.Frame, error) {
	if activation != node.ArAllFramesReady {
		return nil, nil
	}
	d := data.(*blankData)

	if d.keep {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.f != nil {
			return d.f.Retain(), nil
		}
	}

	samples := min64(node.AudioFrameSamples, d.ai.NumSamples-int64(n)*node.AudioFrameSamples)
	f := frame.NewAudioFrame(d.ai.Format, d.ai.Channels, int(samples), nil, nil)
	numChannels := d.ai.Channels.NumChannels()
	for ch := 0; ch < numChannels; ch++ {
		buf := f.WriteChannel(ch)
		for i := range buf {
			buf[i] = 0
		}
	}

	if d.keep {
		d.f = f
		return f.Retain(), nil
	}
	return f, nil
}

func blankAudioCreate(args *propmap.Map) *propmap.Map {
	out := propmap.New()

	channels, hasChannels := optInt(args, "channels", 0)
	if !hasChannels {
		channels = int64(frame.StereoLayout)
	}
	bits, hasBits := optInt(args, "bits", 0)
	if !hasBits {
		bits = 16
	}
	isFloatV, _ := optInt(args, "isfloat", 0)
	keepV, _ := optInt(args, "keep", 0)
	rate, hasRate := optInt(args, "samplerate", 0)
	if !hasRate {
		rate = 44100
	}
	length, hasLength := optInt(args, "length", 0)
	if !hasLength {
		length = rate * 60 * 60
	}

	if rate <= 0 {
		out.SetError("BlankAudio: invalid sample rate")
		return out
	}
	if length <= 0 {
		out.SetError("BlankAudio: invalid length")
		return out
	}

	sampleType := frame.Integer
	if isFloatV != 0 {
		sampleType = frame.Float
	}
	ai := node.AudioInfo{
		Format:     frame.AudioFormat{SampleType: sampleType, BitsPerSample: int(bits)},
		Channels:   frame.ChannelLayout(channels),
		SampleRate: int(rate),
		NumSamples: length,
	}

	keep := keepV != 0
	d := &blankData{ai: ai, keep: keep}
	mode := node.FmParallel
	if keep {
		mode = node.FmUnordered
	}
	outNode := node.NewAudioNode(node.Spec{
		Name:     "BlankAudio",
		Mode:     mode,
		GetFrame: blankGetFrame,
		Data:     d,
	}, node.FlagNoCache, ai)
	out.SetAudioNode("clip", node.AudioNodeRef{Node: outNode}, propmap.Replace)
	return out
}

type testAudioData struct {
	ai node.AudioInfo
}

func testAudioGetFrame(n int, activation node.Activation, data interface{}, ctx *fctx.Context, api node.API, self *node.Node) (*frame.Frame, error) {
	if activation != node.ArAllFramesReady {
		return nil, nil
	}
	d := data.(*testAudioData)
	startSample := int64(n) * node.AudioFrameSamples
	samples := min64(node.AudioFrameSamples, d.ai.NumSamples-startSample)

	f := frame.NewAudioFrame(d.ai.Format, d.ai.Channels, int(samples), nil, nil)
	numChannels := d.ai.Channels.NumChannels()
	for ch := 0; ch < numChannels; ch++ {
		buf := f.WriteChannel(ch)
		for i := int64(0); i < samples; i++ {
			v := uint16((startSample + i) % 0xFFFF)
			binary.LittleEndian.PutUint16(buf[i*2:], v)
		}
	}
	return f, nil
}

func testAudioCreate(args *propmap.Map) *propmap.Map {
	out := propmap.New()

	channels, hasChannels := optInt(args, "channels", 0)
	if !hasChannels {
		channels = int64(frame.StereoLayout)
	}
	bits, hasBits := optInt(args, "bits", 0)
	if !hasBits {
		bits = 16
	}
	if bits != 16 {
		out.SetError("TestAudio: bits must be 16!")
		return out
	}
	isFloatV, _ := optInt(args, "isfloat", 0)
	rate, hasRate := optInt(args, "samplerate", 0)
	if !hasRate {
		rate = 44100
	}
	length, hasLength := optInt(args, "length", 0)
	if !hasLength {
		length = rate * 60 * 60
	}
	if rate <= 0 {
		out.SetError("TestAudio: invalid sample rate")
		return out
	}
	if length <= 0 {
		out.SetError("TestAudio: invalid length")
		return out
	}

	sampleType := frame.Integer
	if isFloatV != 0 {
		sampleType = frame.Float
	}
	ai := node.AudioInfo{
		Format:     frame.AudioFormat{SampleType: sampleType, BitsPerSample: int(bits)},
		Channels:   frame.ChannelLayout(channels),
		SampleRate: int(rate),
		NumSamples: length,
	}

	d := &testAudioData{ai: ai}
	outNode := node.NewAudioNode(node.Spec{
		Name:     "TestAudio",
		Mode:     node.FmParallel,
		GetFrame: testAudioGetFrame,
		Data:     d,
	}, node.FlagNoCache, ai)
	out.SetAudioNode("clip", node.AudioNodeRef{Node: outNode}, propmap.Replace)
	return out
}
