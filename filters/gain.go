package filters

import (
	"github.com/zsiec/framegraph/fctx"
	"github.com/zsiec/framegraph/frame"
	"github.com/zsiec/framegraph/node"
	"github.com/zsiec/framegraph/propmap"
)

type gainData struct {
	ai   node.AudioInfo
	gain []float64
	src  *node.Node
}

func gainGetFrame(n int, activation node.Activation, data interface{}, ctx *fctx.Context, api node.API, self *node.Node) (*frame.Frame, error) {
	d := data.(*gainData)
	if activation == node.ArInitial {
		api.RequestFrame(d.src, n, ctx)
		return nil, nil
	}
	if activation != node.ArAllFramesReady {
		return nil, nil
	}

	src, _ := ctx.Get(depKey(d.src, n))
	bps := d.ai.Format.BytesPerSample()
	isFloat := isFloatFormat(d.ai.Format)
	length := src.NumSamples()
	dst := frame.NewAudioFrame(d.ai.Format, d.ai.Channels, length, src.Props(), nil)

	numChannels := d.ai.Channels.NumChannels()
	for ch := 0; ch < numChannels; ch++ {
		gain := d.gain[0]
		if len(d.gain) > 1 {
			gain = d.gain[ch]
		}
		srcBuf := src.ReadChannel(ch)
		dstBuf := dst.WriteChannel(ch)
		for i := 0; i < length; i++ {
			writeSample(dstBuf, i, bps, isFloat, readSample(srcBuf, i, bps, isFloat)*gain)
		}
	}
	return dst, nil
}

func audioGainCreate(args *propmap.Map) *propmap.Map {
	out := propmap.New()
	numGainValues := args.NumElements("gain")
	gains := make([]float64, 0, numGainValues)
	for i := 0; i < numGainValues; i++ {
		v, code := args.Float("gain", i)
		if code != propmap.ErrNone {
			out.SetError("AudioGain: invalid gain value")
			return out
		}
		gains = append(gains, v)
	}
	if len(gains) == 0 {
		gains = []float64{1}
	}

	src, err := audioNode(args, "clip", 0)
	if err != nil {
		out.SetError("AudioGain: " + err.Error())
		return out
	}
	ai := src.AudioInfo()

	if len(gains) != 1 && len(gains) != ai.Channels.NumChannels() {
		out.SetError("AudioGain: must provide one gain value per channel or a single value used for all channels")
		return out
	}

	d := &gainData{ai: ai, gain: gains, src: src}
	outNode := node.NewAudioNode(node.Spec{
		Name:     "AudioGain",
		Mode:     node.FmParallel,
		GetFrame: gainGetFrame,
		Data:     d,
		Inputs:   []*node.Node{src},
	}, 0, ai)
	out.SetAudioNode("clip", node.AudioNodeRef{Node: outNode}, propmap.Replace)
	return out
}
