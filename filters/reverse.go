package filters

import (
	"github.com/zsiec/framegraph/fctx"
	"github.com/zsiec/framegraph/frame"
	"github.com/zsiec/framegraph/node"
	"github.com/zsiec/framegraph/propmap"
)

type reverseData struct {
	ai  node.AudioInfo
	src *node.Node
}

func reverseGetFrame(n int, activation node.Activation, data interface{}, ctx *fctx.Context, api node.API, self *node.Node) (*frame.Frame, error) {
	d := data.(*reverseData)
	numFrames := int(d.ai.NumFrames())
	n1 := numFrames - 1 - n
	n2 := numFrames - 2 - n
	if n2 < 0 {
		n2 = 0
	}
	needsTwo := d.ai.NumSamples%node.AudioFrameSamples != 0

	if activation == node.ArInitial {
		api.RequestFrame(d.src, n1, ctx)
		if needsTwo {
			api.RequestFrame(d.src, n2, ctx)
		}
		return nil, nil
	}
	if activation != node.ArAllFramesReady {
		return nil, nil
	}

	bps := d.ai.Format.BytesPerSample()
	numChannels := d.ai.Channels.NumChannels()
	dstLength := min64(node.AudioFrameSamples, d.ai.NumSamples-int64(n)*node.AudioFrameSamples)

	src1, _ := ctx.Get(depKey(d.src, n1))
	l1 := int64(src1.NumSamples())
	s1offset := l1 - d.ai.NumSamples%node.AudioFrameSamples
	if s1offset == node.AudioFrameSamples {
		s1offset = 0
	}
	s1samples := l1 - s1offset

	dst := frame.NewAudioFrame(d.ai.Format, d.ai.Channels, int(dstLength), src1.Props(), nil)
	for ch := 0; ch < numChannels; ch++ {
		srcBuf := src1.ReadChannel(ch)
		dstBuf := dst.WriteChannel(ch)
		for i := int64(0); i < s1samples; i++ {
			srcIdx := l1 - i - 1 - s1offset
			copy(dstBuf[i*int64(bps):(i+1)*int64(bps)], srcBuf[srcIdx*int64(bps):(srcIdx+1)*int64(bps)])
		}
	}

	remaining := dstLength - s1samples
	if remaining > 0 {
		src2, _ := ctx.Get(depKey(d.src, n2))
		l2 := int64(src2.NumSamples())
		for ch := 0; ch < numChannels; ch++ {
			srcBuf := src2.ReadChannel(ch)
			dstBuf := dst.WriteChannel(ch)
			for i := int64(0); i < remaining; i++ {
				srcIdx := l2 - i - 1
				dstOff := (s1samples + i) * int64(bps)
				copy(dstBuf[dstOff:dstOff+int64(bps)], srcBuf[srcIdx*int64(bps):(srcIdx+1)*int64(bps)])
			}
		}
	}
	return dst, nil
}

func audioReverseCreate(args *propmap.Map) *propmap.Map {
	out := propmap.New()
	src, err := audioNode(args, "clip", 0)
	if err != nil {
		out.SetError("AudioReverse: " + err.Error())
		return out
	}
	ai := src.AudioInfo()
	d := &reverseData{ai: ai, src: src}
	outNode := node.NewAudioNode(node.Spec{
		Name:     "AudioReverse",
		Mode:     node.FmParallel,
		GetFrame: reverseGetFrame,
		Data:     d,
		Inputs:   []*node.Node{src},
	}, 0, ai)
	out.SetAudioNode("clip", node.AudioNodeRef{Node: outNode}, propmap.Replace)
	return out
}
