package filters

import (
	"github.com/zsiec/framegraph/fctx"
	"github.com/zsiec/framegraph/frame"
	"github.com/zsiec/framegraph/node"
	"github.com/zsiec/framegraph/propmap"
)

type trimData struct {
	ai    node.AudioInfo
	first int64
	src   *node.Node
}

func trimGetFrame(n int, activation node.Activation, data interface{}, ctx *fctx.Context, api node.API, self *node.Node) (*frame.Frame, error) {
	d := data.(*trimData)
	startSample := int64(n)*node.AudioFrameSamples + d.first
	startFrame := int(startSample / node.AudioFrameSamples)
	length := min64(d.ai.NumSamples-int64(n)*node.AudioFrameSamples, node.AudioFrameSamples)
	bps := d.ai.Format.BytesPerSample()
	numChannels := d.ai.Channels.NumChannels()

	if startSample%node.AudioFrameSamples == 0 && n != int(d.ai.NumFrames())-1 {
		if activation == node.ArInitial {
			api.RequestFrame(d.src, startFrame, ctx)
			return nil, nil
		}
		if activation != node.ArAllFramesReady {
			return nil, nil
		}
		src, _ := ctx.Get(depKey(d.src, startFrame))
		if int64(src.NumSamples()) == length {
			return src.Retain(), nil
		}
		dst := frame.NewAudioFrame(d.ai.Format, d.ai.Channels, int(length), src.Props(), nil)
		for ch := 0; ch < numChannels; ch++ {
			copy(dst.WriteChannel(ch), src.ReadChannel(ch)[:length*int64(bps)])
		}
		return dst, nil
	}

	numSrc1Samples := node.AudioFrameSamples - int(startSample%node.AudioFrameSamples)
	if activation == node.ArInitial {
		api.RequestFrame(d.src, startFrame, ctx)
		if int64(numSrc1Samples) < length {
			api.RequestFrame(d.src, startFrame+1, ctx)
		}
		return nil, nil
	}
	if activation != node.ArAllFramesReady {
		return nil, nil
	}

	src1, _ := ctx.Get(depKey(d.src, startFrame))
	dst := frame.NewAudioFrame(d.ai.Format, d.ai.Channels, int(length), src1.Props(), nil)
	offset := (node.AudioFrameSamples - numSrc1Samples) * bps
	for ch := 0; ch < numChannels; ch++ {
		copy(dst.WriteChannel(ch), src1.ReadChannel(ch)[offset:offset+numSrc1Samples*bps])
	}

	if length > int64(numSrc1Samples) {
		src2, _ := ctx.Get(depKey(d.src, startFrame+1))
		remaining := int(length) - numSrc1Samples
		for ch := 0; ch < numChannels; ch++ {
			copy(dst.WriteChannel(ch)[numSrc1Samples*bps:], src2.ReadChannel(ch)[:remaining*bps])
		}
	}
	return dst, nil
}

func audioTrimCreate(args *propmap.Map) *propmap.Map {
	out := propmap.New()

	first, hasFirst := optInt(args, "first", 0)
	last, hasLast := optInt(args, "last", 0)
	length, hasLength := optInt(args, "length", 0)

	if hasLast && hasLength {
		out.SetError("AudioTrim: both last sample and length specified")
		return out
	}
	if hasLast && last < first {
		out.SetError("AudioTrim: invalid last sample specified (last is less than first)")
		return out
	}
	if hasLength && length < 1 {
		out.SetError("AudioTrim: invalid length specified (less than 1)")
		return out
	}
	if first < 0 {
		out.SetError("AudioTrim: invalid first frame specified (less than 0)")
		return out
	}

	src, err := audioNode(args, "clip", 0)
	if err != nil {
		out.SetError("AudioTrim: " + err.Error())
		return out
	}
	ai := src.AudioInfo()

	if (hasLast && last >= ai.NumSamples) || (hasLength && first+length > ai.NumSamples) || ai.NumSamples <= first {
		out.SetError("AudioTrim: last sample beyond clip end")
		return out
	}

	var trimlen int64
	switch {
	case hasLast:
		trimlen = last - first + 1
	case hasLength:
		trimlen = length
	default:
		trimlen = ai.NumSamples - first
	}

	if (!hasFirst && !hasLast && !hasLength) || trimlen == ai.NumSamples {
		out.SetAudioNode("clip", node.AudioNodeRef{Node: src}, propmap.Replace)
		return out
	}

	ai.NumSamples = trimlen
	d := &trimData{ai: ai, first: first, src: src}
	outNode := node.NewAudioNode(node.Spec{
		Name:     "AudioTrim",
		Mode:     node.FmParallel,
		GetFrame: trimGetFrame,
		Data:     d,
		Inputs:   []*node.Node{src},
	}, node.FlagNoCache, ai)
	out.SetAudioNode("clip", node.AudioNodeRef{Node: outNode}, propmap.Replace)
	return out
}
