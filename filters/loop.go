package filters

import (
	"math"

	"github.com/zsiec/framegraph/fctx"
	"github.com/zsiec/framegraph/frame"
	"github.com/zsiec/framegraph/node"
	"github.com/zsiec/framegraph/propmap"
)

type loopData struct {
	ai         node.AudioInfo
	src        *node.Node
	srcSamples int64
	srcFrames  int
}

func loopSegments(srcSamples int64, srcFrames int, ai node.AudioInfo, n int) []segment {
	reqStart := (int64(n) * node.AudioFrameSamples) % srcSamples
	reqStartFrame := int(reqStart / node.AudioFrameSamples)
	reqFrame := reqStartFrame
	skip := reqStart % node.AudioFrameSamples
	remaining := min64(node.AudioFrameSamples, ai.NumSamples-int64(n)*node.AudioFrameSamples)

	var segs []segment
	for {
		take := min64(node.AudioFrameSamples-skip, srcSamples-reqStart)
		segs = append(segs, segment{frame: reqFrame, skip: skip, take: take})
		skip = 0
		remaining -= take
		reqStart += take
		reqFrame++
		if reqFrame > srcFrames-1 {
			reqFrame = 0
			reqStart = 0
		}
		if remaining <= 0 {
			break
		}
	}
	return segs
}

func loopGetFrame(n int, activation node.Activation, data interface{}, ctx *fctx.Context, api node.API, self *node.Node) (*frame.Frame, error) {
	d := data.(*loopData)
	segs := loopSegments(d.srcSamples, d.srcFrames, d.ai, n)

	if activation == node.ArInitial {
		requested := make(map[int]bool, len(segs))
		for _, s := range segs {
			if !requested[s.frame] {
				requested[s.frame] = true
				api.RequestFrame(d.src, s.frame, ctx)
			}
		}
		return nil, nil
	}
	if activation != node.ArAllFramesReady {
		return nil, nil
	}

	bps := d.ai.Format.BytesPerSample()
	numChannels := d.ai.Channels.NumChannels()
	dstLength := min64(node.AudioFrameSamples, d.ai.NumSamples-int64(n)*node.AudioFrameSamples)
	var dst *frame.Frame
	var dstOffset int64
	remaining := dstLength

	for _, s := range segs {
		src, _ := ctx.Get(depKey(d.src, s.frame))
		copied := min64(s.take, remaining)
		if dst == nil {
			dst = frame.NewAudioFrame(d.ai.Format, d.ai.Channels, int(dstLength), src.Props(), nil)
		}
		for ch := 0; ch < numChannels; ch++ {
			srcBytes := src.ReadChannel(ch)
			copy(dst.WriteChannel(ch)[dstOffset:dstOffset+copied*int64(bps)], srcBytes[s.skip*int64(bps):s.skip*int64(bps)+copied*int64(bps)])
		}
		dstOffset += copied * int64(bps)
		remaining -= copied
	}
	return dst, nil
}

func audioLoopCreate(args *propmap.Map) *propmap.Map {
	out := propmap.New()
	times, _ := optInt(args, "times", 1)
	if times < 1 {
		out.SetError("AudioLoop: times must be at least 1")
		return out
	}

	src, err := audioNode(args, "clip", 0)
	if err != nil {
		out.SetError("AudioLoop: " + err.Error())
		return out
	}
	ai := src.AudioInfo()
	srcSamples := ai.NumSamples
	srcFrames := int(ai.NumFrames())

	if times == 1 {
		out.SetAudioNode("clip", node.AudioNodeRef{Node: src}, propmap.Replace)
		return out
	}

	if srcSamples > (math.MaxInt32*int64(node.AudioFrameSamples))/times {
		out.SetError("AudioLoop: resulting clip is too long")
		return out
	}
	ai.NumSamples = srcSamples * times

	d := &loopData{ai: ai, src: src, srcSamples: srcSamples, srcFrames: srcFrames}
	outNode := node.NewAudioNode(node.Spec{
		Name:     "AudioLoop",
		Mode:     node.FmParallel,
		GetFrame: loopGetFrame,
		Data:     d,
		Inputs:   []*node.Node{src},
	}, 0, ai)
	out.SetAudioNode("clip", node.AudioNodeRef{Node: outNode}, propmap.Replace)
	return out
}
