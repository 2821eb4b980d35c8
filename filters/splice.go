package filters

import (
	"github.com/zsiec/framegraph/fctx"
	"github.com/zsiec/framegraph/frame"
	"github.com/zsiec/framegraph/node"
	"github.com/zsiec/framegraph/propmap"
)

type spliceData struct {
	ai         node.AudioInfo
	nodes      []*node.Node
	numSamples []int64
	cumSamples []int64
	numFrames  []int
}

// spliceSegments walks the do-while stitching logic that finds which
// (clip, source frame) pairs contribute samples to output frame n,
// mirroring the reference splice/loop index arithmetic.
func spliceSegments(nodes []*node.Node, numSamples, cumSamples []int64, numFrames []int, sampleStart, remaining int64) []segment {
	for i := 0; i < len(cumSamples); i++ {
		if cumSamples[i] <= sampleStart {
			continue
		}
		var prevCum int64
		if i > 0 {
			prevCum = cumSamples[i-1]
		}
		currentStart := sampleStart - prevCum
		skip := currentStart % node.AudioFrameSamples
		reqFrame := int(currentStart / node.AudioFrameSamples)
		clip := i
		var segs []segment
		for {
			reqStart := int64(reqFrame) * node.AudioFrameSamples
			take := min64(node.AudioFrameSamples-skip, numSamples[clip]-reqStart)
			segs = append(segs, segment{clip: clip, frame: reqFrame, skip: skip, take: take})
			skip = 0
			remaining -= take
			reqFrame++
			if reqFrame > numFrames[clip]-1 {
				reqFrame = 0
				clip++
			}
			if remaining <= 0 {
				break
			}
		}
		return segs
	}
	return nil
}

func spliceGetFrame(n int, activation node.Activation, data interface{}, ctx *fctx.Context, api node.API, self *node.Node) (*frame.Frame, error) {
	d := data.(*spliceData)
	sampleStart := int64(n) * node.AudioFrameSamples
	remaining := min64(node.AudioFrameSamples, d.ai.NumSamples-sampleStart)
	segs := spliceSegments(d.nodes, d.numSamples, d.cumSamples, d.numFrames, sampleStart, remaining)

	if activation == node.ArInitial {
		for _, s := range segs {
			api.RequestFrame(d.nodes[s.clip], s.frame, ctx)
		}
		return nil, nil
	}
	if activation != node.ArAllFramesReady {
		return nil, nil
	}

	bps := d.ai.Format.BytesPerSample()
	numChannels := d.ai.Channels.NumChannels()
	var dst *frame.Frame
	var dstOffset int64
	remaining = min64(node.AudioFrameSamples, d.ai.NumSamples-sampleStart)

	for _, s := range segs {
		src, _ := ctx.Get(depKey(d.nodes[s.clip], s.frame))
		copied := min64(s.take, remaining)
		if dst == nil {
			dst = frame.NewAudioFrame(d.ai.Format, d.ai.Channels, int(remaining), src.Props(), nil)
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

func audioSpliceCreate(args *propmap.Map) *propmap.Map {
	out := propmap.New()
	numNodes := args.NumElements("clips")
	if numNodes <= 0 {
		out.SetError("AudioSplice: no clips specified")
		return out
	}

	nodes := make([]*node.Node, numNodes)
	for i := 0; i < numNodes; i++ {
		n, err := audioNode(args, "clips", i)
		if err != nil {
			out.SetError("AudioSplice: " + err.Error())
			return out
		}
		nodes[i] = n
	}

	if numNodes == 1 {
		out.SetAudioNode("clip", node.AudioNodeRef{Node: nodes[0]}, propmap.Replace)
		return out
	}

	ai := nodes[0].AudioInfo()
	for i := 1; i < numNodes; i++ {
		other := nodes[i].AudioInfo()
		if other.SampleRate != ai.SampleRate || other.Format != ai.Format {
			out.SetError("AudioSplice: format mismatch")
			return out
		}
	}

	numSamples := make([]int64, numNodes)
	cumSamples := make([]int64, numNodes)
	numFrames := make([]int, numNodes)
	var total int64
	for i, n := range nodes {
		ni := n.AudioInfo()
		numSamples[i] = ni.NumSamples
		numFrames[i] = int(ni.NumFrames())
		total += ni.NumSamples
		if i == 0 {
			cumSamples[i] = numSamples[i]
		} else {
			cumSamples[i] = cumSamples[i-1] + numSamples[i]
		}
	}
	ai.NumSamples = total

	d := &spliceData{ai: ai, nodes: nodes, numSamples: numSamples, cumSamples: cumSamples, numFrames: numFrames}
	outNode := node.NewAudioNode(node.Spec{
		Name:     "AudioSplice",
		Mode:     node.FmParallel,
		GetFrame: spliceGetFrame,
		Data:     d,
		Inputs:   nodes,
	}, node.FlagNoCache, ai)
	out.SetAudioNode("clip", node.AudioNodeRef{Node: outNode}, propmap.Replace)
	return out
}
