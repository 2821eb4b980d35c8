package filters

import (
	"github.com/zsiec/framegraph/fctx"
	"github.com/zsiec/framegraph/frame"
	"github.com/zsiec/framegraph/node"
	"github.com/zsiec/framegraph/propmap"
)

type splitData struct {
	src *node.Node
	ai  []node.AudioInfo
}

func splitGetFrame(n int, activation node.Activation, data interface{}, ctx *fctx.Context, api node.API, self *node.Node) (*frame.Frame, error) {
	d := data.(*splitData)
	if activation == node.ArInitial {
		api.RequestFrame(d.src, n, ctx)
		return nil, nil
	}
	if activation != node.ArAllFramesReady {
		return nil, nil
	}
	src, _ := ctx.Get(depKey(d.src, n))
	outIdx := self.Output()
	length := src.NumSamples()
	dst := frame.NewAudioFrame(d.ai[outIdx].Format, d.ai[outIdx].Channels, length, src.Props(), nil)
	copy(dst.WriteChannel(0), src.ReadChannel(outIdx))
	return dst, nil
}

func splitChannelsCreate(args *propmap.Map) *propmap.Map {
	out := propmap.New()
	src, err := audioNode(args, "clip", 0)
	if err != nil {
		out.SetError("SplitChannels: " + err.Error())
		return out
	}
	srcAI := src.AudioInfo()
	numChannels := srcAI.Channels.NumChannels()

	ais := make([]node.AudioInfo, numChannels)
	var idx uint
	for i := 0; i < numChannels; i++ {
		for srcAI.Channels&(frame.ChannelLayout(1)<<idx) == 0 {
			idx++
		}
		ais[i] = node.AudioInfo{
			Format:     srcAI.Format,
			Channels:   frame.ChannelLayout(1) << idx,
			SampleRate: srcAI.SampleRate,
			NumSamples: srcAI.NumSamples,
		}
		idx++
	}

	d := &splitData{src: src, ai: ais}
	spec := node.Spec{
		Name:     "SplitChannels",
		Mode:     node.FmParallel,
		GetFrame: splitGetFrame,
		Data:     d,
		Inputs:   []*node.Node{src},
	}
	first := node.NewAudioNode(spec, 0, ais[0])
	nodes := make([]node.AudioNodeRef, numChannels)
	nodes[0] = node.AudioNodeRef{Node: first}
	for i := 1; i < numChannels; i++ {
		nodes[i] = node.AudioNodeRef{Node: node.NewAudioOutput(first, i, 0, ais[i])}
	}
	for _, n := range nodes {
		out.SetAudioNode("clip", n, propmap.Append)
	}
	return out
}
