package filters

import (
	"github.com/zsiec/framegraph/fctx"
	"github.com/zsiec/framegraph/frame"
	"github.com/zsiec/framegraph/node"
	"github.com/zsiec/framegraph/propmap"
)

type assumeRateData struct {
	src *node.Node
}

func assumeRateGetFrame(n int, activation node.Activation, data interface{}, ctx *fctx.Context, api node.API, self *node.Node) (*frame.Frame, error) {
	d := data.(*assumeRateData)
	if activation == node.ArInitial {
		api.RequestFrame(d.src, n, ctx)
		return nil, nil
	}
	if activation != node.ArAllFramesReady {
		return nil, nil
	}
	f, _ := ctx.Get(depKey(d.src, n))
	return f.Retain(), nil
}

func assumeSampleRateCreate(args *propmap.Map) *propmap.Map {
	out := propmap.New()
	src, err := audioNode(args, "clip", 0)
	if err != nil {
		out.SetError("AssumeSampleRate: " + err.Error())
		return out
	}
	ai := src.AudioInfo()

	rate, hasRate := optInt(args, "samplerate", 0)
	srcRef, code := args.AudioNode("src", 0)
	hasSrc := code == propmap.ErrNone

	if (hasRate && hasSrc) || (!hasRate && !hasSrc) {
		out.SetError("AssumeSampleRate: need to specify source clip or samplerate")
		return out
	}
	if hasSrc {
		srcNode, ok := srcRef.(node.AudioNodeRef)
		if !ok {
			out.SetError("AssumeSampleRate: unrecognized src reference")
			return out
		}
		rate = int64(srcNode.AudioInfo().SampleRate)
	}
	if rate < 1 {
		out.SetError("AssumeSampleRate: invalid samplerate specified")
		return out
	}

	ai.SampleRate = int(rate)
	d := &assumeRateData{src: src}
	outNode := node.NewAudioNode(node.Spec{
		Name:     "AssumeSampleRate",
		Mode:     node.FmParallel,
		GetFrame: assumeRateGetFrame,
		Data:     d,
		Inputs:   []*node.Node{src},
	}, node.FlagNoCache, ai)
	out.SetAudioNode("clip", node.AudioNodeRef{Node: outNode}, propmap.Replace)
	return out
}
