package filters

import (
	"github.com/zsiec/framegraph/fctx"
	"github.com/zsiec/framegraph/frame"
	"github.com/zsiec/framegraph/node"
	"github.com/zsiec/framegraph/propmap"
)

type mixSource struct {
	node    *node.Node
	idx     int
	weights []float64
}

type mixData struct {
	ai        node.AudioInfo
	sources   []mixSource
	outputIdx []int
	reqNodes  []*node.Node
}

func mixGetFrame(n int, activation node.Activation, data interface{}, ctx *fctx.Context, api node.API, self *node.Node) (*frame.Frame, error) {
	d := data.(*mixData)
	if activation == node.ArInitial {
		for _, rn := range d.reqNodes {
			api.RequestFrame(rn, n, ctx)
		}
		return nil, nil
	}
	if activation != node.ArAllFramesReady {
		return nil, nil
	}

	srcFrames := make([]*frame.Frame, len(d.sources))
	for i, s := range d.sources {
		srcFrames[i], _ = ctx.Get(depKey(s.node, n))
	}

	srcLength := srcFrames[0].NumSamples()
	bps := d.ai.Format.BytesPerSample()
	isFloat := isFloatFormat(d.ai.Format)
	dst := frame.NewAudioFrame(d.ai.Format, d.ai.Channels, srcLength, srcFrames[0].Props(), nil)

	numDst := d.ai.Channels.NumChannels()
	for i := 0; i < srcLength; i++ {
		for dstCh := 0; dstCh < numDst; dstCh++ {
			var acc float64
			for si, s := range d.sources {
				acc += readSample(srcFrames[si].ReadChannel(s.idx), i, bps, isFloat) * s.weights[dstCh]
			}
			writeSample(dst.WriteChannel(d.outputIdx[dstCh]), i, bps, isFloat, acc)
		}
	}
	return dst, nil
}

func audioMixCreate(args *propmap.Map) *propmap.Map {
	out := propmap.New()

	numSrcNodes := args.NumElements("clips")
	numMatrixWeights := args.NumElements("matrix")
	numDstChannels := args.NumElements("channels_out")
	if numSrcNodes <= 0 || numDstChannels <= 0 {
		out.SetError("AudioMix: clips and channels_out are required")
		return out
	}

	var channelLayout uint64
	dstChannels := make([]int, numDstChannels)
	for i := 0; i < numDstChannels; i++ {
		ch, code := args.Int("channels_out", i)
		if code != propmap.ErrNone {
			out.SetError("AudioMix: invalid channels_out value")
			return out
		}
		dstChannels[i] = int(ch)
		channelLayout |= uint64(1) << uint(ch)
	}
	outputIdx := make([]int, numDstChannels)
	for i, ch := range dstChannels {
		pos := 0
		for j := 0; j < ch; j++ {
			if channelLayout&(uint64(1)<<uint(j)) != 0 {
				pos++
			}
		}
		outputIdx[i] = pos
	}

	var sources []mixSource
	seen := make(map[uint64]*node.Node)
	var reqNodes []*node.Node
	for i := 0; i < numSrcNodes; i++ {
		n, err := audioNode(args, "clips", i)
		if err != nil {
			out.SetError("AudioMix: " + err.Error())
			return out
		}
		ai := n.AudioInfo()
		for j := 0; j < ai.Channels.NumChannels(); j++ {
			sources = append(sources, mixSource{node: n, idx: j})
		}
		if _, ok := seen[n.ID()]; !ok {
			seen[n.ID()] = n
			reqNodes = append(reqNodes, n)
		}
	}

	if numSrcNodes > len(sources) {
		out.SetError("AudioMix: cannot have more input nodes than selected input channels")
		return out
	}
	if numDstChannels*len(sources) != numMatrixWeights {
		out.SetError("AudioMix: the number of matrix weights must equal (input channels * output channels)")
		return out
	}

	ai := sources[0].node.AudioInfo()
	for i := range sources {
		other := sources[i].node.AudioInfo()
		if other.SampleRate != ai.SampleRate || other.Format.BitsPerSample != ai.Format.BitsPerSample || other.Format.SampleType != ai.Format.SampleType {
			out.SetError("AudioMix: all inputs must have the same length, samplerate, bits per sample and sample type")
			return out
		}
		ai.NumSamples = max64(ai.NumSamples, other.NumSamples)
		sources[i].weights = make([]float64, numDstChannels)
		for j := 0; j < numDstChannels; j++ {
			w, code := args.Float("matrix", j*len(sources)+i)
			if code != propmap.ErrNone {
				out.SetError("AudioMix: invalid matrix value")
				return out
			}
			sources[i].weights[j] = w
		}
	}

	ai.Channels = frame.ChannelLayout(channelLayout)
	if ai.Channels.NumChannels() != numDstChannels {
		out.SetError("AudioMix: output channel specified twice")
		return out
	}

	inputs := make([]*node.Node, 0, len(reqNodes))
	inputs = append(inputs, reqNodes...)

	d := &mixData{ai: ai, sources: sources, outputIdx: outputIdx, reqNodes: reqNodes}
	outNode := node.NewAudioNode(node.Spec{
		Name:     "AudioMix",
		Mode:     node.FmParallel,
		GetFrame: mixGetFrame,
		Data:     d,
		Inputs:   inputs,
	}, 0, ai)
	out.SetAudioNode("clip", node.AudioNodeRef{Node: outNode}, propmap.Replace)
	return out
}
