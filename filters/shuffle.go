package filters

import (
	"sort"

	"github.com/zsiec/framegraph/fctx"
	"github.com/zsiec/framegraph/frame"
	"github.com/zsiec/framegraph/node"
	"github.com/zsiec/framegraph/propmap"
)

type shuffleSource struct {
	node      *node.Node
	idx       int
	dstIdx    int
	numFrames int
}

type shuffleData struct {
	ai       node.AudioInfo
	sources  []shuffleSource
	reqNodes []*node.Node
}

func shuffleGetFrame(n int, activation node.Activation, data interface{}, ctx *fctx.Context, api node.API, self *node.Node) (*frame.Frame, error) {
	d := data.(*shuffleData)
	if activation == node.ArInitial {
		for _, rn := range d.reqNodes {
			api.RequestFrame(rn, n, ctx)
		}
		return nil, nil
	}
	if activation != node.ArAllFramesReady {
		return nil, nil
	}

	bps := d.ai.Format.BytesPerSample()
	dstLength := min64(d.ai.NumSamples-int64(n)*node.AudioFrameSamples, node.AudioFrameSamples)
	var dst *frame.Frame

	for idx, s := range d.sources {
		src, ok := ctx.Get(depKey(s.node, n))
		var srcLength int64
		if n < s.numFrames && ok {
			srcLength = int64(src.NumSamples())
		}
		copyLength := min64(dstLength, srcLength)
		zeroLength := dstLength - copyLength

		if dst == nil {
			var propSrc *frame.Frame
			if ok {
				propSrc = src
			}
			var props *propmap.Map
			if propSrc != nil {
				props = propSrc.Props()
			}
			dst = frame.NewAudioFrame(d.ai.Format, d.ai.Channels, int(dstLength), props, nil)
		}
		dstBuf := dst.WriteChannel(idx)
		if copyLength > 0 {
			copy(dstBuf[:copyLength*int64(bps)], src.ReadChannel(s.idx)[:copyLength*int64(bps)])
		}
		if zeroLength > 0 {
			for i := copyLength * int64(bps); i < dstLength*int64(bps); i++ {
				dstBuf[i] = 0
			}
		}
	}
	return dst, nil
}

func shuffleChannelsCreate(args *propmap.Map) *propmap.Map {
	out := propmap.New()
	numSrcNodes := args.NumElements("clip")
	numSrcChannels := args.NumElements("channels_in")
	numDstChannels := args.NumElements("channels_out")

	if numSrcChannels != numDstChannels {
		out.SetError("ShuffleChannels: must have the same number of input and output channels")
		return out
	}
	if numSrcNodes > numSrcChannels {
		out.SetError("ShuffleChannels: cannot have more input nodes than selected input channels")
		return out
	}

	var channelLayout uint64
	sources := make([]shuffleSource, numSrcChannels)
	for i := 0; i < numSrcChannels; i++ {
		ch, _ := args.Int("channels_in", i)
		dstCh, _ := args.Int("channels_out", i)
		channelLayout |= uint64(1) << uint(dstCh)
		clipIdx := i
		if clipIdx > numSrcNodes-1 {
			clipIdx = numSrcNodes - 1
		}
		n, err := audioNode(args, "clip", clipIdx)
		if err != nil {
			out.SetError("ShuffleChannels: " + err.Error())
			return out
		}
		sources[i] = shuffleSource{node: n, idx: int(ch), dstIdx: int(dstCh)}
	}

	sort.SliceStable(sources, func(i, j int) bool { return sources[i].dstIdx < sources[j].dstIdx })

	ai := sources[0].node.AudioInfo()
	for i := range sources {
		other := sources[i].node.AudioInfo()
		if other.SampleRate != ai.SampleRate || other.Format.BitsPerSample != ai.Format.BitsPerSample || other.Format.SampleType != ai.Format.SampleType {
			out.SetError("ShuffleChannels: all inputs must have the same samplerate, bits per sample and sample type")
			return out
		}
		if sources[i].idx < 0 {
			resolved := (-sources[i].idx) - 1
			if other.Channels.NumChannels() <= resolved {
				out.SetError("ShuffleChannels: specified channel is not present in input")
				return out
			}
			sources[i].idx = resolved
		} else {
			if sources[i].idx > 0 && other.Channels&(frame.ChannelLayout(1)<<uint(sources[i].idx)) == 0 {
				out.SetError("ShuffleChannels: specified channel is not present in input")
				return out
			}
			pos := 0
			for j := 0; j < sources[i].idx; j++ {
				if other.Channels&(frame.ChannelLayout(1)<<uint(j)) != 0 {
					pos++
				}
			}
			sources[i].idx = pos
		}
		sources[i].numFrames = int(other.NumFrames())
		ai.NumSamples = max64(ai.NumSamples, other.NumSamples)
	}

	ai.Channels = frame.ChannelLayout(channelLayout)
	if ai.Channels.NumChannels() != numDstChannels {
		out.SetError("ShuffleChannels: output channel specified twice")
		return out
	}

	seen := make(map[uint64]bool)
	var reqNodes []*node.Node
	for _, s := range sources {
		if !seen[s.node.ID()] {
			seen[s.node.ID()] = true
			reqNodes = append(reqNodes, s.node)
		}
	}

	d := &shuffleData{ai: ai, sources: sources, reqNodes: reqNodes}
	outNode := node.NewAudioNode(node.Spec{
		Name:     "ShuffleChannels",
		Mode:     node.FmParallel,
		GetFrame: shuffleGetFrame,
		Data:     d,
		Inputs:   reqNodes,
	}, 0, ai)
	out.SetAudioNode("clip", node.AudioNodeRef{Node: outNode}, propmap.Replace)
	return out
}
