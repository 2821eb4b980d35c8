package filters

import "github.com/zsiec/framegraph/plugin"

// NewPlugin builds the "std" namespace plugin exposing every built-in
// audio filter, ready to be registered on a Core with RegisterPlugin.
func NewPlugin() *plugin.Plugin {
	p := plugin.New("std", "Built-in audio filters")

	register := func(name, sig string, handler plugin.Handler) {
		if err := p.RegisterFunction(name, sig, handler); err != nil {
			panic(err)
		}
	}

	register("AudioTrim", "clip:anode;first:int:opt;last:int:opt;length:int:opt;", audioTrimCreate)
	register("AudioSplice", "clips:anode[];", audioSpliceCreate)
	register("AudioLoop", "clip:anode;times:int:opt;", audioLoopCreate)
	register("AudioReverse", "clip:anode;", audioReverseCreate)
	register("AudioGain", "clip:anode;gain:float[]:opt;", audioGainCreate)
	register("AudioMix", "clips:anode[];matrix:float[];channels_out:int[];", audioMixCreate)
	register("ShuffleChannels", "clip:anode[];channels_in:int[];channels_out:int[];", shuffleChannelsCreate)
	register("SplitChannels", "clip:anode;", splitChannelsCreate)
	register("AssumeSampleRate", "clip:anode;src:anode:opt;samplerate:int:opt;", assumeSampleRateCreate)
	register("BlankAudio", "channels:int:opt;bits:int:opt;isfloat:int:opt;samplerate:int:opt;length:int:opt;keep:int:opt;", blankAudioCreate)
	register("TestAudio", "channels:int:opt;bits:int:opt;isfloat:int:opt;samplerate:int:opt;length:int:opt;", testAudioCreate)

	return p
}
