package node

import "github.com/zsiec/framegraph/frame"

// AudioFrameSamples is the fixed number of samples carried by one audio
// Frame (VS_AUDIO_FRAME_SAMPLES in the source material).
const AudioFrameSamples = 3072

// VideoInfo describes a video output: pixel format, dimensions, frame
// rate, and total frame count.
type VideoInfo struct {
	Format    frame.VideoFormat
	Width     int
	Height    int
	FPSNum    int64
	FPSDen    int64
	NumFrames int
}

// AudioInfo describes an audio output: sample format, channel layout,
// sample rate, and total sample count. NumFrames derives from
// NumSamples via ceiling division by AudioFrameSamples.
type AudioInfo struct {
	Format     frame.AudioFormat
	Channels   frame.ChannelLayout
	SampleRate int
	NumSamples int64
}

// NumFrames returns the number of fixed-size audio Frames needed to
// cover NumSamples.
func (a AudioInfo) NumFrames() int64 {
	if a.NumSamples <= 0 {
		return 0
	}
	return (a.NumSamples + AudioFrameSamples - 1) / AudioFrameSamples
}
