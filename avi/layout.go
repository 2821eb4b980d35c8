package avi

import "fmt"

// Options mirrors the AVFS_AVI_* script switches the original AVI
// writer read out of its host's variable bag. Since script-language
// bindings are out of scope, the host sets these directly.
type Options struct {
	// VidFcc overrides the video FourCC/compression tag (e.g. "DIB "
	// for uncompressed RGB). Empty keeps the format-derived default.
	VidFcc string
	// NoInterleave disables the half-second audio preload packed into
	// the first video frame's chunk, and instead just interleaves one
	// audio chunk per video frame from the start.
	NoInterleave bool
	// SmallSegments caps each RIFF segment at the writer's conservative
	// ~1GiB bound (avi2MaxSegSize) instead of the ~4GiB bound used by
	// default (avi2Max4GbSegSize), mirroring the AVFS_AVI_SmallSegments
	// script switch some players need.
	SmallSegments bool

	// maxSegSizeOverride replaces the resolved segment-size ceiling
	// when non-zero. Unexported: it exists so package tests can force
	// multi-segment layout without generating gigabytes of fixture
	// data; hosts never set it.
	maxSegSizeOverride int64
}

// VideoFormat describes the muxed video stream. BitsPerPixel and
// FrameSize together determine strf's BITMAPINFOHEADER fields.
type VideoFormat struct {
	FourCC       string // 4-byte compression tag, e.g. "DIB ", "H264"
	Width        int
	Height       int
	BitsPerPixel int
	FPSNum       uint32
	FPSDen       uint32
	FrameSize    int // encoded bytes per frame; 0 selects Width*Height*BitsPerPixel/8
}

// AudioFormat describes the muxed PCM audio stream, written as a
// WAVEFORMATEXTENSIBLE strf chunk. ChannelMask is the WAVEFORMATEXTENSIBLE
// dwChannelMask (SPEAKER_* bit positions, matching frame.ChannelLayout's
// bit ordering); zero is legal and just means "unspecified".
type AudioFormat struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
	Float         bool
	ChannelMask   uint32
}

func (a AudioFormat) bytesPerSample() int { return (a.BitsPerSample + 7) / 8 }
func (a AudioFormat) blockAlign() int     { return a.bytesPerSample() * a.Channels }

// Source supplies the muxer with frame and sample data on demand. The
// muxer never buffers the whole stream: ReadMedia calls back into
// Source only for the byte range it actually needs to satisfy.
type Source interface {
	// VideoFrameCount is the total number of video frames.
	VideoFrameCount() int
	// ReadVideoFrame copies frame i's encoded bytes into dst, which is
	// sized to exactly the frame's byte length, and returns the number
	// of bytes written.
	ReadVideoFrame(i int, dst []byte) (int, error)

	// AudioSampleCount is the total number of interleaved audio
	// samples across the whole stream.
	AudioSampleCount() int64
	// ReadAudioSamples copies count samples starting at start into dst,
	// which is sized to count*blockAlign bytes, returning bytes written.
	ReadAudioSamples(start, count int64, dst []byte) (int, error)
}

const (
	// avi2MaxSegSize is the per-segment ceiling used when
	// Options.SmallSegments is set (avfsAvi2MaxDataLstSize in the
	// original writer).
	avi2MaxSegSize = 0x3FFFFFFE
	// avi2Max4GbSegSize is the default per-segment ceiling
	// (avfsAvi2Max4GbDataLstSize in the original writer).
	avi2Max4GbSegSize = 0xFFFFFFFE

	indxPrePad  = 0x20000
	indxPostPad = 0x20000
)

// plan is the fully resolved per-file layout: how many segments, how
// many frames each one carries, and every chunk's byte offset. Built
// once by newPlan and never mutated afterward.
type plan struct {
	vfmt VideoFormat
	afmt AudioFormat
	src  Source
	opts Options

	frameVidFcc   string
	frameVidSize  int
	frameVidAlign int

	hasAudio             bool
	firstAudFramePack    int64 // extra frames' worth of audio packed into the first video frame's audio chunk
	totalSamples         int64
	frameCount           int // = video frame count; audio is packed 1:1 with video chunks
	maxAudBytesPerFrame  int
	segs                 []segment
	fileSize             int64
}

// segment is one RIFF segment's resolved layout.
type segment struct {
	index      int
	startFrame int
	frameCount int
	fileOffset int64 // offset of this segment's RIFF header in the file

	header    []byte // segment 0: hdrl+movi list header; segN: RIFF/AVIX + LIST/movi header
	headerLen int64

	frameOffsets []int64 // offset of each frame-pair's audio+video chunk from the start of this segment's frame data (just past headerLen)
	frameSizes   []int   // total bytes (aud chunk + vid chunk, each with tag+padding) per frame

	trailer []byte // this segment's ix00+ix01 (+idx1 for segment 0) index bytes
	segSize int64
}

func newPlan(vfmt VideoFormat, afmt AudioFormat, src Source, opts Options) (*plan, error) {
	if src.VideoFrameCount() <= 0 {
		return nil, fmt.Errorf("avi: at least one video frame is required")
	}
	p := &plan{vfmt: vfmt, afmt: afmt, src: src, opts: opts}

	p.frameVidFcc = fccVidCompressed
	fcc := vfmt.FourCC
	if opts.VidFcc != "" {
		fcc = opts.VidFcc
	}
	if fcc == "DIB " {
		p.frameVidFcc = fccVidUncompressed
	}
	p.vfmt.FourCC = fcc

	p.frameVidSize = vfmt.FrameSize
	if p.frameVidSize == 0 {
		p.frameVidSize = vfmt.Width * vfmt.Height * vfmt.BitsPerPixel / 8
	}
	p.frameVidAlign = riffAlign(p.frameVidSize) - p.frameVidSize

	p.totalSamples = src.AudioSampleCount()
	p.hasAudio = p.totalSamples > 0 && afmt.Channels > 0

	p.frameCount = src.VideoFrameCount()

	if p.hasAudio {
		samplesPerFrame := float64(p.totalSamples) / float64(p.frameCount)
		p.maxAudBytesPerFrame = riffAlign(int(samplesPerFrame+1) * afmt.blockAlign())
		if !opts.NoInterleave && vfmt.FPSDen > 0 {
			p.firstAudFramePack = int64((float64(vfmt.FPSNum)/float64(vfmt.FPSDen))/2.0 + 0.999999)
		}
	}

	if err := p.layoutSegments(); err != nil {
		return nil, err
	}
	return p, nil
}

// frameSampleRange returns the [start,end) sample range packed into
// frame i's audio chunk, folding the first-frame preload in.
func (p *plan) frameSampleRange(i int) (start, end int64) {
	if !p.hasAudio {
		return 0, 0
	}
	samplesPerFrame := float64(p.totalSamples) / float64(p.frameCount)
	// firstAudFramePack is a frame count; convert it to the equivalent
	// sample count before folding it into a sample offset.
	preload := int64(float64(p.firstAudFramePack) * samplesPerFrame)
	base := func(frame int) int64 {
		s := int64(float64(frame) * samplesPerFrame)
		if s > p.totalSamples {
			s = p.totalSamples
		}
		return s
	}
	end = base(i+1) + preload
	start = base(i)
	if i > 0 {
		start += preload
	}
	if end > p.totalSamples {
		end = p.totalSamples
	}
	if start > end {
		start = end
	}
	return start, end
}

func (p *plan) maxSegFrames() int {
	maxSize := int64(avi2Max4GbSegSize)
	if p.opts.SmallSegments {
		maxSize = avi2MaxSegSize
	}
	if p.opts.maxSegSizeOverride > 0 {
		maxSize = p.opts.maxSegSizeOverride
	}
	perFrame := int64(8 /*aud tag+size*/ + p.maxAudBytesPerFrame + 8 /*vid tag+size*/ + p.frameVidSize + p.frameVidAlign + 2*8 /*ix00+ix01 entries*/ + 16 /*idx1 entry*/)
	if perFrame <= 0 {
		perFrame = 1
	}
	budget := maxSize - indxPrePad - indxPostPad - 4096 /* header reserve */
	if budget <= 0 {
		return 1
	}
	n := int(budget / perFrame)
	if n < 1 {
		n = 1
	}
	return n
}
