package avi

// This file builds the fixed-size header chunks documented in the AVI2
// spec: the main header, one stream header/format pair per stream, and
// the OpenDML extended header. Sizes are constants because every field
// is either fixed-width or (for the super-index) sized once the
// segment count is known.

func writeMainHeader(w *binWriter, p *plan) {
	off := w.chunk(fccAVIH)
	usecPerFrame := uint32(0)
	if p.vfmt.FPSNum > 0 {
		usecPerFrame = uint32(1000000 * uint64(p.vfmt.FPSDen) / uint64(p.vfmt.FPSNum))
	}
	w.u32(usecPerFrame)
	w.u32(0) // dwMaxBytesPerSec, unknown ahead of encoding
	w.u32(0) // dwPaddingGranularity
	flags := uint32(aviHasIndex | aviIsInterleaved)
	if p.hasAudio {
		flags |= aviMustUseIndex
	}
	w.u32(flags)
	w.u32(uint32(p.frameCount)) // dwTotalFrames
	w.u32(uint32(p.firstAudFramePack))
	numStreams := uint32(1)
	if p.hasAudio {
		numStreams = 2
	}
	w.u32(numStreams)
	w.u32(uint32(p.frameVidSize)) // dwSuggestedBufferSize
	w.u32(uint32(p.vfmt.Width))
	w.u32(uint32(p.vfmt.Height))
	w.zero(16) // reserved
	w.closeChunk(off)
}

func writeVideoStreamHeader(w *binWriter, p *plan) {
	off := w.chunk(fccSTRH)
	w.raw([]byte(fccVIDS))
	w.raw([]byte(p.vfmt.FourCC))
	w.u32(0) // dwFlags
	w.u16(0) // wPriority
	w.u16(0) // wLanguage
	w.u32(0) // dwInitialFrames
	w.u32(p.vfmt.FPSDen) // dwScale
	w.u32(p.vfmt.FPSNum) // dwRate
	w.u32(0)             // dwStart
	w.u32(uint32(p.frameCount))
	w.u32(uint32(p.frameVidSize)) // dwSuggestedBufferSize
	w.i32(-1)                     // dwQuality, unspecified
	w.u32(0)                      // dwSampleSize, 0 for video
	w.i16(0)                      // rcFrame
	w.i16(0)
	w.i16(int16(p.vfmt.Width))
	w.i16(int16(p.vfmt.Height))
	w.closeChunk(off)
}

func writeVideoFormatChunk(w *binWriter, p *plan) {
	off := w.chunk(fccSTRF)
	w.u32(40) // biSize
	w.i32(int32(p.vfmt.Width))
	w.i32(int32(p.vfmt.Height))
	w.u16(1) // biPlanes
	w.u16(uint16(p.vfmt.BitsPerPixel))
	w.raw([]byte(p.vfmt.FourCC)) // biCompression
	w.u32(uint32(p.frameVidSize))
	w.i32(0) // biXPelsPerMeter
	w.i32(0)
	w.u32(0) // biClrUsed
	w.u32(0)
	w.closeChunk(off)
}

func writeAudioStreamHeader(w *binWriter, p *plan) {
	off := w.chunk(fccSTRH)
	w.raw([]byte(fccAUDS))
	w.u32(0) // fccHandler, PCM has none
	w.u32(0) // dwFlags
	w.u16(0)
	w.u16(0)
	w.u32(uint32(p.firstAudFramePack)) // dwInitialFrames
	w.u32(uint32(p.afmt.blockAlign()))
	w.u32(uint32(p.afmt.blockAlign() * p.afmt.SampleRate))
	w.u32(0) // dwStart
	w.u32(uint32(p.totalSamples))
	w.u32(uint32(p.maxAudBytesPerFrame))
	w.i32(-1)
	w.u32(uint32(p.afmt.blockAlign())) // dwSampleSize
	w.i16(0)
	w.i16(0)
	w.i16(0)
	w.i16(0)
	w.closeChunk(off)
}

// waveFormatSubTypePCM and waveFormatSubTypeIEEEFloat are the
// KSDATAFORMAT_SUBTYPE GUIDs WAVEFORMATEXTENSIBLE.SubFormat carries,
// laid out as Data1(u32 LE) Data2(u16 LE) Data3(u16 LE) Data4(8 raw
// bytes) per the standard Windows GUID wire format.
var (
	waveFormatSubTypePCM = [16]byte{
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00,
		0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71,
	}
	waveFormatSubTypeIEEEFloat = [16]byte{
		0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00,
		0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71,
	}
)

// writeAudioFormatChunk emits a WAVEFORMATEXTENSIBLE strf chunk:
// the fixed WAVEFORMATEX prefix (wFormatTag fixed at WAVE_FORMAT_EXTENSIBLE,
// cbSize 22) followed by the extension (valid bits, channel mask, and
// the PCM/IEEE-float sub-format GUID).
func writeAudioFormatChunk(w *binWriter, p *plan) {
	off := w.chunk(fccSTRF)
	w.u16(0xFFFE) // WAVE_FORMAT_EXTENSIBLE
	w.u16(uint16(p.afmt.Channels))
	w.u32(uint32(p.afmt.SampleRate))
	w.u32(uint32(p.afmt.blockAlign() * p.afmt.SampleRate))
	w.u16(uint16(p.afmt.blockAlign()))
	w.u16(uint16(p.afmt.BitsPerSample))
	w.u16(22) // cbSize: bytes of extension data that follow

	w.u16(uint16(p.afmt.BitsPerSample)) // wValidBitsPerSample
	w.u32(p.afmt.ChannelMask)
	subFormat := waveFormatSubTypePCM
	if p.afmt.Float {
		subFormat = waveFormatSubTypeIEEEFloat
	}
	w.raw(subFormat[:])
	w.closeChunk(off)
}

func writeExtendedHeader(w *binWriter, p *plan) {
	off := w.chunk(fccLIST)
	w.raw([]byte(fccODML))
	dmlhOff := w.chunk(fccDMLH)
	w.u32(uint32(p.frameCount)) // dwGrandFrames
	w.zero(244)
	w.closeChunk(dmlhOff)
	w.closeChunk(off)
}
