package avi

import (
	"fmt"
)

// Muxer produces a complete AVI v2 file byte-for-byte on demand: the
// whole layout (segment boundaries, chunk offsets, index contents) is
// resolved once at construction, and ReadMedia serves any byte range
// of the virtual file, fetching at most one chunk's payload from the
// Source at a time.
type Muxer struct {
	p        *plan
	fileSize int64
}

// New resolves a complete AVI2 layout for src under vfmt/afmt and opts.
func New(vfmt VideoFormat, afmt AudioFormat, src Source, opts Options) (*Muxer, error) {
	p, err := newPlan(vfmt, afmt, src, opts)
	if err != nil {
		return nil, err
	}
	return &Muxer{p: p, fileSize: p.fileSize}, nil
}

// Size returns the total byte length of the muxed file.
func (m *Muxer) Size() int64 { return m.fileSize }

func (p *plan) frameChunkSizes(i int) (audSize, vidSize int) {
	if p.hasAudio {
		start, end := p.frameSampleRange(i)
		audSize = int(end-start) * p.afmt.blockAlign()
	}
	vidSize = p.frameVidSize
	return
}

func (p *plan) frameTotalSize(i int) int {
	aud, vid := p.frameChunkSizes(i)
	total := 0
	if p.hasAudio {
		total += 8 + riffAlign(aud)
	}
	total += 8 + riffAlign(vid)
	return total
}

// layoutSegments resolves every segment's header/data/trailer byte
// ranges and total file size. It runs in two passes: sizes first (so
// file offsets can be prefix-summed), then content (so super-index and
// std-index entries can be filled with real offsets).
func (p *plan) layoutSegments() error {
	maxFrames := p.maxSegFrames()
	var starts []int
	for s := 0; s < p.frameCount; s += maxFrames {
		starts = append(starts, s)
	}
	numSegments := len(starts)
	p.segs = make([]segment, numSegments)

	// Pass 1: build segment 0's header template (with placeholder
	// super-index entries) and the fixed segN header template, and
	// compute every segment's data/trailer size.
	seg0HW := newBinWriter(8192)
	riffSizeOff := seg0HW.chunk(fccRIFF)
	seg0HW.raw([]byte(fccAVI))
	hdrlSizeOff := seg0HW.chunk(fccLIST)
	seg0HW.raw([]byte(fccHDRL))
	writeMainHeader(seg0HW, p)

	vidStrlOff := seg0HW.chunk(fccLIST)
	seg0HW.raw([]byte(fccSTRL))
	writeVideoStreamHeader(seg0HW, p)
	writeVideoFormatChunk(seg0HW, p)
	vidEntriesOff := writeSuperIndex(seg0HW, p.frameVidFcc, numSegments)
	seg0HW.closeChunk(vidStrlOff)

	var audEntriesOff int
	if p.hasAudio {
		audStrlOff := seg0HW.chunk(fccLIST)
		seg0HW.raw([]byte(fccSTRL))
		writeAudioStreamHeader(seg0HW, p)
		writeAudioFormatChunk(seg0HW, p)
		audEntriesOff = writeSuperIndex(seg0HW, fccAud, numSegments)
		seg0HW.closeChunk(audStrlOff)
	}

	writeExtendedHeader(seg0HW, p)

	junkOff := seg0HW.chunk(fccJUNK)
	seg0HW.zero(indxPrePad)
	seg0HW.closeChunk(junkOff)
	seg0HW.closeChunk(hdrlSizeOff)

	moviSizeOff0 := seg0HW.chunk(fccLIST)
	seg0HW.raw([]byte(fccMOVI))
	seg0HeaderLen := seg0HW.len()

	segNHeaderLen := func() int {
		w := newBinWriter(32)
		w.chunk(fccRIFF)
		w.raw([]byte(fccAVIX))
		w.chunk(fccLIST)
		w.raw([]byte(fccMOVI))
		return w.len()
	}()

	fileOffset := int64(0)
	for si, start := range starts {
		n := maxFrames
		if start+n > p.frameCount {
			n = p.frameCount - start
		}
		headerLen := segNHeaderLen
		if si == 0 {
			headerLen = seg0HeaderLen
		}

		frameOffsets := make([]int64, n)
		frameSizes := make([]int, n)
		rel := int64(0)
		for i := 0; i < n; i++ {
			frameOffsets[i] = rel
			sz := p.frameTotalSize(start + i)
			frameSizes[i] = sz
			rel += int64(sz)
		}
		dataLen := rel

		vidTrailerLen := len(buildStdIndex(fccIX00, p.frameVidFcc, 0, make([][2]uint32, n)))
		audTrailerLen := 0
		if p.hasAudio {
			audTrailerLen = len(buildStdIndex(fccIX01, fccAud, 0, make([][2]uint32, n)))
		}
		oldIndexLen := 0
		if si == 0 {
			rows := n
			if p.hasAudio {
				rows *= 2
			}
			placeholder := make([]oldIndexRow, rows)
			for i := range placeholder {
				placeholder[i].chunkID = p.frameVidFcc
			}
			oldIndexLen = len(buildOldIndex(placeholder))
		}
		trailerLen := int64(vidTrailerLen + audTrailerLen + oldIndexLen)
		segSize := int64(headerLen) + dataLen + trailerLen

		p.segs[si] = segment{
			index:        si,
			startFrame:   start,
			frameCount:   n,
			fileOffset:   fileOffset,
			headerLen:    int64(headerLen),
			frameOffsets: frameOffsets,
			frameSizes:   frameSizes,
			segSize:      segSize,
		}
		fileOffset += segSize
	}
	p.fileSize = fileOffset

	// Pass 2: patch super-index entries and RIFF/LIST size fields with
	// real values, then build each segment's own std/old index content.
	for si := range p.segs {
		s := &p.segs[si]
		duration := uint32(s.frameCount)
		vidIxOffset := s.fileOffset + s.headerLen + int64(sumFrameSizes(s.frameSizes))
		vidIxSize := len(buildStdIndex(fccIX00, p.frameVidFcc, 0, make([][2]uint32, s.frameCount)))
		patchSuperIndexEntry(seg0HW.buf, vidEntriesOff, si, uint64(vidIxOffset), uint32(vidIxSize), duration)
		if p.hasAudio {
			audIxOffset := vidIxOffset + int64(vidIxSize)
			audIxSize := len(buildStdIndex(fccIX01, fccAud, 0, make([][2]uint32, s.frameCount)))
			patchSuperIndexEntry(seg0HW.buf, audEntriesOff, si, uint64(audIxOffset), uint32(audIxSize), duration)
		}
	}

	seg0HW.patchU32(riffSizeOff, uint32(p.segs[0].segSize-8)) // RIFF size excludes only the 'RIFF' fourcc+size fields themselves, includes the form type
	seg0HW.patchU32(moviSizeOff0, uint32(uint64(p.segs[0].segSize)-uint64(seg0HeaderLen)+4))

	p.segs[0].header = append([]byte(nil), seg0HW.buf...)

	for si := 1; si < len(p.segs); si++ {
		s := &p.segs[si]
		w := newBinWriter(32)
		riffOff := w.chunk(fccRIFF)
		w.raw([]byte(fccAVIX))
		moviOff := w.chunk(fccLIST)
		w.raw([]byte(fccMOVI))
		w.patchU32(riffOff, uint32(s.segSize-8))
		w.patchU32(moviOff, uint32(uint64(s.segSize)-uint64(s.headerLen)+4))
		s.header = w.bytes()
	}

	// Build each segment's trailing index chunks now that offsets are final.
	for si := range p.segs {
		s := &p.segs[si]
		dataStart := s.fileOffset + s.headerLen
		vidEntries := make([][2]uint32, 0, s.frameCount)
		audEntries := make([][2]uint32, 0, s.frameCount)
		var oldRows []oldIndexRow
		off := s.frameOffsets
		for i := 0; i < s.frameCount; i++ {
			chunkOff := dataStart + off[i]
			cursor := chunkOff
			if p.hasAudio {
				aud, _ := p.frameChunkSizes(s.startFrame + i)
				audEntries = append(audEntries, [2]uint32{uint32(cursor - dataStart), uint32(aud)})
				if si == 0 {
					oldRows = append(oldRows, oldIndexRow{chunkID: fccAud, flags: aviifKeyframe, offset: uint32(cursor - dataStart), size: uint32(aud)})
				}
				cursor += int64(8 + riffAlign(aud))
			}
			_, vid := p.frameChunkSizes(s.startFrame + i)
			vidEntries = append(vidEntries, [2]uint32{uint32(cursor - dataStart), uint32(vid)})
			if si == 0 {
				oldRows = append(oldRows, oldIndexRow{chunkID: p.frameVidFcc, flags: aviifKeyframe, offset: uint32(cursor - dataStart), size: uint32(vid)})
			}
		}
		vidIx := buildStdIndex(fccIX00, p.frameVidFcc, uint64(dataStart), vidEntries)
		trailer := append([]byte(nil), vidIx...)
		if p.hasAudio {
			audIx := buildStdIndex(fccIX01, fccAud, uint64(dataStart), audEntries)
			trailer = append(trailer, audIx...)
		}
		if si == 0 {
			trailer = append(trailer, buildOldIndex(oldRows)...)
		}
		s.trailer = trailer
	}

	return nil
}

func sumFrameSizes(sizes []int) int {
	total := 0
	for _, s := range sizes {
		total += s
	}
	return total
}

// ReadMedia serves an arbitrary byte range of the virtual AVI file,
// resolving it against the precomputed segment layout and fetching
// frame payloads from Source only as needed.
func (m *Muxer) ReadMedia(offset int64, buf []byte) (int, error) {
	if offset < 0 || offset >= m.fileSize {
		return 0, nil
	}
	remaining := buf
	pos := offset
	total := 0
	for len(remaining) > 0 && pos < m.fileSize {
		n, err := m.readAt(pos, remaining)
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
		remaining = remaining[n:]
		pos += int64(n)
		total += n
	}
	return total, nil
}

func (m *Muxer) findSegment(offset int64) (*segment, int64) {
	for i := range m.p.segs {
		s := &m.p.segs[i]
		if offset >= s.fileOffset && offset < s.fileOffset+s.segSize {
			return s, offset - s.fileOffset
		}
	}
	return nil, 0
}

// readAt fills as much of dst as it can starting at absolute file
// offset off, returning how many bytes it wrote.
func (m *Muxer) readAt(off int64, dst []byte) (int, error) {
	s, rel := m.findSegment(off)
	if s == nil {
		return 0, fmt.Errorf("avi: offset %d out of range", off)
	}

	if rel < s.headerLen {
		return copyFrom(s.header, rel, dst), nil
	}
	rel -= s.headerLen

	dataLen := int64(sumFrameSizes(s.frameSizes))
	if rel < dataLen {
		return m.readFrameData(s, rel, dst)
	}
	rel -= dataLen

	return copyFrom(s.trailer, rel, dst), nil
}

func copyFrom(src []byte, at int64, dst []byte) int {
	if at >= int64(len(src)) {
		return 0
	}
	return copy(dst, src[at:])
}

// readFrameData resolves rel (an offset within the segment's data
// region) to a specific frame's audio or video sub-chunk and copies
// from a freshly fetched payload buffer.
func (m *Muxer) readFrameData(s *segment, rel int64, dst []byte) (int, error) {
	idx := 0
	for idx < len(s.frameOffsets)-1 && s.frameOffsets[idx+1] <= rel {
		idx++
	}
	frameRel := rel - s.frameOffsets[idx]
	frameNo := s.startFrame + idx

	p := m.p
	audSize, vidSize := p.frameChunkSizes(frameNo)

	if p.hasAudio {
		audTotal := int64(8 + riffAlign(audSize))
		if frameRel < audTotal {
			return m.readChunk(fccAud, audSize, frameRel, dst, func(payload []byte) error {
				start, end := p.frameSampleRange(frameNo)
				_, err := p.src.ReadAudioSamples(start, end-start, payload)
				return err
			})
		}
		frameRel -= audTotal
	}
	return m.readChunk(p.frameVidFcc, vidSize, frameRel, dst, func(payload []byte) error {
		_, err := p.src.ReadVideoFrame(frameNo, payload)
		return err
	})
}

// readChunk serves rel bytes into dst from a tag+size+payload(+pad)
// chunk of the given logical size, fetching the payload via fill only
// when rel actually falls inside the payload region.
func (m *Muxer) readChunk(tag string, size int, rel int64, dst []byte, fill func([]byte) error) (int, error) {
	hdr := newBinWriter(8)
	hdr.fourCC(tag)
	hdr.u32(uint32(size))
	hdrBytes := hdr.bytes()

	if rel < int64(len(hdrBytes)) {
		return copyFrom(hdrBytes, rel, dst), nil
	}
	rel -= int64(len(hdrBytes))

	if rel < int64(size) {
		payload := make([]byte, size)
		if err := fill(payload); err != nil {
			return 0, err
		}
		return copyFrom(payload, rel, dst), nil
	}
	rel -= int64(size)

	padLen := int64(riffAlign(size) - size)
	if rel < padLen {
		n := copy(dst, make([]byte, padLen-rel))
		return n, nil
	}
	return 0, nil
}
