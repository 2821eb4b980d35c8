// Package avi implements an AVI v2 (OpenDML) container muxer: RIFF
// segment layout, header/index chunk construction, and a random-access
// ReadMedia that serves any byte range of the muxed file without
// materializing frame data up front.
//
// The AVI2 format is a sequence of RIFF segments appended end to end,
// each segment itself shaped like a standalone RIFF file (segment size
// capped just under 4GiB by default, or ~1GiB with SmallSegments). The
// first segment carries the full header list plus, per stream, a
// super-index that locates every segment's own index chunk; each
// segment ends with a small index chunk covering only that segment's
// own chunks.
package avi

import "encoding/binary"

// FourCC identifiers used throughout the container. Named the way the
// format's own ASCII tags read, not by numeric value.
const (
	fccRIFF = "RIFF"
	fccLIST = "LIST"
	fccJUNK = "JUNK"

	fccAVI  = "AVI " // RIFF form type, segment 0
	fccAVIX = "AVIX" // RIFF form type, segments 1..N

	fccHDRL = "hdrl"
	fccMOVI = "movi"
	fccSTRL = "strl"
	fccODML = "odml"

	fccAVIH = "avih"
	fccSTRH = "strh"
	fccSTRF = "strf"
	fccINDX = "indx"
	fccDMLH = "dmlh"
	fccIDX1 = "idx1"
	fccIX00 = "ix00"
	fccIX01 = "ix01"

	fccVIDS = "vids"
	fccAUDS = "auds"

	fccVidUncompressed = "00db"
	fccVidCompressed   = "00dc"
	fccAud             = "01wb"
)

const (
	aviHasIndex      = 0x00000010
	aviMustUseIndex  = 0x00000020
	aviIsInterleaved = 0x00000100

	aviifList     = 0x00000001
	aviifKeyframe = 0x00000010

	indexOfIndexes = 0x00
	indexOfChunks  = 0x01
	indexSubDflt   = 0x00
)

// riffAlign rounds a chunk payload size up to the next 16-bit boundary,
// the padding every RIFF chunk requires.
func riffAlign(size int) int {
	return (size + 1) &^ 1
}

// binWriter appends little-endian fields to a growing byte slice and
// supports back-patching a length field once the payload it covers is
// known, since RIFF chunk sizes are written before their content.
type binWriter struct {
	buf []byte
}

func newBinWriter(capHint int) *binWriter {
	return &binWriter{buf: make([]byte, 0, capHint)}
}

func (w *binWriter) len() int { return len(w.buf) }

func (w *binWriter) bytes() []byte { return w.buf }

func (w *binWriter) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *binWriter) i16(v int16) { w.u16(uint16(v)) }

func (w *binWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *binWriter) i32(v int32) { w.u32(uint32(v)) }

func (w *binWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *binWriter) fourCC(tag string) {
	if len(tag) != 4 {
		panic("avi: fourcc must be exactly 4 bytes: " + tag)
	}
	w.buf = append(w.buf, tag[0], tag[1], tag[2], tag[3])
}

func (w *binWriter) raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *binWriter) zero(n int) {
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, 0)
	}
}

// chunk writes a fourcc + size header and returns the offset of the
// size field, to be filled in by patchU32 once the chunk's payload has
// been appended.
func (w *binWriter) chunk(tag string) (sizeOffset int) {
	w.fourCC(tag)
	sizeOffset = w.len()
	w.u32(0)
	return sizeOffset
}

// closeChunk patches the size field at sizeOffset with the number of
// payload bytes written since, and pads to a 16-bit boundary.
func (w *binWriter) closeChunk(sizeOffset int) {
	size := w.len() - sizeOffset - 4
	binary.LittleEndian.PutUint32(w.buf[sizeOffset:], uint32(size))
	if size%2 != 0 {
		w.buf = append(w.buf, 0)
	}
}

func (w *binWriter) patchU32(offset int, v uint32) {
	binary.LittleEndian.PutUint32(w.buf[offset:], v)
}
