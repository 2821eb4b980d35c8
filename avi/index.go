package avi

// AVI2 layers three kinds of index: a "super index" (one per stream,
// living in the stream's strl list in segment 0) whose entries point at
// each segment's own small "standard index" (ix00 for video, ix01 for
// audio), plus a legacy "old index" (idx1) covering segment 0's own
// chunks for readers that don't understand OpenDML at all.

// writeSuperIndex writes an 'indx' chunk with n placeholder entries
// (all zero) and returns the file offset (relative to w's start) of the
// first entry, so the caller can patch entries in once segment offsets
// are known.
func writeSuperIndex(w *binWriter, chunkID string, n int) (entriesOffset int) {
	off := w.chunk(fccINDX)
	w.u16(4) // wLongsPerEntry = sizeof(entry)/4 = 16/4
	w.raw([]byte{indexSubDflt, indexOfIndexes})
	w.u32(uint32(n))
	w.raw([]byte(chunkID))
	w.u32(0) // qwBaseOffsetLow
	w.u32(0) // qwBaseOffsetHigh
	w.zero(4)
	entriesOffset = w.len()
	for i := 0; i < n; i++ {
		w.u32(0) // qwOffsetLow
		w.u32(0) // qwOffsetHigh
		w.u32(0) // dwSize
		w.u32(0) // dwDuration
	}
	w.closeChunk(off)
	return entriesOffset
}

func patchSuperIndexEntry(buf []byte, entriesOffset, i int, offset uint64, size, duration uint32) {
	base := entriesOffset + i*16
	le := func(off int, v uint32) {
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
		buf[off+2] = byte(v >> 16)
		buf[off+3] = byte(v >> 24)
	}
	le(base, uint32(offset))
	le(base+4, uint32(offset>>32))
	le(base+8, size)
	le(base+12, duration)
}

// buildStdIndex builds one segment's ix00/ix01 chunk: a base offset
// plus (offset,size) pairs relative to it, one per chunk of chunkID in
// this segment.
func buildStdIndex(tag, chunkID string, baseOffset uint64, entries [][2]uint32) []byte {
	w := newBinWriter(32 + len(entries)*8)
	off := w.chunk(tag)
	w.u16(2) // wLongsPerEntry = sizeof(entry)/4
	w.raw([]byte{indexSubDflt, indexOfChunks})
	w.u32(uint32(len(entries)))
	w.raw([]byte(chunkID))
	w.u32(uint32(baseOffset))
	w.u32(uint32(baseOffset >> 32))
	w.zero(4)
	for _, e := range entries {
		w.u32(e[0])
		w.u32(e[1])
	}
	w.closeChunk(off)
	return w.bytes()
}

// oldIndexRow is one idx1 entry: relative to the 'movi' list's own
// data start, per the legacy format's convention.
type oldIndexRow struct {
	chunkID string
	flags   uint32
	offset  uint32
	size    uint32
}

func buildOldIndex(rows []oldIndexRow) []byte {
	w := newBinWriter(8 + len(rows)*16)
	off := w.chunk(fccIDX1)
	for _, r := range rows {
		w.raw([]byte(r.chunkID))
		w.u32(r.flags)
		w.u32(r.offset)
		w.u32(r.size)
	}
	w.closeChunk(off)
	return w.bytes()
}
