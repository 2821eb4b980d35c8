package avi

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// fakeSource generates deterministic, distinguishable frame/sample
// data so tests can assert on exact bytes read back through ReadMedia.
type fakeSource struct {
	frames     int
	frameSize  int
	numSamples int64
	channels   int
	bytesPer   int
}

func (f *fakeSource) VideoFrameCount() int { return f.frames }

func (f *fakeSource) ReadVideoFrame(i int, dst []byte) (int, error) {
	for j := range dst {
		dst[j] = byte(i)
	}
	return len(dst), nil
}

func (f *fakeSource) AudioSampleCount() int64 { return f.numSamples }

func (f *fakeSource) ReadAudioSamples(start, count int64, dst []byte) (int, error) {
	for j := range dst {
		dst[j] = byte(start)
	}
	return len(dst), nil
}

func testVideoFormat() VideoFormat {
	return VideoFormat{FourCC: "DIB ", Width: 4, Height: 4, BitsPerPixel: 24, FPSNum: 25, FPSDen: 1}
}

func readAll(t *testing.T, m *Muxer) []byte {
	t.Helper()
	buf := make([]byte, m.Size())
	n, err := m.ReadMedia(0, buf)
	if err != nil {
		t.Fatalf("ReadMedia: %v", err)
	}
	if int64(n) != m.Size() {
		t.Fatalf("ReadMedia: got %d bytes, want %d", n, m.Size())
	}
	return buf
}

func TestMuxerVideoOnlyStartsWithRiffAvi(t *testing.T) {
	t.Parallel()
	src := &fakeSource{frames: 10, frameSize: 4 * 4 * 3}
	m, err := New(testVideoFormat(), AudioFormat{}, src, Options{})
	if err != nil {
		t.Fatal(err)
	}
	data := readAll(t, m)

	if string(data[0:4]) != fccRIFF || string(data[8:12]) != fccAVI {
		t.Fatalf("bad file header: %q", data[:12])
	}
	riffSize := binary.LittleEndian.Uint32(data[4:8])
	if int64(riffSize)+8 != m.Size() {
		t.Errorf("riff size: got %d (+8=%d), want file size %d", riffSize, riffSize+8, m.Size())
	}
}

func TestMuxerFrameDataRoundTrips(t *testing.T) {
	t.Parallel()
	src := &fakeSource{frames: 5, frameSize: 4 * 4 * 3}
	m, err := New(testVideoFormat(), AudioFormat{}, src, Options{})
	if err != nil {
		t.Fatal(err)
	}
	data := readAll(t, m)

	// The video chunk tag ('00db' for DIB) appears once per video chunk
	// and once per idx1 row, plus once as the chunk ID of the indx
	// super-index and once as that of the ix00 std index.
	if got, want := bytes.Count(data, []byte(fccVidUncompressed)), 2*src.frames+2; got != want {
		t.Errorf("video chunk tag count: got %d, want %d", got, want)
	}
}

func TestMuxerWithAudioInterleavesChunks(t *testing.T) {
	t.Parallel()
	src := &fakeSource{frames: 8, frameSize: 4 * 4 * 3, numSamples: 8 * 1600, channels: 2, bytesPer: 2}
	afmt := AudioFormat{Channels: 2, SampleRate: 40000, BitsPerSample: 16}
	m, err := New(testVideoFormat(), afmt, src, Options{})
	if err != nil {
		t.Fatal(err)
	}
	data := readAll(t, m)

	// Each stream's tag appears once per chunk and once per idx1 row,
	// plus once in its indx super-index and once in its ix00/ix01.
	if got, want := bytes.Count(data, []byte(fccAud)), 2*src.frames+2; got != want {
		t.Errorf("audio chunk tag count: got %d, want %d", got, want)
	}
	if got, want := bytes.Count(data, []byte(fccVidUncompressed)), 2*src.frames+2; got != want {
		t.Errorf("video chunk tag count: got %d, want %d", got, want)
	}
}

func TestMuxerSmallSegmentsSplitsFile(t *testing.T) {
	t.Parallel()
	src := &fakeSource{frames: 500, frameSize: 64 * 64 * 3}
	vfmt := VideoFormat{FourCC: "DIB ", Width: 64, Height: 64, BitsPerPixel: 24, FPSNum: 25, FPSDen: 1}
	// A real SmallSegments (~1GiB) ceiling is far larger than this
	// fixture could reasonably generate, so the override forces a tiny
	// per-segment budget purely to exercise the multi-segment path.
	m, err := New(vfmt, AudioFormat{}, src, Options{SmallSegments: true, maxSegSizeOverride: 1 << 16})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.p.segs) < 2 {
		t.Fatalf("expected multiple segments with SmallSegments, got %d", len(m.p.segs))
	}
	data := readAll(t, m)
	if got := bytes.Count(data, []byte(fccAVIX)); got != len(m.p.segs)-1 {
		t.Errorf("AVIX segment count: got %d, want %d", got, len(m.p.segs)-1)
	}
}

func TestMuxerReadMediaPartialRange(t *testing.T) {
	t.Parallel()
	src := &fakeSource{frames: 6, frameSize: 4 * 4 * 3}
	m, err := New(testVideoFormat(), AudioFormat{}, src, Options{})
	if err != nil {
		t.Fatal(err)
	}
	full := readAll(t, m)

	buf := make([]byte, 37)
	n, err := m.ReadMedia(19, buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf[:n], full[19:19+int64(n)]) {
		t.Errorf("partial read mismatch at offset 19")
	}
}

func TestMuxerRejectsEmptySource(t *testing.T) {
	t.Parallel()
	src := &fakeSource{frames: 0}
	if _, err := New(testVideoFormat(), AudioFormat{}, src, Options{}); err == nil {
		t.Fatal("expected error for zero video frames")
	}
}
