package cache

import (
	"testing"

	"github.com/zsiec/framegraph/frame"
)

func newFrame() *frame.Frame {
	format := frame.VideoFormat{ColorFamily: frame.Gray, SampleType: frame.Integer, BitsPerSample: 8}
	return frame.NewVideoFrame(format, 64, 64, nil, nil)
}

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()

	g := NewGlobal(0)
	c := g.NewCache(false)
	f := newFrame()
	c.Put(0, f)
	f.Release()

	got, ok := c.Get(0)
	if !ok {
		t.Fatal("Get: expected hit")
	}
	defer got.Release()
	if got.Width() != 64 {
		t.Errorf("Get: width %d, want 64", got.Width())
	}
}

func TestGetMissReturnsFalse(t *testing.T) {
	t.Parallel()

	g := NewGlobal(0)
	c := g.NewCache(false)
	if _, ok := c.Get(5); ok {
		t.Fatal("Get: expected miss on empty cache")
	}
}

func TestNoCacheHoldsOnlyOneEntry(t *testing.T) {
	t.Parallel()

	g := NewGlobal(0)
	c := g.NewCache(true)

	f0 := newFrame()
	c.Put(0, f0)
	f0.Release()
	f1 := newFrame()
	c.Put(1, f1)
	f1.Release()

	if _, ok := c.Get(0); ok {
		t.Error("no-cache Cache retained more than one entry")
	}
	got, ok := c.Get(1)
	if !ok {
		t.Fatal("expected the most recent entry to still be cached")
	}
	got.Release()
}

func TestGlobalBudgetEvictsLRU(t *testing.T) {
	t.Parallel()

	f := newFrame()
	frameBytes := f.ByteCost()
	f.Release()

	g := NewGlobal(2 * frameBytes)
	c := g.NewCache(false)

	for i := 0; i < 10; i++ {
		fr := newFrame()
		c.Put(i, fr)
		fr.Release()
	}

	if used := g.Used(); used > 2*frameBytes {
		t.Errorf("Used=%d exceeds budget %d", used, 2*frameBytes)
	}
	if _, ok := c.Get(0); ok {
		t.Error("expected frame 0 to have been evicted as least recently used")
	}
	got, ok := c.Get(9)
	if !ok {
		t.Fatal("expected most recently inserted frame to survive eviction")
	}
	got.Release()
}

func TestPinPreventsEviction(t *testing.T) {
	t.Parallel()

	f := newFrame()
	frameBytes := f.ByteCost()
	f.Release()

	g := NewGlobal(1 * frameBytes)
	c := g.NewCache(false)

	pinned := newFrame()
	c.Put(0, pinned)
	pinned.Release()
	c.Pin(0)

	for i := 1; i < 5; i++ {
		fr := newFrame()
		c.Put(i, fr)
		fr.Release()
	}

	got, ok := c.Get(0)
	if !ok {
		t.Fatal("expected pinned entry to survive eviction pressure")
	}
	got.Release()
	c.Unpin(0)
}
