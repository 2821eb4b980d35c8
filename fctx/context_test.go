package fctx

import (
	"testing"

	"github.com/zsiec/framegraph/frame"
)

func TestPendingReachesZeroOnResolve(t *testing.T) {
	t.Parallel()

	c := New(Key{NodeID: 1, Index: 0}, nil, nil)
	c.AddPending()
	c.AddPending()
	if last := c.Resolve(Key{NodeID: 2, Index: 0}, nil); last {
		t.Fatal("Resolve: expected not-last with one dependency still outstanding")
	}
	if last := c.Resolve(Key{NodeID: 3, Index: 0}, nil); !last {
		t.Fatal("Resolve: expected last after resolving all dependencies")
	}
}

func TestFailMarksErrorAndDoesNotOverwrite(t *testing.T) {
	t.Parallel()

	c := New(Key{NodeID: 1, Index: 0}, nil, nil)
	c.AddPending()
	c.AddPending()
	c.Fail(Key{NodeID: 2, Index: 0}, "first error")
	c.Fail(Key{NodeID: 3, Index: 0}, "second error")
	if !c.HasError() {
		t.Fatal("expected HasError true after Fail")
	}
	if got := c.ErrorMessage(); got != "first error" {
		t.Errorf("ErrorMessage: got %q, want %q (first error wins)", got, "first error")
	}
}

func TestGetReturnsResolvedDependency(t *testing.T) {
	t.Parallel()

	format := frame.VideoFormat{ColorFamily: frame.Gray, SampleType: frame.Integer, BitsPerSample: 8}
	f := frame.NewVideoFrame(format, 4, 4, nil, nil)
	defer f.Release()

	c := New(Key{NodeID: 1, Index: 0}, nil, nil)
	key := Key{NodeID: 2, Index: 0}
	c.AddPending()
	c.Resolve(key, f)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Get: expected dependency to be present")
	}
	if got.Width() != 4 {
		t.Errorf("Get: got width %d, want 4", got.Width())
	}
}

func TestReleaseEarlyDropsDependency(t *testing.T) {
	t.Parallel()

	format := frame.VideoFormat{ColorFamily: frame.Gray, SampleType: frame.Integer, BitsPerSample: 8}
	f := frame.NewVideoFrame(format, 4, 4, nil, nil)
	defer f.Release()

	c := New(Key{NodeID: 1, Index: 0}, nil, nil)
	key := Key{NodeID: 2, Index: 0}
	c.AddPending()
	c.Resolve(key, f)
	c.ReleaseEarly(key)

	if _, ok := c.Get(key); ok {
		t.Fatal("Get: expected dependency to be gone after ReleaseEarly")
	}
}

func TestCompleteFiresCallbackOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	c := New(Key{NodeID: 1, Index: 0}, nil, func(ctx *Context, result *frame.Frame, err error) {
		calls++
	})
	c.Complete(nil, nil)
	if calls != 1 {
		t.Fatalf("Complete: callback invoked %d times, want 1", calls)
	}
}

func TestParentPointer(t *testing.T) {
	t.Parallel()

	parent := New(Key{NodeID: 1, Index: 0}, nil, nil)
	child := New(Key{NodeID: 2, Index: 0}, parent, nil)
	if child.Parent() != parent {
		t.Fatal("Parent: child does not point back to parent")
	}
}
