// Package fctx implements the per-in-flight-frame Frame Context: pending
// dependency counting, resolved-dependency lookup, error propagation, and
// completion callbacks, as specified for the frame-graph scheduler.
package fctx

import (
	"sync"
	"sync/atomic"

	"github.com/zsiec/framegraph/frame"
)

// Key identifies one (node, frame index, output index) request. It is
// deliberately opaque with respect to the concrete Node type so that this
// package never needs to import node, breaking what would otherwise be a
// Context<->Node reference cycle.
type Key struct {
	NodeID uint64
	Index  int
	Output int
}

// CompletionFunc is invoked exactly once when a Context finishes, either
// with a produced Frame or with an error.
type CompletionFunc func(ctx *Context, result *frame.Frame, err error)

// Context represents one active request for a single (node, frame index,
// output index). It is owned by the scheduler for the duration of a
// filter's activation and is not safe to retain past the completion
// callback.
type Context struct {
	Key    Key
	parent *Context

	pending atomic.Int32

	mu            sync.Mutex
	deps          map[Key]*frame.Frame
	lastCompleted Key
	haveLast      bool
	errMsg        string
	hasErr        bool
	onComplete    CompletionFunc
}

// New creates a Context for the given key. parent may be nil for a
// top-level (host-initiated) request; otherwise it is the Context that
// issued the nested requestFrame call on whose behalf this one runs.
func New(key Key, parent *Context, onComplete CompletionFunc) *Context {
	return &Context{
		Key:        key,
		parent:     parent,
		deps:       make(map[Key]*frame.Frame),
		onComplete: onComplete,
	}
}

// Parent returns the Context that spawned this one, or nil for a
// top-level request.
func (c *Context) Parent() *Context { return c.parent }

// AddPending increments the pending dependency count. Called once per
// requestFrame issued during arInitial before the child Context can
// possibly complete, so the count never spuriously reaches zero.
func (c *Context) AddPending() {
	c.pending.Add(1)
}

// Pending returns the current pending dependency count.
func (c *Context) Pending() int32 {
	return c.pending.Load()
}

// Resolve stores a completed dependency's Frame (retaining a reference)
// and decrements the pending count. It returns true if this was the last
// outstanding dependency (pending count reached zero).
func (c *Context) Resolve(key Key, f *frame.Frame) bool {
	c.mu.Lock()
	if f != nil {
		c.deps[key] = f.Retain()
	}
	c.lastCompleted = key
	c.haveLast = true
	c.mu.Unlock()
	return c.pending.Add(-1) == 0
}

// Fail records that a child request failed. Like Resolve, it decrements
// the pending count and marks this Context errored (dependency-error);
// it returns true if this was the last outstanding dependency.
func (c *Context) Fail(key Key, msg string) bool {
	c.mu.Lock()
	if !c.hasErr {
		c.hasErr = true
		c.errMsg = msg
	}
	c.lastCompleted = key
	c.haveLast = true
	c.mu.Unlock()
	return c.pending.Add(-1) == 0
}

// Get performs the pure map lookup a filter uses in arAllFramesReady to
// fetch a resolved dependency (getFrameFilter in the spec). It does not
// retain; callers that keep the Frame past the activation must Retain it
// themselves.
func (c *Context) Get(key Key) (*frame.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.deps[key]
	return f, ok
}

// LastCompleted returns the (node, frame) pair most recently resolved or
// failed against this Context, used by streaming filters that react to
// arFrameReady in completion order.
func (c *Context) LastCompleted() (Key, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCompleted, c.haveLast
}

// ReleaseEarly drops the cached reference for key from the dependency
// dict, releasing the Frame immediately rather than waiting for the
// Context itself to be torn down. Filters call this once they have
// consumed a dependency and know they won't need it again.
func (c *Context) ReleaseEarly(key Key) {
	c.mu.Lock()
	f, ok := c.deps[key]
	if ok {
		delete(c.deps, key)
	}
	c.mu.Unlock()
	if ok {
		f.Release()
	}
}

// SetError marks the Context errored with a filter-supplied message
// (setFilterError in the spec). A Context that already has an error from
// a failed dependency keeps that original message.
func (c *Context) SetError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasErr {
		c.hasErr = true
		c.errMsg = msg
	}
}

// HasError reports whether this Context is errored.
func (c *Context) HasError() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasErr
}

// ErrorMessage returns the error string, if any.
func (c *Context) ErrorMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Complete releases all remaining dependency references and then invokes
// the completion callback exactly once, per the spec's release
// discipline (child frames released, then the Context itself is done).
func (c *Context) Complete(result *frame.Frame, err error) {
	c.mu.Lock()
	cb := c.onComplete
	c.onComplete = nil
	deps := c.deps
	c.deps = nil
	c.mu.Unlock()

	for _, f := range deps {
		f.Release()
	}
	if cb != nil {
		cb(c, result, err)
	}
}
