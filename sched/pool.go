// Package sched implements the work-stealing-flavored thread pool and
// two-phase activation dispatcher that drive the frame-graph: it turns
// a Node.getFrame request into arInitial/arAllFramesReady/arFrameReady
// calls, enforcing per-instance filter-mode concurrency limits and
// cooperating with the Cache and Frame Context packages.
package sched

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/framegraph/cache"
	"github.com/zsiec/framegraph/fctx"
	"github.com/zsiec/framegraph/node"
)

// gate holds the per-filter-instance concurrency-control state implied
// by its FilterMode: a plain mutex for Unordered/Serial, a Cond for
// Serial's ascending-order admission, and a separate mutex used only to
// serialize the arAllFramesReady phase under ParallelRequests.
type gate struct {
	mode  node.FilterMode
	mu    sync.Mutex
	cond  *sync.Cond
	arMu  sync.Mutex
}

func newGate(mode node.FilterMode) *gate {
	g := &gate{mode: mode}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// waiter is the bookkeeping the scheduler keeps for one in-flight
// Context: which Node/frame index it belongs to (for arFrameReady
// re-invocation), the channel woken when a dependency resolves, and a
// mutex serializing every call into the filter's GetFrameFunc for this
// Context.
type waiter struct {
	n        *node.Node
	idx      int
	ready    chan struct{}
	invokeMu sync.Mutex
}

// Pool is a fixed-capacity, runtime-resizable worker slot pool plus the
// scheduling state (per-Node caches, per-instance gates, in-flight
// request dedup, pinned-dependency bookkeeping) needed to run the
// frame-graph's two-phase activation protocol.
type Pool struct {
	mu       sync.Mutex
	slots    chan struct{}
	global   *cache.Global
	caches   map[uint64]*cache.Cache
	gates    map[uint64]*gate
	inflight map[inflightKey]*inflight
	waiters  map[*fctx.Context]*waiter
	pinned   map[*fctx.Context][]pinnedEntry
	eg       errgroup.Group
}

type inflightKey struct {
	nodeID uint64
	idx    int
}

type pinnedEntry struct {
	n   *node.Node
	idx int
}

// NewPool creates a Pool with threads worker slots and a global cache
// byte budget of maxCacheBytes (0 means unbounded).
func NewPool(threads int, maxCacheBytes int64) *Pool {
	if threads < 1 {
		threads = 1
	}
	p := &Pool{
		global:   cache.NewGlobal(maxCacheBytes),
		caches:   make(map[uint64]*cache.Cache),
		gates:    make(map[uint64]*gate),
		inflight: make(map[inflightKey]*inflight),
		waiters:  make(map[*fctx.Context]*waiter),
		pinned:   make(map[*fctx.Context][]pinnedEntry),
	}
	p.slots = make(chan struct{}, threads)
	return p
}

// SetThreadCount changes the worker slot capacity. Existing holders of
// a slot are unaffected; the new capacity takes effect as slots are
// released and re-acquired.
func (p *Pool) SetThreadCount(n int) {
	if n < 1 {
		n = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots = make(chan struct{}, n)
}

// SetMaxCacheSize changes the shared cache byte budget.
func (p *Pool) SetMaxCacheSize(bytes int64) {
	p.global.SetMaxSize(bytes)
}

// spawn launches fn under the pool's errgroup, joining it to the set of
// goroutines Wait drains on shutdown.
func (p *Pool) spawn(fn func()) {
	p.eg.Go(func() error {
		fn()
		return nil
	})
}

// Wait blocks until every activation goroutine spawned by the pool has
// returned. Core.Close calls this to drain in-flight requests before
// reporting the pool shut down.
func (p *Pool) Wait() error {
	return p.eg.Wait()
}

// reserveThread acquires a worker slot, blocking until one is free.
// Filter code only runs while its goroutine holds a slot.
func (p *Pool) reserveThread() {
	p.mu.Lock()
	slots := p.slots
	p.mu.Unlock()
	slots <- struct{}{}
}

// releaseThread returns a worker slot, called before a goroutine
// suspends waiting on dependencies (mirroring the engine's
// releaseThread/reserveThread pair around host-blocking waits).
func (p *Pool) releaseThread() {
	p.mu.Lock()
	slots := p.slots
	p.mu.Unlock()
	<-slots
}

func (p *Pool) gateFor(n *node.Node) *gate {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.gates[n.InstanceID()]
	if !ok {
		g = newGate(n.Mode())
		p.gates[n.InstanceID()] = g
	}
	return g
}

func (p *Pool) cacheFor(n *node.Node) *cache.Cache {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.caches[n.ID()]
	if !ok {
		c = p.global.NewCache(n.NoCache())
		p.caches[n.ID()] = c
	}
	return c
}

func (p *Pool) pin(ctx *fctx.Context, n *node.Node, idx int) {
	p.cacheFor(n).Pin(idx)
	p.mu.Lock()
	p.pinned[ctx] = append(p.pinned[ctx], pinnedEntry{n, idx})
	p.mu.Unlock()
}

func (p *Pool) unpinAll(ctx *fctx.Context) {
	p.mu.Lock()
	entries := p.pinned[ctx]
	delete(p.pinned, ctx)
	p.mu.Unlock()
	for _, e := range entries {
		p.cacheFor(e.n).Unpin(e.idx)
	}
}
