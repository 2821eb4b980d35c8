// Package cache implements the per-Node output cache: an LRU map from
// frame index to Frame that cooperates with a global byte-budget
// accountant shared across every Node's cache.
package cache

import (
	"container/heap"
	"sync"

	"github.com/zsiec/framegraph/frame"
)

// entry is one cached (index -> Frame) slot. It lives simultaneously in
// its owning Cache's map and in the Global eviction heap.
type entry struct {
	owner     *Cache
	idx       int
	frame     *frame.Frame
	cost      int64
	lastTouch int64
	pins      int
	heapIdx   int
}

// entryHeap is a min-heap ordered by lastTouch (oldest first), giving
// LRU eviction order across every Cache sharing a Global.
type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].lastTouch < h[j].lastTouch }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}
func (h *entryHeap) Push(x interface{}) {
	e := x.(*entry)
	e.heapIdx = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIdx = -1
	*h = old[:n-1]
	return e
}

// Global tracks the shared byte budget across every Cache it creates
// and drives cross-cache LRU eviction. It corresponds to the engine's
// setMaxCacheSize control.
type Global struct {
	mu     sync.Mutex
	budget int64
	used   int64
	clock  int64
	heap   entryHeap
}

// NewGlobal creates a Global with the given byte budget. A budget of 0
// means unbounded.
func NewGlobal(budget int64) *Global {
	return &Global{budget: budget}
}

// SetMaxSize changes the byte budget and evicts if the new budget is
// smaller than current usage.
func (g *Global) SetMaxSize(budget int64) {
	g.mu.Lock()
	g.budget = budget
	over := g.budget > 0 && g.used > g.budget
	g.mu.Unlock()
	if over {
		g.evict()
	}
}

// Used returns current total cached bytes across every Cache.
func (g *Global) Used() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.used
}

// NewCache creates a per-Node output Cache tied to this Global budget.
// noCache caches hold at most one entry regardless of byte cost.
func (g *Global) NewCache(noCache bool) *Cache {
	return &Cache{global: g, noCache: noCache, entries: make(map[int]*entry)}
}

func (g *Global) evict() {
	g.mu.Lock()
	var skipped []*entry
	var toRelease []*frame.Frame
	for g.budget > 0 && g.used > g.budget && g.heap.Len() > 0 {
		e := heap.Pop(&g.heap).(*entry)
		if e.pins > 0 {
			skipped = append(skipped, e)
			continue
		}
		e.owner.removeLocked(e)
		g.used -= e.cost
		toRelease = append(toRelease, e.frame)
	}
	for _, e := range skipped {
		heap.Push(&g.heap, e)
	}
	g.mu.Unlock()
	for _, f := range toRelease {
		f.Release()
	}
}

// Cache is one Node output's frame-index -> Frame LRU store.
type Cache struct {
	global  *Global
	noCache bool

	mu      sync.Mutex
	entries map[int]*entry
}

// Get returns a retained reference to the cached Frame at idx, if
// present, refreshing its LRU position.
func (c *Cache) Get(idx int) (*frame.Frame, bool) {
	g := c.global
	g.mu.Lock()
	c.mu.Lock()
	e, ok := c.entries[idx]
	if ok {
		g.clock++
		e.lastTouch = g.clock
		if e.heapIdx >= 0 {
			heap.Fix(&g.heap, e.heapIdx)
		}
	}
	c.mu.Unlock()
	g.mu.Unlock()
	if !ok {
		return nil, false
	}
	return e.frame.Retain(), true
}

// Put inserts f under idx, retaining a reference for the Cache to own.
// For a no-cache Cache, any existing entry is evicted first so at most
// one frame is ever held. Insertion may trigger a global eviction pass
// if the byte budget is now exceeded.
func (c *Cache) Put(idx int, f *frame.Frame) {
	g := c.global
	cost := f.ByteCost()

	var evicted []*frame.Frame
	g.mu.Lock()
	c.mu.Lock()
	if c.noCache {
		for _, old := range c.entries {
			c.removeLocked(old)
			g.used -= old.cost
			evicted = append(evicted, old.frame)
		}
	}
	if old, exists := c.entries[idx]; exists {
		c.removeLocked(old)
		g.used -= old.cost
		evicted = append(evicted, old.frame)
	}
	g.clock++
	e := &entry{owner: c, idx: idx, frame: f.Retain(), cost: cost, lastTouch: g.clock, heapIdx: -1}
	c.entries[idx] = e
	heap.Push(&g.heap, e)
	g.used += cost
	over := g.budget > 0 && g.used > g.budget
	c.mu.Unlock()
	g.mu.Unlock()

	for _, old := range evicted {
		old.Release()
	}

	if over {
		g.evict()
	}
}

// Pin marks the cached Frame at idx as currently referenced by a Frame
// Context's dependency dict, exempting it from eviction until Unpin.
// It is a no-op if idx is not cached (the caller is holding its own
// reference in that case regardless).
func (c *Cache) Pin(idx int) {
	g := c.global
	g.mu.Lock()
	c.mu.Lock()
	if e, ok := c.entries[idx]; ok {
		e.pins++
	}
	c.mu.Unlock()
	g.mu.Unlock()
}

// Unpin releases a pin taken by Pin.
func (c *Cache) Unpin(idx int) {
	g := c.global
	g.mu.Lock()
	c.mu.Lock()
	if e, ok := c.entries[idx]; ok && e.pins > 0 {
		e.pins--
	}
	c.mu.Unlock()
	g.mu.Unlock()
}

// removeLocked deletes e from its owning Cache's map and, if still
// present, the Global heap. Callers must hold both g.mu and c.mu.
func (c *Cache) removeLocked(e *entry) {
	delete(c.entries, e.idx)
	if e.heapIdx >= 0 {
		heap.Remove(&c.global.heap, e.heapIdx)
	}
}
