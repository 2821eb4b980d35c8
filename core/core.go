// Package core implements the process-scoped registry that binds the
// thread pool, memory accountant, plugin registry, and message
// handlers into one embeddable handle. Multiple independent Cores may
// coexist in one process (e.g. for test isolation); there is no
// package-level singleton.
package core

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/zsiec/framegraph/frame"
	"github.com/zsiec/framegraph/node"
	"github.com/zsiec/framegraph/plugin"
	"github.com/zsiec/framegraph/propmap"
	"github.com/zsiec/framegraph/sched"
)

// Options configures a new Core.
type Options struct {
	// Threads is the worker pool's initial slot count. Defaults to 1.
	Threads int
	// MaxCacheBytes is the initial shared cache byte budget. Zero
	// means unbounded.
	MaxCacheBytes int64
	// Log receives structured diagnostics in addition to any handlers
	// registered later with AddMessageHandler. Defaults to
	// slog.Default() wrapped so its output also honors LevelFatal.
	Log *slog.Logger
}

// Core owns one frame-graph's thread pool, memory budget, and plugin
// registry, and implements frame.Accountant so Frame allocation can
// charge against it directly.
type Core struct {
	id      uuid.UUID
	pool    *sched.Pool
	plugins *plugin.Registry
	fanout  *handlerFanout

	memBudget atomic.Int64
	memUsed   atomic.Int64

	mu     sync.Mutex
	closed bool
}

// New creates a Core. A zero Options value is valid and yields a
// single-threaded, unbounded-cache Core logging to slog.Default().
func New(opts Options) *Core {
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	fanout := newHandlerFanout()
	base := opts.Log
	if base == nil {
		base = slog.Default()
	}
	fanout.add(base.Handler())

	c := &Core{
		id:      uuid.New(),
		pool:    sched.NewPool(opts.Threads, opts.MaxCacheBytes),
		plugins: plugin.NewRegistry(),
		fanout:  fanout,
	}
	c.memBudget.Store(opts.MaxCacheBytes)
	return c
}

// ID returns this Core's unique instance identifier.
func (c *Core) ID() uuid.UUID { return c.id }

// Log returns a structured logger, tagged with this Core's ID, backed by
// every message handler registered at the time of the call.
func (c *Core) Log() *slog.Logger { return slog.New(c.fanout).With("core", c.id.String()) }

// Plugins returns the Core's plugin registry.
func (c *Core) Plugins() *plugin.Registry { return c.plugins }

// AddMessageHandler registers h to receive every log record produced
// through loggers that this Core's Log() returns from then on, returning
// a stable ID for later removal.
func (c *Core) AddMessageHandler(h slog.Handler) int {
	return c.fanout.add(h)
}

// RemoveMessageHandler unregisters a handler added by AddMessageHandler.
func (c *Core) RemoveMessageHandler(id int) {
	c.fanout.remove(id)
}

// SetThreadCount resizes the worker pool.
func (c *Core) SetThreadCount(n int) {
	c.pool.SetThreadCount(n)
}

// SetMaxCacheSize resizes the shared cache byte budget.
func (c *Core) SetMaxCacheSize(bytes int64) {
	c.pool.SetMaxCacheSize(bytes)
}

// GetFrame blocks until frame idx of n is produced or errors.
func (c *Core) GetFrame(n *node.Node, idx int) (*frame.Frame, error) {
	return c.pool.GetFrame(n, idx)
}

// GetFrameAsync requests frame idx of n and calls cb from whatever
// goroutine completes it, without blocking the caller.
func (c *Core) GetFrameAsync(n *node.Node, idx int, cb func(*frame.Frame, error)) {
	go func() {
		f, err := c.pool.GetFrame(n, idx)
		cb(f, err)
	}()
}

// Invoke calls a registered plugin function by namespace and name.
func (c *Core) Invoke(namespace, funcName string, args *propmap.Map) *propmap.Map {
	return c.plugins.Invoke(namespace, funcName, args)
}

// Charge implements frame.Accountant, tracking a soft, best-effort
// process memory estimate alongside the Cache's own byte budget.
func (c *Core) Charge(bytes int64) {
	c.memUsed.Add(bytes)
}

// Credit implements frame.Accountant.
func (c *Core) Credit(bytes int64) {
	c.memUsed.Add(-bytes)
}

// MemoryUsed returns the current best-effort charged/credited total.
func (c *Core) MemoryUsed() int64 {
	return c.memUsed.Load()
}

// Close shuts the Core down, blocking until every in-flight activation
// goroutine the pool spawned has returned. It is safe to call more than
// once.
func (c *Core) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.pool.Wait()
	c.Log().Debug("core closed", "memory_used", c.memUsed.Load())
	return err
}

// Closed reports whether Close has run.
func (c *Core) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Core) String() string {
	return fmt.Sprintf("core.Core{id:%s}", c.id)
}
