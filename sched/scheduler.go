package sched

import (
	"errors"
	"fmt"

	"github.com/zsiec/framegraph/fctx"
	"github.com/zsiec/framegraph/frame"
	"github.com/zsiec/framegraph/node"
)

// inflight tracks one (node, frameIndex) request from creation to
// completion, letting concurrent requesters for the same key attach to
// the same result instead of starting duplicate work.
type inflight struct {
	n     *node.Node
	idx   int
	ctx   *fctx.Context
	done  chan struct{}
	frame *frame.Frame
	err   error
}

// GetFrame is the host-facing blocking entry point: it clamps idx,
// checks the Node's cache, and otherwise drives a full activation
// cycle, blocking the calling goroutine until the frame is produced or
// an error occurs.
func (p *Pool) GetFrame(n *node.Node, idx int) (*frame.Frame, error) {
	clamped, err := n.ClampIndex(idx)
	if err != nil {
		return nil, err
	}
	inf := p.getOrStart(n, clamped, nil)
	<-inf.done
	if inf.err != nil {
		return nil, inf.err
	}
	return inf.frame.Retain(), nil
}

// getOrStart returns the in-flight (or already-cached) request for
// (n, idx), creating one and launching its activation goroutine if
// neither exists. parent is non-nil when this request originates from
// another Context's arInitial phase.
func (p *Pool) getOrStart(n *node.Node, idx int, parent *fctx.Context) *inflight {
	key := inflightKey{n.ID(), idx}

	p.mu.Lock()
	if inf, ok := p.inflight[key]; ok {
		p.mu.Unlock()
		return inf
	}
	p.mu.Unlock()

	if f, ok := p.cacheFor(n).Get(idx); ok {
		inf := &inflight{n: n, idx: idx, done: make(chan struct{}), frame: f}
		close(inf.done)
		// The Cache already owns a durable reference to f; drop the
		// fresh one Get returned now that inf.frame aliases the same
		// Frame for callers to Retain from.
		f.Release()
		return inf
	}

	p.mu.Lock()
	if inf, ok := p.inflight[key]; ok {
		p.mu.Unlock()
		return inf
	}
	ctxKey := fctx.Key{NodeID: n.ID(), Index: idx, Output: n.Output()}
	inf := &inflight{n: n, idx: idx, done: make(chan struct{})}
	inf.ctx = fctx.New(ctxKey, parent, func(c *fctx.Context, result *frame.Frame, err error) {
		p.finish(key, inf, result, err)
	})
	p.inflight[key] = inf
	p.mu.Unlock()

	p.spawn(func() { p.run(n, idx, inf.ctx) })
	return inf
}

func (p *Pool) finish(key inflightKey, inf *inflight, result *frame.Frame, err error) {
	if err == nil && result != nil {
		p.cacheFor(inf.n).Put(inf.idx, result)
		// Put took its own reference for the Cache to own; drop the
		// creation reference now that inf.frame aliases the same Frame
		// for GetFrame/resolve to Retain from.
		result.Release()
	}
	inf.frame = result
	inf.err = err
	close(inf.done)

	p.mu.Lock()
	delete(p.inflight, key)
	delete(p.waiters, inf.ctx)
	p.mu.Unlock()
}

// dispatch runs the full arInitial -> wait-for-deps -> arAllFramesReady
// cycle for one Context, honoring the Node's filter mode.
func (p *Pool) dispatch(n *node.Node, idx int, ctx *fctx.Context) (*frame.Frame, error) {
	w := &waiter{n: n, idx: idx, ready: make(chan struct{}, 1)}
	p.mu.Lock()
	p.waiters[ctx] = w
	p.mu.Unlock()

	g := p.gateFor(n)
	switch n.Mode() {
	case node.FmUnordered:
		g.mu.Lock()
		defer g.mu.Unlock()
	case node.FmSerial:
		g.mu.Lock()
		defer func() {
			g.cond.Broadcast()
			g.mu.Unlock()
		}()
		for !n.TryAdvanceSerial(idx) {
			g.cond.Wait()
		}
	}

	p.invoke(w, ctx, node.ArInitial)

	for ctx.Pending() > 0 {
		<-w.ready
	}

	if n.Mode() == node.FmParallelRequests {
		g.arMu.Lock()
		defer g.arMu.Unlock()
	}

	result, ferr := p.invoke(w, ctx, node.ArAllFramesReady)
	p.unpinAll(ctx)

	if ctx.HasError() {
		return nil, errors.New(ctx.ErrorMessage())
	}
	return result, ferr
}

// invoke calls the filter's GetFrameFunc under the Context's own
// invocation mutex (so arInitial/arFrameReady/arAllFramesReady for one
// Context never overlap) and the pool's worker-slot semaphore.
func (p *Pool) invoke(w *waiter, ctx *fctx.Context, activation node.Activation) (*frame.Frame, error) {
	w.invokeMu.Lock()
	defer w.invokeMu.Unlock()

	p.reserveThread()
	defer p.releaseThread()

	result, err := w.n.Invoke(w.idx, activation, ctx, p)
	if err != nil {
		ctx.SetError(err.Error())
		return nil, err
	}
	return result, nil
}

// RequestFrame implements node.API. It declares a dependency on frame n
// of dep against ctx, synchronously if the dependency is already
// cached or in flight and complete, asynchronously otherwise.
func (p *Pool) RequestFrame(dep *node.Node, n int, ctx *fctx.Context) {
	ctx.AddPending()

	clamped, err := dep.ClampIndex(n)
	if err != nil {
		key := fctx.Key{NodeID: dep.ID(), Index: n, Output: dep.Output()}
		if ctx.Fail(key, err.Error()) {
			p.wake(ctx)
		}
		return
	}

	inf := p.getOrStart(dep, clamped, ctx)
	select {
	case <-inf.done:
		// The caller is inside ctx's arInitial invoke, which already
		// holds the invocation mutex and a worker slot.
		p.resolve(ctx, dep, clamped, inf, true)
	default:
		p.spawn(func() {
			<-inf.done
			p.resolve(ctx, dep, clamped, inf, false)
		})
	}
}

// resolve records dependency idx of dep against ctx and, for a
// successful resolution, fires ArFrameReady so streaming filters can
// react before every dependency is ready. The resolve-then-notify
// sequence is serialized on the Context's own invocation mutex so that
// concurrent dependency completions can't interleave with each other
// or with the arInitial/arAllFramesReady calls for the same Context.
// held reports that the caller already holds that mutex and a worker
// slot (a synchronous resolution from within arInitial).
func (p *Pool) resolve(ctx *fctx.Context, dep *node.Node, idx int, inf *inflight, held bool) {
	p.mu.Lock()
	w := p.waiters[ctx]
	p.mu.Unlock()

	if w != nil && !held {
		w.invokeMu.Lock()
	}

	key := fctx.Key{NodeID: dep.ID(), Index: idx, Output: dep.Output()}
	var last bool
	if inf.err != nil {
		last = ctx.Fail(key, inf.err.Error())
	} else {
		last = ctx.Resolve(key, inf.frame)
		p.pin(ctx, dep, idx)
		if w != nil {
			if !held {
				p.reserveThread()
			}
			_, ferr := w.n.Invoke(w.idx, node.ArFrameReady, ctx, p)
			if !held {
				p.releaseThread()
			}
			if ferr != nil {
				ctx.SetError(ferr.Error())
			}
		}
	}

	if w != nil && !held {
		w.invokeMu.Unlock()
	}
	if last {
		p.wake(ctx)
	}
}

func (p *Pool) wake(ctx *fctx.Context) {
	p.mu.Lock()
	w, ok := p.waiters[ctx]
	p.mu.Unlock()
	if !ok {
		return
	}
	select {
	case w.ready <- struct{}{}:
	default:
	}
}

// ReleaseFrameEarly implements node.API.
func (p *Pool) ReleaseFrameEarly(dep *node.Node, n int, ctx *fctx.Context) {
	key := fctx.Key{NodeID: dep.ID(), Index: n, Output: dep.Output()}
	ctx.ReleaseEarly(key)
	p.cacheFor(dep).Unpin(n)
}

// SetFilterError implements node.API.
func (p *Pool) SetFilterError(ctx *fctx.Context, msg string) {
	ctx.SetError(msg)
}

// run is the goroutine body for one Context's full lifecycle.
func (p *Pool) run(n *node.Node, idx int, ctx *fctx.Context) {
	result, err := func() (result *frame.Frame, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("node %s: panic producing frame %d: %v", n.Name(), idx, r)
			}
		}()
		return p.dispatch(n, idx, ctx)
	}()
	ctx.Complete(result, err)
}
