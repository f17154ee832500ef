// Package workerpool is a deploy.Backend built on
// golang.org/x/sync/errgroup: submitted work is capped at a fixed
// concurrency, with the group's own SetLimit blocking further submission
// once every slot is busy, instead of hand-rolling a channel-based
// worker pool the way a non-Go host language would have to.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ordinate-sh/znflow/deploy"
)

// Pool is a deploy.Backend that bounds concurrency to a fixed worker
// count via a single errgroup.Group.
type Pool struct {
	group  *errgroup.Group
	cancel context.CancelFunc
}

// New returns a Pool that runs at most `concurrency` submissions at
// once. concurrency <= 0 means unbounded.
func New(concurrency int) *Pool {
	g, egCtx := errgroup.WithContext(context.Background())
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	_, cancel := context.WithCancel(egCtx)
	return &Pool{group: g, cancel: cancel}
}

type future struct {
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

func (f *future) Await() error {
	<-f.done
	return f.err
}

// Cancel cancels the Pool's internal context. No submission observes that
// context: Backend.Go's fn signature takes no context, and the Pool does
// not expose it, so every submitted function, running or waiting for a
// slot, still runs to completion.
func (f *future) Cancel() {
	f.cancel()
}

// Go submits fn, blocking the caller only long enough to acquire a slot
// (per the Pool's SetLimit), then returns immediately with a Future the
// caller awaits separately.
func (p *Pool) Go(fn func() error) deploy.Future {
	f := &future{done: make(chan struct{}), cancel: p.cancel}
	p.group.Go(func() error {
		defer close(f.done)
		f.err = fn()
		return f.err
	})
	return f
}

// Wait blocks until every submission so far has finished, returning the
// first error encountered, if any. Deployments don't need this (they
// await each Future individually), but it's useful for tests and for
// draining a Pool before reuse.
func (p *Pool) Wait() error {
	return p.group.Wait()
}
