// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import "context"

// loop serializes all state mutation onto one goroutine. Connection
// readers, control sessions, timers and signal handlers post closures;
// the loop runs them in arrival order. Plugin callbacks therefore never
// race each other.
type loop struct {
	work chan func()
	done chan struct{}
}

func newLoop() *loop {
	return &loop{
		// Buffered so connection readers don't stall on short bursts.
		work: make(chan func(), 512),
		done: make(chan struct{}),
	}
}

// Run processes posted work until ctx is cancelled. Runs on the caller's
// goroutine; everything posted executes here.
func (l *loop) Run(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case fn := <-l.work:
			fn()
		case <-ctx.Done():
			// Drain what's already queued, then stop.
			for {
				select {
				case fn := <-l.work:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Post queues fn for execution on the loop goroutine. Safe from any
// goroutine; no-op after the loop exited.
func (l *loop) Post(fn func()) {
	select {
	case l.work <- fn:
	case <-l.done:
	}
}

// Call runs fn on the loop goroutine and waits for it to finish. Used by
// control sessions that need a synchronous answer. Must not be called
// from the loop itself.
func (l *loop) Call(fn func()) {
	finished := make(chan struct{})

	l.Post(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
	case <-l.done:
	}
}
