// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import "time"

// Timer types.
const (
	TimerSingle = iota
	TimerRepeat
)

// Timer is a single-shot or repeating callback bound to the plugin that
// created it. The callback always runs on the bot loop. Start, Stop and
// Restart are idempotent.
type Timer struct {
	svc      *timerService
	owner    string
	kind     int
	delay    time.Duration
	callback func()

	timer   *time.Timer
	running bool
	// gen stamps every scheduled tick; Stop bumps it so a tick already
	// queued on the loop cannot re-arm after a restart.
	gen uint64
	// destroyed timers never fire again, even if a pending tick is
	// already queued on the loop.
	destroyed bool
}

// timerService tracks every live timer so plugin unload can stop and
// destroy the ones the plugin owns. All methods run on the bot loop.
type timerService struct {
	loop   *loop
	timers map[*Timer]struct{}
}

func newTimerService(l *loop) *timerService {
	return &timerService{loop: l, timers: map[*Timer]struct{}{}}
}

// Create registers a new stopped timer owned by the given plugin id.
func (s *timerService) Create(owner string, kind int, delay time.Duration, callback func()) *Timer {
	t := &Timer{
		svc:      s,
		owner:    owner,
		kind:     kind,
		delay:    delay,
		callback: callback,
	}
	s.timers[t] = struct{}{}

	return t
}

// destroyOwned stops and destroys every timer owned by the plugin id.
func (s *timerService) destroyOwned(owner string) {
	for t := range s.timers {
		if t.owner == owner {
			t.Destroy()
		}
	}
}

// destroyAll tears down every timer; used at shutdown.
func (s *timerService) destroyAll() {
	for t := range s.timers {
		t.Destroy()
	}
}

func (t *Timer) schedule() {
	gen := t.gen
	t.timer = time.AfterFunc(t.delay, func() {
		t.svc.loop.Post(func() { t.tick(gen) })
	})
}

// tick runs on the loop.
func (t *Timer) tick(gen uint64) {
	if t.destroyed || !t.running || gen != t.gen {
		return
	}

	if t.kind == TimerRepeat {
		t.schedule()
	} else {
		t.running = false
	}

	t.callback()
}

// Start arms the timer. Already-running timers are left alone.
func (t *Timer) Start() {
	if t.destroyed || t.running {
		return
	}

	t.running = true
	t.schedule()
}

// Stop disarms the timer. A tick already queued on the loop is discarded.
func (t *Timer) Stop() {
	if !t.running {
		return
	}

	t.running = false
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
	}
}

// Restart stops and starts the timer, resetting the delay.
func (t *Timer) Restart() {
	t.Stop()
	t.Start()
}

// Destroy stops the timer and removes it from the service. The timer is
// unusable afterwards.
func (t *Timer) Destroy() {
	t.Stop()
	t.destroyed = true
	delete(t.svc.timers, t)
}
