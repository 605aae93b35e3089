// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
)

// hookDeadline is how long a hook process may run before being asked to
// stop (SIGTERM); hookKillDelay is the grace before SIGKILL.
const (
	hookDeadline  = 30 * time.Second
	hookKillDelay = 5 * time.Second
)

// Hook is an external executable fired per event, with the event name and
// the event's fields as argv.
type Hook struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// hookRegistry owns the hook list and the processes it spawns. Mutation
// happens on the bot loop; spawned processes run free and only log.
type hookRegistry struct {
	log   hclog.Logger
	hooks []Hook

	// cancel stops every in-flight hook at shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

func newHookRegistry(log hclog.Logger) *hookRegistry {
	ctx, cancel := context.WithCancel(context.Background())

	return &hookRegistry{log: log, ctx: ctx, cancel: cancel}
}

func (r *hookRegistry) ids() []string {
	out := make([]string, 0, len(r.hooks))
	for _, h := range r.hooks {
		out = append(out, h.ID)
	}

	return out
}

func (r *hookRegistry) get(id string) *Hook {
	for i := range r.hooks {
		if r.hooks[i].ID == id {
			return &r.hooks[i]
		}
	}

	return nil
}

func (r *hookRegistry) add(id, path string) error {
	if !IsValidID(id) {
		return errHook(HookErrInvalidIdentifier, "invalid hook identifier %q", id)
	}

	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return errHook(HookErrInvalidPath, "invalid hook path %q", path)
	}

	if r.get(id) != nil {
		return errHook(HookErrAlreadyExists, "hook %q already exists", id)
	}

	r.hooks = append(r.hooks, Hook{ID: id, Path: path})

	return nil
}

func (r *hookRegistry) remove(id string) error {
	for i := range r.hooks {
		if r.hooks[i].ID == id {
			r.hooks = append(r.hooks[:i], r.hooks[i+1:]...)
			return nil
		}
	}

	return errHook(HookErrNotFound, "hook %q not found", id)
}

// shutdown terminates every in-flight hook process.
func (r *hookRegistry) shutdown() {
	r.cancel()
}

// fire spawns every registered hook for the event, if the rule engine
// accepts delivery under the pseudo plugin id "". Events with no hook
// argv form (names, whois) are skipped.
func (r *hookRegistry) fire(bot *Bot, event BotEvent) {
	args := event.HookArgs()
	if args == nil || len(r.hooks) == 0 {
		return
	}

	if !bot.rules.Solve(ruleTuple(event, "")) {
		return
	}

	argv := append([]string{event.Name()}, args...)

	for _, h := range r.hooks {
		go r.run(h, argv)
	}
}

// run executes one hook process to completion, capturing output to the
// log. Exit status never fails the pipeline.
func (r *hookRegistry) run(h Hook, argv []string) {
	ctx, cancel := context.WithTimeout(r.ctx, hookDeadline)
	defer cancel()

	cmd := exec.CommandContext(ctx, h.Path, argv...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = hookKillDelay

	out, err := cmd.CombinedOutput()

	if text := strings.TrimSpace(string(out)); text != "" {
		r.log.Debug("hook output", "hook", h.ID, "output", text)
	}

	if err != nil {
		r.log.Warn("hook exited with error", "hook", h.ID, "event", argv[0], "error", err)
		return
	}

	r.log.Debug("hook completed", "hook", h.ID, "event", argv[0])
}
