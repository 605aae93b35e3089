// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Daemon version, served in the control greeting.
const (
	VersionMajor = 1
	VersionMinor = 0
	VersionPatch = 0
)

// Bot is the top-level daemon object: it owns the event loop, the server
// and plugin registries, the rule list, hooks, timers and CTCP handling.
// Everything it owns is mutated on the loop goroutine only.
type Bot struct {
	log  hclog.Logger
	loop *loop

	servers   map[string]*Server
	serverIDs []string

	plugins *pluginHost
	rules   *RuleList
	hooks   *hookRegistry
	timers  *timerService
	ctcp    *CTCP
}

// BotConfig carries the knobs the daemon needs beyond per-server and
// per-plugin configuration.
type BotConfig struct {
	// Logger used by the bot and everything under it. hclog.NewNullLogger()
	// when nil.
	Logger hclog.Logger
	// Base is the root for per-plugin path fallbacks (<base>/plugin/<id>).
	Base string
	// PluginDirs are searched by the native loader for <id>.so files.
	PluginDirs []string
}

// NewBot assembles a bot. Call Run to start it.
func NewBot(config BotConfig) *Bot {
	log := config.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}

	l := newLoop()

	b := &Bot{
		log:     log,
		loop:    l,
		servers: map[string]*Server{},
		rules:   &RuleList{},
		timers:  newTimerService(l),
		ctcp:    newCTCP(),
		hooks:   newHookRegistry(log.Named("hook")),
		plugins: newPluginHost(log.Named("plugin"), config.Base),
	}

	b.plugins.addLoader(builtinLoader())
	b.plugins.addLoader(&NativeLoader{Dirs: config.PluginDirs})

	return b
}

// Log returns the bot logger; plugins use it for their own output.
func (b *Bot) Log() hclog.Logger {
	return b.log
}

// Post schedules fn on the bot loop. Safe from any goroutine.
func (b *Bot) Post(fn func()) {
	b.loop.Post(fn)
}

// Rules returns the live rule list. Loop-owned; control commands and
// plugins touch it from loop callbacks only.
func (b *Bot) Rules() *RuleList {
	return b.rules
}

// CreateTimer registers a stopped timer owned by the given plugin id. The
// callback runs on the bot loop; the timer dies with the plugin.
func (b *Bot) CreateTimer(owner string, kind int, delay time.Duration, callback func()) *Timer {
	return b.timers.Create(owner, kind, delay, callback)
}

// Plugin returns the state record of a loaded plugin, nil when absent.
func (b *Bot) Plugin(id string) *PluginState {
	return b.plugins.get(id)
}

// emit fans one event out: hooks first (they only spawn), then plugins in
// registration order, each gated by the rule engine.
func (b *Bot) emit(event BotEvent) {
	b.hooks.fire(b, event)
	b.plugins.dispatch(b, event)
}

// emitCommand delivers a prefix-directed message to exactly one plugin,
// still gated by the rule engine. Commands don't reach hooks.
func (b *Bot) emitCommand(event MessageEvent, st *PluginState) {
	if !b.rules.Solve(ruleTuple(event, st.ID)) {
		return
	}

	b.plugins.safeCall(st.ID, event.Name(), func() {
		event.deliver(b, st.Plugin)
	})
}

// AddServer registers a new server and starts connecting it.
func (b *Bot) AddServer(id string, config ServerConfig) error {
	if !IsValidID(id) {
		return errServer(ServerErrInvalidIdentifier, "invalid server identifier %q", id)
	}
	if _, ok := b.servers[id]; ok {
		return errServer(ServerErrAlreadyExists, "server %q already exists", id)
	}
	if err := config.validate(); err != nil {
		return err
	}

	s := newServer(b, id, config)
	b.servers[id] = s
	b.serverIDs = append(b.serverIDs, id)

	s.Connect()

	return nil
}

// Server returns a registered server, nil when absent.
func (b *Bot) Server(id string) *Server {
	return b.servers[id]
}

// ServerIDs returns the registered server ids in registration order.
func (b *Bot) ServerIDs() []string {
	out := make([]string, len(b.serverIDs))
	copy(out, b.serverIDs)

	return out
}

// RemoveServer disconnects and forgets a server.
func (b *Bot) RemoveServer(id string, reason string) error {
	s, ok := b.servers[id]
	if !ok {
		return errServer(ServerErrNotFound, "server %q not found", id)
	}

	s.removed = true
	s.Disconnect(reason)

	delete(b.servers, id)
	for i := range b.serverIDs {
		if b.serverIDs[i] == id {
			b.serverIDs = append(b.serverIDs[:i], b.serverIDs[i+1:]...)
			break
		}
	}

	return nil
}

// LoadPlugin loads a plugin by id, optionally from an explicit path.
func (b *Bot) LoadPlugin(id, path string) error {
	return b.plugins.load(b, id, path)
}

// UnloadPlugin unloads and removes a plugin.
func (b *Bot) UnloadPlugin(id string) error {
	return b.plugins.unload(b, id)
}

// ReloadPlugin reloads a plugin in place.
func (b *Bot) ReloadPlugin(id string) error {
	return b.plugins.reload(b, id)
}

// Run processes loop work until ctx is cancelled, then shuts everything
// down: QUIT to every server, unload for every plugin, timers and hooks
// torn down.
func (b *Bot) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)

	go func() {
		<-ctx.Done()

		b.loop.Post(func() {
			b.shutdown()
			cancel()
		})
	}()

	b.loop.Run(runCtx)
}

// shutdown runs on the loop.
func (b *Bot) shutdown() {
	b.log.Info("shutting down")

	for _, id := range b.ServerIDs() {
		b.servers[id].removed = true
		b.servers[id].Disconnect("shutting down")
	}

	for _, id := range b.plugins.ids() {
		if err := b.plugins.unload(b, id); err != nil {
			b.log.Warn("unload during shutdown failed", "plugin", id, "error", err)
		}
	}

	b.timers.destroyAll()
	b.hooks.shutdown()
}
