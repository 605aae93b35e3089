// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"fmt"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// PluginMeta describes a plugin to humans; served verbatim by the
// plugin-info control command.
type PluginMeta struct {
	Name    string `json:"name"`
	Author  string `json:"author"`
	License string `json:"license"`
	Summary string `json:"summary"`
	Version string `json:"version"`
}

// Plugin is the minimal contract a plugin implements. Everything else is
// optional: the host probes for the per-event handler interfaces below and
// silently skips missing ones.
//
// All callbacks run on the bot loop. A callback blocks the pipeline until
// it returns; background work goes through the timer service or hooks.
type Plugin interface {
	Meta() PluginMeta
}

// Lifecycle callbacks. OnLoad runs after the host seeded the plugin's
// options/templates/paths; an error aborts the load and the plugin is not
// registered. OnUnload errors are logged but the plugin is removed anyway.
type (
	LoadHandler   interface{ OnLoad(bot *Bot) error }
	UnloadHandler interface{ OnUnload(bot *Bot) error }
	ReloadHandler interface{ OnReload(bot *Bot) error }
)

// Per-event callbacks. OnCommand replaces OnMessage when the message was
// prefix-directed at this plugin.
type (
	ConnectHandler    interface{ OnConnect(bot *Bot, e ConnectEvent) }
	DisconnectHandler interface{ OnDisconnect(bot *Bot, e DisconnectEvent) }
	InviteHandler     interface{ OnInvite(bot *Bot, e InviteEvent) }
	JoinHandler       interface{ OnJoin(bot *Bot, e JoinEvent) }
	KickHandler       interface{ OnKick(bot *Bot, e KickEvent) }
	MessageHandler    interface{ OnMessage(bot *Bot, e MessageEvent) }
	CommandHandler    interface{ OnCommand(bot *Bot, e MessageEvent) }
	MeHandler         interface{ OnMe(bot *Bot, e MeEvent) }
	ModeHandler       interface{ OnMode(bot *Bot, e ModeEvent) }
	NamesHandler      interface{ OnNames(bot *Bot, e NamesEvent) }
	NickHandler       interface{ OnNick(bot *Bot, e NickEvent) }
	NoticeHandler     interface{ OnNotice(bot *Bot, e NoticeEvent) }
	PartHandler       interface{ OnPart(bot *Bot, e PartEvent) }
	TopicHandler      interface{ OnTopic(bot *Bot, e TopicEvent) }
	WhoisHandler      interface{ OnWhois(bot *Bot, e WhoisEvent) }
)

// Declarers let a plugin enumerate the option/template/path keys it
// understands. Unknown keys supplied by the user are still stored, but
// logged as a warning at load time.
type (
	OptionDeclarer   interface{ DeclaredOptions() []string }
	TemplateDeclarer interface{ DeclaredTemplates() []string }
	PathDeclarer     interface{ DeclaredPaths() []string }
)

// pathKeys are the well-known per-plugin path entries; each falls back to
// <base>/plugin/<id> when not configured.
var pathKeys = []string{"cache", "data", "config"}

// PluginState is the host-side record of one loaded plugin: the plugin
// itself plus the three maps owned by the host.
type PluginState struct {
	ID     string
	Plugin Plugin

	// Path the plugin was opened from, kept for reload.
	Path string

	Options   map[string]string
	Templates map[string]string
	Paths     map[string]string
}

// Template expands the named template through the substitution engine
// with the given keywords. Missing templates expand to "".
func (p *PluginState) Template(name string, keywords map[string]string) string {
	return Subst(p.Templates[name], &SubstContext{Keywords: keywords, Attrs: true})
}

// pluginHost owns the ordered plugin registry and the loader chain.
type pluginHost struct {
	log     hclog.Logger
	loaders []Loader

	// base is the fallback root for per-plugin paths.
	base string

	// plugins keeps registration order; delivery order follows it.
	plugins []*PluginState
	index   map[string]*PluginState

	// seeds are config-provided maps applied before OnLoad, keyed by
	// plugin id.
	seedOptions   map[string]map[string]string
	seedTemplates map[string]map[string]string
	seedPaths     map[string]map[string]string
}

func newPluginHost(log hclog.Logger, base string) *pluginHost {
	return &pluginHost{
		log:           log,
		base:          base,
		index:         map[string]*PluginState{},
		seedOptions:   map[string]map[string]string{},
		seedTemplates: map[string]map[string]string{},
		seedPaths:     map[string]map[string]string{},
	}
}

func (h *pluginHost) addLoader(l Loader) {
	h.loaders = append(h.loaders, l)
}

// seed stores config-provided maps for a plugin id, to be applied when
// the plugin loads.
func (h *pluginHost) seed(id string, options, templates, paths map[string]string) {
	if options != nil {
		h.seedOptions[id] = options
	}
	if templates != nil {
		h.seedTemplates[id] = templates
	}
	if paths != nil {
		h.seedPaths[id] = paths
	}
}

func (h *pluginHost) get(id string) *PluginState {
	return h.index[id]
}

// findFold resolves a plugin id case-insensitively; command routing uses
// it so "!Logger" still reaches the logger plugin.
func (h *pluginHost) findFold(id string) *PluginState {
	if st, ok := h.index[id]; ok {
		return st
	}

	for _, st := range h.plugins {
		if strings.EqualFold(st.ID, id) {
			return st
		}
	}

	return nil
}

func (h *pluginHost) ids() []string {
	out := make([]string, 0, len(h.plugins))
	for _, p := range h.plugins {
		out = append(out, p.ID)
	}

	return out
}

// safeCall runs fn, converting a panic into a logged error. One bad
// plugin must not take the bot down. Lifecycle callers treat the
// returned error as the callback failing.
func (h *pluginHost) safeCall(id, event string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("plugin callback panicked", "plugin", id, "event", event,
				"panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("plugin %q panicked during %s: %v", id, event, r)
		}
	}()

	fn()

	return nil
}

// open resolves id (optionally from an explicit path) through the loader
// chain. First loader that returns a plugin wins.
func (h *pluginHost) open(id, path string) (Plugin, error) {
	for _, l := range h.loaders {
		p, err := l.Open(id, path)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}

	return nil, fmt.Errorf("no loader could open plugin %q", id)
}

// load opens and registers the plugin, seeding its maps and running
// OnLoad. An OnLoad failure leaves the registry untouched.
func (h *pluginHost) load(bot *Bot, id, path string) error {
	if !IsValidID(id) {
		return errPlugin(PluginErrInvalidIdentifier, "invalid plugin identifier %q", id)
	}

	if _, ok := h.index[id]; ok {
		return errPlugin(PluginErrAlreadyExists, "plugin %q already exists", id)
	}

	plugin, err := h.open(id, path)
	if err != nil {
		return errPlugin(PluginErrNotFound, "unable to open plugin %q: %v", id, err)
	}

	st := &PluginState{
		ID:        id,
		Plugin:    plugin,
		Path:      path,
		Options:   map[string]string{},
		Templates: map[string]string{},
		Paths:     map[string]string{},
	}

	for k, v := range h.seedOptions[id] {
		st.Options[k] = v
	}
	for k, v := range h.seedTemplates[id] {
		st.Templates[k] = v
	}
	for k, v := range h.seedPaths[id] {
		st.Paths[k] = v
	}

	for _, key := range pathKeys {
		if _, ok := st.Paths[key]; !ok {
			st.Paths[key] = filepath.Join(h.base, "plugin", id)
		}
	}

	h.warnUnknownKeys(st)

	if loader, ok := plugin.(LoadHandler); ok {
		var loadErr error

		callErr := h.safeCall(id, "load", func() {
			// Registered before OnLoad so the plugin can look itself up;
			// rolled back on failure.
			h.index[id] = st
			loadErr = loader.OnLoad(bot)
		})
		if loadErr == nil {
			loadErr = callErr
		}

		if loadErr != nil {
			delete(h.index, id)
			return errPlugin(PluginErrExecError, "plugin %q failed to load: %v", id, loadErr)
		}
	} else {
		h.index[id] = st
	}

	h.plugins = append(h.plugins, st)
	h.log.Info("plugin loaded", "plugin", id, "version", plugin.Meta().Version)

	return nil
}

// warnUnknownKeys logs config keys the plugin did not declare. Undeclared
// keys stay stored.
func (h *pluginHost) warnUnknownKeys(st *PluginState) {
	check := func(kind string, declared []string, have map[string]string) {
		if declared == nil {
			return
		}

		for key := range have {
			known := false
			for _, d := range declared {
				if d == key {
					known = true
					break
				}
			}
			if !known {
				h.log.Warn("plugin does not declare key", "plugin", st.ID, "kind", kind, "key", key)
			}
		}
	}

	if d, ok := st.Plugin.(OptionDeclarer); ok {
		check("option", d.DeclaredOptions(), st.Options)
	}
	if d, ok := st.Plugin.(TemplateDeclarer); ok {
		check("template", d.DeclaredTemplates(), st.Templates)
	}
	if d, ok := st.Plugin.(PathDeclarer); ok {
		check("path", d.DeclaredPaths(), st.Paths)
	}
}

// unload runs OnUnload and removes the plugin. Unload errors are logged;
// the plugin is removed regardless.
func (h *pluginHost) unload(bot *Bot, id string) error {
	st, ok := h.index[id]
	if !ok {
		return errPlugin(PluginErrNotFound, "plugin %q not found", id)
	}

	if unloader, uok := st.Plugin.(UnloadHandler); uok {
		h.safeCall(id, "unload", func() {
			if err := unloader.OnUnload(bot); err != nil {
				h.log.Warn("plugin failed to unload cleanly", "plugin", id, "error", err)
			}
		})
	}

	delete(h.index, id)
	for i := range h.plugins {
		if h.plugins[i] == st {
			h.plugins = append(h.plugins[:i], h.plugins[i+1:]...)
			break
		}
	}

	bot.timers.destroyOwned(id)
	h.log.Info("plugin unloaded", "plugin", id)

	return nil
}

// reload runs OnReload if implemented, otherwise unload+load without
// re-resolving the plugin path.
func (h *pluginHost) reload(bot *Bot, id string) error {
	st, ok := h.index[id]
	if !ok {
		return errPlugin(PluginErrNotFound, "plugin %q not found", id)
	}

	if reloader, rok := st.Plugin.(ReloadHandler); rok {
		var err error
		callErr := h.safeCall(id, "reload", func() { err = reloader.OnReload(bot) })
		if err == nil {
			err = callErr
		}

		if err != nil {
			return errPlugin(PluginErrExecError, "plugin %q failed to reload: %v", id, err)
		}

		return nil
	}

	path := st.Path
	if err := h.unload(bot, id); err != nil {
		return err
	}

	return h.load(bot, id, path)
}

// dispatch delivers the event to every plugin the rule engine accepts,
// in registration order.
func (h *pluginHost) dispatch(bot *Bot, event BotEvent) {
	for _, st := range h.plugins {
		if !bot.rules.Solve(ruleTuple(event, st.ID)) {
			continue
		}

		plugin := st
		h.safeCall(plugin.ID, event.Name(), func() {
			event.deliver(bot, plugin.Plugin)
		})
	}
}
