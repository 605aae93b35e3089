// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPlugin records what the host delivers to it.
type testPlugin struct {
	loadErr    error
	loadPanics bool
	panics     bool

	loads    int
	unloads  int
	messages []MessageEvent
	commands []MessageEvent
	joins    []JoinEvent
	parts    []PartEvent
	mes      []MeEvent
	names    []NamesEvent
}

func (p *testPlugin) Meta() PluginMeta {
	return PluginMeta{Name: "test", Version: "0.1.0"}
}

func (p *testPlugin) OnLoad(_ *Bot) error {
	p.loads++
	if p.loadPanics {
		panic("boom")
	}

	return p.loadErr
}

func (p *testPlugin) OnUnload(_ *Bot) error {
	p.unloads++
	return nil
}

func (p *testPlugin) OnMessage(_ *Bot, e MessageEvent) {
	if p.panics {
		panic("boom")
	}

	p.messages = append(p.messages, e)
}

func (p *testPlugin) OnCommand(_ *Bot, e MessageEvent) {
	p.commands = append(p.commands, e)
}

func (p *testPlugin) OnJoin(_ *Bot, e JoinEvent) {
	p.joins = append(p.joins, e)
}

func (p *testPlugin) OnPart(_ *Bot, e PartEvent) {
	p.parts = append(p.parts, e)
}

func (p *testPlugin) OnMe(_ *Bot, e MeEvent) {
	p.mes = append(p.mes, e)
}

func (p *testPlugin) OnNames(_ *Bot, e NamesEvent) {
	p.names = append(p.names, e)
}

// newTestBot builds a bot with a memory loader serving the given plugins.
// Nothing is connected and the loop isn't running; load, unload and
// dispatch all run synchronously on the test goroutine.
func newTestBot(t *testing.T, plugins map[string]*testPlugin) *Bot {
	t.Helper()

	b := NewBot(BotConfig{Base: t.TempDir()})

	ml := NewMemoryLoader()
	for id, p := range plugins {
		plugin := p
		ml.Register(id, func() Plugin { return plugin })
	}
	b.plugins.addLoader(ml)

	return b
}

func testServer(t *testing.T, b *Bot) *Server {
	t.Helper()

	config := ServerConfig{Host: "irc.example.org"}
	require.NoError(t, config.validate())

	return newServer(b, "test", config)
}

func TestPluginLoadValidation(t *testing.T) {
	p := &testPlugin{}
	b := newTestBot(t, map[string]*testPlugin{"sample": p})

	var cerr *ControlError

	err := b.LoadPlugin("no spaces allowed", "")
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, PluginErrInvalidIdentifier, cerr.Code)

	require.NoError(t, b.LoadPlugin("sample", ""))
	assert.Equal(t, 1, p.loads)
	assert.NotNil(t, b.Plugin("sample"))

	err = b.LoadPlugin("sample", "")
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, PluginErrAlreadyExists, cerr.Code)

	err = b.LoadPlugin("missing", "")
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, PluginErrNotFound, cerr.Code)
}

func TestPluginLoadFailureRollsBack(t *testing.T) {
	p := &testPlugin{loadErr: errors.New("refused")}
	b := newTestBot(t, map[string]*testPlugin{"sample": p})

	var cerr *ControlError

	err := b.LoadPlugin("sample", "")
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, PluginErrExecError, cerr.Code)
	assert.Nil(t, b.Plugin("sample"))
}

func TestPluginLoadPanicRollsBack(t *testing.T) {
	p := &testPlugin{loadPanics: true}
	b := newTestBot(t, map[string]*testPlugin{"sample": p})

	var cerr *ControlError

	// A panic in OnLoad counts as a load failure: the error surfaces and
	// the plugin is not registered.
	err := b.LoadPlugin("sample", "")
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, PluginErrExecError, cerr.Code)
	assert.Nil(t, b.Plugin("sample"))
	assert.Empty(t, b.plugins.ids())
}

func TestPluginDispatchIsolation(t *testing.T) {
	bad := &testPlugin{panics: true}
	good := &testPlugin{}
	b := newTestBot(t, map[string]*testPlugin{"bad": bad, "good": good})

	require.NoError(t, b.LoadPlugin("bad", ""))
	require.NoError(t, b.LoadPlugin("good", ""))

	srv := testServer(t, b)
	b.plugins.dispatch(b, MessageEvent{
		Server:  srv,
		Origin:  ParseSource("jean!jean@host"),
		Channel: "#staff",
		Message: "hello",
	})

	// The panicking plugin must not keep the other one from running.
	require.Len(t, good.messages, 1)
	assert.Equal(t, "hello", good.messages[0].Message)
	assert.Equal(t, "#staff", good.messages[0].Channel)
}

func TestPluginDispatchRuleGated(t *testing.T) {
	muted := &testPlugin{}
	open := &testPlugin{}
	b := newTestBot(t, map[string]*testPlugin{"muted": muted, "open": open})

	require.NoError(t, b.LoadPlugin("muted", ""))
	require.NoError(t, b.LoadPlugin("open", ""))

	b.Rules().Add(Rule{Plugins: []string{"muted"}, Action: RuleDrop})

	srv := testServer(t, b)
	b.plugins.dispatch(b, MessageEvent{Server: srv, Origin: ParseSource("jean!j@h"), Channel: "#chan", Message: "hi"})

	assert.Empty(t, muted.messages)
	assert.Len(t, open.messages, 1)
}

func TestPluginCommandDelivery(t *testing.T) {
	target := &testPlugin{}
	other := &testPlugin{}
	b := newTestBot(t, map[string]*testPlugin{"target": target, "other": other})

	require.NoError(t, b.LoadPlugin("target", ""))
	require.NoError(t, b.LoadPlugin("other", ""))

	srv := testServer(t, b)
	event := MessageEvent{
		Server:    srv,
		Origin:    ParseSource("jean!j@h"),
		Channel:   "#chan",
		Message:   "do the thing",
		IsCommand: true,
	}

	b.emitCommand(event, b.Plugin("target"))

	// Exactly the addressed plugin sees it, through OnCommand.
	require.Len(t, target.commands, 1)
	assert.Equal(t, "do the thing", target.commands[0].Message)
	assert.Empty(t, target.messages)
	assert.Empty(t, other.commands)
	assert.Empty(t, other.messages)
}

func TestPluginStateTemplate(t *testing.T) {
	p := &testPlugin{}
	b := newTestBot(t, map[string]*testPlugin{"sample": p})

	b.plugins.seed("sample", nil, map[string]string{"join": "#{nickname} joined #{channel}"}, nil)
	require.NoError(t, b.LoadPlugin("sample", ""))

	st := b.Plugin("sample")
	got := st.Template("join", map[string]string{"nickname": "jean", "channel": "#staff"})
	assert.Equal(t, "jean joined #staff", got)

	assert.Equal(t, "", st.Template("missing", nil))
}

func TestPluginUnload(t *testing.T) {
	p := &testPlugin{}
	b := newTestBot(t, map[string]*testPlugin{"sample": p})

	require.NoError(t, b.LoadPlugin("sample", ""))
	b.CreateTimer("sample", TimerRepeat, 0, func() {})
	require.Len(t, b.timers.timers, 1)

	require.NoError(t, b.UnloadPlugin("sample"))
	assert.Equal(t, 1, p.unloads)
	assert.Nil(t, b.Plugin("sample"))

	// Unload reaps the plugin's timers.
	assert.Empty(t, b.timers.timers)

	var cerr *ControlError
	err := b.UnloadPlugin("sample")
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, PluginErrNotFound, cerr.Code)
}

func TestPluginReloadFallback(t *testing.T) {
	// testPlugin has no OnReload, so reload is unload+load.
	p := &testPlugin{}
	b := newTestBot(t, map[string]*testPlugin{"sample": p})

	require.NoError(t, b.LoadPlugin("sample", ""))
	require.NoError(t, b.ReloadPlugin("sample"))

	assert.Equal(t, 1, p.unloads)
	assert.Equal(t, 2, p.loads)
	assert.NotNil(t, b.Plugin("sample"))
}

func TestPluginFindFold(t *testing.T) {
	p := &testPlugin{}
	b := newTestBot(t, map[string]*testPlugin{"Sample": p})

	require.NoError(t, b.LoadPlugin("Sample", ""))

	assert.NotNil(t, b.plugins.findFold("sample"))
	assert.NotNil(t, b.plugins.findFold("SAMPLE"))
	assert.Nil(t, b.plugins.findFold("other"))
}
