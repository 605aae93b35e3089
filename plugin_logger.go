// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"fmt"
	"os"
	"path/filepath"
)

// builtinLoader serves the plugins compiled into the daemon.
func builtinLoader() *MemoryLoader {
	l := NewMemoryLoader()
	l.Register("logger", func() Plugin { return &loggerPlugin{} })

	return l
}

// loggerTemplates are the default per-event formats; each is overridable
// through the plugin's templates map.
var loggerTemplates = map[string]string{
	"join":    "#{nickname} joined #{channel}",
	"kick":    "#{nickname} kicked #{target} from #{channel} [#{reason}]",
	"me":      "* #{nickname} #{message}",
	"mode":    "#{nickname} set mode #{mode} on #{channel}",
	"message": "#{nickname}: #{message}",
	"nick":    "#{nickname} is now known as #{new-nickname}",
	"notice":  "-#{nickname}- #{message}",
	"part":    "#{nickname} left #{channel} [#{reason}]",
	"topic":   "#{nickname} changed the topic of #{channel} to: #{topic}",
}

// loggerPlugin appends one formatted line per channel event to a log
// file, or to the daemon log when no file is configured.
type loggerPlugin struct {
	state *PluginState

	file *os.File
}

func (p *loggerPlugin) Meta() PluginMeta {
	return PluginMeta{
		Name:    "logger",
		Author:  "Liam Stanley <me@liamstanley.io>",
		License: "MIT",
		Summary: "log channel activity through per-event templates",
		Version: "1.0.0",
	}
}

func (p *loggerPlugin) DeclaredOptions() []string { return []string{"path"} }

func (p *loggerPlugin) DeclaredTemplates() []string {
	out := make([]string, 0, len(loggerTemplates))
	for name := range loggerTemplates {
		out = append(out, name)
	}

	return out
}

func (p *loggerPlugin) OnLoad(bot *Bot) error {
	p.state = bot.Plugin("logger")

	for name, format := range loggerTemplates {
		if _, ok := p.state.Templates[name]; !ok {
			p.state.Templates[name] = format
		}
	}

	path := p.state.Options["path"]
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	p.file = f

	return nil
}

func (p *loggerPlugin) OnUnload(*Bot) error {
	if p.file != nil {
		return p.file.Close()
	}

	return nil
}

func (p *loggerPlugin) write(bot *Bot, template string, keywords map[string]string) {
	line := p.state.Template(template, keywords)
	if line == "" {
		return
	}

	if p.file != nil {
		fmt.Fprintln(p.file, line)
		return
	}

	bot.Log().Info(line, "plugin", "logger")
}

func (p *loggerPlugin) OnJoin(bot *Bot, e JoinEvent) {
	p.write(bot, "join", map[string]string{
		"server":   e.Server.ID,
		"origin":   originString(e.Origin),
		"nickname": originNick(e.Origin),
		"channel":  e.Channel,
	})
}

func (p *loggerPlugin) OnKick(bot *Bot, e KickEvent) {
	p.write(bot, "kick", map[string]string{
		"server":   e.Server.ID,
		"origin":   originString(e.Origin),
		"nickname": originNick(e.Origin),
		"channel":  e.Channel,
		"target":   e.Target,
		"reason":   e.Reason,
	})
}

func (p *loggerPlugin) OnMe(bot *Bot, e MeEvent) {
	p.write(bot, "me", map[string]string{
		"server":   e.Server.ID,
		"origin":   originString(e.Origin),
		"nickname": originNick(e.Origin),
		"channel":  e.Channel,
		"message":  e.Message,
	})
}

func (p *loggerPlugin) OnMessage(bot *Bot, e MessageEvent) {
	p.write(bot, "message", map[string]string{
		"server":   e.Server.ID,
		"origin":   originString(e.Origin),
		"nickname": originNick(e.Origin),
		"channel":  e.Channel,
		"message":  e.Message,
	})
}

func (p *loggerPlugin) OnMode(bot *Bot, e ModeEvent) {
	p.write(bot, "mode", map[string]string{
		"server":   e.Server.ID,
		"origin":   originString(e.Origin),
		"nickname": originNick(e.Origin),
		"channel":  e.Channel,
		"mode":     e.Mode,
	})
}

func (p *loggerPlugin) OnNick(bot *Bot, e NickEvent) {
	p.write(bot, "nick", map[string]string{
		"server":       e.Server.ID,
		"origin":       originString(e.Origin),
		"nickname":     originNick(e.Origin),
		"new-nickname": e.Nickname,
	})
}

func (p *loggerPlugin) OnNotice(bot *Bot, e NoticeEvent) {
	p.write(bot, "notice", map[string]string{
		"server":   e.Server.ID,
		"origin":   originString(e.Origin),
		"nickname": originNick(e.Origin),
		"channel":  e.Channel,
		"message":  e.Message,
	})
}

func (p *loggerPlugin) OnPart(bot *Bot, e PartEvent) {
	p.write(bot, "part", map[string]string{
		"server":   e.Server.ID,
		"origin":   originString(e.Origin),
		"nickname": originNick(e.Origin),
		"channel":  e.Channel,
		"reason":   e.Reason,
	})
}

func (p *loggerPlugin) OnTopic(bot *Bot, e TopicEvent) {
	p.write(bot, "topic", map[string]string{
		"server":   e.Server.ID,
		"origin":   originString(e.Origin),
		"nickname": originNick(e.Origin),
		"channel":  e.Channel,
		"topic":    e.Topic,
	})
}
