// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"fmt"
	"strings"

	ini "gopkg.in/ini.v1"
)

// LogsConfig selects the daemon log output.
type LogsConfig struct {
	// Verbose lifts the level from warn to info; Level overrides outright
	// (debug, info, warn).
	Verbose bool
	Level   string
	// Type is console (default) or file; Path names the file sink.
	Type string
	Path string
}

// PluginEntry is one configured plugin: where to find it plus the three
// seeded maps.
type PluginEntry struct {
	ID        string
	Path      string
	Options   map[string]string
	Templates map[string]string
	Paths     map[string]string
}

// Config is the parsed configuration file.
type Config struct {
	Logs LogsConfig

	// Base is the [paths] base directory for per-plugin fallbacks.
	Base string
	// PluginDirs are the [paths] plugin search directories.
	PluginDirs []string

	ServerIDs []string
	Servers   map[string]ServerConfig

	Plugins []PluginEntry
	Rules   []Rule
	Hooks   []Hook

	Transport *TransportConfig
}

// splitList splits a comma or whitespace separated config value.
func splitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}

	if len(out) == 0 {
		return nil
	}

	return out
}

// LoadConfig parses the INI configuration document at path. [rule] and
// [hook] sections repeat; one section per rule/hook.
func LoadConfig(path string) (*Config, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowNonUniqueSections: true,
		InsensitiveKeys:        true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("unable to load configuration %q: %w", path, err)
	}

	c := &Config{Servers: map[string]ServerConfig{}}

	if s, serr := file.GetSection("logs"); serr == nil {
		c.Logs.Verbose = s.Key("verbose").MustBool(false)
		c.Logs.Level = s.Key("level").String()
		c.Logs.Type = s.Key("type").String()
		c.Logs.Path = s.Key("path").String()
	}

	if s, serr := file.GetSection("paths"); serr == nil {
		c.Base = s.Key("base").String()
		c.PluginDirs = splitList(s.Key("plugins").String())
	}

	if s, serr := file.GetSection("transport"); serr == nil {
		c.Transport = &TransportConfig{
			Path:     s.Key("path").String(),
			Host:     s.Key("host").String(),
			Port:     s.Key("port").MustInt(0),
			Protocol: s.Key("protocol").String(),
			CertFile: s.Key("certificate").String(),
			KeyFile:  s.Key("key").String(),
		}
	}

	for _, section := range file.Sections() {
		name := section.Name()

		switch {
		case strings.HasPrefix(name, "server."):
			id := strings.TrimPrefix(name, "server.")
			c.ServerIDs = append(c.ServerIDs, id)
			c.Servers[id] = parseServerSection(section)
		case strings.HasPrefix(name, "plugin."):
			c.Plugins = append(c.Plugins, parsePluginSection(file, strings.TrimPrefix(name, "plugin.")))
		}
	}

	// [rule] and [hook] repeat; order matters for rules.
	if sections, serr := file.SectionsByName("rule"); serr == nil {
		for _, section := range sections {
			c.Rules = append(c.Rules, parseRuleSection(section))
		}
	}

	if sections, serr := file.SectionsByName("hook"); serr == nil {
		for _, section := range sections {
			c.Hooks = append(c.Hooks, Hook{
				ID:   section.Key("id").String(),
				Path: section.Key("path").String(),
			})
		}
	}

	return c, nil
}

func parseServerSection(s *ini.Section) ServerConfig {
	config := ServerConfig{
		Host:          s.Key("hostname").String(),
		Port:          s.Key("port").MustInt(0),
		Password:      s.Key("password").String(),
		Nickname:      s.Key("nickname").String(),
		Username:      s.Key("username").String(),
		Realname:      s.Key("realname").String(),
		TLS:           s.Key("ssl").MustBool(false),
		TLSVerify:     s.Key("ssl-verify").MustBool(false),
		IPv4:          s.Key("ipv4").MustBool(false),
		IPv6:          s.Key("ipv6").MustBool(false),
		AutoRejoin:    s.Key("auto-rejoin").MustBool(false),
		JoinInvite:    s.Key("join-invite").MustBool(false),
		AutoReconnect: s.Key("auto-reconnect").MustBool(true),
		CTCPVersion:   s.Key("ctcp-version").String(),
		CTCPSource:    s.Key("ctcp-source").String(),
		CommandChar:   s.Key("command-char").String(),
		Bind:          s.Key("bind").String(),
		Proxy:         s.Key("proxy").String(),
	}

	// Channels are listed as "#name" or "#name:key".
	for _, entry := range splitList(s.Key("channels").String()) {
		name, key, _ := strings.Cut(entry, ":")
		config.Channels = append(config.Channels, ChannelTarget{Name: name, Key: key})
	}

	return config
}

func parsePluginSection(file *ini.File, id string) PluginEntry {
	entry := PluginEntry{
		ID:        id,
		Options:   map[string]string{},
		Templates: map[string]string{},
		Paths:     map[string]string{},
	}

	if s, err := file.GetSection("plugin." + id); err == nil {
		for _, key := range s.Keys() {
			if key.Name() == "path" {
				entry.Path = key.String()
				continue
			}

			entry.Options[key.Name()] = key.String()
		}
	}

	if s, err := file.GetSection("templates." + id); err == nil {
		for _, key := range s.Keys() {
			entry.Templates[key.Name()] = key.String()
		}
	}

	if s, err := file.GetSection("paths." + id); err == nil {
		for _, key := range s.Keys() {
			entry.Paths[key.Name()] = key.String()
		}
	}

	return entry
}

func parseRuleSection(s *ini.Section) Rule {
	action := s.Key("action").String()
	if !IsValidRuleAction(action) {
		action = RuleAccept
	}

	return Rule{
		Servers:  splitList(s.Key("servers").String()),
		Channels: splitList(s.Key("channels").String()),
		Origins:  splitList(s.Key("origins").String()),
		Plugins:  splitList(s.Key("plugins").String()),
		Events:   splitList(s.Key("events").String()),
		Action:   action,
	}
}

// Apply registers everything the config describes on the bot: rules and
// hooks first, then plugins, then servers (which start connecting).
// Individual failures are logged and skipped; only transport binding is
// fatal, and that happens in the caller.
func (c *Config) Apply(bot *Bot) {
	for _, rule := range c.Rules {
		bot.rules.Add(rule)
	}

	for _, hook := range c.Hooks {
		if err := bot.hooks.add(hook.ID, hook.Path); err != nil {
			bot.log.Warn("skipping configured hook", "hook", hook.ID, "error", err)
		}
	}

	for _, entry := range c.Plugins {
		bot.plugins.seed(entry.ID, entry.Options, entry.Templates, entry.Paths)

		if err := bot.LoadPlugin(entry.ID, entry.Path); err != nil {
			bot.log.Warn("skipping configured plugin", "plugin", entry.ID, "error", err)
		}
	}

	for _, id := range c.ServerIDs {
		if err := bot.AddServer(id, c.Servers[id]); err != nil {
			bot.log.Warn("skipping configured server", "server", id, "error", err)
		}
	}
}
