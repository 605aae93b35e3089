// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[logs]
verbose = true
level = debug
type = file
path = /var/log/irccd.log

[paths]
base = /var/lib/irccd
plugins = /usr/lib/irccd/plugins, /usr/local/lib/irccd/plugins

[transport]
host = 127.0.0.1
port = 6320
protocol = json

[server.local]
hostname = irc.example.org
port = 6697
ssl = true
ssl-verify = true
nickname = bot
command-char = !
channels = #staff:secret #general

[server.backup]
hostname = irc.backup.org
auto-reconnect = false

[plugin.logger]
format = compact

[templates.logger]
join = #{nickname} joined #{channel}

[paths.logger]
cache = /var/cache/irccd/logger

[rule]
servers = local
action = drop

[rule]
channels = #staff
action = accept

[hook]
id = notify
path = /usr/bin/notify
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "irccd.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadConfig(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.True(t, c.Logs.Verbose)
	assert.Equal(t, "debug", c.Logs.Level)
	assert.Equal(t, "file", c.Logs.Type)
	assert.Equal(t, "/var/log/irccd.log", c.Logs.Path)

	assert.Equal(t, "/var/lib/irccd", c.Base)
	assert.Equal(t, []string{"/usr/lib/irccd/plugins", "/usr/local/lib/irccd/plugins"}, c.PluginDirs)

	require.NotNil(t, c.Transport)
	assert.Equal(t, "127.0.0.1", c.Transport.Host)
	assert.Equal(t, 6320, c.Transport.Port)
	assert.Equal(t, TransportJSON, c.Transport.Protocol)

	require.Equal(t, []string{"local", "backup"}, c.ServerIDs)

	local := c.Servers["local"]
	assert.Equal(t, "irc.example.org", local.Host)
	assert.Equal(t, 6697, local.Port)
	assert.True(t, local.TLS)
	assert.True(t, local.TLSVerify)
	assert.Equal(t, "bot", local.Nickname)
	assert.True(t, local.AutoReconnect, "auto-reconnect defaults on")
	require.Len(t, local.Channels, 2)
	assert.Equal(t, ChannelTarget{Name: "#staff", Key: "secret"}, local.Channels[0])
	assert.Equal(t, ChannelTarget{Name: "#general"}, local.Channels[1])

	backup := c.Servers["backup"]
	assert.False(t, backup.AutoReconnect)

	require.Len(t, c.Plugins, 1)
	logger := c.Plugins[0]
	assert.Equal(t, "logger", logger.ID)
	assert.Equal(t, map[string]string{"format": "compact"}, logger.Options)
	assert.Equal(t, "#{nickname} joined #{channel}", logger.Templates["join"])
	assert.Equal(t, "/var/cache/irccd/logger", logger.Paths["cache"])

	// Rule order is preserved: drop first, then the accept exception.
	require.Len(t, c.Rules, 2)
	assert.Equal(t, RuleDrop, c.Rules[0].Action)
	assert.Equal(t, []string{"local"}, c.Rules[0].Servers)
	assert.Equal(t, RuleAccept, c.Rules[1].Action)
	assert.Equal(t, []string{"#staff"}, c.Rules[1].Channels)

	require.Len(t, c.Hooks, 1)
	assert.Equal(t, Hook{ID: "notify", Path: "/usr/bin/notify"}, c.Hooks[0])
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.conf"))
	assert.Error(t, err)
}

func TestConfigApply(t *testing.T) {
	// A minimal config with no servers: rules and plugins only, so Apply
	// doesn't try to dial anything.
	content := `
[rule]
action = drop

[plugin.logger]

[templates.logger]
message = custom #{message}
`

	c, err := LoadConfig(writeConfig(t, content))
	require.NoError(t, err)

	b := NewBot(BotConfig{Base: t.TempDir()})
	c.Apply(b)

	assert.Equal(t, 1, b.Rules().Len())

	st := b.Plugin("logger")
	require.NotNil(t, st, "builtin logger plugin loads from config")
	assert.Equal(t, "custom #{message}", st.Templates["message"])
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "a, b, c", want: []string{"a", "b", "c"}},
		{in: "a b\tc", want: []string{"a", "b", "c"}},
		{in: "one", want: []string{"one"}},
		{in: "", want: nil},
		{in: " , ", want: nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, splitList(tt.in), "splitList(%q)", tt.in)
	}
}
