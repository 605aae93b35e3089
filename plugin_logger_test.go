// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerPluginWritesFile(t *testing.T) {
	b := NewBot(BotConfig{Base: t.TempDir()})

	out := filepath.Join(t.TempDir(), "chat", "log.txt")
	b.plugins.seed("logger", map[string]string{"path": out}, nil, nil)
	require.NoError(t, b.LoadPlugin("logger", ""))

	srv := testServerRaw(t, b)
	origin := ParseSource("jean!jean@host")

	b.plugins.dispatch(b, JoinEvent{Server: srv, Origin: origin, Channel: "#staff"})
	b.plugins.dispatch(b, MessageEvent{Server: srv, Origin: origin, Channel: "#staff", Message: "hello"})
	b.plugins.dispatch(b, PartEvent{Server: srv, Origin: origin, Channel: "#staff", Reason: "bye"})

	require.NoError(t, b.UnloadPlugin("logger"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "jean joined #staff", lines[0])
	assert.Equal(t, "jean: hello", lines[1])
	assert.Equal(t, "jean left #staff [bye]", lines[2])
}

func TestLoggerPluginTemplateOverride(t *testing.T) {
	b := NewBot(BotConfig{Base: t.TempDir()})

	out := filepath.Join(t.TempDir(), "log.txt")
	b.plugins.seed("logger",
		map[string]string{"path": out},
		map[string]string{"message": "[#{channel}] <#{nickname}> #{message}"},
		nil)
	require.NoError(t, b.LoadPlugin("logger", ""))

	srv := testServerRaw(t, b)
	b.plugins.dispatch(b, MessageEvent{
		Server:  srv,
		Origin:  ParseSource("jean!jean@host"),
		Channel: "#staff",
		Message: "hello",
	})

	require.NoError(t, b.UnloadPlugin("logger"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "[#staff] <jean> hello\n", string(data))
}

func TestLoggerPluginMeta(t *testing.T) {
	p := &loggerPlugin{}
	meta := p.Meta()

	assert.Equal(t, "logger", meta.Name)
	assert.NotEmpty(t, meta.Version)

	assert.Contains(t, p.DeclaredOptions(), "path")
	assert.Contains(t, p.DeclaredTemplates(), "join")
}
