// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTransport runs a bot with a loopback control endpoint and returns a
// dialer for it.
func startTransport(t *testing.T, protocol string) (*Bot, func() net.Conn) {
	t.Helper()

	b := NewBot(BotConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx)
	}()

	transport, err := NewTransport(b, TransportConfig{Host: "127.0.0.1", Port: 0, Protocol: protocol})
	require.NoError(t, err)
	go transport.Serve()

	t.Cleanup(func() {
		transport.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("bot did not shut down")
		}
	})

	addr := transport.Addr().String()

	return b, func() net.Conn {
		conn, derr := net.Dial("tcp", addr)
		require.NoError(t, derr)
		conn.SetDeadline(time.Now().Add(5 * time.Second))
		t.Cleanup(func() { conn.Close() })

		return conn
	}
}

func TestTransportJSONSession(t *testing.T) {
	_, dial := startTransport(t, TransportJSON)

	conn := dial()
	reader := bufio.NewReader(conn)

	// The greeting identifies the daemon and its version.
	line, err := reader.ReadString('\n')
	require.NoError(t, err)

	var greeting map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &greeting))
	assert.Equal(t, "irccd", greeting["program"])
	assert.Equal(t, float64(VersionMajor), greeting["major"])

	roundTrip := func(req map[string]any) map[string]any {
		encoded, merr := json.Marshal(req)
		require.NoError(t, merr)

		_, werr := conn.Write(append(encoded, '\n'))
		require.NoError(t, werr)

		line, rerr := reader.ReadString('\n')
		require.NoError(t, rerr)

		var response map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &response))

		return response
	}

	response := roundTrip(map[string]any{
		"command": "server-connect",
		"name":    "local",
		"host":    "127.0.0.1",
		"port":    1,
	})
	assert.Equal(t, "server-connect", response["command"])
	assert.NotContains(t, response, "error")

	response = roundTrip(map[string]any{"command": "server-list"})
	assert.Equal(t, []any{"local"}, response["list"])

	// Errors carry the code and category.
	response = roundTrip(map[string]any{"command": "server-info", "server": "missing"})
	assert.Equal(t, float64(ServerErrNotFound), response["error"])
	assert.Equal(t, ErrCategoryServer, response["errorCategory"])

	// Garbage gets a bot-category error, not a dropped session.
	_, err = conn.Write([]byte("{not json\n"))
	require.NoError(t, err)

	line, err = reader.ReadString('\n')
	require.NoError(t, err)

	var failure map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &failure))
	assert.Equal(t, float64(BotErrInvalidRequest), failure["error"])
}

func TestTransportASCIISession(t *testing.T) {
	b, dial := startTransport(t, TransportASCII)

	// Register a server without going through the wire so the compact
	// variant has something to act on.
	b.loop.Call(func() {
		_ = b.AddServer("local", ServerConfig{Host: "127.0.0.1", Port: 1})
	})

	conn := dial()
	reader := bufio.NewReader(conn)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "IRCCD 1."), "greeting = %q", line)

	ask := func(request string) string {
		_, werr := conn.Write([]byte(request + "\n"))
		require.NoError(t, werr)

		reply, rerr := reader.ReadString('\n')
		require.NoError(t, rerr)

		return strings.TrimRight(reply, "\r\n")
	}

	assert.Equal(t, "OK local", ask("server-list"))

	// The trailing field swallows the rest of the line.
	assert.Equal(t, "OK", ask("server-message local #chan hello there world"))

	reply := ask("server-message missing #chan hi")
	assert.True(t, strings.HasPrefix(reply, "ERROR server"), "reply = %q", reply)

	reply = ask("bogus-command")
	assert.True(t, strings.HasPrefix(reply, "ERROR"), "reply = %q", reply)
}

func TestTransportSessionGoroutinesReaped(t *testing.T) {
	_, dial := startTransport(t, TransportJSON)

	before := runtime.NumGoroutine()

	for i := 0; i < 20; i++ {
		conn := dial()

		_, err := bufio.NewReader(conn).ReadString('\n')
		require.NoError(t, err)
		conn.Close()
	}

	// Both session goroutines exit once the connection is gone.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before+5 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Errorf("goroutines grew from %d to %d after sessions closed", before, runtime.NumGoroutine())
}

func TestTransportUnixSocket(t *testing.T) {
	b := NewBot(BotConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx)
	}()

	path := t.TempDir() + "/irccd.sock"
	transport, err := NewTransport(b, TransportConfig{Path: path})
	require.NoError(t, err)
	go transport.Serve()

	t.Cleanup(func() {
		transport.Close()
		cancel()
		<-done
	})

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"program":"irccd"`)
}
