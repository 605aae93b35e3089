// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"
)

func TestServerConfigValidate(t *testing.T) {
	config := ServerConfig{Host: "irc.example.org"}
	if err := config.validate(); err != nil {
		t.Fatalf("validate() error: %v", err)
	}

	if config.Port != 6667 {
		t.Errorf("Port = %d, want 6667", config.Port)
	}
	if config.Nickname != "irccd" || config.Username != "irccd" || config.Realname != "irccd" {
		t.Errorf("identity defaults = %q/%q/%q", config.Nickname, config.Username, config.Realname)
	}
	if config.CommandChar != "!" {
		t.Errorf("CommandChar = %q, want %q", config.CommandChar, "!")
	}

	tlsConfig := ServerConfig{Host: "irc.example.org", TLS: true}
	if err := tlsConfig.validate(); err != nil {
		t.Fatalf("validate() error: %v", err)
	}
	if tlsConfig.Port != 6697 {
		t.Errorf("TLS Port = %d, want 6697", tlsConfig.Port)
	}

	tests := []struct {
		name   string
		config ServerConfig
		code   int
	}{
		{name: "no hostname", config: ServerConfig{}, code: ServerErrInvalidHostname},
		{name: "bad port", config: ServerConfig{Host: "h", Port: 70000}, code: ServerErrInvalidPort},
		{name: "bad nickname", config: ServerConfig{Host: "h", Nickname: "1bad"}, code: ServerErrInvalidNickname},
	}

	for _, tt := range tests {
		err := tt.config.validate()
		cerr, ok := err.(*ControlError)
		if !ok {
			t.Errorf("%s: validate() = %v, want *ControlError", tt.name, err)
			continue
		}
		if cerr.Code != tt.code {
			t.Errorf("%s: code = %d, want %d", tt.name, cerr.Code, tt.code)
		}
	}
}

func TestServerBackoffBounded(t *testing.T) {
	b := NewBot(BotConfig{})
	config := ServerConfig{Host: "irc.example.org"}
	if err := config.validate(); err != nil {
		t.Fatal(err)
	}

	s := newServer(b, "test", config)

	// Delays grow monotonically and never exceed the cap.
	prev := time.Duration(0)
	for i := 0; i < 10; i++ {
		delay := s.backoff.NextBackOff()

		if delay < prev {
			t.Fatalf("attempt %d: delay %v < previous %v", i, delay, prev)
		}
		if delay > backoffMax {
			t.Fatalf("attempt %d: delay %v exceeds %v", i, delay, backoffMax)
		}

		prev = delay
	}

	if prev != backoffMax {
		t.Errorf("delay settled at %v, want %v", prev, backoffMax)
	}

	s.backoff.Reset()
	if got := s.backoff.NextBackOff(); got != backoffInitial {
		t.Errorf("delay after Reset = %v, want %v", got, backoffInitial)
	}
}

func TestServerDialOptions(t *testing.T) {
	b := NewBot(BotConfig{})
	config := ServerConfig{Host: "irc.example.org", IPv6: true, TLS: true}
	if err := config.validate(); err != nil {
		t.Fatal(err)
	}

	s := newServer(b, "test", config)
	opts := s.dialOptions()

	if opts.network != "tcp6" {
		t.Errorf("network = %q, want tcp6", opts.network)
	}
	if opts.tlsConfig == nil {
		t.Fatal("tlsConfig = nil with TLS enabled")
	}
	if opts.tlsConfig.ServerName != "irc.example.org" {
		t.Errorf("ServerName = %q", opts.tlsConfig.ServerName)
	}
	// ssl-verify off means certificates aren't checked.
	if !opts.tlsConfig.InsecureSkipVerify {
		t.Error("InsecureSkipVerify = false without ssl-verify")
	}
}

func TestServerSendTextSplits(t *testing.T) {
	b := NewBot(BotConfig{})
	config := ServerConfig{Host: "irc.example.org"}
	if err := config.validate(); err != nil {
		t.Fatal(err)
	}

	s := newServer(b, "test", config)

	client, remote := net.Pipe()
	defer client.Close()
	defer remote.Close()

	s.conn = wrapConn(client)
	s.status = StatusConnected

	lines := make(chan string, 8)
	go func() {
		r := bufio.NewReader(remote)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- line
		}
	}()

	long := strings.Repeat("abcd ", 150) // well past one line
	if err := s.Message("#chan", long); err != nil {
		t.Fatalf("Message() error: %v", err)
	}

	var got []string
	var rebuilt string
	for i := 0; i < 2; i++ {
		select {
		case line := <-lines:
			got = append(got, line)
			rest, _ := strings.CutPrefix(line, "PRIVMSG #chan :")
			rebuilt += strings.TrimSuffix(rest, "\r\n")
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d lines", len(got))
		}
	}

	for _, line := range got {
		if !strings.HasPrefix(line, "PRIVMSG #chan :") {
			t.Errorf("unexpected line %q", line)
		}
		if len(line) > 512 {
			t.Errorf("line length %d exceeds 512", len(line))
		}
	}

	if rebuilt != long {
		t.Error("split chunks do not reassemble the original message")
	}
}

func TestServerMeBoundsPayload(t *testing.T) {
	b := NewBot(BotConfig{})
	config := ServerConfig{Host: "irc.example.org"}
	if err := config.validate(); err != nil {
		t.Fatal(err)
	}

	s := newServer(b, "test", config)

	client, remote := net.Pipe()
	defer client.Close()
	defer remote.Close()

	s.conn = wrapConn(client)
	s.status = StatusConnected

	lines := make(chan string, 1)
	go func() {
		line, err := bufio.NewReader(remote).ReadString('\n')
		if err != nil {
			close(lines)
			return
		}
		lines <- line
	}()

	if err := s.Me("#chan", strings.Repeat("x", 600)); err != nil {
		t.Fatalf("Me() error: %v", err)
	}

	var line string
	select {
	case line = <-lines:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the action line")
	}

	if len(line) > 512 {
		t.Errorf("line length %d exceeds 512", len(line))
	}

	trimmed := strings.TrimSuffix(line, "\r\n")
	if !strings.HasPrefix(trimmed, "PRIVMSG #chan :\x01ACTION x") {
		t.Errorf("unexpected line %q", trimmed)
	}
	// An over-length message is cut, never the closing delimiter.
	if !strings.HasSuffix(trimmed, "\x01") {
		t.Errorf("action not terminated: %q", trimmed)
	}
}

func TestServerOpValidation(t *testing.T) {
	b := NewBot(BotConfig{})
	config := ServerConfig{Host: "irc.example.org"}
	if err := config.validate(); err != nil {
		t.Fatal(err)
	}

	s := newServer(b, "test", config)

	tests := []struct {
		name string
		err  error
	}{
		{name: "join bad channel", err: s.Join("nochan", "")},
		{name: "kick bad nick", err: s.Kick("#chan", "1bad", "")},
		{name: "invite bad channel", err: s.Invite("bad", "nick")},
		{name: "message empty", err: s.Message("#chan", "")},
		{name: "nick invalid", err: s.SetNick("1bad")},
		{name: "whois invalid", err: s.Whois("1bad")},
		{name: "names invalid", err: s.Names("bad")},
	}

	for _, tt := range tests {
		if _, ok := tt.err.(*ControlError); !ok {
			t.Errorf("%s: error = %v, want *ControlError", tt.name, tt.err)
		}
	}
}

func TestServerJoinRemembersKey(t *testing.T) {
	b := NewBot(BotConfig{})
	config := ServerConfig{Host: "irc.example.org"}
	if err := config.validate(); err != nil {
		t.Fatal(err)
	}

	s := newServer(b, "test", config)

	if err := s.Join("#secret", "hunter2"); err != nil {
		t.Fatalf("Join() error: %v", err)
	}
	if len(s.Config.Channels) != 1 || s.Config.Channels[0].Key != "hunter2" {
		t.Fatalf("Channels = %#v", s.Config.Channels)
	}

	if err := s.Part("#secret", "bye"); err != nil {
		t.Fatalf("Part() error: %v", err)
	}
	if len(s.Config.Channels) != 0 {
		t.Fatalf("Channels = %#v after Part", s.Config.Channels)
	}
}
