// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *Event
	}{
		{name: "empty", raw: "", want: nil},
		{name: "short", raw: "q", want: nil},
		{name: "command only", raw: "PING", want: &Event{Command: "PING"}},
		{name: "lowercased command", raw: "ping 1", want: &Event{Command: "PING", Params: []string{"1"}}},
		{name: "params", raw: "JOIN #chan", want: &Event{Command: "JOIN", Params: []string{"#chan"}}},
		{name: "trailing", raw: "PRIVMSG #chan :hello world", want: &Event{
			Command: "PRIVMSG", Params: []string{"#chan"}, Trailing: "hello world",
		}},
		{name: "empty trailing", raw: "TOPIC #chan :", want: &Event{
			Command: "TOPIC", Params: []string{"#chan"}, EmptyTrailing: true,
		}},
		{name: "prefix", raw: ":nick!user@host PRIVMSG #chan :hi", want: &Event{
			Source:  &Source{Name: "nick", Ident: "user", Host: "host"},
			Command: "PRIVMSG", Params: []string{"#chan"}, Trailing: "hi",
		}},
		{name: "server prefix", raw: ":irc.example.org 001 nick :Welcome", want: &Event{
			Source:  &Source{Name: "irc.example.org"},
			Command: "001", Params: []string{"nick"}, Trailing: "Welcome",
		}},
		{name: "tags skipped", raw: "@time=2021-01-01T00:00:00Z :nick!u@h PRIVMSG #chan :hi", want: &Event{
			Source:  &Source{Name: "nick", Ident: "u", Host: "h"},
			Command: "PRIVMSG", Params: []string{"#chan"}, Trailing: "hi",
		}},
		{name: "tags only", raw: "@tag=1", want: nil},
		{name: "crlf trimmed", raw: "PING :x\r\n", want: &Event{Command: "PING", Trailing: "x"}},
	}

	for _, tt := range tests {
		got := ParseEvent(tt.raw)

		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseEvent(%q) = %#v, want %#v", tt.raw, got, tt.want)
		}
	}
}

func TestEventBytes(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "PING", want: "PING"},
		{raw: "PRIVMSG #chan :hello", want: "PRIVMSG #chan :hello"},
		{raw: ":nick!user@host PRIVMSG #chan :hi", want: ":nick!user@host PRIVMSG #chan :hi"},
		{raw: "TOPIC #chan :", want: "TOPIC #chan :"},
	}

	for _, tt := range tests {
		if got := ParseEvent(tt.raw).String(); got != tt.want {
			t.Errorf("ParseEvent(%q).String() = %q, want %q", tt.raw, got, tt.want)
		}
	}

	// Over-length events are truncated to the 510-byte line limit.
	long := &Event{Command: "PRIVMSG", Params: []string{"#chan"}, Trailing: strings.Repeat("a", 1000)}
	if got := len(long.Bytes()); got != maxLength {
		t.Errorf("len(Bytes()) = %d, want %d", got, maxLength)
	}
}

func TestEventLast(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "PRIVMSG #chan :hello world", want: "hello world"},
		{raw: "JOIN #chan", want: "#chan"},
		{raw: "TOPIC #chan :", want: ""},
		{raw: "PING", want: ""},
	}

	for _, tt := range tests {
		if got := ParseEvent(tt.raw).Last(); got != tt.want {
			t.Errorf("ParseEvent(%q).Last() = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestEventCopy(t *testing.T) {
	event := ParseEvent(":nick!user@host PRIVMSG #chan :hi")
	dup := event.Copy()

	if !reflect.DeepEqual(event, dup) {
		t.Fatalf("Copy() = %#v, want %#v", dup, event)
	}

	dup.Source.Name = "other"
	dup.Params[0] = "#other"

	if event.Source.Name != "nick" || event.Params[0] != "#chan" {
		t.Errorf("Copy() shares memory with the original")
	}
}

func TestEventIsAction(t *testing.T) {
	tests := []struct {
		raw      string
		isAction bool
		stripped string
	}{
		{raw: ":n!u@h PRIVMSG #chan :\001ACTION waves\001", isAction: true, stripped: "waves"},
		{raw: ":n!u@h PRIVMSG #chan :hello", isAction: false, stripped: "hello"},
		{raw: ":n!u@h NOTICE #chan :\001ACTION waves\001", isAction: false},
	}

	for _, tt := range tests {
		event := ParseEvent(tt.raw)

		if got := event.IsAction(); got != tt.isAction {
			t.Errorf("IsAction(%q) = %v, want %v", tt.raw, got, tt.isAction)
		}

		if tt.isAction && event.StripAction() != tt.stripped {
			t.Errorf("StripAction(%q) = %q, want %q", tt.raw, event.StripAction(), tt.stripped)
		}
	}
}
