// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"reflect"
	"testing"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *Source
	}{
		{name: "full", raw: "nick!user@hostname.com", want: &Source{Name: "nick", Ident: "user", Host: "hostname.com"}},
		{name: "special chars", raw: "^[]nick!~user@test.host---name.com", want: &Source{Name: "^[]nick", Ident: "~user", Host: "test.host---name.com"}},
		{name: "nick and ident", raw: "a!b", want: &Source{Name: "a", Ident: "b"}},
		{name: "nick and host", raw: "a@b", want: &Source{Name: "a", Host: "b"}},
		{name: "server", raw: "irc.example.org", want: &Source{Name: "irc.example.org"}},
	}

	for _, tt := range tests {
		got := ParseSource(tt.raw)

		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseSource(%q) = %#v, want %#v", tt.raw, got, tt.want)
		}

		if got.String() != tt.raw {
			t.Errorf("ParseSource(%q).String() = %q", tt.raw, got.String())
		}

		if got.Len() != len(tt.raw) {
			t.Errorf("ParseSource(%q).Len() = %d, want %d", tt.raw, got.Len(), len(tt.raw))
		}
	}

	if !ParseSource("nick!user@host").IsHostmask() {
		t.Error("IsHostmask() = false for a full hostmask")
	}

	if !ParseSource("irc.example.org").IsServer() {
		t.Error("IsServer() = false for a bare server name")
	}
}

func TestIsValidChannel(t *testing.T) {
	tests := []struct {
		channel string
		want    bool
	}{
		{channel: "#valid", want: true},
		{channel: "&valid", want: true},
		{channel: "+valid", want: true},
		{channel: "!12345valid", want: true},
		{channel: "#", want: false},
		{channel: "", want: false},
		{channel: "#has space", want: false},
		{channel: "#has,comma", want: false},
		{channel: "nochanprefix", want: false},
		{channel: "!1234", want: false},
	}

	for _, tt := range tests {
		if got := IsValidChannel(tt.channel); got != tt.want {
			t.Errorf("IsValidChannel(%q) = %v, want %v", tt.channel, got, tt.want)
		}
	}
}

func TestIsValidNick(t *testing.T) {
	tests := []struct {
		nick string
		want bool
	}{
		{nick: "valid", want: true},
		{nick: "va-lid", want: true},
		{nick: "[valid]", want: true},
		{nick: "v1", want: true},
		{nick: "", want: false},
		{nick: "1invalid", want: false},
		{nick: "-invalid", want: false},
		{nick: "in valid", want: false},
	}

	for _, tt := range tests {
		if got := IsValidNick(tt.nick); got != tt.want {
			t.Errorf("IsValidNick(%q) = %v, want %v", tt.nick, got, tt.want)
		}
	}
}

func TestIsValidUser(t *testing.T) {
	tests := []struct {
		user string
		want bool
	}{
		{user: "user", want: true},
		{user: "~user", want: true},
		{user: "user.name", want: true},
		{user: "~", want: false},
		{user: "", want: false},
		{user: "-user", want: false},
	}

	for _, tt := range tests {
		if got := IsValidUser(tt.user); got != tt.want {
			t.Errorf("IsValidUser(%q) = %v, want %v", tt.user, got, tt.want)
		}
	}
}

func TestIsValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{id: "local", want: true},
		{id: "srv_1-a", want: true},
		{id: "ABCDEFGHIJKLMNOP", want: true},
		{id: "", want: false},
		{id: "ABCDEFGHIJKLMNOPQ", want: false},
		{id: "has space", want: false},
		{id: "has.dot", want: false},
	}

	for _, tt := range tests {
		if got := IsValidID(tt.id); got != tt.want {
			t.Errorf("IsValidID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestToRFC1459(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "ABC", want: "abc"},
		{in: "[]\\^", want: "{}|~"},
		{in: "Nick[away]", want: "nick{away}"},
		{in: "already", want: "already"},
	}

	for _, tt := range tests {
		if got := ToRFC1459(tt.in); got != tt.want {
			t.Errorf("ToRFC1459(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
