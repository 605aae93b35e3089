// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"testing"
	"time"
)

func TestSubstKeywords(t *testing.T) {
	ctx := &SubstContext{Keywords: map[string]string{"x": "y", "nickname": "jean", "channel": "#staff"}}

	tests := []struct {
		in   string
		want string
	}{
		{in: "#{x}", want: "y"},
		{in: "#{missing}", want: ""},
		{in: "##", want: "#"},
		{in: "$$", want: "$"},
		{in: "@@", want: "@"},
		{in: "#{nickname} joined #{channel}", want: "jean joined #staff"},
		{in: "plain text", want: "plain text"},
		{in: "#{unterminated", want: "#{unterminated"},
		{in: "100# done", want: "100# done"},
	}

	for _, tt := range tests {
		if got := Subst(tt.in, ctx); got != tt.want {
			t.Errorf("Subst(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSubstDate(t *testing.T) {
	ctx := &SubstContext{Time: time.Date(2020, 6, 1, 12, 30, 0, 0, time.UTC)}

	if got := Subst("#{date:%Y-%m-%d}", ctx); got != "2020-06-01" {
		t.Errorf("Subst(date) = %q, want %q", got, "2020-06-01")
	}

	if got := Subst("#{date:%H:%M}", ctx); got != "12:30" {
		t.Errorf("Subst(date) = %q, want %q", got, "12:30")
	}
}

func TestSubstEnv(t *testing.T) {
	t.Setenv("IRCCD_TEST_VALUE", "hello")

	if got := Subst("${IRCCD_TEST_VALUE}", &SubstContext{Env: true}); got != "hello" {
		t.Errorf("Subst(env enabled) = %q, want %q", got, "hello")
	}

	// Environment access is opt-in.
	if got := Subst("${IRCCD_TEST_VALUE}", &SubstContext{}); got != "" {
		t.Errorf("Subst(env disabled) = %q, want %q", got, "")
	}
}

func TestSubstShellDisabledByDefault(t *testing.T) {
	if got := Subst("$(echo pwned)", &SubstContext{}); got != "" {
		t.Errorf("Subst(shell disabled) = %q, want %q", got, "")
	}

	if got := Subst("$(echo ok)", &SubstContext{Shell: true}); got != "ok" {
		t.Errorf("Subst(shell enabled) = %q, want %q", got, "ok")
	}
}

func TestSubstAttributes(t *testing.T) {
	ctx := &SubstContext{Attrs: true}

	tests := []struct {
		in   string
		want string
	}{
		{in: "@{red}", want: "\x0304"},
		{in: "@{red,white}", want: "\x0304,00"},
		{in: "@{light-green}x", want: "\x0309x"},
		{in: "@bword@o", want: "\x02word\x0f"},
		{in: "@iitalic@o", want: "\x1ditalic\x0f"},
		{in: "@uunder@o", want: "\x1funder\x0f"},
		{in: "@{nosuchcolor}", want: "@{nosuchcolor}"},
		{in: "@x", want: "@x"},
	}

	for _, tt := range tests {
		if got := Subst(tt.in, ctx); got != tt.want {
			t.Errorf("Subst(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	// Attribute escapes are opt-in; tokens pass through verbatim without.
	if got := Subst("@{red}@b", &SubstContext{}); got != "@{red}@b" {
		t.Errorf("Subst(attrs disabled) = %q, want %q", got, "@{red}@b")
	}
}
