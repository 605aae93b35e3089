// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import "strings"

// Rule actions.
const (
	RuleAccept = "accept"
	RuleDrop   = "drop"
)

// Rule is one accept/drop filter over (server, channel, origin, plugin,
// event) tuples. Empty criteria sets match everything; all matching is
// case-insensitive, channels and origins per the server casemapping.
type Rule struct {
	Servers  []string `json:"servers,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Origins  []string `json:"origins,omitempty"`
	Plugins  []string `json:"plugins,omitempty"`
	Events   []string `json:"events,omitempty"`
	Action   string   `json:"action"`
}

// IsValidRuleAction reports whether action is one of accept/drop.
func IsValidRuleAction(action string) bool {
	return action == RuleAccept || action == RuleDrop
}

// RuleTuple is one candidate delivery the rule list decides on. fold is
// the casemapping of the tuple's server, applied to both sides of
// channel/origin comparisons.
type RuleTuple struct {
	Server  string
	Channel string
	Origin  string
	Plugin  string
	Event   string

	fold func(string) string
}

func (t *RuleTuple) folder() func(string) string {
	if t.fold == nil {
		return strings.ToLower
	}

	return t.fold
}

// ruleTuple builds the candidate tuple for delivering event to plugin.
// The pseudo plugin id "" stands for hooks.
func ruleTuple(event BotEvent, plugin string) RuleTuple {
	t := RuleTuple{
		Channel: event.channel(),
		Origin:  event.origin(),
		Plugin:  plugin,
		Event:   event.Name(),
	}

	if srv := event.server(); srv != nil {
		t.Server = srv.ID
		t.fold = srv.state.lower
	}

	return t
}

// match reports whether the rule applies to the tuple: every non-empty
// criteria set must contain the corresponding tuple element.
func (r *Rule) match(t RuleTuple) bool {
	fold := t.folder()

	in := func(set []string, value string, f func(string) string) bool {
		if len(set) == 0 {
			return true
		}

		value = f(value)
		for i := 0; i < len(set); i++ {
			if f(set[i]) == value {
				return true
			}
		}

		return false
	}

	return in(r.Servers, t.Server, strings.ToLower) &&
		in(r.Channels, t.Channel, fold) &&
		in(r.Origins, t.Origin, fold) &&
		in(r.Plugins, t.Plugin, strings.ToLower) &&
		in(r.Events, t.Event, strings.ToLower)
}

// RuleList is the ordered rule set. A rule's identity is its index;
// insertion shifts subsequent indices up. Mutated only on the bot loop.
type RuleList struct {
	rules []Rule
}

// Len returns the number of rules.
func (l *RuleList) Len() int {
	return len(l.rules)
}

// List returns a copy of the rules in order.
func (l *RuleList) List() []Rule {
	out := make([]Rule, len(l.rules))
	copy(out, l.rules)

	return out
}

// Get returns the rule at index, or nil when out of range.
func (l *RuleList) Get(index int) *Rule {
	if index < 0 || index >= len(l.rules) {
		return nil
	}

	return &l.rules[index]
}

// Add appends a rule at the end.
func (l *RuleList) Add(r Rule) {
	l.rules = append(l.rules, r)
}

// Insert places a rule at index; rules at or after index shift up.
// index > Len() appends.
func (l *RuleList) Insert(index int, r Rule) {
	if index < 0 {
		index = 0
	}
	if index >= len(l.rules) {
		l.Add(r)
		return
	}

	l.rules = append(l.rules, Rule{})
	copy(l.rules[index+1:], l.rules[index:])
	l.rules[index] = r
}

// Remove drops the rule at index; rules after it shift down.
func (l *RuleList) Remove(index int) bool {
	if index < 0 || index >= len(l.rules) {
		return false
	}

	l.rules = append(l.rules[:index], l.rules[index+1:]...)

	return true
}

// Move relocates the rule at from to position to, preserving the relative
// order of everything else.
func (l *RuleList) Move(from, to int) bool {
	if from < 0 || from >= len(l.rules) || to < 0 {
		return false
	}
	if to >= len(l.rules) {
		to = len(l.rules) - 1
	}
	if from == to {
		return true
	}

	r := l.rules[from]
	l.rules = append(l.rules[:from], l.rules[from+1:]...)

	l.rules = append(l.rules, Rule{})
	copy(l.rules[to+1:], l.rules[to:])
	l.rules[to] = r

	return true
}

// Clear drops every rule.
func (l *RuleList) Clear() {
	l.rules = nil
}

// Solve decides whether the tuple is delivered: starting from allowed,
// every matching rule in order overwrites the decision with its action.
// An empty list allows everything.
func (l *RuleList) Solve(t RuleTuple) bool {
	allowed := true

	for i := 0; i < len(l.rules); i++ {
		if l.rules[i].match(t) {
			allowed = l.rules[i].Action == RuleAccept
		}
	}

	return allowed
}
