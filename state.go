// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"strings"
	"time"

	cmap "github.com/orcaman/concurrent-map"
)

// serverState represents the actively-changing variables within the server
// runtime: joined channels, their members, and the ISUPPORT options the
// server advertised after registration. All mutation happens on the bot
// loop; the concurrent maps keep reads from other goroutines (control
// sessions serializing server-info) safe.
type serverState struct {
	// channels represents all channels the bot is active in, keyed by the
	// casemapped channel name.
	channels cmap.ConcurrentMap
	// options are the ISUPPORT (RPL_PROTOCTL) entries supported by the
	// server at connection time.
	options cmap.ConcurrentMap

	// nick is the nickname the server currently knows us by. May drift from
	// the configured one (collision, services rename).
	nick string

	// network is the NETWORK= ISUPPORT value, if any.
	network string
	// daemonHost/daemonVersion/compiled are general info about the IRC
	// daemon itself, tracked from 002/003.
	daemonHost    string
	daemonVersion string
	compiled      time.Time

	// namesBuf accumulates RPL_NAMREPLY entries until RPL_ENDOFNAMES
	// flushes them, keyed by casemapped channel name.
	namesBuf map[string][]string
}

func newServerState() *serverState {
	s := &serverState{}
	s.reset(true)

	return s
}

// reset resets the state back to its original form.
func (s *serverState) reset(initial bool) {
	maps := []*cmap.ConcurrentMap{&s.channels, &s.options}
	for _, cm := range maps {
		if initial {
			*cm = cmap.New()
		} else {
			cm.Clear()
		}
	}

	s.nick = ""
	s.network = ""
	s.daemonHost = ""
	s.daemonVersion = ""
	s.namesBuf = make(map[string][]string)
}

// casemapping returns the active ISUPPORT casemapping; ascii is the
// fallback for anything we don't understand.
func (s *serverState) casemapping() string {
	if v, ok := s.options.Get("CASEMAPPING"); ok {
		if v == CasemappingRFC1459 {
			return CasemappingRFC1459
		}
	}

	return CasemappingASCII
}

// lower folds a channel or nick according to the server casemapping. Rule
// matching and state keys all go through this.
func (s *serverState) lower(in string) string {
	if s.casemapping() == CasemappingRFC1459 {
		return ToRFC1459(in)
	}

	return strings.ToLower(in)
}

func (s *serverState) chanModes() string {
	if v, ok := s.options.Get("CHANMODES"); ok {
		if modes, sok := v.(string); sok && isValidChannelMode(modes) {
			return modes
		}
	}

	return ModeDefaults
}

func (s *serverState) userPrefixes() string {
	if v, ok := s.options.Get("PREFIX"); ok {
		if prefix, sok := v.(string); sok && isValidUserPrefix(prefix) {
			return prefix
		}
	}

	return DefaultPrefixes
}

func (s *serverState) chanTypes() string {
	if v, ok := s.options.Get("CHANTYPES"); ok {
		if types, sok := v.(string); sok && types != "" {
			return types
		}
	}

	return DefaultChanTypes
}

func (s *serverState) charset() string {
	if v, ok := s.options.Get("CHARSET"); ok {
		if cs, sok := v.(string); sok {
			return cs
		}
	}

	return ""
}

// setOption records a single ISUPPORT token.
func (s *serverState) setOption(key, value string) {
	if key == "NETWORK" {
		s.network = value
	}

	s.options.Set(key, value)
}

// ChannelUser is a tracked member of a channel: the nickname plus the
// accumulated mode characters (o, v, ...) derived from PREFIX.
type ChannelUser struct {
	Nick  string `json:"nick"`
	Modes string `json:"modes"`
}

// hasMode reports whether the member holds the given mode character.
func (u *ChannelUser) hasMode(mode byte) bool {
	return strings.IndexByte(u.Modes, mode) > -1
}

func (u *ChannelUser) setMode(mode byte, add bool) {
	if add {
		if !u.hasMode(mode) {
			u.Modes += string(mode)
		}
		return
	}

	u.Modes = strings.ReplaceAll(u.Modes, string(mode), "")
}

// Channel represents an IRC channel and the state attached to it.
type Channel struct {
	// Name of the channel, as the server spelled it.
	Name string `json:"name"`
	// Key is the channel password used when (re-)joining, if any.
	Key string `json:"key,omitempty"`
	// Topic of the channel.
	Topic string `json:"topic,omitempty"`
	// Joined is false between the join request and the server confirming it.
	Joined bool `json:"joined"`
	// Users is the tracked member list, keyed by casemapped nickname.
	Users cmap.ConcurrentMap `json:"users"`
	// Modes are the known channel modes.
	Modes CModes `json:"-"`
}

// Len returns the count of tracked members in the channel.
func (ch *Channel) Len() int {
	return ch.Users.Count()
}

// UserIn checks to see if a given user is in the channel.
func (ch *Channel) UserIn(folded string) bool {
	return ch.Users.Has(folded)
}

func (ch *Channel) addUser(folded, nick, modes string) *ChannelUser {
	if u, ok := ch.Users.Get(folded); ok {
		usr := u.(*ChannelUser)
		usr.Nick = nick
		return usr
	}

	usr := &ChannelUser{Nick: nick, Modes: modes}
	ch.Users.Set(folded, usr)

	return usr
}

func (ch *Channel) deleteUser(folded string) {
	ch.Users.Remove(folded)
}

func (ch *Channel) lookupUser(folded string) *ChannelUser {
	u, ok := ch.Users.Get(folded)
	if !ok {
		return nil
	}

	usr, ok := u.(*ChannelUser)
	if !ok {
		return nil
	}

	return usr
}

// Nicks returns the current member nicknames, prefix symbols stripped.
func (ch *Channel) Nicks() []string {
	out := make([]string, 0, ch.Users.Count())
	for item := range ch.Users.IterBuffered() {
		if usr, ok := item.Val.(*ChannelUser); ok {
			out = append(out, usr.Nick)
		}
	}

	return out
}

// createChannel creates the channel in state, if not already done.
func (s *serverState) createChannel(name, key string) *Channel {
	folded := s.lower(name)

	if ch, ok := s.channels.Get(folded); ok {
		return ch.(*Channel)
	}

	ch := &Channel{
		Name:  name,
		Key:   key,
		Users: cmap.New(),
		Modes: newCModes(s.chanModes(), s.userPrefixes()),
	}
	s.channels.Set(folded, ch)

	return ch
}

// deleteChannel removes the channel from state, if not already done.
func (s *serverState) deleteChannel(name string) {
	s.channels.Remove(s.lower(name))
}

// lookupChannel returns a reference to a channel, nil returned if no
// results found.
func (s *serverState) lookupChannel(name string) *Channel {
	c, ok := s.channels.Get(s.lower(name))
	if !ok {
		return nil
	}

	ch, ok := c.(*Channel)
	if !ok {
		return nil
	}

	return ch
}

// deleteUserAll removes a user from every channel, returning the channels
// they were removed from. Used for QUIT, which synthesizes a part per
// shared channel.
func (s *serverState) deleteUserAll(nick string) (channels []*Channel) {
	folded := s.lower(nick)

	for item := range s.channels.IterBuffered() {
		ch, ok := item.Val.(*Channel)
		if !ok {
			continue
		}

		if ch.UserIn(folded) {
			ch.deleteUser(folded)
			channels = append(channels, ch)
		}
	}

	return channels
}

// renameUser renames the user in every channel where they're tracked.
func (s *serverState) renameUser(from, to string) {
	folded := s.lower(from)

	if folded == s.lower(s.nick) {
		s.nick = to
	}

	for item := range s.channels.IterBuffered() {
		ch, ok := item.Val.(*Channel)
		if !ok {
			continue
		}

		if old, oldok := ch.Users.Pop(folded); oldok {
			usr := old.(*ChannelUser)
			usr.Nick = to
			ch.Users.Set(s.lower(to), usr)
		}
	}
}

// applyModes merges a channel mode change into the channel and member
// state. Member prefix modes (+o, +v, ...) adjust the targeted member.
func (s *serverState) applyModes(ch *Channel, flags string, args []string) {
	modes := ch.Modes.parse(flags, args)
	ch.Modes.apply(modes)

	prefixModes, _ := parsePrefixes(s.userPrefixes())

	for i := 0; i < len(modes); i++ {
		if modes[i].setting || len(modes[i].args) == 0 {
			continue
		}

		if strings.IndexByte(prefixModes, modes[i].name) == -1 {
			continue
		}

		if usr := ch.lookupUser(s.lower(modes[i].args)); usr != nil {
			usr.setMode(modes[i].name, modes[i].add)
		}
	}
}

// flushNames converts the accumulated RPL_NAMREPLY entries for a channel
// into tracked members. Modes are overwritten, not appended.
func (s *serverState) flushNames(name string) (nicks []string) {
	folded := s.lower(name)

	ch := s.lookupChannel(name)
	entries := s.namesBuf[folded]
	delete(s.namesBuf, folded)

	if ch == nil {
		return nil
	}

	prefixModes, symbols := parsePrefixes(s.userPrefixes())

	for _, entry := range entries {
		prefixSymbols, nick, ok := parseUserPrefix(entry, symbols)
		if !ok {
			// Could be a userhost-in-names entry; keep the nick part.
			if src := ParseSource(entry); src != nil && IsValidNick(src.Name) {
				nick = src.Name
			} else {
				continue
			}
		}

		var memberModes string
		for i := 0; i < len(prefixSymbols); i++ {
			if j := strings.IndexByte(symbols, prefixSymbols[i]); j > -1 && j < len(prefixModes) {
				memberModes += string(prefixModes[j])
			}
		}

		usr := ch.addUser(s.lower(nick), nick, "")
		usr.Modes = memberModes
		nicks = append(nicks, entry)
	}

	return nicks
}
