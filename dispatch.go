// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"strings"

	"github.com/araddon/dateparse"
)

// maxNickLength bounds collision-renamed nicknames during the handshake.
const maxNickLength = 30

// handleEvent is the inbound dispatch table: every parsed line lands here
// on the bot loop, mutates the server state, and fans out as a pipeline
// event where one applies.
func (b *Bot) handleEvent(s *Server, e *Event) {
	if !e.Sensitive {
		s.log.Debug("received", "line", e.String())
	}

	switch e.Command {
	case PING:
		s.write(&Event{Command: PONG, Params: e.Params, Trailing: e.Trailing, EmptyTrailing: e.EmptyTrailing})
	case PONG:
		// lastRead already refreshed by the reader.
	case RPL_WELCOME:
		nick := s.handshakeNick
		if len(e.Params) > 0 {
			nick = e.Params[0]
		}
		s.connected(nick)
	case RPL_YOURHOST:
		// Nothing tracked; 004 is authoritative for host/version.
	case RPL_CREATED:
		if created, err := dateparse.ParseAny(strings.TrimPrefix(e.Last(), "This server was created ")); err == nil {
			s.state.compiled = created
		}
	case RPL_MYINFO:
		if len(e.Params) > 2 {
			s.state.daemonHost = e.Params[1]
			s.state.daemonVersion = e.Params[2]
		}
	case RPL_ISUPPORT:
		b.handleISUPPORT(s, e)
	case RPL_TOPIC:
		if len(e.Params) > 1 {
			if ch := s.state.lookupChannel(e.Params[1]); ch != nil {
				ch.Topic = e.Last()
			}
		}
	case RPL_NAMREPLY:
		b.handleNamesReply(s, e)
	case RPL_ENDOFNAMES:
		if len(e.Params) > 1 {
			names := s.state.flushNames(e.Params[1])
			b.emit(NamesEvent{Server: s, Channel: e.Params[1], Names: names})
		}
	case RPL_WHOISUSER, RPL_WHOISSERVER, RPL_WHOISIDLE, RPL_WHOISCHANNELS, RPL_ENDOFWHOIS:
		b.handleWhois(s, e)
	case ERR_NICKNAMEINUSE, ERR_NICKCOLLISION, ERR_UNAVAILRESOURCE:
		b.handleNickCollision(s, e)
	case JOIN:
		b.handleJoin(s, e)
	case PART:
		b.handlePart(s, e)
	case KICK:
		b.handleKick(s, e)
	case QUIT:
		b.handleQuit(s, e)
	case NICK:
		b.handleNick(s, e)
	case MODE:
		b.handleMode(s, e)
	case TOPIC:
		b.handleTopic(s, e)
	case INVITE:
		b.handleInvite(s, e)
	case NOTICE:
		b.handleNotice(s, e)
	case PRIVMSG:
		b.handlePrivmsg(s, e)
	}
}

// isSelf reports whether the source is us, per the server casemapping.
func (s *Server) isSelf(src *Source) bool {
	return src != nil && s.state.lower(src.Name) == s.state.lower(s.Nick())
}

// firstParam returns the leading middle parameter, falling back to the
// trailing argument; some daemons put JOIN/NICK targets in either spot.
func firstParam(e *Event) string {
	if len(e.Params) > 0 {
		return e.Params[0]
	}

	return e.Trailing
}

func (b *Bot) handleISUPPORT(s *Server, e *Event) {
	// Params: [nick, TOKEN[=VALUE]..., ...]; trailing is prose.
	for i := 1; i < len(e.Params); i++ {
		key, value, _ := strings.Cut(e.Params[i], "=")
		if key == "" || strings.HasPrefix(key, "-") {
			continue
		}

		s.state.setOption(key, value)
	}
}

func (b *Bot) handleNamesReply(s *Server, e *Event) {
	// Params: [nick, symbol, channel]; trailing is the entry list.
	if len(e.Params) < 3 {
		return
	}

	folded := s.state.lower(e.Params[2])
	for _, entry := range strings.Fields(e.Trailing) {
		s.state.namesBuf[folded] = append(s.state.namesBuf[folded], entry)
	}
}

func (b *Bot) handleWhois(s *Server, e *Event) {
	if len(e.Params) < 2 {
		return
	}

	nick := e.Params[1]
	folded := s.state.lower(nick)

	w, ok := s.whoisBuf[folded]
	if !ok {
		w = &Whois{Nick: nick}
		s.whoisBuf[folded] = w
	}

	switch e.Command {
	case RPL_WHOISUSER:
		// Params: [me, nick, ident, host, *]; trailing is the realname.
		if len(e.Params) > 3 {
			w.Ident = e.Params[2]
			w.Host = e.Params[3]
		}
		w.Realname = e.Last()
	case RPL_WHOISCHANNELS:
		for _, entry := range strings.Fields(e.Last()) {
			_, name, ok := parseUserPrefix(entry, "@+~&%")
			if !ok {
				name = entry
			}
			w.Channels = append(w.Channels, name)
		}
	case RPL_ENDOFWHOIS:
		delete(s.whoisBuf, folded)
		b.emit(WhoisEvent{Server: s, Whois: *w})
	}
}

func (b *Bot) handleNickCollision(s *Server, e *Event) {
	if s.status != StatusHandshaking {
		return
	}

	next := s.handshakeNick + "_"
	if len(next) > maxNickLength {
		next = next[len(next)-maxNickLength:]
	}

	s.handshakeNick = next
	s.log.Info("nickname in use, retrying", "nick", next)
	s.write(&Event{Command: NICK, Params: []string{next}})
}

func (b *Bot) handleJoin(s *Server, e *Event) {
	channel := firstParam(e)
	if channel == "" || e.Source == nil {
		return
	}

	if s.isSelf(e.Source) {
		key := ""
		for _, target := range s.Config.Channels {
			if s.state.lower(target.Name) == s.state.lower(channel) {
				key = target.Key
				break
			}
		}

		ch := s.state.createChannel(channel, key)
		ch.Joined = true
	} else if ch := s.state.lookupChannel(channel); ch != nil {
		ch.addUser(s.state.lower(e.Source.Name), e.Source.Name, "")
	}

	b.emit(JoinEvent{Server: s, Origin: e.Source, Channel: channel})
}

func (b *Bot) handlePart(s *Server, e *Event) {
	channel := firstParam(e)
	if channel == "" || e.Source == nil {
		return
	}

	reason := ""
	if len(e.Params) > 0 {
		reason = e.Trailing
	}

	if s.isSelf(e.Source) {
		s.state.deleteChannel(channel)
	} else if ch := s.state.lookupChannel(channel); ch != nil {
		ch.deleteUser(s.state.lower(e.Source.Name))
	}

	b.emit(PartEvent{Server: s, Origin: e.Source, Channel: channel, Reason: reason})
}

func (b *Bot) handleKick(s *Server, e *Event) {
	if len(e.Params) < 2 {
		return
	}

	channel, target := e.Params[0], e.Params[1]
	self := s.state.lower(target) == s.state.lower(s.Nick())

	if self {
		key := ""
		for _, t := range s.Config.Channels {
			if s.state.lower(t.Name) == s.state.lower(channel) {
				key = t.Key
				break
			}
		}

		s.state.deleteChannel(channel)

		if s.Config.AutoRejoin {
			s.joinRaw(channel, key)
		}
	} else if ch := s.state.lookupChannel(channel); ch != nil {
		ch.deleteUser(s.state.lower(target))
	}

	b.emit(KickEvent{Server: s, Origin: e.Source, Channel: channel, Target: target, Reason: e.Trailing})
}

func (b *Bot) handleQuit(s *Server, e *Event) {
	if e.Source == nil || s.isSelf(e.Source) {
		return
	}

	// A quit surfaces as one part per shared channel.
	for _, ch := range s.state.deleteUserAll(e.Source.Name) {
		b.emit(PartEvent{Server: s, Origin: e.Source, Channel: ch.Name, Reason: e.Trailing})
	}
}

func (b *Bot) handleNick(s *Server, e *Event) {
	nick := firstParam(e)
	if nick == "" || e.Source == nil {
		return
	}

	s.state.renameUser(e.Source.Name, nick)

	b.emit(NickEvent{Server: s, Origin: e.Source, Nickname: nick})
}

func (b *Bot) handleMode(s *Server, e *Event) {
	if len(e.Params) < 2 {
		return
	}

	target, flags := e.Params[0], e.Params[1]
	args := e.Params[2:]

	if ch := s.state.lookupChannel(target); ch != nil {
		s.state.applyModes(ch, flags, args)
	}

	b.emit(ModeEvent{Server: s, Origin: e.Source, Channel: target, Mode: flags, Args: args})
}

func (b *Bot) handleTopic(s *Server, e *Event) {
	if len(e.Params) < 1 {
		return
	}

	channel := e.Params[0]
	if ch := s.state.lookupChannel(channel); ch != nil {
		ch.Topic = e.Trailing
	}

	b.emit(TopicEvent{Server: s, Origin: e.Source, Channel: channel, Topic: e.Trailing})
}

func (b *Bot) handleInvite(s *Server, e *Event) {
	if len(e.Params) < 1 {
		return
	}

	target := e.Params[0]
	channel := e.Last()
	if len(e.Params) > 1 {
		channel = e.Params[1]
	}

	if s.Config.JoinInvite && s.state.lower(target) == s.state.lower(s.Nick()) {
		s.joinRaw(channel, "")
	}

	b.emit(InviteEvent{Server: s, Origin: e.Source, Channel: channel, Target: target})
}

func (b *Bot) handleNotice(s *Server, e *Event) {
	if len(e.Params) < 1 {
		return
	}

	if ctcp := decodeCTCP(e); ctcp != nil {
		// CTCP replies carried over NOTICE aren't pipeline events.
		return
	}

	b.emit(NoticeEvent{Server: s, Origin: e.Source, Channel: e.Params[0], Message: e.Last()})
}

func (b *Bot) handlePrivmsg(s *Server, e *Event) {
	if len(e.Params) < 1 {
		return
	}

	target := e.Params[0]

	if ctcp := decodeCTCP(e); ctcp != nil {
		if ctcp.Command == CTCP_ACTION {
			b.emit(MeEvent{Server: s, Origin: e.Source, Channel: target, Message: ctcp.Text})
			return
		}

		// Only answer queries addressed directly at us.
		if s.state.lower(target) == s.state.lower(s.Nick()) {
			b.ctcp.call(s, ctcp)
		}
		return
	}

	message := e.Last()

	// A message starting with the command character and naming a loaded
	// plugin turns into a command for that plugin alone.
	if rest, ok := strings.CutPrefix(message, s.Config.CommandChar); ok {
		id, remainder, _ := strings.Cut(rest, " ")

		if plugin := b.plugins.findFold(id); plugin != nil {
			b.emitCommand(MessageEvent{
				Server:    s,
				Origin:    e.Source,
				Channel:   target,
				Message:   strings.TrimLeft(remainder, " "),
				IsCommand: true,
			}, plugin)
			return
		}
	}

	b.emit(MessageEvent{Server: s, Origin: e.Source, Channel: target, Message: message})
}
