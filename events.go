// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

// BotEvent is one parsed IRC happening flowing through the pipeline. Each
// variant carries the server it arrived on plus variant-specific fields,
// and is never mutated after construction.
//
// Name returns the pipeline event name (onMessage, onJoin, ...) used by
// rule matching. HookArgs returns the argv tail passed to hook processes.
// The unexported accessors feed the rule tuple; deliver invokes the
// matching plugin callback, if the plugin implements it.
type BotEvent interface {
	Name() string
	HookArgs() []string

	server() *Server
	channel() string
	origin() string
	deliver(bot *Bot, plugin Plugin)
}

func originNick(src *Source) string {
	if src == nil {
		return ""
	}

	return src.Name
}

func originString(src *Source) string {
	if src == nil {
		return ""
	}

	return src.String()
}

// ConnectEvent fires once registration completes (001 received) and the
// auto-join channels have been requested.
type ConnectEvent struct {
	Server *Server
}

func (e ConnectEvent) Name() string       { return EventConnect }
func (e ConnectEvent) HookArgs() []string { return []string{e.Server.ID} }
func (e ConnectEvent) server() *Server    { return e.Server }
func (e ConnectEvent) channel() string    { return "" }
func (e ConnectEvent) origin() string     { return "" }
func (e ConnectEvent) deliver(bot *Bot, plugin Plugin) {
	if h, ok := plugin.(ConnectHandler); ok {
		h.OnConnect(bot, e)
	}
}

// DisconnectEvent fires when an established connection is lost or torn
// down, before any reconnect attempt.
type DisconnectEvent struct {
	Server *Server
}

func (e DisconnectEvent) Name() string       { return EventDisconnect }
func (e DisconnectEvent) HookArgs() []string { return []string{e.Server.ID} }
func (e DisconnectEvent) server() *Server    { return e.Server }
func (e DisconnectEvent) channel() string    { return "" }
func (e DisconnectEvent) origin() string     { return "" }
func (e DisconnectEvent) deliver(bot *Bot, plugin Plugin) {
	if h, ok := plugin.(DisconnectHandler); ok {
		h.OnDisconnect(bot, e)
	}
}

// InviteEvent fires when someone invites a target (usually us) to a
// channel.
type InviteEvent struct {
	Server  *Server
	Origin  *Source
	Channel string
	Target  string
}

func (e InviteEvent) Name() string { return EventInvite }
func (e InviteEvent) HookArgs() []string {
	return []string{e.Server.ID, originString(e.Origin), e.Channel, e.Target}
}
func (e InviteEvent) server() *Server { return e.Server }
func (e InviteEvent) channel() string { return e.Channel }
func (e InviteEvent) origin() string  { return originNick(e.Origin) }
func (e InviteEvent) deliver(bot *Bot, plugin Plugin) {
	if h, ok := plugin.(InviteHandler); ok {
		h.OnInvite(bot, e)
	}
}

// JoinEvent fires when a user (possibly us) joins a channel.
type JoinEvent struct {
	Server  *Server
	Origin  *Source
	Channel string
}

func (e JoinEvent) Name() string { return EventJoin }
func (e JoinEvent) HookArgs() []string {
	return []string{e.Server.ID, originString(e.Origin), e.Channel}
}
func (e JoinEvent) server() *Server { return e.Server }
func (e JoinEvent) channel() string { return e.Channel }
func (e JoinEvent) origin() string  { return originNick(e.Origin) }
func (e JoinEvent) deliver(bot *Bot, plugin Plugin) {
	if h, ok := plugin.(JoinHandler); ok {
		h.OnJoin(bot, e)
	}
}

// KickEvent fires when a user is kicked from a channel.
type KickEvent struct {
	Server  *Server
	Origin  *Source
	Channel string
	Target  string
	Reason  string
}

func (e KickEvent) Name() string { return EventKick }
func (e KickEvent) HookArgs() []string {
	return []string{e.Server.ID, originString(e.Origin), e.Channel, e.Target, e.Reason}
}
func (e KickEvent) server() *Server { return e.Server }
func (e KickEvent) channel() string { return e.Channel }
func (e KickEvent) origin() string  { return originNick(e.Origin) }
func (e KickEvent) deliver(bot *Bot, plugin Plugin) {
	if h, ok := plugin.(KickHandler); ok {
		h.OnKick(bot, e)
	}
}

// MessageEvent fires for a PRIVMSG. Channel holds the target the message
// was sent to; for direct messages it is our own nickname. IsCommand is
// set when the message was prefix-directed at a specific plugin, in which
// case only that plugin receives it, through OnCommand.
type MessageEvent struct {
	Server    *Server
	Origin    *Source
	Channel   string
	Message   string
	IsCommand bool
}

func (e MessageEvent) Name() string {
	if e.IsCommand {
		return EventCommand
	}

	return EventMessage
}
func (e MessageEvent) HookArgs() []string {
	return []string{e.Server.ID, originString(e.Origin), e.Channel, e.Message}
}
func (e MessageEvent) server() *Server { return e.Server }
func (e MessageEvent) channel() string { return e.Channel }
func (e MessageEvent) origin() string  { return originNick(e.Origin) }
func (e MessageEvent) deliver(bot *Bot, plugin Plugin) {
	if e.IsCommand {
		if h, ok := plugin.(CommandHandler); ok {
			h.OnCommand(bot, e)
		}
		return
	}

	if h, ok := plugin.(MessageHandler); ok {
		h.OnMessage(bot, e)
	}
}

// MeEvent fires for a CTCP ACTION (/me) PRIVMSG.
type MeEvent struct {
	Server  *Server
	Origin  *Source
	Channel string
	Message string
}

func (e MeEvent) Name() string { return EventMe }
func (e MeEvent) HookArgs() []string {
	return []string{e.Server.ID, originString(e.Origin), e.Channel, e.Message}
}
func (e MeEvent) server() *Server { return e.Server }
func (e MeEvent) channel() string { return e.Channel }
func (e MeEvent) origin() string  { return originNick(e.Origin) }
func (e MeEvent) deliver(bot *Bot, plugin Plugin) {
	if h, ok := plugin.(MeHandler); ok {
		h.OnMe(bot, e)
	}
}

// ModeEvent fires for a channel or user MODE change.
type ModeEvent struct {
	Server  *Server
	Origin  *Source
	Channel string
	Mode    string
	Args    []string
}

func (e ModeEvent) Name() string { return EventMode }
func (e ModeEvent) HookArgs() []string {
	out := []string{e.Server.ID, originString(e.Origin), e.Channel, e.Mode}

	// Hooks always see three mode argument slots.
	for i := 0; i < 3; i++ {
		if i < len(e.Args) {
			out = append(out, e.Args[i])
		} else {
			out = append(out, "")
		}
	}

	return out
}
func (e ModeEvent) server() *Server { return e.Server }
func (e ModeEvent) channel() string { return e.Channel }
func (e ModeEvent) origin() string  { return originNick(e.Origin) }
func (e ModeEvent) deliver(bot *Bot, plugin Plugin) {
	if h, ok := plugin.(ModeHandler); ok {
		h.OnMode(bot, e)
	}
}

// NamesEvent fires when a NAMES listing for a channel completes (366).
// Names carries the raw entries, prefix symbols included.
type NamesEvent struct {
	Server  *Server
	Channel string
	Names   []string
}

func (e NamesEvent) Name() string       { return EventNames }
func (e NamesEvent) HookArgs() []string { return nil }
func (e NamesEvent) server() *Server    { return e.Server }
func (e NamesEvent) channel() string    { return e.Channel }
func (e NamesEvent) origin() string     { return "" }
func (e NamesEvent) deliver(bot *Bot, plugin Plugin) {
	if h, ok := plugin.(NamesHandler); ok {
		h.OnNames(bot, e)
	}
}

// NickEvent fires when a user (possibly us) changes nickname.
type NickEvent struct {
	Server   *Server
	Origin   *Source
	Nickname string
}

func (e NickEvent) Name() string { return EventNick }
func (e NickEvent) HookArgs() []string {
	return []string{e.Server.ID, originString(e.Origin), e.Nickname}
}
func (e NickEvent) server() *Server { return e.Server }
func (e NickEvent) channel() string { return "" }
func (e NickEvent) origin() string  { return originNick(e.Origin) }
func (e NickEvent) deliver(bot *Bot, plugin Plugin) {
	if h, ok := plugin.(NickHandler); ok {
		h.OnNick(bot, e)
	}
}

// NoticeEvent fires for a NOTICE.
type NoticeEvent struct {
	Server  *Server
	Origin  *Source
	Channel string
	Message string
}

func (e NoticeEvent) Name() string { return EventNotice }
func (e NoticeEvent) HookArgs() []string {
	return []string{e.Server.ID, originString(e.Origin), e.Channel, e.Message}
}
func (e NoticeEvent) server() *Server { return e.Server }
func (e NoticeEvent) channel() string { return e.Channel }
func (e NoticeEvent) origin() string  { return originNick(e.Origin) }
func (e NoticeEvent) deliver(bot *Bot, plugin Plugin) {
	if h, ok := plugin.(NoticeHandler); ok {
		h.OnNotice(bot, e)
	}
}

// PartEvent fires when a user (possibly us) leaves a channel. QUITs are
// surfaced as one PartEvent per shared channel.
type PartEvent struct {
	Server  *Server
	Origin  *Source
	Channel string
	Reason  string
}

func (e PartEvent) Name() string { return EventPart }
func (e PartEvent) HookArgs() []string {
	return []string{e.Server.ID, originString(e.Origin), e.Channel, e.Reason}
}
func (e PartEvent) server() *Server { return e.Server }
func (e PartEvent) channel() string { return e.Channel }
func (e PartEvent) origin() string  { return originNick(e.Origin) }
func (e PartEvent) deliver(bot *Bot, plugin Plugin) {
	if h, ok := plugin.(PartHandler); ok {
		h.OnPart(bot, e)
	}
}

// TopicEvent fires when a channel topic changes.
type TopicEvent struct {
	Server  *Server
	Origin  *Source
	Channel string
	Topic   string
}

func (e TopicEvent) Name() string { return EventTopic }
func (e TopicEvent) HookArgs() []string {
	return []string{e.Server.ID, originString(e.Origin), e.Channel, e.Topic}
}
func (e TopicEvent) server() *Server { return e.Server }
func (e TopicEvent) channel() string { return e.Channel }
func (e TopicEvent) origin() string  { return originNick(e.Origin) }
func (e TopicEvent) deliver(bot *Bot, plugin Plugin) {
	if h, ok := plugin.(TopicHandler); ok {
		h.OnTopic(bot, e)
	}
}

// Whois is the accumulated WHOIS reply for one nickname.
type Whois struct {
	Nick     string   `json:"nick"`
	Ident    string   `json:"ident"`
	Host     string   `json:"host"`
	Realname string   `json:"realname"`
	Channels []string `json:"channels,omitempty"`
}

// WhoisEvent fires when a WHOIS exchange completes (318).
type WhoisEvent struct {
	Server *Server
	Whois  Whois
}

func (e WhoisEvent) Name() string       { return EventWhois }
func (e WhoisEvent) HookArgs() []string { return nil }
func (e WhoisEvent) server() *Server    { return e.Server }
func (e WhoisEvent) channel() string    { return "" }
func (e WhoisEvent) origin() string     { return e.Whois.Nick }
func (e WhoisEvent) deliver(bot *Bot, plugin Plugin) {
	if h, ok := plugin.(WhoisHandler); ok {
		h.OnWhois(bot, e)
	}
}
