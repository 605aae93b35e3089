// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

// Standard IRC verbs used by the daemon.
const (
	CAP     = "CAP"
	INVITE  = "INVITE"
	JOIN    = "JOIN"
	KICK    = "KICK"
	MODE    = "MODE"
	NAMES   = "NAMES"
	NICK    = "NICK"
	NOTICE  = "NOTICE"
	PART    = "PART"
	PASS    = "PASS"
	PING    = "PING"
	PONG    = "PONG"
	PRIVMSG = "PRIVMSG"
	QUIT    = "QUIT"
	TOPIC   = "TOPIC"
	USER    = "USER"
	WHOIS   = "WHOIS"
)

// Numerics the dispatcher cares about. Few enough that we keep the RFC names.
const (
	RPL_WELCOME       = "001"
	RPL_YOURHOST      = "002"
	RPL_CREATED       = "003"
	RPL_MYINFO        = "004"
	RPL_ISUPPORT      = "005"
	RPL_WHOISUSER     = "311"
	RPL_WHOISSERVER   = "312"
	RPL_WHOISIDLE     = "317"
	RPL_ENDOFWHOIS    = "318"
	RPL_WHOISCHANNELS = "319"
	RPL_TOPIC         = "332"
	RPL_NAMREPLY      = "353"
	RPL_ENDOFNAMES    = "366"

	ERR_NICKNAMEINUSE   = "433"
	ERR_NICKCOLLISION   = "436"
	ERR_UNAVAILRESOURCE = "437"
)

// Pipeline event names. These are the names rules match against, and the
// first argv entry handed to hooks.
const (
	EventCommand    = "onCommand"
	EventConnect    = "onConnect"
	EventDisconnect = "onDisconnect"
	EventInvite     = "onInvite"
	EventJoin       = "onJoin"
	EventKick       = "onKick"
	EventMe         = "onMe"
	EventMessage    = "onMessage"
	EventMode       = "onMode"
	EventNames      = "onNames"
	EventNick       = "onNick"
	EventNotice     = "onNotice"
	EventPart       = "onPart"
	EventTopic      = "onTopic"
	EventWhois      = "onWhois"
)

// CTCP commands the daemon replies to out of the box.
const (
	CTCP_ACTION     = "ACTION"
	CTCP_CLIENTINFO = "CLIENTINFO"
	CTCP_ERRMSG     = "ERRMSG"
	CTCP_PING       = "PING"
	CTCP_SOURCE     = "SOURCE"
	CTCP_TIME       = "TIME"
	CTCP_VERSION    = "VERSION"
)

// Defaults applied when the server hasn't advertised the matching ISUPPORT
// token yet.
const (
	ModeDefaults     = "beI,k,l,imnpst"
	DefaultPrefixes  = "(ov)@+"
	DefaultChanTypes = "#&"
)

// Casemapping values from ISUPPORT. The daemon understands ascii and
// rfc1459; anything else falls back to ascii.
const (
	CasemappingASCII   = "ascii"
	CasemappingRFC1459 = "rfc1459"
)
