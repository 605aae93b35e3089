// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"strings"
	"time"
)

// ctcpDelim is the delimiter used for CTCP formatted events/messages.
const ctcpDelim byte = 0x01 // Prefix and suffix for CTCP messages.

// CTCPEvent is the necessary information from an IRC message.
type CTCPEvent struct {
	// Source is the author of the CTCP event.
	Source *Source
	// Command is the type of CTCP event. E.g. PING, TIME, VERSION.
	Command string
	// Text is the raw arguments following the command.
	Text string
	// Reply is true if the CTCP event is intended to be a reply to a
	// previous CTCP (e.g, if we sent one).
	Reply bool
}

// decodeCTCP decodes an incoming CTCP event, if it is CTCP. nil is returned
// if the incoming event does not match a valid CTCP.
func decodeCTCP(e *Event) *CTCPEvent {
	// http://www.irchelp.org/protocol/ctcpspec.html

	// Must be targeting a user/channel, AND trailing must have
	// DELIM+TAG+DELIM minimum (at least 3 chars).
	if e == nil || len(e.Params) != 1 || len(e.Trailing) < 3 {
		return nil
	}

	if e.Command != PRIVMSG && e.Command != NOTICE {
		return nil
	}

	if e.Trailing[0] != ctcpDelim || e.Trailing[len(e.Trailing)-1] != ctcpDelim {
		return nil
	}

	// Strip delimiters.
	text := e.Trailing[1 : len(e.Trailing)-1]

	s := strings.IndexByte(text, eventSpace)

	// Check to see if it only contains a tag.
	if s < 0 {
		for i := 0; i < len(text); i++ {
			// Check for A-Z, 0-9.
			if (text[i] < 0x41 || text[i] > 0x5A) && (text[i] < 0x30 || text[i] > 0x39) {
				return nil
			}
		}

		return &CTCPEvent{
			Source:  e.Source,
			Command: text,
			Reply:   e.Command == NOTICE,
		}
	}

	// Loop through checking the tag first.
	for i := 0; i < s; i++ {
		// Check for A-Z, 0-9.
		if (text[i] < 0x41 || text[i] > 0x5A) && (text[i] < 0x30 || text[i] > 0x39) {
			return nil
		}
	}

	return &CTCPEvent{
		Source:  e.Source,
		Command: text[0:s],
		Text:    text[s+1:],
		Reply:   e.Command == NOTICE,
	}
}

// encodeCTCPRaw encodes a raw CTCP command and argument text into a
// delimited string.
func encodeCTCPRaw(cmd, text string) (out string) {
	if len(cmd) <= 0 {
		return ""
	}

	out = string(ctcpDelim) + cmd

	if len(text) > 0 {
		out += string(eventSpace) + text
	}

	return out + string(ctcpDelim)
}

// CTCPHandler is a type that represents the function necessary to
// implement a CTCP handler.
type CTCPHandler func(srv *Server, ctcp CTCPEvent)

// CTCP handles the storage and execution of CTCP handlers against incoming
// CTCP events. Handlers run on the bot loop; no locking needed.
type CTCP struct {
	// handlers is a map of CTCP message -> functions.
	handlers map[string]CTCPHandler
}

// newCTCP returns a new clean CTCP handler with the default set registered.
func newCTCP() *CTCP {
	c := &CTCP{handlers: map[string]CTCPHandler{}}
	c.addDefaultHandlers()

	return c
}

// call executes the necessary CTCP handler for the incoming event/CTCP
// command.
func (c *CTCP) call(srv *Server, event *CTCPEvent) {
	if _, ok := c.handlers[event.Command]; !ok {
		// Send a ERRMSG reply, if we know who sent it.
		if !event.Reply && event.Source != nil && IsValidNick(event.Source.Name) {
			srv.sendCTCPReply(event.Source.Name, CTCP_ERRMSG, "that is an unknown CTCP query")
		}
		return
	}

	c.handlers[event.Command](srv, *event)
}

// parseCMD parses a CTCP command/tag, ensuring it's valid. If not, an empty
// string is returned.
func (c *CTCP) parseCMD(cmd string) string {
	cmd = strings.ToUpper(cmd)

	for i := 0; i < len(cmd); i++ {
		// Check for A-Z, 0-9.
		if (cmd[i] < 0x41 || cmd[i] > 0x5A) && (cmd[i] < 0x30 || cmd[i] > 0x39) {
			return ""
		}
	}

	return cmd
}

// Set saves handler for execution upon a matching incoming CTCP event.
func (c *CTCP) Set(cmd string, handler CTCPHandler) {
	if cmd = c.parseCMD(cmd); cmd == "" {
		return
	}

	c.handlers[cmd] = handler
}

// Clear removes the currently setup handler for cmd, if one is set.
func (c *CTCP) Clear(cmd string) {
	if cmd = c.parseCMD(cmd); cmd == "" {
		return
	}

	delete(c.handlers, cmd)
}

// addDefaultHandlers adds some useful default CTCP response handlers.
func (c *CTCP) addDefaultHandlers() {
	c.Set(CTCP_PING, handleCTCPPing)
	c.Set(CTCP_VERSION, handleCTCPVersion)
	c.Set(CTCP_SOURCE, handleCTCPSource)
	c.Set(CTCP_TIME, handleCTCPTime)
	c.Set(CTCP_CLIENTINFO, handleCTCPClientInfo)
}

// handleCTCPPing replies with a ping and whatever was originally requested.
func handleCTCPPing(srv *Server, ctcp CTCPEvent) {
	if ctcp.Reply {
		return
	}
	srv.sendCTCPReply(ctcp.Source.Name, CTCP_PING, ctcp.Text)
}

// handleCTCPVersion replies with the configured version string.
func handleCTCPVersion(srv *Server, ctcp CTCPEvent) {
	if ctcp.Reply {
		return
	}
	srv.sendCTCPReply(ctcp.Source.Name, CTCP_VERSION, srv.ctcpVersion())
}

// handleCTCPSource replies with the configured source location.
func handleCTCPSource(srv *Server, ctcp CTCPEvent) {
	if ctcp.Reply {
		return
	}
	srv.sendCTCPReply(ctcp.Source.Name, CTCP_SOURCE, srv.ctcpSource())
}

// handleCTCPTime replies with an RFC 1123 (Z) formatted version of the
// local time.
func handleCTCPTime(srv *Server, ctcp CTCPEvent) {
	if ctcp.Reply {
		return
	}
	srv.sendCTCPReply(ctcp.Source.Name, CTCP_TIME, ":"+time.Now().Format(time.RFC1123Z))
}

// handleCTCPClientInfo replies with the list of supported CTCP queries.
func handleCTCPClientInfo(srv *Server, ctcp CTCPEvent) {
	if ctcp.Reply {
		return
	}
	srv.sendCTCPReply(
		ctcp.Source.Name, CTCP_CLIENTINFO,
		strings.Join([]string{CTCP_ACTION, CTCP_CLIENTINFO, CTCP_PING, CTCP_SOURCE, CTCP_TIME, CTCP_VERSION}, " "),
	)
}
