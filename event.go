// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"bytes"
	"strings"
)

const (
	eventSpace byte = 0x20 // separator
	eventTags  byte = 0x40 // IRCv3 message tag indicator

	maxLength = 510 // maximum length is 510 (2 for line endings)
)

func cutsetFunc(r rune) bool {
	// Characters to trim from prefixes/messages.
	return r == '\r' || r == '\n'
}

// Event represents a single IRC protocol message, see RFC1459 section 2.3.1
//
//    <message>  :: [':' <prefix> <SPACE>] <command> <params> <crlf>
//    <prefix>   :: <servername> | <nick> ['!' <user>] ['@' <host>]
//    <command>  :: <letter>{<letter>} | <number> <number> <number>
//    <SPACE>    :: ' '{' '}
//    <params>   :: <SPACE> [':' <trailing> | <middle> <params>]
//    <middle>   :: <Any *non-empty* sequence of octets not including SPACE or NUL
//                   or CR or LF, the first of which may not be ':'>
//    <trailing> :: <Any, possibly empty, sequence of octets not including NUL or
//                   CR or LF>
//    <crlf>     :: CR LF
type Event struct {
	Source        *Source  // The source of the event.
	Command       string   // the IRC command, e.g. JOIN, PRIVMSG, 001.
	Params        []string // parameters to the command. Commonly nickname, channel, etc.
	Trailing      string   // any trailing data. e.g. with a PRIVMSG, this is the message text.
	EmptyTrailing bool     // if true, trailing prefix (:) is encoded even if Trailing is empty.
	Sensitive     bool     // if the message is sensitive (e.g. PASS) and should not be logged.
}

// ParseEvent takes a raw line and attempts to create an Event struct. Returns
// nil if the event is invalid. Leading IRCv3 message tags ("@tag;... ") are
// treated as an opaque prefix and skipped.
func ParseEvent(raw string) (e *Event) {
	// ignore empty events
	if raw = strings.TrimFunc(raw, cutsetFunc); len(raw) < 2 {
		return nil
	}

	// Skip message tags, if any. We don't track them.
	if raw[0] == eventTags {
		i := strings.IndexByte(raw, ' ')
		if i < 0 || i+1 >= len(raw) {
			return nil
		}

		raw = raw[i+1:]
	}

	i, j := 0, 0
	e = new(Event)

	if raw[0] == prefix {
		// prefix ends with a space
		i = strings.IndexByte(raw, ' ')

		// prefix string must not be empty if the indicator is present
		if i < 2 {
			return nil
		}

		e.Source = ParseSource(raw[1:i])

		i++ // skip space at the end of the prefix
	}

	// find end of command
	j = i + strings.IndexByte(raw[i:], ' ')

	// extract command
	if j < i {
		e.Command = strings.ToUpper(raw[i:])
		return e
	}

	e.Command = strings.ToUpper(raw[i:j])
	j++ // skip space after command

	// find prefix for trailer
	i = strings.IndexByte(raw[j:], prefix)

	if i < 0 || raw[j+i-1] != eventSpace {
		// no trailing argument
		e.Params = strings.Split(raw[j:], " ")
		return e
	}

	// compensate for index on substring
	i = i + j

	// check if we need to parse arguments
	if i > j {
		e.Params = strings.Split(raw[j:i-1], " ")
	}

	e.Trailing = raw[i+1:]

	// we need to re-encode the trailing argument even if it was empty
	if len(e.Trailing) <= 0 {
		e.EmptyTrailing = true
	}

	return e
}

// Copy makes a deep copy of a given event.
func (e *Event) Copy() *Event {
	if e == nil {
		return nil
	}

	newEvent := &Event{}
	*newEvent = *e

	if e.Source != nil {
		newEvent.Source = &Source{}
		*newEvent.Source = *e.Source
	}

	if len(e.Params) > 0 {
		newEvent.Params = make([]string, len(e.Params))
		copy(newEvent.Params, e.Params)
	}

	return newEvent
}

// Last returns the last argument of the event: the trailing argument if the
// line carried one, otherwise the final middle parameter.
func (e *Event) Last() string {
	if len(e.Trailing) > 0 || e.EmptyTrailing {
		return e.Trailing
	}

	if len(e.Params) > 0 {
		return e.Params[len(e.Params)-1]
	}

	return ""
}

// Len calculates the length of the string representation of event.
func (e *Event) Len() (length int) {
	if e.Source != nil {
		length = e.Source.Len() + 2 // include prefix and trailing space
	}

	length = length + len(e.Command)

	if len(e.Params) > 0 {
		length = length + len(e.Params)

		for i := 0; i < len(e.Params); i++ {
			length = length + len(e.Params[i])
		}
	}

	if len(e.Trailing) > 0 || e.EmptyTrailing {
		length = length + len(e.Trailing) + 2 // include prefix and space
	}

	return
}

// Bytes returns a []byte representation of event.
//
// Per RFC2812 section 2.3, messages should not exceed 512 characters in
// length. This method forces that limit by discarding any characters
// exceeding the length limit.
func (e *Event) Bytes() []byte {
	buffer := new(bytes.Buffer)

	// event prefix
	if e.Source != nil {
		buffer.WriteByte(prefix)
		e.Source.writeTo(buffer)
		buffer.WriteByte(eventSpace)
	}

	// command is required
	buffer.WriteString(e.Command)

	// space separated list of arguments
	if len(e.Params) > 0 {
		buffer.WriteByte(eventSpace)
		buffer.WriteString(strings.Join(e.Params, string(eventSpace)))
	}

	if len(e.Trailing) > 0 || e.EmptyTrailing {
		buffer.WriteByte(eventSpace)
		buffer.WriteByte(prefix)
		buffer.WriteString(e.Trailing)
	}

	// we need the limit the buffer length
	if buffer.Len() > maxLength {
		buffer.Truncate(maxLength)
	}

	return buffer.Bytes()
}

// String returns a string representation of this event.
func (e *Event) String() string {
	return string(e.Bytes())
}

// IsAction checks to see if the event is a PRIVMSG, and is an ACTION (/me.)
func (e *Event) IsAction() bool {
	if len(e.Trailing) <= 0 || e.Command != PRIVMSG {
		return false
	}

	if !strings.HasPrefix(e.Trailing, "\001ACTION") || !strings.HasSuffix(e.Trailing, "\001") {
		return false
	}

	return true
}

// StripAction strips the action encoding from a PRIVMSG ACTION (/me.)
func (e *Event) StripAction() string {
	if !e.IsAction() || len(e.Trailing) < 9 {
		return e.Trailing
	}

	return e.Trailing[8 : len(e.Trailing)-1]
}
