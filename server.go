// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
)

// Server lifecycle states.
const (
	StatusDisconnected = iota
	StatusConnecting
	StatusHandshaking
	StatusConnected
	StatusWaitingReconnect
)

// statusNames maps lifecycle states to the strings served over the
// control protocol.
var statusNames = map[int]string{
	StatusDisconnected:     "disconnected",
	StatusConnecting:       "connecting",
	StatusHandshaking:      "handshaking",
	StatusConnected:        "connected",
	StatusWaitingReconnect: "waiting-reconnect",
}

// Keepalive thresholds: a quiet connection gets a PING at pingDelay and
// is dropped at timeoutDelay.
const (
	pingDelay    = 120 * time.Second
	timeoutDelay = 300 * time.Second
)

// Reconnect backoff bounds.
const (
	backoffInitial = 1 * time.Second
	backoffMax     = 30 * time.Second
	// A connection that held this long resets the backoff sequence.
	backoffResetAfter = 60 * time.Second
)

// ChannelTarget is one auto-join channel: name plus optional key.
type ChannelTarget struct {
	Name string `json:"name"`
	Key  string `json:"key,omitempty"`
}

// ServerConfig is everything needed to establish and maintain one IRC
// server connection.
type ServerConfig struct {
	Host     string `json:"hostname"`
	Port     int    `json:"port"`
	Password string `json:"-"`

	Nickname string `json:"nickname"`
	Username string `json:"username"`
	Realname string `json:"realname"`

	TLS       bool `json:"ssl"`
	TLSVerify bool `json:"sslVerify"`
	IPv4      bool `json:"ipv4"`
	IPv6      bool `json:"ipv6"`

	AutoRejoin    bool `json:"autoRejoin"`
	JoinInvite    bool `json:"joinInvite"`
	AutoReconnect bool `json:"autoReconnect"`

	CTCPVersion string `json:"ctcpVersion,omitempty"`
	CTCPSource  string `json:"ctcpSource,omitempty"`

	// CommandChar prefixes plugin-directed messages. Defaults to "!".
	CommandChar string `json:"commandChar,omitempty"`

	// Bind is an optional local address for the outgoing socket; Proxy an
	// optional SOCKS proxy URL to dial through.
	Bind  string `json:"-"`
	Proxy string `json:"-"`

	Channels []ChannelTarget `json:"channels"`
}

// validate normalizes the config, filling defaults, and reports the first
// problem found.
func (c *ServerConfig) validate() error {
	if c.Host == "" {
		return errServer(ServerErrInvalidHostname, "hostname must not be empty")
	}

	if c.Port == 0 {
		if c.TLS {
			c.Port = 6697
		} else {
			c.Port = 6667
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return errServer(ServerErrInvalidPort, "port %d out of range", c.Port)
	}

	if c.Nickname == "" {
		c.Nickname = "irccd"
	}
	if !IsValidNick(c.Nickname) {
		return errServer(ServerErrInvalidNickname, "invalid nickname %q", c.Nickname)
	}

	if c.Username == "" {
		c.Username = c.Nickname
	}
	if c.Realname == "" {
		c.Realname = c.Nickname
	}
	if c.CommandChar == "" {
		c.CommandChar = "!"
	}

	return nil
}

// Server is one configured IRC server: connection, protocol state and the
// reconnect machinery. All fields are owned by the bot loop; the reader
// goroutine only posts into it.
type Server struct {
	ID     string
	Config ServerConfig

	bot   *Bot
	log   hclog.Logger
	state *serverState

	status int
	conn   *ircConn

	// gen increments per established connection so posts from a dead
	// reader goroutine are ignored.
	gen int

	backoff        *backoff.ExponentialBackOff
	reconnectTimer *time.Timer
	keepalive      *Timer
	connectedAt    time.Time
	pingSent       bool

	// handshakeNick is the nickname currently being negotiated, mutated
	// on 433 collisions.
	handshakeNick string

	// whoisBuf accumulates WHOIS numerics until 318, keyed by folded nick.
	whoisBuf map[string]*Whois

	// removed marks a server deleted from the registry while its teardown
	// is still settling; it must never reconnect.
	removed bool
}

func newServer(bot *Bot, id string, config ServerConfig) *Server {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = backoffInitial
	b.MaxInterval = backoffMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	return &Server{
		ID:       id,
		Config:   config,
		bot:      bot,
		log:      bot.log.Named("server").With("server", id),
		state:    newServerState(),
		backoff:  b,
		whoisBuf: map[string]*Whois{},
	}
}

// Status returns the lifecycle state as a string.
func (s *Server) Status() string {
	return statusNames[s.status]
}

// Nick returns the nickname the server currently knows us by.
func (s *Server) Nick() string {
	if s.state.nick != "" {
		return s.state.nick
	}

	return s.Config.Nickname
}

func (s *Server) ctcpVersion() string {
	if s.Config.CTCPVersion != "" {
		return s.Config.CTCPVersion
	}

	return "irccd (github.com/lrstanley/irccd)"
}

func (s *Server) ctcpSource() string {
	if s.Config.CTCPSource != "" {
		return s.Config.CTCPSource
	}

	return "https://github.com/lrstanley/irccd"
}

func (s *Server) dialOptions() dialOptions {
	opts := dialOptions{
		network:  "tcp",
		bind:     s.Config.Bind,
		proxyURL: s.Config.Proxy,
	}

	if s.Config.IPv4 && !s.Config.IPv6 {
		opts.network = "tcp4"
	} else if s.Config.IPv6 && !s.Config.IPv4 {
		opts.network = "tcp6"
	}

	if s.Config.TLS {
		opts.tlsConfig = &tls.Config{
			ServerName:         s.Config.Host,
			InsecureSkipVerify: !s.Config.TLSVerify,
		}
	}

	return opts
}

// Connect starts a connection attempt. No-op unless the server is
// disconnected or waiting to reconnect.
func (s *Server) Connect() {
	if s.status != StatusDisconnected && s.status != StatusWaitingReconnect {
		return
	}

	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}

	s.status = StatusConnecting
	addr := net.JoinHostPort(s.Config.Host, strconv.Itoa(s.Config.Port))
	opts := s.dialOptions()
	gen := s.gen + 1

	s.log.Info("connecting", "addr", addr, "tls", s.Config.TLS)

	// Dialing blocks; do it off-loop and post the outcome back.
	go func() {
		conn, err := newConn(addr, opts)

		s.bot.loop.Post(func() {
			if s.status != StatusConnecting || s.removed {
				if conn != nil {
					conn.Close()
				}
				return
			}

			if err != nil {
				s.log.Warn("connect failed", "error", err)
				s.lost()
				return
			}

			s.established(conn, gen)
		})
	}()
}

// established transitions into the handshake and starts the reader.
func (s *Server) established(conn *ircConn, gen int) {
	s.conn = conn
	s.gen = gen
	s.status = StatusHandshaking
	s.pingSent = false
	s.connectedAt = time.Now()
	s.state.reset(false)

	if s.Config.Password != "" {
		s.write(&Event{Command: PASS, Params: []string{s.Config.Password}, Sensitive: true})
	}

	s.handshakeNick = s.Config.Nickname
	s.write(&Event{Command: NICK, Params: []string{s.handshakeNick}})
	s.write(&Event{Command: USER, Params: []string{s.Config.Username, "8", "*"}, Trailing: s.Config.Realname})

	go s.readLoop(conn, gen)

	if s.keepalive == nil {
		s.keepalive = s.bot.timers.Create("", TimerRepeat, 30*time.Second, s.checkKeepalive)
	}
	s.keepalive.Restart()
}

// readLoop decodes lines off-loop and posts them in. Runs until the
// connection dies.
func (s *Server) readLoop(conn *ircConn, gen int) {
	for {
		event, err := conn.decode()
		if err != nil {
			s.bot.loop.Post(func() {
				if s.gen != gen || s.conn != conn {
					return
				}

				s.log.Warn("read error", "error", err)
				s.lost()
			})
			return
		}

		if event == nil {
			continue
		}

		s.bot.loop.Post(func() {
			if s.gen != gen || s.conn != conn {
				return
			}

			s.bot.handleEvent(s, event)
		})
	}
}

// checkKeepalive runs on the loop every 30s while a connection exists.
func (s *Server) checkKeepalive() {
	if s.conn == nil {
		return
	}

	idle := s.conn.idle()

	if idle >= timeoutDelay {
		s.log.Warn("connection timed out", "idle", idle)
		s.lost()
		return
	}

	if idle >= pingDelay && !s.pingSent {
		s.pingSent = true
		s.write(&Event{Command: PING, Params: []string{fmt.Sprintf("%d", time.Now().UnixNano())}})
	}

	if idle < pingDelay {
		s.pingSent = false
	}
}

// connected finalizes registration: 001 arrived.
func (s *Server) connected(welcomeNick string) {
	s.status = StatusConnected
	s.connectedAt = time.Now()
	s.state.nick = welcomeNick

	s.log.Info("connected", "nick", welcomeNick)

	for _, ch := range s.Config.Channels {
		s.joinRaw(ch.Name, ch.Key)
	}

	s.bot.emit(ConnectEvent{Server: s})
}

// lost tears the connection down and decides whether to reconnect. Safe
// to call from any state with or without a live conn.
func (s *Server) lost() {
	hadConn := s.conn != nil

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if s.keepalive != nil {
		s.keepalive.Stop()
	}

	wasUp := s.status == StatusConnected
	s.state.reset(false)

	if hadConn || wasUp {
		s.bot.emit(DisconnectEvent{Server: s})
	}

	if s.removed || !s.Config.AutoReconnect {
		s.status = StatusDisconnected
		return
	}

	if wasUp && time.Since(s.connectedAt) >= backoffResetAfter {
		s.backoff.Reset()
	}

	delay := s.backoff.NextBackOff()
	s.status = StatusWaitingReconnect
	s.log.Info("reconnecting", "delay", delay)

	s.reconnectTimer = time.AfterFunc(delay, func() {
		s.bot.loop.Post(func() {
			if s.status == StatusWaitingReconnect && !s.removed {
				s.Connect()
			}
		})
	})
}

// Disconnect sends QUIT (when connected) and stops the server without
// scheduling a reconnect.
func (s *Server) Disconnect(reason string) {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}

	if s.conn != nil {
		s.write(&Event{Command: QUIT, Trailing: reason, EmptyTrailing: true})
		s.conn.Close()
		s.conn = nil
	}
	if s.keepalive != nil {
		s.keepalive.Stop()
	}

	wasUp := s.status == StatusConnected
	s.status = StatusDisconnected
	s.state.reset(false)

	if wasUp {
		s.bot.emit(DisconnectEvent{Server: s})
	}
}

// Reconnect forces a disconnect/connect cycle with a fresh backoff.
func (s *Server) Reconnect() {
	s.Disconnect("reconnecting")
	s.backoff.Reset()
	s.Connect()
}

// write serializes one event to the wire. Oversized lines are truncated
// by the encoder; callers that can split do so beforehand.
func (s *Server) write(e *Event) {
	if s.conn == nil {
		return
	}

	if err := s.conn.encode(e); err != nil {
		s.log.Warn("write error", "error", err)
		s.lost()
		return
	}

	if !e.Sensitive {
		s.log.Debug("sent", "line", e.String())
	}
}

// sendText delivers text as cmd (PRIVMSG/NOTICE) to target, splitting
// over-length payloads across lines.
func (s *Server) sendText(cmd, target, text string) {
	for _, chunk := range splitPayload(text, payloadBudget(cmd, target)) {
		s.write(&Event{Command: cmd, Params: []string{target}, Trailing: chunk, EmptyTrailing: true})
	}
}

func (s *Server) sendCTCPReply(target, cmd, text string) {
	s.write(&Event{Command: NOTICE, Params: []string{target}, Trailing: encodeCTCPRaw(cmd, text)})
}

func (s *Server) joinRaw(channel, key string) {
	params := []string{channel}
	if key != "" {
		params = append(params, key)
	}

	s.write(&Event{Command: JOIN, Params: params})
}

// Join requests a channel join, remembering the key for auto-rejoin.
func (s *Server) Join(channel, key string) error {
	if !IsValidChannel(channel) {
		return errServer(ServerErrInvalidChannel, "invalid channel %q", channel)
	}

	found := false
	for i := range s.Config.Channels {
		if s.state.lower(s.Config.Channels[i].Name) == s.state.lower(channel) {
			found = true
			if key != "" {
				s.Config.Channels[i].Key = key
			}
			break
		}
	}
	if !found {
		s.Config.Channels = append(s.Config.Channels, ChannelTarget{Name: channel, Key: key})
	}

	s.joinRaw(channel, key)

	return nil
}

// Part leaves a channel and forgets it from the auto-join list.
func (s *Server) Part(channel, reason string) error {
	if !IsValidChannel(channel) {
		return errServer(ServerErrInvalidChannel, "invalid channel %q", channel)
	}

	for i := range s.Config.Channels {
		if s.state.lower(s.Config.Channels[i].Name) == s.state.lower(channel) {
			s.Config.Channels = append(s.Config.Channels[:i], s.Config.Channels[i+1:]...)
			break
		}
	}

	s.write(&Event{Command: PART, Params: []string{channel}, Trailing: reason})

	return nil
}

// Kick removes target from channel.
func (s *Server) Kick(channel, target, reason string) error {
	if !IsValidChannel(channel) {
		return errServer(ServerErrInvalidChannel, "invalid channel %q", channel)
	}
	if !IsValidNick(target) {
		return errServer(ServerErrInvalidNickname, "invalid nickname %q", target)
	}

	s.write(&Event{Command: KICK, Params: []string{channel, target}, Trailing: reason})

	return nil
}

// Topic sets the channel topic.
func (s *Server) Topic(channel, topic string) error {
	if !IsValidChannel(channel) {
		return errServer(ServerErrInvalidChannel, "invalid channel %q", channel)
	}

	s.write(&Event{Command: TOPIC, Params: []string{channel}, Trailing: topic, EmptyTrailing: true})

	return nil
}

// Invite invites target to channel.
func (s *Server) Invite(channel, target string) error {
	if !IsValidChannel(channel) {
		return errServer(ServerErrInvalidChannel, "invalid channel %q", channel)
	}
	if !IsValidNick(target) {
		return errServer(ServerErrInvalidNickname, "invalid nickname %q", target)
	}

	s.write(&Event{Command: INVITE, Params: []string{target, channel}})

	return nil
}

// Mode applies a mode change to a channel (or our own user when channel
// is our nick).
func (s *Server) Mode(channel, mode string, args []string) error {
	if channel == "" {
		return errServer(ServerErrInvalidChannel, "invalid channel %q", channel)
	}
	if mode == "" {
		return errServer(ServerErrInvalidMode, "mode must not be empty")
	}

	s.write(&Event{Command: MODE, Params: append([]string{channel, mode}, args...)})

	return nil
}

// SetNick requests a nickname change, and updates the configured one so
// reconnects keep it.
func (s *Server) SetNick(nick string) error {
	if !IsValidNick(nick) {
		return errServer(ServerErrInvalidNickname, "invalid nickname %q", nick)
	}

	s.Config.Nickname = nick
	s.write(&Event{Command: NICK, Params: []string{nick}})

	return nil
}

// Message sends a PRIVMSG to target (channel or nick).
func (s *Server) Message(target, message string) error {
	if target == "" {
		return errServer(ServerErrInvalidChannel, "invalid target %q", target)
	}
	if message == "" {
		return errServer(ServerErrInvalidMessage, "message must not be empty")
	}

	s.sendText(PRIVMSG, target, message)

	return nil
}

// Me sends a CTCP ACTION (/me) to target.
func (s *Server) Me(target, message string) error {
	if target == "" {
		return errServer(ServerErrInvalidChannel, "invalid target %q", target)
	}
	if message == "" {
		return errServer(ServerErrInvalidMessage, "message must not be empty")
	}

	// Keep the closing delimiter inside the line limit: the framing costs
	// two delimiters, the tag, and the separating space.
	if max := payloadBudget(PRIVMSG, target) - (len(CTCP_ACTION) + 3); max > 0 && len(message) > max {
		message = message[:max]
	}

	s.write(&Event{
		Command:  PRIVMSG,
		Params:   []string{target},
		Trailing: encodeCTCPRaw(CTCP_ACTION, message),
	})

	return nil
}

// Notice sends a NOTICE to target.
func (s *Server) Notice(target, message string) error {
	if target == "" {
		return errServer(ServerErrInvalidChannel, "invalid target %q", target)
	}
	if message == "" {
		return errServer(ServerErrInvalidMessage, "message must not be empty")
	}

	s.sendText(NOTICE, target, message)

	return nil
}

// Whois requests WHOIS information; the reply surfaces as a WhoisEvent
// once 318 arrives.
func (s *Server) Whois(nick string) error {
	if !IsValidNick(nick) {
		return errServer(ServerErrInvalidNickname, "invalid nickname %q", nick)
	}

	s.write(&Event{Command: WHOIS, Params: []string{nick}})

	return nil
}

// Names requests a NAMES listing; the reply surfaces as a NamesEvent.
func (s *Server) Names(channel string) error {
	if !IsValidChannel(channel) {
		return errServer(ServerErrInvalidChannel, "invalid channel %q", channel)
	}

	s.write(&Event{Command: NAMES, Params: []string{channel}})

	return nil
}

// SendRaw writes a raw IRC line.
func (s *Server) SendRaw(raw string) error {
	e := ParseEvent(raw)
	if e == nil {
		return errServer(ServerErrInvalidMessage, "unparseable line")
	}

	s.write(e)

	return nil
}
