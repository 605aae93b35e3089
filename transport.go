// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"bufio"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
)

// Per-session limits: inbound lines are capped at 128 KiB, the outbound
// queue at 1 MiB. Breaching either terminates the session; the listener
// keeps accepting.
const (
	transportReadCap  = 128 * 1024
	transportWriteCap = 1024 * 1024
)

// Control protocol variants.
const (
	TransportJSON  = "json"
	TransportASCII = "ascii"
)

// asciiCommands is the subset the compact protocol variant carries, each
// with the fields its positional tokens map to.
var asciiCommands = map[string][]string{
	"server-disconnect": {"server"},
	"server-list":       {},
	"server-message":    {"server", "target", "message"},
	"server-me":         {"server", "target", "message"},
	"server-mode":       {"server", "channel", "mode"},
	"server-nick":       {"server", "nickname"},
	"server-notice":     {"server", "target", "message"},
	"server-part":       {"server", "channel", "reason"},
	"server-topic":      {"server", "channel", "topic"},
}

// TransportConfig describes the control endpoint: a Unix-domain socket
// path, or a TCP host/port, optionally behind TLS.
type TransportConfig struct {
	// Path binds a Unix-domain socket when set; Host/Port bind TCP
	// otherwise.
	Path string
	Host string
	Port int

	// Protocol selects the framing: json (default) or ascii.
	Protocol string

	// CertFile/KeyFile enable TLS on TCP endpoints.
	CertFile string
	KeyFile  string
}

// Transport is the local control server. Sessions serialize their work
// onto the bot loop; the transport's own goroutines never touch bot
// state directly.
type Transport struct {
	bot      *Bot
	log      hclog.Logger
	config   TransportConfig
	listener net.Listener
}

// NewTransport binds the control endpoint. Failure to bind is fatal for
// the daemon; the caller exits non-zero.
func NewTransport(bot *Bot, config TransportConfig) (*Transport, error) {
	if config.Protocol == "" {
		config.Protocol = TransportJSON
	}
	if config.Protocol != TransportJSON && config.Protocol != TransportASCII {
		return nil, fmt.Errorf("unknown transport protocol %q", config.Protocol)
	}

	var listener net.Listener
	var err error

	if config.Path != "" {
		// A stale socket from an unclean shutdown would block the bind.
		_ = os.Remove(config.Path)
		listener, err = net.Listen("unix", config.Path)
	} else {
		addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))

		if config.CertFile != "" {
			var cert tls.Certificate
			cert, err = tls.LoadX509KeyPair(config.CertFile, config.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("unable to load transport certificate: %w", err)
			}

			listener, err = tls.Listen("tcp", addr, &tls.Config{Certificates: []tls.Certificate{cert}})
		} else {
			listener, err = net.Listen("tcp", addr)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("unable to bind control endpoint: %w", err)
	}

	return &Transport{
		bot:      bot,
		log:      bot.log.Named("transport"),
		config:   config,
		listener: listener,
	}, nil
}

// Addr returns the bound listener address.
func (t *Transport) Addr() net.Addr {
	return t.listener.Addr()
}

// Close stops the listener; live sessions die on their next read.
func (t *Transport) Close() error {
	return t.listener.Close()
}

// Serve accepts control clients until the listener closes.
func (t *Transport) Serve() {
	t.log.Info("control endpoint listening", "addr", t.listener.Addr().String(), "protocol", t.config.Protocol)

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return
		}

		session := newControlSession(t, conn)
		go session.run()
	}
}

// controlSession is one connected control client: a reader parsing
// requests, and a writer goroutine draining the outbound queue.
type controlSession struct {
	transport *Transport
	conn      net.Conn
	log       hclog.Logger

	outbound chan []byte
	// done releases the writer goroutine once the session closes.
	done chan struct{}
	// queued tracks outbound bytes not yet written; past the cap the
	// session is dropped.
	queued atomic.Int64
	closed atomic.Bool
}

func newControlSession(t *Transport, conn net.Conn) *controlSession {
	return &controlSession{
		transport: t,
		conn:      conn,
		log:       t.log.With("remote", conn.RemoteAddr().String()),
		outbound:  make(chan []byte, 256),
		done:      make(chan struct{}),
	}
}

// send queues one line for writing. Drops the session when the queue
// overflows rather than blocking the loop.
func (s *controlSession) send(line []byte) {
	if s.closed.Load() {
		return
	}

	if s.queued.Add(int64(len(line))) > transportWriteCap {
		s.log.Warn("control session write queue overflow, dropping session")
		s.close()
		return
	}

	select {
	case s.outbound <- line:
	default:
		s.log.Warn("control session write queue full, dropping session")
		s.close()
	}
}

func (s *controlSession) close() {
	if s.closed.CompareAndSwap(false, true) {
		s.conn.Close()
		close(s.done)
	}
}

func (s *controlSession) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case line := <-s.outbound:
			if _, err := s.conn.Write(append(line, '\n')); err != nil {
				s.close()
				return
			}

			s.queued.Add(-int64(len(line)))
		}
	}
}

func (s *controlSession) run() {
	defer s.close()

	go s.writeLoop()

	s.greet()

	reader := bufio.NewReaderSize(s.conn, transportReadCap)

	for {
		raw, err := reader.ReadSlice('\n')
		if err != nil {
			if errors.Is(err, bufio.ErrBufferFull) {
				s.log.Warn("control line exceeds cap, dropping session")
			}
			return
		}

		line := strings.TrimRight(string(raw), "\r\n")
		if line == "" {
			continue
		}

		if s.transport.config.Protocol == TransportASCII {
			s.handleASCII(line)
		} else {
			s.handleJSON(line)
		}
	}
}

// greet sends the protocol banner: a JSON version object, or the compact
// "IRCCD M.N.P" form.
func (s *controlSession) greet() {
	if s.transport.config.Protocol == TransportASCII {
		s.send([]byte(fmt.Sprintf("IRCCD %d.%d.%d", VersionMajor, VersionMinor, VersionPatch)))
		return
	}

	greeting, _ := json.Marshal(map[string]any{
		"program": "irccd",
		"major":   VersionMajor,
		"minor":   VersionMinor,
		"patch":   VersionPatch,
	})
	s.send(greeting)
}

// handleJSON runs one JSON request on the bot loop and writes exactly one
// response.
func (s *controlSession) handleJSON(line string) {
	var req controlRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		response, _ := json.Marshal(map[string]any{
			"error":         BotErrInvalidRequest,
			"errorCategory": ErrCategoryBot,
		})
		s.send(response)
		return
	}

	var response map[string]any
	s.transport.bot.loop.Call(func() {
		response = controlExec(s.transport.bot, req)
	})

	encoded, err := json.Marshal(response)
	if err != nil {
		encoded, _ = json.Marshal(map[string]any{
			"command":       req.str("command"),
			"error":         BotErrInvalidRequest,
			"errorCategory": ErrCategoryBot,
		})
	}

	s.send(encoded)
}

// handleASCII parses one compact request. The last field swallows the
// remaining tokens, so messages with spaces survive.
func (s *controlSession) handleASCII(line string) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return
	}

	fields, ok := asciiCommands[tokens[0]]
	if !ok {
		s.send([]byte("ERROR unknown command"))
		return
	}

	req := controlRequest{"command": tokens[0]}
	rest := tokens[1:]

	for i, field := range fields {
		if i >= len(rest) {
			break
		}

		if i == len(fields)-1 {
			req[field] = strings.Join(rest[i:], " ")
		} else {
			req[field] = rest[i]
		}
	}

	var response map[string]any
	s.transport.bot.loop.Call(func() {
		response = controlExec(s.transport.bot, req)
	})

	if _, failed := response["error"]; failed {
		s.send([]byte(fmt.Sprintf("ERROR %v %v", response["errorCategory"], response["error"])))
		return
	}

	if list, lok := response["list"].([]string); lok {
		s.send([]byte("OK " + strings.Join(list, " ")))
		return
	}

	s.send([]byte("OK"))
}
