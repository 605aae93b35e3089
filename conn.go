// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/proxy"
)

// Messages are delimited with CR and LF line endings, we're using the last
// one to split the stream. Both are removed during parsing of the message.
const delim byte = '\n'

// maxLineSize bounds the inbound read buffer. A line that doesn't fit is a
// protocol error for that connection and tears it down.
const maxLineSize = 8192

// connectTimeout is the dial timeout for a single connect attempt.
const connectTimeout = 30 * time.Second

var endline = []byte("\r\n")

// ErrLineTooLong is returned by decode when the server sends a line that
// exceeds the inbound buffer capacity.
var ErrLineTooLong = errors.New("protocol error: line exceeds read buffer")

// dialOptions carries the connection knobs a Server resolves out of its
// configuration before dialing.
type dialOptions struct {
	// network is "tcp", or "tcp4"/"tcp6" when the ipv4/ipv6 hints are set.
	network string
	// bind is an optional local address to bind the outgoing socket to.
	bind string
	// proxyURL is an optional SOCKS proxy to dial through.
	proxyURL string
	// tlsConfig enables TLS when non-nil.
	tlsConfig *tls.Config
}

// ircConn represents an IRC network protocol connection, it consists of an
// encoder and decoder to manage i/o.
type ircConn struct {
	conn   net.Conn
	reader *bufio.Reader

	wmu sync.Mutex

	// lastRead is the time the last full line was received, used for
	// keepalive decisions. Stored atomically: the read loop and the loop
	// thread both look at it.
	lastRead atomic.Value
}

// newConn dials addr and wraps the raw socket in line-oriented i/o.
func newConn(addr string, opts dialOptions) (*ircConn, error) {
	network := opts.network
	if network == "" {
		network = "tcp"
	}

	dialer := &net.Dialer{Timeout: connectTimeout}

	if opts.bind != "" {
		local, err := net.ResolveTCPAddr(network, opts.bind+":0")
		if err != nil {
			return nil, fmt.Errorf("unable to resolve bind address %s: %w", opts.bind, err)
		}

		dialer.LocalAddr = local
	}

	var conn net.Conn
	var err error

	if opts.proxyURL != "" {
		var proxyURI *url.URL
		var proxyDialer proxy.Dialer

		proxyURI, err = url.Parse(opts.proxyURL)
		if err != nil {
			return nil, fmt.Errorf("unable to use proxy %q: %w", opts.proxyURL, err)
		}

		proxyDialer, err = proxy.FromURL(proxyURI, dialer)
		if err != nil {
			return nil, fmt.Errorf("unable to use proxy %q: %w", opts.proxyURL, err)
		}

		conn, err = proxyDialer.Dial(network, addr)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to proxy %q: %w", opts.proxyURL, err)
		}
	} else {
		conn, err = dialer.Dial(network, addr)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to %q: %w", addr, err)
		}
	}

	if opts.tlsConfig != nil {
		tlsConn := tls.Client(conn, opts.tlsConfig)
		if err = tlsConn.Handshake(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed handshake during tls conn to %q: %w", addr, err)
		}
		conn = tlsConn
	}

	return wrapConn(conn), nil
}

// wrapConn builds an ircConn around an established net.Conn. Split out from
// newConn so tests can supply a net.Pipe end.
func wrapConn(conn net.Conn) *ircConn {
	c := &ircConn{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, maxLineSize),
	}
	c.lastRead.Store(time.Now())

	return c
}

// Close closes the underlying connection.
func (c *ircConn) Close() error {
	return c.conn.Close()
}

// decode attempts to read a single event from the stream. Returns a non-nil
// error if the read failed; the event may be nil if the line was
// unparseable.
func (c *ircConn) decode() (event *Event, err error) {
	line, err := c.reader.ReadSlice(delim)
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, ErrLineTooLong
		}
		if len(line) == 0 || !errors.Is(err, io.EOF) {
			return nil, err
		}
		// A final unterminated line; parse what we have.
	}

	c.lastRead.Store(time.Now())

	return ParseEvent(string(line)), nil
}

// encode writes the IRC encoding of e to the stream, followed by CR+LF.
// Goroutine safe.
func (c *ircConn) encode(e *Event) error {
	return c.write(e.Bytes())
}

// write writes len(p) bytes from p followed by CR+LF. Goroutine safe.
func (c *ircConn) write(p []byte) (err error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if _, err = c.conn.Write(p); err != nil {
		return err
	}

	_, err = c.conn.Write(endline)

	return err
}

// idle returns the duration since the last complete line was received.
func (c *ircConn) idle() time.Duration {
	t, _ := c.lastRead.Load().(time.Time)

	return time.Since(t)
}
