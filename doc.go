// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

// Package irccd implements the core of an extensible IRC bot daemon: a
// long-lived process that maintains connections to one or more IRC servers,
// routes every inbound event through an ordered accept/drop rule list and
// into a plugin pipeline, and exposes a local control endpoint (unix socket
// or tcp) through which an administrative client can inspect and mutate live
// state -- add and remove servers, load and unload plugins, edit rules, and
// send IRC commands on behalf of the bot.
//
// The daemon is single-threaded at its core: one event loop owns all bot
// state, and plugin callbacks, control commands, and timers all run on it.
// See the Bot type as the entry point, and cmd/irccd for the daemon binary.
package irccd
