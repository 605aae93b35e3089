// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import "fmt"

// Control error categories, carried as errorCategory on the wire.
const (
	ErrCategoryServer = "server"
	ErrCategoryPlugin = "plugin"
	ErrCategoryRule   = "rule"
	ErrCategoryHook   = "hook"
	ErrCategoryBot    = "bot"
)

// Per-category error codes, carried as error on the wire.
const (
	ServerErrInvalidIdentifier = 1 + iota
	ServerErrInvalidHostname
	ServerErrInvalidPort
	ServerErrInvalidChannel
	ServerErrInvalidNickname
	ServerErrInvalidMode
	ServerErrInvalidMessage
	ServerErrInvalidPassword
	ServerErrNotFound
	ServerErrAlreadyExists
	ServerErrSSLDisabled
)

const (
	PluginErrInvalidIdentifier = 1 + iota
	PluginErrNotFound
	PluginErrAlreadyExists
	PluginErrExecError
)

const (
	RuleErrInvalidIndex = 1 + iota
	RuleErrInvalidAction
)

const (
	HookErrInvalidIdentifier = 1 + iota
	HookErrInvalidPath
	HookErrAlreadyExists
	HookErrNotFound
)

const (
	BotErrInvalidCommand = 1 + iota
	BotErrInvalidRequest
)

// ControlError is a categorized error that crosses the control protocol:
// category plus a small integer code plus a human message. Internal
// callers inspect it with errors.As at the transport boundary.
type ControlError struct {
	Category string
	Code     int
	Message  string
}

func (e *ControlError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Category, e.Code, e.Message)
}

func errServer(code int, format string, args ...any) error {
	return &ControlError{Category: ErrCategoryServer, Code: code, Message: fmt.Sprintf(format, args...)}
}

func errPlugin(code int, format string, args ...any) error {
	return &ControlError{Category: ErrCategoryPlugin, Code: code, Message: fmt.Sprintf(format, args...)}
}

func errRule(code int, format string, args ...any) error {
	return &ControlError{Category: ErrCategoryRule, Code: code, Message: fmt.Sprintf(format, args...)}
}

func errHook(code int, format string, args ...any) error {
	return &ControlError{Category: ErrCategoryHook, Code: code, Message: fmt.Sprintf(format, args...)}
}

func errBot(code int, format string, args ...any) error {
	return &ControlError{Category: ErrCategoryBot, Code: code, Message: fmt.Sprintf(format, args...)}
}
