// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
)

// Loader resolves a plugin id (optionally with an explicit path) to a
// Plugin. Open returns (nil, nil) when the loader doesn't handle the
// plugin, letting the next loader in the chain try.
type Loader interface {
	Open(id, path string) (Plugin, error)
}

// MemoryLoader serves plugins registered in-process: the built-ins, and
// anything a embedding program contributes. First in the host's loader
// chain.
type MemoryLoader struct {
	constructors map[string]func() Plugin
}

func NewMemoryLoader() *MemoryLoader {
	return &MemoryLoader{constructors: map[string]func() Plugin{}}
}

// Register makes the constructor available under the given id.
func (l *MemoryLoader) Register(id string, constructor func() Plugin) {
	l.constructors[id] = constructor
}

func (l *MemoryLoader) Open(id, _ string) (Plugin, error) {
	constructor, ok := l.constructors[id]
	if !ok {
		return nil, nil
	}

	return constructor(), nil
}

// NativeLoader opens dynamically loaded binary plugins (.so). The shared
// object must export a Plugin symbol of a type implementing Plugin.
type NativeLoader struct {
	// Dirs are searched, in order, for <id>.so when no explicit path is
	// given.
	Dirs []string
}

func (l *NativeLoader) find(id string) string {
	for _, dir := range l.Dirs {
		candidate := filepath.Join(dir, id+".so")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}

	return ""
}

func (l *NativeLoader) Open(id, path string) (Plugin, error) {
	if path == "" {
		if path = l.find(id); path == "" {
			return nil, nil
		}
	} else if filepath.Ext(path) != ".so" {
		return nil, nil
	}

	lib, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %q: %w", path, err)
	}

	sym, err := lib.Lookup("Plugin")
	if err != nil {
		return nil, fmt.Errorf("%q does not export a Plugin symbol: %w", path, err)
	}

	p, ok := sym.(Plugin)
	if !ok {
		if pp, pok := sym.(*Plugin); pok {
			return *pp, nil
		}

		return nil, fmt.Errorf("%q: Plugin symbol has the wrong type", path)
	}

	return p, nil
}
