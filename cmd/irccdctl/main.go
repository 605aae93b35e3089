// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lrstanley/irccd"
)

var (
	socketPath  string
	controlHost string
	controlPort int
)

var rootCmd = &cobra.Command{
	Version: fmt.Sprintf("%d.%d.%d", irccd.VersionMajor, irccd.VersionMinor, irccd.VersionPatch),
	Use:     "irccdctl",
	Short:   "Control a running irccd daemon",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// request opens a control connection, performs one request/response
// round-trip, and renders the response. A response carrying an error
// exits non-zero.
func request(fields map[string]any) error {
	var conn net.Conn
	var err error

	if socketPath != "" {
		conn, err = net.DialTimeout("unix", socketPath, 10*time.Second)
	} else {
		conn, err = net.DialTimeout("tcp", net.JoinHostPort(controlHost, strconv.Itoa(controlPort)), 10*time.Second)
	}
	if err != nil {
		return fmt.Errorf("unable to reach irccd: %w", err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Greeting first.
	if _, err = reader.ReadString('\n'); err != nil {
		return fmt.Errorf("no greeting from irccd: %w", err)
	}

	encoded, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	if _, err = conn.Write(append(encoded, '\n')); err != nil {
		return err
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("no response from irccd: %w", err)
	}

	var response map[string]any
	if err = json.Unmarshal([]byte(line), &response); err != nil {
		return fmt.Errorf("unparseable response: %w", err)
	}

	if code, failed := response["error"]; failed {
		return fmt.Errorf("%v error %v", response["errorCategory"], code)
	}

	render(response)

	return nil
}

// render prints the response payload: lists one entry per line, other
// fields as key: value.
func render(response map[string]any) {
	if list, ok := response["list"].([]any); ok {
		for _, entry := range list {
			switch v := entry.(type) {
			case string:
				fmt.Println(v)
			default:
				encoded, _ := json.Marshal(v)
				fmt.Println(string(encoded))
			}
		}
		return
	}

	keys := make([]string, 0, len(response))
	for key := range response {
		if key != "command" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Printf("%-12s %v\n", key+":", response[key])
	}
}

// positionalCommand wires a subcommand whose arguments map one-to-one to
// request fields; optional trailing fields may be omitted.
func positionalCommand(name, short string, required, optional []string) *cobra.Command {
	use := name
	for _, field := range required {
		use += " <" + field + ">"
	}
	for _, field := range optional {
		use += " [" + field + "]"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.RangeArgs(len(required), len(required)+len(optional)),
		RunE: func(_ *cobra.Command, args []string) error {
			fields := map[string]any{"command": name}

			order := append(append([]string{}, required...), optional...)
			for i, value := range args {
				fields[order[i]] = value
			}

			return request(fields)
		},
	}
}

func serverConnectCommand() *cobra.Command {
	var fields = map[string]*string{}
	var flags = map[string]*bool{}

	cmd := &cobra.Command{
		Use:   "server-connect <name> <host> [port]",
		Short: "Add a server and connect it",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(_ *cobra.Command, args []string) error {
			req := map[string]any{"command": "server-connect", "name": args[0], "host": args[1]}

			if len(args) == 3 {
				port, err := strconv.Atoi(args[2])
				if err != nil {
					return fmt.Errorf("invalid port %q", args[2])
				}
				req["port"] = port
			}

			for key, value := range fields {
				if *value != "" {
					req[key] = *value
				}
			}
			for key, value := range flags {
				if *value {
					req[key] = true
				}
			}

			return request(req)
		},
	}

	for _, key := range []string{"password", "nickname", "username", "realname", "ctcpVersion", "commandChar"} {
		fields[key] = cmd.Flags().String(key, "", key)
	}
	for _, key := range []string{"ssl", "sslVerify", "ipv4", "ipv6", "autoRejoin", "joinInvite", "autoReconnect"} {
		flags[key] = cmd.Flags().Bool(key, false, key)
	}

	return cmd
}

func ruleAddCommand() *cobra.Command {
	var sets = map[string]*[]string{}
	var index int

	cmd := &cobra.Command{
		Use:   "rule-add <accept|drop>",
		Short: "Append or insert a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			req := map[string]any{"command": "rule-add", "action": args[0]}

			for key, value := range sets {
				if len(*value) > 0 {
					req[key] = *value
				}
			}
			if c.Flags().Changed("index") {
				req["index"] = index
			}

			return request(req)
		},
	}

	for _, key := range []string{"servers", "channels", "origins", "plugins", "events"} {
		sets[key] = cmd.Flags().StringSlice(key, nil, "match "+key)
	}
	cmd.Flags().IntVar(&index, "index", 0, "insert position (default append)")

	return cmd
}

func ruleEditCommand() *cobra.Command {
	var sets = map[string]*[]string{}
	var action string

	cmd := &cobra.Command{
		Use:   "rule-edit <index>",
		Short: "Edit a rule in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}

			req := map[string]any{"command": "rule-edit", "index": index}

			if c.Flags().Changed("action") {
				req["action"] = action
			}
			for key, value := range sets {
				if len(*value) > 0 {
					req[key] = *value
				}
			}

			return request(req)
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "new action (accept|drop)")
	for _, key := range []string{"servers", "channels", "origins", "plugins", "events"} {
		sets["add-"+key] = cmd.Flags().StringSlice("add-"+key, nil, "add to "+key)
		sets["remove-"+key] = cmd.Flags().StringSlice("remove-"+key, nil, "remove from "+key)
	}

	return cmd
}

func ruleMoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rule-move <from> <to>",
		Short: "Move a rule to a new position",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			from, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}
			to, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[1])
			}

			return request(map[string]any{"command": "rule-move", "from": from, "to": to})
		},
	}
}

func indexCommand(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <index>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}

			return request(map[string]any{"command": name, "index": index})
		},
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "unix socket of the control endpoint")
	rootCmd.PersistentFlags().StringVar(&controlHost, "host", "127.0.0.1", "control endpoint host")
	rootCmd.PersistentFlags().IntVar(&controlPort, "port", 6320, "control endpoint port")

	rootCmd.AddCommand(
		positionalCommand("server-list", "List configured servers", nil, nil),
		positionalCommand("server-info", "Show server details", []string{"server"}, nil),
		serverConnectCommand(),
		positionalCommand("server-disconnect", "Disconnect one server, or all", nil, []string{"server"}),
		positionalCommand("server-reconnect", "Reconnect one server, or all", nil, []string{"server"}),
		positionalCommand("server-join", "Join a channel", []string{"server", "channel"}, []string{"password"}),
		positionalCommand("server-part", "Leave a channel", []string{"server", "channel"}, []string{"reason"}),
		positionalCommand("server-kick", "Kick a user from a channel", []string{"server", "target", "channel"}, []string{"reason"}),
		positionalCommand("server-invite", "Invite a user to a channel", []string{"server", "target", "channel"}, nil),
		positionalCommand("server-topic", "Set a channel topic", []string{"server", "channel", "topic"}, nil),
		positionalCommand("server-message", "Send a message", []string{"server", "target", "message"}, nil),
		positionalCommand("server-me", "Send an action (/me)", []string{"server", "target", "message"}, nil),
		positionalCommand("server-notice", "Send a notice", []string{"server", "target", "message"}, nil),
		positionalCommand("server-mode", "Change a channel mode", []string{"server", "channel", "mode"}, nil),
		positionalCommand("server-nick", "Change the bot nickname", []string{"server", "nickname"}, nil),

		positionalCommand("plugin-list", "List loaded plugins", nil, nil),
		positionalCommand("plugin-info", "Show plugin details", []string{"plugin"}, nil),
		positionalCommand("plugin-load", "Load a plugin", []string{"plugin"}, []string{"path"}),
		positionalCommand("plugin-unload", "Unload a plugin", []string{"plugin"}, nil),
		positionalCommand("plugin-reload", "Reload a plugin", []string{"plugin"}, nil),
		positionalCommand("plugin-config", "Get or set plugin options", []string{"plugin"}, []string{"variable", "value"}),
		positionalCommand("plugin-template", "Get or set plugin templates", []string{"plugin"}, []string{"variable", "value"}),
		positionalCommand("plugin-paths", "Get or set plugin paths", []string{"plugin"}, []string{"variable", "value"}),

		positionalCommand("rule-list", "List rules", nil, nil),
		indexCommand("rule-info", "Show one rule"),
		ruleAddCommand(),
		ruleEditCommand(),
		indexCommand("rule-remove", "Remove a rule"),
		ruleMoveCommand(),

		positionalCommand("hook-list", "List hooks", nil, nil),
		positionalCommand("hook-add", "Register a hook", []string{"id", "path"}, nil),
		positionalCommand("hook-remove", "Remove a hook", []string{"id"}, nil),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
