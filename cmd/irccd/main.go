// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lrstanley/irccd"
)

var version = fmt.Sprintf("%d.%d.%d", irccd.VersionMajor, irccd.VersionMinor, irccd.VersionPatch)

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "irccd",
	Short:   "Extensible IRC bot daemon",
	Long: `irccd maintains persistent connections to IRC servers, routes every
event through a rule-filtered plugin pipeline, and exposes a local control
endpoint for administration with irccdctl.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	RunE: run,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "/etc/irccd/irccd.conf", "configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log informational messages")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn)")

	for _, flag := range []string{"config", "verbose", "log-level"} {
		_ = viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag))
	}

	viper.SetEnvPrefix("IRCCD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// newLogger builds the daemon logger from the [logs] section and the
// verbosity flags. Flags win over the file.
func newLogger(config *irccd.Config) (hclog.Logger, error) {
	level := hclog.Warn
	if config.Logs.Verbose || viper.GetBool("verbose") {
		level = hclog.Info
	}

	name := config.Logs.Level
	if flagLevel := viper.GetString("log-level"); flagLevel != "" {
		name = flagLevel
	}
	if name != "" {
		if parsed := hclog.LevelFromString(name); parsed != hclog.NoLevel {
			level = parsed
		}
	}

	opts := &hclog.LoggerOptions{
		Name:  "irccd",
		Level: level,
	}

	if config.Logs.Type == "file" && config.Logs.Path != "" {
		f, err := os.OpenFile(config.Logs.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("unable to open log file: %w", err)
		}
		opts.Output = f
	}

	return hclog.New(opts), nil
}

func run(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	configPath := viper.GetString("config")

	config, err := irccd.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log, err := newLogger(config)
	if err != nil {
		return err
	}

	bot := irccd.NewBot(irccd.BotConfig{
		Logger:     log,
		Base:       config.Base,
		PluginDirs: config.PluginDirs,
	})

	var transport *irccd.Transport
	if config.Transport != nil {
		transport, err = irccd.NewTransport(bot, *config.Transport)
		if err != nil {
			// Not being able to bind the control endpoint is fatal.
			return err
		}
		defer transport.Close()

		go transport.Serve()
	}

	config.Apply(bot)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)

	go watchReload(ctx, bot, log, configPath, reload)

	log.Info("starting", "version", version, "config", configPath)
	bot.Run(ctx)

	return nil
}

// watchReload re-reads the rule and hook configuration when the config
// file changes on disk or SIGHUP arrives. Servers and plugins keep their
// live state; only the pipeline filters are replaced.
func watchReload(ctx context.Context, bot *irccd.Bot, log hclog.Logger, configPath string, hup <-chan os.Signal) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("config watcher unavailable", "error", err)
		watcher = nil
	} else {
		defer watcher.Close()

		if err = watcher.Add(configPath); err != nil {
			log.Warn("unable to watch configuration", "path", configPath, "error", err)
		}
	}

	var events chan fsnotify.Event
	if watcher != nil {
		events = watcher.Events
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
		}

		config, err := irccd.LoadConfig(configPath)
		if err != nil {
			log.Warn("reload failed", "error", err)
			continue
		}

		bot.Post(func() {
			bot.Rules().Clear()
			for _, rule := range config.Rules {
				bot.Rules().Add(rule)
			}
			log.Info("configuration reloaded", "rules", len(config.Rules))
		})
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
