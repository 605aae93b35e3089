// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package irccd

import (
	"errors"
	"time"
)

// controlRequest is one decoded control-protocol request. Values keep
// their JSON types; the accessors below coerce them.
type controlRequest map[string]any

func (r controlRequest) str(key string) string {
	v, _ := r[key].(string)

	return v
}

func (r controlRequest) num(key string) (int, bool) {
	switch v := r[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}

	return 0, false
}

func (r controlRequest) boolean(key string) bool {
	v, _ := r[key].(bool)

	return v
}

func (r controlRequest) list(key string) []string {
	raw, ok := r[key].([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		if s, sok := entry.(string); sok {
			out = append(out, s)
		}
	}

	return out
}

// controlHandler mutates or inspects the bot on behalf of one request.
// Handlers run on the bot loop and validate before mutating.
type controlHandler func(bot *Bot, req controlRequest) (map[string]any, error)

// controlCommands is the administrative command registry, fixed at
// startup.
var controlCommands = map[string]controlHandler{
	"server-list":       cmdServerList,
	"server-info":       cmdServerInfo,
	"server-connect":    cmdServerConnect,
	"server-disconnect": cmdServerDisconnect,
	"server-reconnect":  cmdServerReconnect,
	"server-join":       cmdServerJoin,
	"server-part":       cmdServerPart,
	"server-kick":       cmdServerKick,
	"server-invite":     cmdServerInvite,
	"server-topic":      cmdServerTopic,
	"server-message":    cmdServerMessage,
	"server-me":         cmdServerMe,
	"server-notice":     cmdServerNotice,
	"server-mode":       cmdServerMode,
	"server-nick":       cmdServerNick,

	"plugin-list":     cmdPluginList,
	"plugin-info":     cmdPluginInfo,
	"plugin-load":     cmdPluginLoad,
	"plugin-unload":   cmdPluginUnload,
	"plugin-reload":   cmdPluginReload,
	"plugin-config":   cmdPluginConfig,
	"plugin-template": cmdPluginTemplate,
	"plugin-paths":    cmdPluginPaths,

	"rule-list":   cmdRuleList,
	"rule-info":   cmdRuleInfo,
	"rule-add":    cmdRuleAdd,
	"rule-edit":   cmdRuleEdit,
	"rule-remove": cmdRuleRemove,
	"rule-move":   cmdRuleMove,

	"hook-list":   cmdHookList,
	"hook-add":    cmdHookAdd,
	"hook-remove": cmdHookRemove,
}

// controlExec routes one request to its handler and shapes the response:
// the command is always echoed; failures carry error and errorCategory.
// Runs on the bot loop.
func controlExec(bot *Bot, req controlRequest) map[string]any {
	command := req.str("command")
	response := map[string]any{"command": command}

	var payload map[string]any
	var err error

	if handler, ok := controlCommands[command]; ok {
		payload, err = handler(bot, req)
	} else {
		err = errBot(BotErrInvalidCommand, "unknown command %q", command)
	}

	if err != nil {
		var cerr *ControlError
		if errors.As(err, &cerr) {
			response["error"] = cerr.Code
			response["errorCategory"] = cerr.Category
		} else {
			response["error"] = BotErrInvalidRequest
			response["errorCategory"] = ErrCategoryBot
		}

		bot.log.Warn("control command failed", "command", command, "error", err)
		return response
	}

	for k, v := range payload {
		response[k] = v
	}

	return response
}

func reqServer(bot *Bot, req controlRequest) (*Server, error) {
	id := req.str("server")

	s := bot.Server(id)
	if s == nil {
		return nil, errServer(ServerErrNotFound, "server %q not found", id)
	}

	return s, nil
}

func cmdServerList(bot *Bot, _ controlRequest) (map[string]any, error) {
	return map[string]any{"list": bot.ServerIDs()}, nil
}

func cmdServerInfo(bot *Bot, req controlRequest) (map[string]any, error) {
	s, err := reqServer(bot, req)
	if err != nil {
		return nil, err
	}

	channels := make([]string, 0, len(s.Config.Channels))
	for _, ch := range s.Config.Channels {
		channels = append(channels, ch.Name)
	}

	info := map[string]any{
		"hostname": s.Config.Host,
		"port":     s.Config.Port,
		"nickname": s.Nick(),
		"username": s.Config.Username,
		"realname": s.Config.Realname,
		"channels": channels,
		"status":   s.Status(),
	}

	if network := s.state.network; network != "" {
		info["network"] = network
	}
	if cs := s.state.charset(); cs != "" {
		info["charset"] = cs
	}
	if host := s.state.daemonHost; host != "" {
		info["serverHost"] = host
		info["serverVersion"] = s.state.daemonVersion
	}
	if !s.state.compiled.IsZero() {
		info["serverCreated"] = s.state.compiled.Format(time.RFC3339)
	}

	return info, nil
}

func cmdServerConnect(bot *Bot, req controlRequest) (map[string]any, error) {
	config := ServerConfig{
		Host:          req.str("host"),
		Password:      req.str("password"),
		Nickname:      req.str("nickname"),
		Username:      req.str("username"),
		Realname:      req.str("realname"),
		CTCPVersion:   req.str("ctcpVersion"),
		CommandChar:   req.str("commandChar"),
		TLS:           req.boolean("ssl"),
		TLSVerify:     req.boolean("sslVerify"),
		IPv4:          req.boolean("ipv4"),
		IPv6:          req.boolean("ipv6"),
		AutoRejoin:    req.boolean("autoRejoin"),
		JoinInvite:    req.boolean("joinInvite"),
		AutoReconnect: req.boolean("autoReconnect"),
	}

	if port, ok := req.num("port"); ok {
		config.Port = port
	}

	return nil, bot.AddServer(req.str("name"), config)
}

func cmdServerDisconnect(bot *Bot, req controlRequest) (map[string]any, error) {
	if _, ok := req["server"]; !ok {
		for _, id := range bot.ServerIDs() {
			_ = bot.RemoveServer(id, "disconnecting")
		}
		return nil, nil
	}

	if _, err := reqServer(bot, req); err != nil {
		return nil, err
	}

	return nil, bot.RemoveServer(req.str("server"), "disconnecting")
}

func cmdServerReconnect(bot *Bot, req controlRequest) (map[string]any, error) {
	if _, ok := req["server"]; !ok {
		for _, id := range bot.ServerIDs() {
			bot.Server(id).Reconnect()
		}
		return nil, nil
	}

	s, err := reqServer(bot, req)
	if err != nil {
		return nil, err
	}

	s.Reconnect()

	return nil, nil
}

func cmdServerJoin(bot *Bot, req controlRequest) (map[string]any, error) {
	s, err := reqServer(bot, req)
	if err != nil {
		return nil, err
	}

	return nil, s.Join(req.str("channel"), req.str("password"))
}

func cmdServerPart(bot *Bot, req controlRequest) (map[string]any, error) {
	s, err := reqServer(bot, req)
	if err != nil {
		return nil, err
	}

	return nil, s.Part(req.str("channel"), req.str("reason"))
}

func cmdServerKick(bot *Bot, req controlRequest) (map[string]any, error) {
	s, err := reqServer(bot, req)
	if err != nil {
		return nil, err
	}

	return nil, s.Kick(req.str("channel"), req.str("target"), req.str("reason"))
}

func cmdServerInvite(bot *Bot, req controlRequest) (map[string]any, error) {
	s, err := reqServer(bot, req)
	if err != nil {
		return nil, err
	}

	return nil, s.Invite(req.str("channel"), req.str("target"))
}

func cmdServerTopic(bot *Bot, req controlRequest) (map[string]any, error) {
	s, err := reqServer(bot, req)
	if err != nil {
		return nil, err
	}

	return nil, s.Topic(req.str("channel"), req.str("topic"))
}

func cmdServerMessage(bot *Bot, req controlRequest) (map[string]any, error) {
	s, err := reqServer(bot, req)
	if err != nil {
		return nil, err
	}

	return nil, s.Message(req.str("target"), req.str("message"))
}

func cmdServerMe(bot *Bot, req controlRequest) (map[string]any, error) {
	s, err := reqServer(bot, req)
	if err != nil {
		return nil, err
	}

	return nil, s.Me(req.str("target"), req.str("message"))
}

func cmdServerNotice(bot *Bot, req controlRequest) (map[string]any, error) {
	s, err := reqServer(bot, req)
	if err != nil {
		return nil, err
	}

	return nil, s.Notice(req.str("target"), req.str("message"))
}

func cmdServerMode(bot *Bot, req controlRequest) (map[string]any, error) {
	s, err := reqServer(bot, req)
	if err != nil {
		return nil, err
	}

	return nil, s.Mode(req.str("channel"), req.str("mode"), req.list("args"))
}

func cmdServerNick(bot *Bot, req controlRequest) (map[string]any, error) {
	s, err := reqServer(bot, req)
	if err != nil {
		return nil, err
	}

	return nil, s.SetNick(req.str("nickname"))
}

func reqPlugin(bot *Bot, req controlRequest) (*PluginState, error) {
	id := req.str("plugin")

	st := bot.Plugin(id)
	if st == nil {
		return nil, errPlugin(PluginErrNotFound, "plugin %q not found", id)
	}

	return st, nil
}

func cmdPluginList(bot *Bot, _ controlRequest) (map[string]any, error) {
	return map[string]any{"list": bot.plugins.ids()}, nil
}

func cmdPluginInfo(bot *Bot, req controlRequest) (map[string]any, error) {
	st, err := reqPlugin(bot, req)
	if err != nil {
		return nil, err
	}

	meta := st.Plugin.Meta()

	return map[string]any{
		"name":    meta.Name,
		"author":  meta.Author,
		"license": meta.License,
		"summary": meta.Summary,
		"version": meta.Version,
	}, nil
}

func cmdPluginLoad(bot *Bot, req controlRequest) (map[string]any, error) {
	return nil, bot.LoadPlugin(req.str("plugin"), req.str("path"))
}

func cmdPluginUnload(bot *Bot, req controlRequest) (map[string]any, error) {
	return nil, bot.UnloadPlugin(req.str("plugin"))
}

func cmdPluginReload(bot *Bot, req controlRequest) (map[string]any, error) {
	return nil, bot.ReloadPlugin(req.str("plugin"))
}

// pluginVars implements the shared get-all/get-one/set shape of
// plugin-config, plugin-template and plugin-paths.
func pluginVars(bot *Bot, req controlRequest, pick func(*PluginState) map[string]string) (map[string]any, error) {
	st, err := reqPlugin(bot, req)
	if err != nil {
		return nil, err
	}

	vars := pick(st)

	variable := req.str("variable")
	if value, ok := req["value"].(string); ok && variable != "" {
		vars[variable] = value
		return nil, nil
	}

	if variable != "" {
		return map[string]any{"variables": map[string]string{variable: vars[variable]}}, nil
	}

	return map[string]any{"variables": vars}, nil
}

func cmdPluginConfig(bot *Bot, req controlRequest) (map[string]any, error) {
	return pluginVars(bot, req, func(st *PluginState) map[string]string { return st.Options })
}

func cmdPluginTemplate(bot *Bot, req controlRequest) (map[string]any, error) {
	return pluginVars(bot, req, func(st *PluginState) map[string]string { return st.Templates })
}

func cmdPluginPaths(bot *Bot, req controlRequest) (map[string]any, error) {
	return pluginVars(bot, req, func(st *PluginState) map[string]string { return st.Paths })
}

func reqIndex(bot *Bot, req controlRequest, key string) (int, error) {
	index, ok := req.num(key)
	if !ok || index < 0 || index >= bot.rules.Len() {
		return 0, errRule(RuleErrInvalidIndex, "invalid rule index")
	}

	return index, nil
}

func ruleFields(r *Rule) map[string]any {
	return map[string]any{
		"servers":  r.Servers,
		"channels": r.Channels,
		"origins":  r.Origins,
		"plugins":  r.Plugins,
		"events":   r.Events,
		"action":   r.Action,
	}
}

func cmdRuleList(bot *Bot, _ controlRequest) (map[string]any, error) {
	rules := bot.rules.List()

	out := make([]map[string]any, 0, len(rules))
	for i := range rules {
		out = append(out, ruleFields(&rules[i]))
	}

	return map[string]any{"list": out}, nil
}

func cmdRuleInfo(bot *Bot, req controlRequest) (map[string]any, error) {
	index, err := reqIndex(bot, req, "index")
	if err != nil {
		return nil, err
	}

	return ruleFields(bot.rules.Get(index)), nil
}

func cmdRuleAdd(bot *Bot, req controlRequest) (map[string]any, error) {
	action := req.str("action")
	if !IsValidRuleAction(action) {
		return nil, errRule(RuleErrInvalidAction, "invalid rule action %q", action)
	}

	rule := Rule{
		Servers:  req.list("servers"),
		Channels: req.list("channels"),
		Origins:  req.list("origins"),
		Plugins:  req.list("plugins"),
		Events:   req.list("events"),
		Action:   action,
	}

	if index, ok := req.num("index"); ok {
		if index < 0 || index > bot.rules.Len() {
			return nil, errRule(RuleErrInvalidIndex, "invalid rule index")
		}

		bot.rules.Insert(index, rule)
		return nil, nil
	}

	bot.rules.Add(rule)

	return nil, nil
}

func cmdRuleEdit(bot *Bot, req controlRequest) (map[string]any, error) {
	index, err := reqIndex(bot, req, "index")
	if err != nil {
		return nil, err
	}

	rule := bot.rules.Get(index)

	if action, ok := req["action"].(string); ok {
		if !IsValidRuleAction(action) {
			return nil, errRule(RuleErrInvalidAction, "invalid rule action %q", action)
		}
		rule.Action = action
	}

	apply := func(set *[]string, name string) {
		for _, add := range req.list("add-" + name) {
			found := false
			for _, have := range *set {
				if have == add {
					found = true
					break
				}
			}
			if !found {
				*set = append(*set, add)
			}
		}

		for _, remove := range req.list("remove-" + name) {
			for i := range *set {
				if (*set)[i] == remove {
					*set = append((*set)[:i], (*set)[i+1:]...)
					break
				}
			}
		}
	}

	apply(&rule.Servers, "servers")
	apply(&rule.Channels, "channels")
	apply(&rule.Origins, "origins")
	apply(&rule.Plugins, "plugins")
	apply(&rule.Events, "events")

	return nil, nil
}

func cmdRuleRemove(bot *Bot, req controlRequest) (map[string]any, error) {
	index, err := reqIndex(bot, req, "index")
	if err != nil {
		return nil, err
	}

	bot.rules.Remove(index)

	return nil, nil
}

func cmdRuleMove(bot *Bot, req controlRequest) (map[string]any, error) {
	from, err := reqIndex(bot, req, "from")
	if err != nil {
		return nil, err
	}

	to, ok := req.num("to")
	if !ok || to < 0 {
		return nil, errRule(RuleErrInvalidIndex, "invalid rule index")
	}

	bot.rules.Move(from, to)

	return nil, nil
}

func cmdHookList(bot *Bot, _ controlRequest) (map[string]any, error) {
	return map[string]any{"list": bot.hooks.ids()}, nil
}

func cmdHookAdd(bot *Bot, req controlRequest) (map[string]any, error) {
	return nil, bot.hooks.add(req.str("id"), req.str("path"))
}

func cmdHookRemove(bot *Bot, req controlRequest) (map[string]any, error) {
	return nil, bot.hooks.remove(req.str("id"))
}
