package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Command is one REPL command. Name and aliases resolve case-insensitively;
// the registry keeps commands in insertion order for help output.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Run         func(ctx context.Context, args []string) error
}

// Registry maps command names and aliases to handlers. Names and aliases
// must be unique across the whole table; newRegistry panics otherwise so a
// bad table fails at startup rather than shadowing a command at runtime.
type Registry struct {
	commands *orderedmap.OrderedMap[string, *Command]
	index    map[string]*Command
	logger   *logrus.Logger
}

func newRegistry(logger *logrus.Logger, cmds []*Command) *Registry {
	reg := &Registry{
		commands: orderedmap.New[string, *Command](),
		index:    make(map[string]*Command),
		logger:   logger,
	}
	for _, cmd := range cmds {
		reg.add(cmd)
	}
	return reg
}

func (reg *Registry) add(cmd *Command) {
	for _, key := range append([]string{cmd.Name}, cmd.Aliases...) {
		key = strings.ToLower(key)
		if _, taken := reg.index[key]; taken {
			panic(fmt.Sprintf("command registry: duplicate name or alias %q", key))
		}
		reg.index[key] = cmd
	}
	reg.commands.Set(cmd.Name, cmd)
}

// Lookup resolves a command by name or alias, case-insensitively.
// Returns nil when nothing matches.
func (reg *Registry) Lookup(name string) *Command {
	return reg.index[strings.ToLower(name)]
}

// CompletionWords returns every command name and alias, sorted.
func (reg *Registry) CompletionWords() []string {
	words := make([]string, 0, len(reg.index))
	for w := range reg.index {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// Dispatch parses one input line and runs the matching handler. Handler
// errors and panics are reported to the user and never escape, so a bad
// command cannot take down the loop.
func (reg *Registry) Dispatch(ctx context.Context, input string, display *Display) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(fields[0])
	cmd := reg.Lookup(name)
	if cmd == nil {
		display.Error(fmt.Sprintf("Unknown command: %s. Type 'help' for available commands.", name))
		return
	}
	if err := reg.execute(ctx, cmd, fields[1:]); err != nil {
		display.Error(fmt.Sprintf("Command failed: %s", err))
	}
}

func (reg *Registry) execute(ctx context.Context, cmd *Command, args []string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			reg.logger.WithField("command", cmd.Name).Debugf("Command handler panicked: %v", p)
			err = fmt.Errorf("%v", p)
		}
	}()
	return cmd.Run(ctx, args)
}

// replCommands builds the command table bound to a REPL instance.
// Insertion order here is the order help displays them in.
func replCommands(r *REPL) []*Command {
	return []*Command{
		{Name: "connect", Aliases: []string{"c"}, Description: "Connect to treadmill", Run: r.cmdConnect},
		{Name: "disconnect", Aliases: []string{"dc"}, Description: "Disconnect from device", Run: r.cmdDisconnect},
		{Name: "start", Aliases: []string{"s"}, Description: "Start or resume treadmill", Run: r.cmdStart},
		{Name: "resume", Aliases: []string{"r"}, Description: "Resume paused treadmill", Run: r.cmdStart},
		{Name: "stop", Aliases: []string{"x"}, Description: "Stop treadmill", Run: r.cmdStop},
		{Name: "pause", Aliases: []string{"p"}, Description: "Pause treadmill", Run: r.cmdPause},
		{Name: "speed", Aliases: []string{"sp"}, Description: "Set target speed in km/h", Usage: "speed <km/h>", Run: r.cmdSpeed},
		{Name: "status", Aliases: []string{"st"}, Description: "Show current sensor values", Run: r.cmdStatus},
		{Name: "live", Aliases: []string{"l"}, Description: "Toggle live display mode", Run: r.cmdLive},
		{Name: "info", Aliases: []string{"i"}, Description: "Show device and debug information", Run: r.cmdInfo},
		{Name: "help", Aliases: []string{"h", "?"}, Description: "Show all available commands", Run: r.cmdHelp},
		{Name: "quit", Aliases: []string{"q", "exit"}, Description: "Exit the REPL", Run: r.cmdQuit},
	}
}
