// Package command executes the small fixed set of appliance control commands.
// Execution is stateless pass-through over the session manager; an Ack means
// the appliance accepted the command, not that it completed.
package command

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/naspulse/internal/source"
)

// ErrUnsupportedCommand is returned for any command outside the fixed set.
var ErrUnsupportedCommand = errors.New("unsupported command")

// Ack reports that the appliance accepted a command.
type Ack struct {
	ID       string    `json:"id"`
	Command  string    `json:"command"`
	IssuedAt time.Time `json:"issued_at"`
}

type commandSpec struct {
	api     string
	method  string
	version int
	params  url.Values
}

// Commands maps each supported command to its appliance call. Reboot and
// shutdown use the core system API; the beep toggles go through the hardware
// beep control.
var commands = map[string]commandSpec{
	"restart":  {api: "SYNO.Core.System", method: "reboot", version: 1},
	"shutdown": {api: "SYNO.Core.System", method: "shutdown", version: 1},
	"beep_on":  {api: "SYNO.Core.Hardware.BeepControl", method: "set", version: 1, params: url.Values{"beep": {"true"}}},
	"beep_off": {api: "SYNO.Core.Hardware.BeepControl", method: "set", version: 1, params: url.Values{"beep": {"false"}}},
}

// Supported lists the accepted command names.
func Supported() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	return names
}

// Executor issues control commands through an authenticated caller.
type Executor struct {
	c      source.Caller
	logger *zap.Logger
}

// NewExecutor creates a command executor.
func NewExecutor(c source.Caller, logger *zap.Logger) *Executor {
	return &Executor{c: c, logger: logger.Named("command")}
}

// Execute issues one command. Unknown names fail with ErrUnsupportedCommand;
// appliance and session errors pass through untouched so callers can inspect
// the taxonomy. The session manager's single re-auth retry is the only retry.
func (e *Executor) Execute(ctx context.Context, cmd string, params url.Values) (*Ack, error) {
	spec, ok := commands[cmd]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd)
	}

	merged := url.Values{}
	for k, vs := range spec.params {
		merged[k] = vs
	}
	for k, vs := range params {
		merged[k] = vs
	}

	if _, err := e.c.Call(ctx, spec.api, spec.method, spec.version, merged); err != nil {
		e.logger.Warn("command rejected", zap.String("command", cmd), zap.Error(err))
		return nil, err
	}

	ack := &Ack{
		ID:       uuid.NewString(),
		Command:  cmd,
		IssuedAt: time.Now(),
	}
	e.logger.Info("command accepted", zap.String("command", cmd), zap.String("ack", ack.ID))
	return ack, nil
}
