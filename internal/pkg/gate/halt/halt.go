// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package halt implements the terminal action taken when the gate refuses to boot.
package halt

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Action is what happens to the machine once the gate halts.
type Action string

// Actions.
const (
	ActionHalt     Action = "halt"
	ActionPowerOff Action = "poweroff"
	ActionReboot   Action = "reboot"
)

// ParseAction parses an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(s)); a {
	case ActionHalt, ActionPowerOff, ActionReboot:
		return a, nil
	default:
		return "", fmt.Errorf("unknown halt action %q", s)
	}
}

func (a Action) rebootCmd() int {
	switch a {
	case ActionPowerOff:
		return unix.LINUX_REBOOT_CMD_POWER_OFF
	case ActionReboot:
		return unix.LINUX_REBOOT_CMD_RESTART
	default:
		return unix.LINUX_REBOOT_CMD_HALT
	}
}

// Halter stops the boot.
//
// As PID 1 it halts the machine, otherwise it exits the process.
type Halter struct {
	action Action
	logger *zap.Logger

	getpid func() int
	sync   func()
	reboot func(cmd int) error
	exit   func(code int)
	park   func()
}

// New creates a Halter.
func New(action Action, logger *zap.Logger) *Halter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Halter{
		action: action,
		logger: logger,
		getpid: os.Getpid,
		sync:   unix.Sync,
		reboot: unix.Reboot,
		exit:   os.Exit,
		park:   func() { select {} },
	}
}

// Halt stops the boot with the given exit code.
//
// Halt doesn't return unless a test hook lets it.
func (h *Halter) Halt(code int) {
	if h.getpid() != 1 {
		h.logger.Info("exiting", zap.Int("code", code))
		h.exit(code)

		return
	}

	h.logger.Warn("halting the machine", zap.String("action", string(h.action)), zap.Int("code", code))

	h.sync()

	if err := h.reboot(h.action.rebootCmd()); err != nil {
		h.logger.Error("reboot syscall failed", zap.Error(err))
	}

	// PID 1 must never exit, the kernel would panic
	h.park()
}
