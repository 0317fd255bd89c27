// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hart

import "rv64emu/internal/debug"

// Run drives the retirement loop forever, honoring commands from sess
// (which may be nil: a hart with no attached debug session always runs
// in ModeContinue). Grounded on original_source's gdb/emulator.go
// run_hart: the mode/breakpoint bookkeeping lives here instead of in the
// (out-of-scope) GDB server, which only ever talks to the hart through
// sess's channels.
func (h *Hart) Run(sess *debug.Session) error {
	mode := debug.ModeContinue
	breakpoints := map[uint64]bool{}

	for {
		if sess != nil {
			switch mode {
			case debug.ModeContinue, debug.ModeStep:
				mode = h.drainCommand(sess, breakpoints, mode, false)
			case debug.ModePause:
				mode = h.drainCommand(sess, breakpoints, mode, true)
			}
		}

		if mode == debug.ModeHalt {
			if sess != nil {
				sess.Events <- debug.StopEvent{Reason: debug.StopHalt, PC: h.PC}
			}
			return nil
		}
		if mode == debug.ModePause {
			continue
		}
		if breakpoints[h.PC] {
			mode = debug.ModePause
			if sess != nil {
				sess.Events <- debug.StopEvent{Reason: debug.StopBreakpoint, PC: h.PC}
			}
			continue
		}

		if err := h.Tick(); err != nil {
			if sess != nil {
				sess.Events <- debug.StopEvent{Reason: debug.StopError, PC: h.PC, Err: err}
			}
			return err
		}
		if mode == debug.ModeStep {
			mode = debug.ModePause
		}
	}
}

// drainCommand applies at most one pending command (blocking only when
// block is true, i.e. the loop is paused and has nothing better to do)
// and returns the resulting mode.
func (h *Hart) drainCommand(sess *debug.Session, breakpoints map[uint64]bool, mode debug.ExecutionMode, block bool) debug.ExecutionMode {
	var cmd debug.Command
	if block {
		cmd = <-sess.Commands
	} else {
		select {
		case cmd = <-sess.Commands:
		default:
			return mode
		}
	}
	h.apply(cmd, breakpoints, &mode)
	return mode
}

func (h *Hart) apply(cmd debug.Command, breakpoints map[uint64]bool, mode *debug.ExecutionMode) {
	switch cmd.Kind {
	case debug.AddBreakpoint:
		breakpoints[cmd.Addr] = true
	case debug.RemoveBreakpoint:
		delete(breakpoints, cmd.Addr)
	case debug.ReadRegisters:
		regs := make([]uint64, 33)
		regs[0] = h.PC
		copy(regs[1:], h.Reg[:])
		if cmd.Reply != nil {
			cmd.Reply <- debug.Result{Registers: regs}
		}
	case debug.SetRegisters:
		if len(cmd.Registers) >= 33 {
			h.PC = cmd.Registers[0]
			copy(h.Reg[:], cmd.Registers[1:33])
		}
	case debug.ReadMemory:
		data := make([]byte, cmd.Len)
		for i := range data {
			b, t := h.Bus.ReadByte(cmd.Addr + uint64(i))
			if t != nil {
				if cmd.Reply != nil {
					cmd.Reply <- debug.Result{Err: &ErrUnrecoverable{Trap: t}}
				}
				return
			}
			data[i] = b
		}
		if cmd.Reply != nil {
			cmd.Reply <- debug.Result{Data: data}
		}
	case debug.WriteMemory:
		for i, b := range cmd.Data {
			h.Bus.WriteByte(cmd.Addr+uint64(i), b)
		}
	case debug.Resume:
		*mode = debug.ModeContinue
	case debug.SetResumeAction:
		*mode = cmd.Mode
	case debug.ClearResumeAction:
		*mode = debug.ModeContinue
	}
}
