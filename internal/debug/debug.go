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

// Package debug defines the command/event vocabulary a GDB Remote Serial
// Protocol server (an external collaborator; spec.md §1 names it
// deliberately out of scope) would drive the hart's retirement loop
// through. Grounded on original_source's src/gdb/emulator.go-ish
// EmulationCommand/ExecutionMode pair and its run_hart loop, translated
// from an mpsc channel pair into Go channels.
package debug

// ExecutionMode is the retirement loop's scheduling state, set by the
// debug session and consulted once per prospective retirement.
type ExecutionMode int

const (
	// ModeContinue retires instructions without stopping until a
	// breakpoint or halt.
	ModeContinue ExecutionMode = iota
	// ModeStep retires exactly one instruction, then reverts to ModePause.
	ModeStep
	// ModePause blocks the retirement loop until a Command arrives.
	ModePause
	// ModeHalt stops the loop permanently; only a fresh session restarts it.
	ModeHalt
)

// Command is one request a debug session sends to the hart's control
// loop. Exactly one of the typed fields is meaningful per Kind.
type Command struct {
	Kind CommandKind

	Addr uint64 // AddBreakpoint/RemoveBreakpoint/ReadMemory/WriteMemory
	Len  uint64 // ReadMemory

	Registers []uint64 // SetRegisters: [pc, x0..x31]
	Data      []byte   // WriteMemory

	Mode ExecutionMode // SetResumeAction

	// Reply, if non-nil, receives exactly one Result before the loop
	// moves on to the next command; register/memory reads are answered
	// this way rather than through a return value, since the command is
	// handed across a channel to a different goroutine.
	Reply chan Result
}

// CommandKind tags which field(s) of a Command are populated.
type CommandKind int

const (
	AddBreakpoint CommandKind = iota
	RemoveBreakpoint
	ReadRegisters
	SetRegisters
	ReadMemory
	WriteMemory
	Resume
	SetResumeAction
	ClearResumeAction
)

// Result answers a ReadRegisters/ReadMemory command.
type Result struct {
	Registers []uint64
	Data      []byte
	Err       error
}

// StopReason classifies why the retirement loop stopped retiring and
// sent a StopEvent.
type StopReason int

const (
	StopBreakpoint StopReason = iota
	StopHalt
	StopError
)

// StopEvent is emitted on the outbound channel whenever the loop leaves
// ModeContinue/ModeStep on its own (breakpoint hit, clean shutdown, or
// an unrecoverable trap) so a debug session can report it upstream.
type StopEvent struct {
	Reason StopReason
	PC     uint64
	Err    error
}

// Session is the shared-channel handle a debug server and the hart's
// control loop rendezvous through (spec.md §5's "bounded message channel
// carrying commands" plus its reply/event channels).
type Session struct {
	Commands chan Command
	Events   chan StopEvent
}

// NewSession returns a Session with the bounded command queue spec.md §5
// specifies; both channels get the same depth. The hart's sends on a full
// Events channel block until the debug client receives.
func NewSession(depth int) *Session {
	return &Session{
		Commands: make(chan Command, depth),
		Events:   make(chan StopEvent, depth),
	}
}
