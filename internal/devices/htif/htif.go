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

// Package htif implements the legacy "tohost" Host Target Interface
// (spec.md §4.5): the degenerate device the RISC-V architectural test
// suite pokes to signal completion. Grounded on original_source's
// src/htif.rs; the teacher has no equivalent (it boots a bare ELF with
// Linux-syscall-style ecalls, not the riscv-tests harness).
package htif

import "rv64emu/internal/trap"

// HTIF has exactly one observable behavior: any write halts the core.
type HTIF struct {
	// LastValue is the last word written to tohost (the architectural
	// test's pass/fail payload); cmd/rvemu does not read it.
	LastValue uint64
}

// New returns an HTIF device.
func New() *HTIF { return &HTIF{} }

func (h *HTIF) ReadByte(addr uint64) (uint8, *trap.Trap)    { return 0, trap.MemoryFault(false, addr) }
func (h *HTIF) ReadHalf(addr uint64) (uint16, *trap.Trap)   { return 0, trap.MemoryFault(false, addr) }
func (h *HTIF) ReadWord(addr uint64) (uint32, *trap.Trap)   { return 0, trap.MemoryFault(false, addr) }
func (h *HTIF) ReadDouble(addr uint64) (uint64, *trap.Trap) { return 0, trap.MemoryFault(false, addr) }

func (h *HTIF) WriteByte(addr uint64, v uint8) *trap.Trap {
	h.LastValue = uint64(v)
	return trap.HaltTrap()
}

func (h *HTIF) WriteHalf(addr uint64, v uint16) *trap.Trap {
	h.LastValue = uint64(v)
	return trap.HaltTrap()
}

func (h *HTIF) WriteWord(addr uint64, v uint32) *trap.Trap {
	h.LastValue = uint64(v)
	return trap.HaltTrap()
}

func (h *HTIF) WriteDouble(addr uint64, v uint64) *trap.Trap {
	h.LastValue = v
	return trap.HaltTrap()
}
