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

// Package rom implements the immutable low-memory region spec.md §4.5
// describes: bounds-checked reads identical to RAM, but any write traps.
package rom

import (
	"fmt"

	"rv64emu/internal/trap"
)

// ROM is an immutable byte vector.
type ROM struct {
	data []byte
}

// New returns a ROM backed by a copy of data, zero-padded (or truncated)
// to size bytes.
func New(data []byte, size int) *ROM {
	r := &ROM{data: make([]byte, size)}
	copy(r.data, data)
	return r
}

func (r *ROM) bounds(addr uint64, n int) *trap.Trap {
	if addr+uint64(n) > uint64(len(r.data)) {
		return trap.MemoryFault(false, addr)
	}
	return nil
}

func (r *ROM) ReadByte(addr uint64) (uint8, *trap.Trap) {
	if t := r.bounds(addr, 1); t != nil {
		return 0, t
	}
	return r.data[addr], nil
}

func (r *ROM) ReadHalf(addr uint64) (uint16, *trap.Trap) {
	if t := r.bounds(addr, 2); t != nil {
		return 0, t
	}
	return uint16(r.data[addr]) | uint16(r.data[addr+1])<<8, nil
}

func (r *ROM) ReadWord(addr uint64) (uint32, *trap.Trap) {
	if t := r.bounds(addr, 4); t != nil {
		return 0, t
	}
	d := r.data
	return uint32(d[addr]) | uint32(d[addr+1])<<8 | uint32(d[addr+2])<<16 | uint32(d[addr+3])<<24, nil
}

func (r *ROM) ReadDouble(addr uint64) (uint64, *trap.Trap) {
	if t := r.bounds(addr, 8); t != nil {
		return 0, t
	}
	d := r.data
	return uint64(d[addr]) | uint64(d[addr+1])<<8 | uint64(d[addr+2])<<16 | uint64(d[addr+3])<<24 |
		uint64(d[addr+4])<<32 | uint64(d[addr+5])<<40 | uint64(d[addr+6])<<48 | uint64(d[addr+7])<<56, nil
}

// LoadBytes bulk-copies data at offset off (ELF section / DTB loading
// before the hart runs); bus writes still trap.
func (r *ROM) LoadBytes(off uint64, data []byte) error {
	if off+uint64(len(data)) > uint64(len(r.data)) {
		return fmt.Errorf("rom: LoadBytes(%#x, %d bytes) out of bounds (size %d)", off, len(data), len(r.data))
	}
	copy(r.data[off:], data)
	return nil
}

// WriteByte, and every other write entry point: ROM rejects all writes
// with a MemoryFault at the attempted address (spec.md §4.5).
func (r *ROM) WriteByte(addr uint64, v uint8) *trap.Trap     { return trap.MemoryFault(true, addr) }
func (r *ROM) WriteHalf(addr uint64, v uint16) *trap.Trap    { return trap.MemoryFault(true, addr) }
func (r *ROM) WriteWord(addr uint64, v uint32) *trap.Trap    { return trap.MemoryFault(true, addr) }
func (r *ROM) WriteDouble(addr uint64, v uint64) *trap.Trap  { return trap.MemoryFault(true, addr) }
