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

// Package rtc implements the real-time clock register pair the CLINT
// forwards MTIME/MTIMECMP accesses to (spec.md §4.6.1). Grounded on
// original_source's src/rtc.rs; new code, as the teacher has no notion of
// wall-clock time.
package rtc

import (
	"sync"
	"time"

	"rv64emu/internal/trap"
)

// Device-local register offsets (spec.md §4.6.1).
const (
	RegMtimecmp = 0x0
	RegMtime    = 0x8
)

// RTC tracks elapsed time since construction and a comparator value; a
// timer interrupt is pending whenever Mtime() >= mtimecmp.
type RTC struct {
	mu        sync.Mutex
	start     time.Time
	mtimecmp  uint64
	nowOffset uint64 // lets tests freeze/advance time deterministically
}

// New returns an RTC whose mtime starts counting from now.
func New() *RTC {
	return &RTC{start: time.Now(), mtimecmp: ^uint64(0)}
}

// Mtime returns the elapsed nanoseconds since construction.
func (r *RTC) Mtime() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mtimeLocked()
}

func (r *RTC) mtimeLocked() uint64 {
	return uint64(time.Since(r.start)) + r.nowOffset
}

// Pending reports whether mtime has reached mtimecmp (spec.md §4.6.1).
func (r *RTC) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mtimeLocked() >= r.mtimecmp
}

// Advance moves the clock's notion of "now" forward by d; used by tests
// that need a deterministic timer-interrupt trigger.
func (r *RTC) Advance(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nowOffset += uint64(d)
}

func (r *RTC) ReadDouble(addr uint64) (uint64, *trap.Trap) {
	switch addr {
	case RegMtimecmp:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.mtimecmp, nil
	case RegMtime:
		return r.Mtime(), nil
	}
	return 0, trap.MemoryFault(false, addr)
}

func (r *RTC) WriteDouble(addr uint64, v uint64) *trap.Trap {
	switch addr {
	case RegMtimecmp:
		r.mu.Lock()
		r.mtimecmp = v
		r.mu.Unlock()
		return nil
	case RegMtime:
		// mtime is read-only from the bus's perspective; ignore.
		return nil
	}
	return trap.MemoryFault(true, addr)
}

// ReadWord/WriteWord split the 64-bit registers into their low/high halves
// "the low/high halves may be written separately" (spec.md §4.6.1);
// RegMtimecmp+4 and RegMtime+4 address the high half.
func (r *RTC) ReadWord(addr uint64) (uint32, *trap.Trap) {
	base := addr &^ 0x4
	hi := addr&0x4 != 0
	v, t := r.ReadDouble(base)
	if t != nil {
		return 0, t
	}
	if hi {
		return uint32(v >> 32), nil
	}
	return uint32(v), nil
}

func (r *RTC) WriteWord(addr uint64, v uint32) *trap.Trap {
	base := addr &^ 0x4
	hi := addr&0x4 != 0
	old, t := r.ReadDouble(base)
	if t != nil {
		return t
	}
	var nv uint64
	if hi {
		nv = old&0xffffffff | uint64(v)<<32
	} else {
		nv = old&0xffffffff00000000 | uint64(v)
	}
	return r.WriteDouble(base, nv)
}

func (r *RTC) ReadByte(addr uint64) (uint8, *trap.Trap) {
	v, t := r.ReadWord(addr &^ 0x3)
	if t != nil {
		return 0, t
	}
	return uint8(v >> ((addr & 0x3) * 8)), nil
}

func (r *RTC) ReadHalf(addr uint64) (uint16, *trap.Trap) {
	v, t := r.ReadWord(addr &^ 0x3)
	if t != nil {
		return 0, t
	}
	return uint16(v >> ((addr & 0x3) * 8)), nil
}

func (r *RTC) WriteByte(addr uint64, v uint8) *trap.Trap  { return trap.Unaligned(true, addr) }
func (r *RTC) WriteHalf(addr uint64, v uint16) *trap.Trap { return trap.Unaligned(true, addr) }
