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

// Package bus implements the address-routed device dispatcher described
// in spec.md §4.4: an ordered list of (half-open range, Device) mappings,
// with width-aware read/write dispatch translating a bus address into a
// device-local offset.
package bus

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"rv64emu/internal/trap"
)

// Device is the single polymorphic contract every memory-mapped peripheral
// implements (spec.md §3 "Device"). addr is already translated to be
// relative to the device's mapping base.
type Device interface {
	ReadByte(addr uint64) (uint8, *trap.Trap)
	ReadHalf(addr uint64) (uint16, *trap.Trap)
	ReadWord(addr uint64) (uint32, *trap.Trap)
	ReadDouble(addr uint64) (uint64, *trap.Trap)
	WriteByte(addr uint64, v uint8) *trap.Trap
	WriteHalf(addr uint64, v uint16) *trap.Trap
	WriteWord(addr uint64, v uint32) *trap.Trap
	WriteDouble(addr uint64, v uint64) *trap.Trap
}

type mapping struct {
	start, end uint64 // half-open [start, end)
	name       string
	dev        Device
}

// Bus is the ordered sequence of (range, device) mappings spec.md §3
// describes. The device list is insertion-only after setup (§4.4), so a
// single RWMutex, held briefly by readers and only by the writer during
// Map, is enough to let the hart thread and an external debug thread
// access it concurrently (§5).
type Bus struct {
	mu       sync.RWMutex
	mappings []mapping
	log      *slog.Logger
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{log: slog.Default().With("component", "bus")}
}

// Map registers dev at the half-open byte range [start, end). It panics if
// the range overlaps an existing mapping: spec.md §3 says overlap is only
// enforced at construction time, and construction happens before the hart
// starts ticking.
func (b *Bus) Map(name string, start, end uint64, dev Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.mappings {
		if start < m.end && m.start < end {
			panic(fmt.Sprintf("bus: %#x-%#x (%s) overlaps existing mapping %#x-%#x (%s)", start, end, name, m.start, m.end, m.name))
		}
	}
	b.mappings = append(b.mappings, mapping{start: start, end: end, name: name, dev: dev})
	sort.Slice(b.mappings, func(i, j int) bool { return b.mappings[i].start < b.mappings[j].start })
}

// find returns the mapping covering addr, or nil.
func (b *Bus) find(addr uint64) *mapping {
	// mappings is small (a handful of platform devices plus RAM/ROM) and
	// kept sorted by start; a linear scan is simpler than a binary search
	// and every real memory map in spec.md §6 has well under a dozen
	// entries.
	for i := range b.mappings {
		m := &b.mappings[i]
		if addr >= m.start && addr < m.end {
			return m
		}
	}
	return nil
}

// unmapped logs and builds the trap returned for an access outside every
// mapped range; faults are rare enough in a working guest that a Warn per
// occurrence is useful rather than noisy.
func (b *Bus) unmapped(write bool, addr uint64) *trap.Trap {
	b.log.Warn("unmapped bus access", "addr", addr, "write", write)
	return trap.Unmapped(write, addr)
}

func (b *Bus) ReadByte(addr uint64) (uint8, *trap.Trap) {
	b.mu.RLock()
	m := b.find(addr)
	b.mu.RUnlock()
	if m == nil {
		return 0, b.unmapped(false, addr)
	}
	return m.dev.ReadByte(addr - m.start)
}

func (b *Bus) ReadHalf(addr uint64) (uint16, *trap.Trap) {
	b.mu.RLock()
	m := b.find(addr)
	b.mu.RUnlock()
	if m == nil {
		return 0, b.unmapped(false, addr)
	}
	return m.dev.ReadHalf(addr - m.start)
}

func (b *Bus) ReadWord(addr uint64) (uint32, *trap.Trap) {
	b.mu.RLock()
	m := b.find(addr)
	b.mu.RUnlock()
	if m == nil {
		return 0, b.unmapped(false, addr)
	}
	return m.dev.ReadWord(addr - m.start)
}

func (b *Bus) ReadDouble(addr uint64) (uint64, *trap.Trap) {
	b.mu.RLock()
	m := b.find(addr)
	b.mu.RUnlock()
	if m == nil {
		return 0, b.unmapped(false, addr)
	}
	return m.dev.ReadDouble(addr - m.start)
}

func (b *Bus) WriteByte(addr uint64, v uint8) *trap.Trap {
	b.mu.RLock()
	m := b.find(addr)
	b.mu.RUnlock()
	if m == nil {
		return b.unmapped(true, addr)
	}
	return m.dev.WriteByte(addr-m.start, v)
}

func (b *Bus) WriteHalf(addr uint64, v uint16) *trap.Trap {
	b.mu.RLock()
	m := b.find(addr)
	b.mu.RUnlock()
	if m == nil {
		return b.unmapped(true, addr)
	}
	return m.dev.WriteHalf(addr-m.start, v)
}

func (b *Bus) WriteWord(addr uint64, v uint32) *trap.Trap {
	b.mu.RLock()
	m := b.find(addr)
	b.mu.RUnlock()
	if m == nil {
		return b.unmapped(true, addr)
	}
	return m.dev.WriteWord(addr-m.start, v)
}

func (b *Bus) WriteDouble(addr uint64, v uint64) *trap.Trap {
	b.mu.RLock()
	m := b.find(addr)
	b.mu.RUnlock()
	if m == nil {
		return b.unmapped(true, addr)
	}
	return m.dev.WriteDouble(addr-m.start, v)
}

// LoadBytes is a bulk write used by the ELF loader to populate RAM/ROM
// before the hart starts ticking. It requires the whole range to be
// covered by a single mapping.
func (b *Bus) LoadBytes(addr uint64, data []byte) error {
	b.mu.RLock()
	m := b.find(addr)
	b.mu.RUnlock()
	if m == nil || addr+uint64(len(data)) > m.end {
		return fmt.Errorf("bus: LoadBytes(%#x, %d bytes) doesn't fit in a single mapping", addr, len(data))
	}
	bulk, ok := m.dev.(interface{ LoadBytes(off uint64, data []byte) error })
	if !ok {
		return fmt.Errorf("bus: device %q at %#x doesn't support bulk loads", m.name, m.start)
	}
	return bulk.LoadBytes(addr-m.start, data)
}
