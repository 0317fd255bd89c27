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

// Package ram implements main memory (spec.md §4.5): a configurable-size
// byte-addressable store, zero-initialized, accepting any alignment. The
// little-endian byte-at-a-time load/store shape is kept from the teacher's
// VM.Mem direct-indexing (vm.go, rvi.go's ld/sd/lw/sw), generalized from a
// fixed global array to a device with an arbitrary mapping base.
package ram

import (
	"fmt"
	"sync"

	"rv64emu/internal/trap"
)

// DefaultSize is spec.md §3's "default 128 MiB".
const DefaultSize = 128 << 20

// RAM is byte-addressable storage. Multi-byte accesses are little-endian
// and need not be atomic beyond byte granularity (spec.md §4.5); a mutex
// instead guards whole-device concurrent access per the debug/hart
// threading model of §5.
type RAM struct {
	mu   sync.Mutex
	data []byte
}

// New returns size bytes of zeroed RAM.
func New(size int) *RAM {
	return &RAM{data: make([]byte, size)}
}

func (m *RAM) bounds(addr uint64, n int) *trap.Trap {
	if addr+uint64(n) > uint64(len(m.data)) {
		return trap.MemoryFault(false, addr)
	}
	return nil
}

func (m *RAM) ReadByte(addr uint64) (uint8, *trap.Trap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.bounds(addr, 1); t != nil {
		return 0, t
	}
	return m.data[addr], nil
}

func (m *RAM) ReadHalf(addr uint64) (uint16, *trap.Trap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.bounds(addr, 2); t != nil {
		return 0, t
	}
	return uint16(m.data[addr]) | uint16(m.data[addr+1])<<8, nil
}

func (m *RAM) ReadWord(addr uint64) (uint32, *trap.Trap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.bounds(addr, 4); t != nil {
		return 0, t
	}
	d := m.data
	return uint32(d[addr]) | uint32(d[addr+1])<<8 | uint32(d[addr+2])<<16 | uint32(d[addr+3])<<24, nil
}

func (m *RAM) ReadDouble(addr uint64) (uint64, *trap.Trap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.bounds(addr, 8); t != nil {
		return 0, t
	}
	d := m.data
	return uint64(d[addr]) | uint64(d[addr+1])<<8 | uint64(d[addr+2])<<16 | uint64(d[addr+3])<<24 |
		uint64(d[addr+4])<<32 | uint64(d[addr+5])<<40 | uint64(d[addr+6])<<48 | uint64(d[addr+7])<<56, nil
}

func (m *RAM) WriteByte(addr uint64, v uint8) *trap.Trap {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.bounds(addr, 1); t != nil {
		return t
	}
	m.data[addr] = v
	return nil
}

func (m *RAM) WriteHalf(addr uint64, v uint16) *trap.Trap {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.bounds(addr, 2); t != nil {
		return t
	}
	m.data[addr] = byte(v)
	m.data[addr+1] = byte(v >> 8)
	return nil
}

func (m *RAM) WriteWord(addr uint64, v uint32) *trap.Trap {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.bounds(addr, 4); t != nil {
		return t
	}
	d := m.data
	d[addr] = byte(v)
	d[addr+1] = byte(v >> 8)
	d[addr+2] = byte(v >> 16)
	d[addr+3] = byte(v >> 24)
	return nil
}

func (m *RAM) WriteDouble(addr uint64, v uint64) *trap.Trap {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.bounds(addr, 8); t != nil {
		return t
	}
	d := m.data
	d[addr] = byte(v)
	d[addr+1] = byte(v >> 8)
	d[addr+2] = byte(v >> 16)
	d[addr+3] = byte(v >> 24)
	d[addr+4] = byte(v >> 32)
	d[addr+5] = byte(v >> 40)
	d[addr+6] = byte(v >> 48)
	d[addr+7] = byte(v >> 56)
	return nil
}

// LoadBytes bulk-writes data at offset off, for ELF section / DTB loading.
func (m *RAM) LoadBytes(off uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off+uint64(len(data)) > uint64(len(m.data)) {
		return fmt.Errorf("ram: LoadBytes(%#x, %d bytes) out of bounds (size %d)", off, len(data), len(m.data))
	}
	copy(m.data[off:], data)
	return nil
}

// ReadBytes copies n bytes from the device for out-of-band consumers (the
// debug server's ReadMemory command, or the signature dumper).
func (m *RAM) ReadBytes(off uint64, n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off+uint64(n) > uint64(len(m.data)) {
		return nil, fmt.Errorf("ram: ReadBytes(%#x, %d bytes) out of bounds (size %d)", off, n, len(m.data))
	}
	out := make([]byte, n)
	copy(out, m.data[off:off+uint64(n)])
	return out, nil
}

// Size returns the RAM's capacity in bytes.
func (m *RAM) Size() uint64 { return uint64(len(m.data)) }
