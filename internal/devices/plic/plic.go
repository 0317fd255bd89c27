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

// Package plic implements the Platform-Level Interrupt Controller
// (spec.md §4.6.3). New code; grounded on original_source's src/plic.rs
// register map and on the QEMU "virt" PLIC layout spec.md's memory map
// mirrors.
package plic

import (
	"sync"

	"rv64emu/internal/trap"
)

// NumSources bounds the number of interrupt sources this core models;
// source 0 is reserved (spec.md §4.6.3). 32 fits UART (commonly wired at
// source 10) and VirtIO-blk (commonly wired at source 1) with headroom.
const NumSources = 32

// Context indices. A single hart exposes two PLIC contexts: one for
// M-mode, one for S-mode (spec.md's interrupt model only traps to
// M-mode, but the S-mode context exists so a guest OS that programs
// supervisor-external-interrupt delivery sees the registers it expects).
const (
	ContextM = 0
	ContextS = 1
	NumContexts = 2
)

const (
	regPriorityBase = 0x000000
	regPriorityEnd  = 0x001000
	regPendingBase  = 0x001000
	regPendingEnd   = 0x001080
	regEnableBase   = 0x002000
	regEnableEnd    = 0x200000
	regContextBase  = 0x200000
	regContextEnd   = 0x4000000
	contextStride   = 0x1000
	enableStride    = 0x80
)

// PLIC routes edge-triggered interrupt sources to the contexts that claim
// them.
type PLIC struct {
	mu sync.Mutex

	priority [NumSources]uint32
	pending  uint32 // bit i set => source i has a latched, unclaimed interrupt
	inService uint32 // bit i set => source i has been claimed but not completed

	enable    [NumContexts]uint32
	threshold [NumContexts]uint32
}

// New returns a PLIC with every source at priority 0 (disabled).
func New() *PLIC {
	return &PLIC{}
}

// RaiseEdge latches source as pending. Per spec.md's Open Question
// resolution, the pending bit is latched on a driver-visible state
// transition (the edge), following UART/VirtIO convention, rather than
// guessing at level-sensitivity.
func (p *PLIC) RaiseEdge(source uint32) {
	if source == 0 || source >= NumSources {
		return
	}
	p.mu.Lock()
	p.pending |= 1 << source
	p.mu.Unlock()
}

// Pending reports whether context has a claimable interrupt: enabled,
// pending, not already in service, and above the context's threshold.
func (p *PLIC) Pending(ctx int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.highestLocked(ctx)
	return ok
}

func (p *PLIC) highestLocked(ctx int) (uint32, bool) {
	claimable := p.pending &^ p.inService & p.enable[ctx]
	var best uint32
	var bestPri uint32
	for s := uint32(1); s < NumSources; s++ {
		if claimable&(1<<s) == 0 {
			continue
		}
		pri := p.priority[s]
		if pri <= p.threshold[ctx] {
			continue
		}
		if pri > bestPri {
			bestPri, best = pri, s
		}
	}
	return best, bestPri > 0
}

// Claim atomically returns the highest-priority claimable source for ctx
// and marks it in-service, clearing its pending bit (spec.md §4.6.3).
func (p *PLIC) Claim(ctx int) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.highestLocked(ctx)
	if !ok {
		return 0
	}
	p.pending &^= 1 << s
	p.inService |= 1 << s
	return s
}

// Complete clears source's in-service state (spec.md §4.6.3).
func (p *PLIC) Complete(ctx int, source uint32) {
	if source == 0 || source >= NumSources {
		return
	}
	p.mu.Lock()
	p.inService &^= 1 << source
	p.mu.Unlock()
}

func (p *PLIC) ReadWord(addr uint64) (uint32, *trap.Trap) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case addr < regPriorityEnd:
		s := addr / 4
		if s == 0 || s >= NumSources {
			return 0, nil
		}
		return p.priority[s], nil
	case addr >= regPendingBase && addr < regPendingEnd:
		if addr-regPendingBase == 0 {
			return p.pending, nil
		}
		return 0, nil
	case addr >= regEnableBase && addr < regEnableEnd:
		ctx := int((addr - regEnableBase) / enableStride)
		word := (addr - regEnableBase) % enableStride / 4
		if ctx >= NumContexts || word != 0 {
			return 0, nil
		}
		return p.enable[ctx], nil
	case addr >= regContextBase && addr < regContextEnd:
		ctx := int((addr - regContextBase) / contextStride)
		off := (addr - regContextBase) % contextStride
		if ctx >= NumContexts {
			return 0, nil
		}
		switch off {
		case 0:
			return p.threshold[ctx], nil
		case 4:
			s, ok := p.highestLocked(ctx)
			if !ok {
				return 0, nil
			}
			p.pending &^= 1 << s
			p.inService |= 1 << s
			return s, nil
		}
		return 0, nil
	}
	return 0, trap.Unaligned(false, addr)
}

func (p *PLIC) WriteWord(addr uint64, v uint32) *trap.Trap {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case addr < regPriorityEnd:
		s := addr / 4
		if s == 0 || s >= NumSources {
			return nil
		}
		p.priority[s] = v
		return nil
	case addr >= regPendingBase && addr < regPendingEnd:
		return nil // pending bits are read-only externally
	case addr >= regEnableBase && addr < regEnableEnd:
		ctx := int((addr - regEnableBase) / enableStride)
		word := (addr - regEnableBase) % enableStride / 4
		if ctx >= NumContexts || word != 0 {
			return nil
		}
		p.enable[ctx] = v
		return nil
	case addr >= regContextBase && addr < regContextEnd:
		ctx := int((addr - regContextBase) / contextStride)
		off := (addr - regContextBase) % contextStride
		if ctx >= NumContexts {
			return nil
		}
		switch off {
		case 0:
			p.threshold[ctx] = v
			return nil
		case 4:
			p.inService &^= 1 << v
			return nil
		}
		return nil
	}
	return trap.Unaligned(true, addr)
}

// MMIO registers require natural alignment (spec.md §4.4).
func (p *PLIC) ReadByte(addr uint64) (uint8, *trap.Trap)  { return 0, trap.Unaligned(false, addr) }
func (p *PLIC) ReadHalf(addr uint64) (uint16, *trap.Trap) { return 0, trap.Unaligned(false, addr) }
func (p *PLIC) WriteByte(addr uint64, v uint8) *trap.Trap  { return trap.Unaligned(true, addr) }
func (p *PLIC) WriteHalf(addr uint64, v uint16) *trap.Trap { return trap.Unaligned(true, addr) }

func (p *PLIC) ReadDouble(addr uint64) (uint64, *trap.Trap) {
	lo, t := p.ReadWord(addr)
	if t != nil {
		return 0, t
	}
	hi, t := p.ReadWord(addr + 4)
	if t != nil {
		return 0, t
	}
	return uint64(lo) | uint64(hi)<<32, nil
}

func (p *PLIC) WriteDouble(addr uint64, v uint64) *trap.Trap {
	if t := p.WriteWord(addr, uint32(v)); t != nil {
		return t
	}
	return p.WriteWord(addr+4, uint32(v>>32))
}
