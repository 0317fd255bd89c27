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

package hart_test

import (
	"testing"

	"rv64emu/internal/bus"
	"rv64emu/internal/csr"
	"rv64emu/internal/devices/ram"
	"rv64emu/internal/hart"
)

const ramBase = 0x8000_0000

func newTestHart(t *testing.T) (*hart.Hart, *bus.Bus) {
	t.Helper()
	b := bus.New()
	b.Map("ram", ramBase, ramBase+1<<20, ram.New(1<<20))
	h := hart.New(b, ramBase)
	return h, b
}

func putWord(t *testing.T, b *bus.Bus, addr uint64, w uint32) {
	t.Helper()
	if tr := b.WriteWord(addr, w); tr != nil {
		t.Fatalf("WriteWord(%#x): %v", addr, tr)
	}
}

// spec.md §8 scenario 1: ADDI sign-extension.
func TestADDISignExtension(t *testing.T) {
	h, b := newTestHart(t)
	putWord(t, b, ramBase, 0x7d008113) // ADDI x2, x1, 2000
	h.Reg[1] = 0
	if err := h.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.Reg[2] != 2000 {
		t.Fatalf("x2 = %d, want 2000", h.Reg[2])
	}
	if h.Reg[0] != 0 {
		t.Fatalf("x0 = %d, want 0", h.Reg[0])
	}

	putWord(t, b, h.PC, 0xc1818193) // ADDI x3, x3, -1000
	h.Reg[3] = 0
	if err := h.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.Reg[3] != 0xFFFF_FFFF_FFFF_FC18 {
		t.Fatalf("x3 = %#x, want 0xFFFFFFFFFFFFFC18", h.Reg[3])
	}
}

// spec.md §8 scenario 2: JAL/JALR sequence.
func TestJALSequence(t *testing.T) {
	h, b := newTestHart(t)
	h.PC = ramBase + 0x1000
	h.ResetPC = h.PC
	putWord(t, b, ramBase+0x1000, 0x004000ef) // JAL x1, +4
	if err := h.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.Reg[1] != ramBase+0x1004 {
		t.Fatalf("x1 = %#x, want %#x", h.Reg[1], uint64(ramBase+0x1004))
	}
	if h.PC != ramBase+0x1004 {
		t.Fatalf("PC = %#x, want %#x", h.PC, uint64(ramBase+0x1004))
	}
}

// spec.md §8 scenario 3: LW sign-extension.
func TestLWSignExtension(t *testing.T) {
	h, b := newTestHart(t)
	putWord(t, b, ramBase, 0xFFFF_FFFE)
	// LW x5, 0(x6)
	lw := uint32(0)
	lw |= 0 << 20  // imm=0
	lw |= 6 << 15  // rs1=x6
	lw |= 2 << 12  // funct3=010 (LW)
	lw |= 5 << 7   // rd=x5
	lw |= 0x03     // opcode LOAD
	putWord(t, b, ramBase+4, lw)
	h.PC = ramBase + 4
	h.Reg[6] = ramBase
	if err := h.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.Reg[5] != 0xFFFF_FFFF_FFFF_FFFE {
		t.Fatalf("x5 = %#x, want 0xFFFFFFFFFFFFFFFE", h.Reg[5])
	}
}

// spec.md §8 scenario 4: CSR write/read.
func TestCSRWriteRead(t *testing.T) {
	h, b := newTestHart(t)
	h.Reg[1] = 0x8000_0000
	// CSRRW x0, mtvec, x1
	csrrw := uint32(0)
	csrrw |= uint32(csr.Mtvec) << 20
	csrrw |= 1 << 15 // rs1=x1
	csrrw |= 1 << 12 // funct3=001 CSRRW
	csrrw |= 0 << 7  // rd=x0
	csrrw |= 0x73    // opcode SYSTEM
	putWord(t, b, ramBase, csrrw)

	// CSRRS x2, mtvec, x0
	csrrs := uint32(0)
	csrrs |= uint32(csr.Mtvec) << 20
	csrrs |= 0 << 15 // rs1=x0
	csrrs |= 2 << 12 // funct3=010 CSRRS
	csrrs |= 2 << 7  // rd=x2
	csrrs |= 0x73
	putWord(t, b, ramBase+4, csrrs)

	if err := h.Tick(); err != nil {
		t.Fatalf("Tick 1: %v", err)
	}
	if err := h.Tick(); err != nil {
		t.Fatalf("Tick 2: %v", err)
	}
	if h.Reg[2] != 0x8000_0000 {
		t.Fatalf("x2 = %#x, want 0x80000000", h.Reg[2])
	}
}

// spec.md §8 scenario 5: trap entry on illegal instruction.
func TestTrapOnIllegalInstruction(t *testing.T) {
	h, b := newTestHart(t)
	putWord(t, b, ramBase, 0x00000000)
	faultPC := h.PC
	if err := h.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.CSR.RawGet(csr.Mepc) != faultPC {
		t.Fatalf("MEPC = %#x, want %#x", h.CSR.RawGet(csr.Mepc), faultPC)
	}
	if h.CSR.RawGet(csr.Mcause) != 2 {
		t.Fatalf("MCAUSE = %d, want 2", h.CSR.RawGet(csr.Mcause))
	}
	mtvec := csr.DecodeMtvec(h.CSR.RawGet(csr.Mtvec))
	if h.PC != mtvec.Base {
		t.Fatalf("PC = %#x, want MTVEC.base %#x", h.PC, mtvec.Base)
	}
}

func TestMretRoundTrip(t *testing.T) {
	h, _ := newTestHart(t)
	prePC := h.PC
	h.CSR.RawSet(csr.Mstatus, csr.MstatusMIE)
	h.CSR.RawSet(csr.Mepc, prePC)
	// Simulate the state a trap entry would have left: MIE saved into
	// MPIE, MIE cleared.
	mstatus := h.CSR.RawGet(csr.Mstatus)
	mstatus = (mstatus &^ csr.MstatusMIE) | csr.MstatusMPIE
	h.CSR.RawSet(csr.Mstatus, mstatus)

	putWord(t, b(t, h), h.PC, 0x30200073) // MRET
	if err := h.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.PC != prePC {
		t.Fatalf("PC after MRET = %#x, want %#x", h.PC, prePC)
	}
	if h.CSR.RawGet(csr.Mstatus)&csr.MstatusMIE == 0 {
		t.Fatal("MSTATUS.MIE should be restored from MPIE after MRET")
	}
}

func b(t *testing.T, h *hart.Hart) *bus.Bus {
	t.Helper()
	return h.Bus
}

func TestMcycleMinstretMonotonic(t *testing.T) {
	h, b := newTestHart(t)
	putWord(t, b, ramBase, 0x00000013)   // ADDI x0, x0, 0 (NOP)
	putWord(t, b, ramBase+4, 0x00000013) // NOP
	var prevCycle, prevInstret uint64
	for i := 0; i < 2; i++ {
		if err := h.Tick(); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
		cycle := h.CSR.RawGet(csr.Mcycle)
		instret := h.CSR.RawGet(csr.Minstret)
		if cycle < prevCycle || instret < prevInstret {
			t.Fatalf("MCYCLE/MINSTRET not monotonic: %d/%d after %d/%d", cycle, instret, prevCycle, prevInstret)
		}
		prevCycle, prevInstret = cycle, instret
	}
}

func TestMaxStepsGuard(t *testing.T) {
	h, b := newTestHart(t)
	putWord(t, b, ramBase, 0x00000013) // NOP; the second Tick trips the guard before fetching
	h.MaxSteps = 1
	if err := h.Tick(); err != nil {
		t.Fatalf("first Tick: %v", err)
	}
	err := h.Tick()
	if err == nil {
		t.Fatal("second Tick should fail once MaxSteps is exceeded")
	}
	var guard *hart.ErrUnrecoverable
	if !asErrUnrecoverable(err, &guard) {
		t.Fatalf("error is not *hart.ErrUnrecoverable: %v", err)
	}
	if guard.Trap.Reason != hart.MaxStepsReason {
		t.Fatalf("Trap.Reason = %q, want %q", guard.Trap.Reason, hart.MaxStepsReason)
	}
}

func asErrUnrecoverable(err error, target **hart.ErrUnrecoverable) bool {
	e, ok := err.(*hart.ErrUnrecoverable)
	if ok {
		*target = e
	}
	return ok
}
