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

// Package hart implements the fetch-decode-execute retirement loop
// (spec.md §4.3): register file, PC, trap entry/return, and interrupt
// arbitration, driving the bus and CSR file. Generalized from the
// teacher's vm.go/rvi.go/rvc.go (VM.Run, the per-opcode functions, and
// the flags{updatedPC,...} bookkeeping) from a 32-register pure-integer
// toy VM into a privileged RV64IMAC core with CSR-mediated traps.
package hart

import (
	"fmt"
	"log/slog"

	"rv64emu/internal/bus"
	"rv64emu/internal/csr"
	"rv64emu/internal/isa"
	"rv64emu/internal/trap"
)

// Register numbers referenced by name; riscv-spec-v2.2, Table 20.1.
const (
	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegA0   = 10
	RegA1   = 11
	RegA6   = 16
	RegA7   = 17
)

// RegNames maps register numbers to their ABI mnemonics, used only for
// diagnostics (debug register dumps, trap messages).
var RegNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// cyclesPerInstruction is the constant MCYCLE increment per retirement
// (spec.md §4.2; Open Question: "arbitrary and should be configurable").
const cyclesPerInstruction = 3

// TimerSource reports the CLINT-owned interrupt lines for this hart.
type TimerSource interface {
	MSIPPending() bool
	MTIPPending() bool
}

// ExternalSource reports whether the PLIC has a claimable interrupt for
// a given context.
type ExternalSource interface {
	Pending(ctx int) bool
}

// Hart is the single-hart execution engine (spec.md §3 "Hart").
type Hart struct {
	Reg [32]uint64
	PC  uint64
	CSR *csr.File
	Bus *bus.Bus

	Stop bool

	ResetPC uint64

	// Priv is the current privilege level (csr.PrivMachine,
	// csr.PrivSupervisor, or csr.PrivUser, which MRET/SRET can return to).
	Priv uint64

	Timer    TimerSource
	External ExternalSource
	extCtx   int

	// reservation models LR/SC's per-hart reservation set: a single
	// address, valid until the next SC or any store by this hart (the
	// only one there is).
	reservation    uint64
	reservationSet bool

	// MaxSteps, if non-zero, bounds Run's retirement count so a runaway
	// guest (or an emulator bug) doesn't spin forever; 0 means no bound.
	MaxSteps uint64
	steps    uint64

	log *slog.Logger
}

// New returns a Hart reset to execute from resetPC in machine mode.
func New(b *bus.Bus, resetPC uint64) *Hart {
	h := &Hart{Bus: b, ResetPC: resetPC, log: slog.Default().With("component", "hart")}
	h.CSR = csr.New(0)
	h.Reset()
	return h
}

// SetInterruptSources wires the CLINT/PLIC handles the interrupt
// arbitration pass (§4.8) polls; ctx is the PLIC context this hart
// claims through (normally plic.ContextM or plic.ContextS, one per
// privilege level the guest expects — here only the one ctx is polled,
// and its pending state drives the machine-mode external line).
func SetInterruptSources(h *Hart, t TimerSource, e ExternalSource, ctx int) {
	h.Timer, h.External, h.extCtx = t, e, ctx
}

// Reset re-initializes registers, CSRs, and PC (spec.md §5 hot-reboot
// contract); memory is untouched.
func (h *Hart) Reset() {
	h.Reg = [32]uint64{}
	h.PC = h.ResetPC
	h.Stop = false
	h.Priv = csr.PrivMachine
	h.reservationSet = false
	h.steps = 0
	h.CSR = csr.New(0)
}

// store writes rd, honoring x0's hardwired-zero invariant (spec.md §3).
func (h *Hart) store(rd, v uint64) {
	if rd != 0 {
		h.Reg[rd] = v
	}
}

// ErrUnrecoverable wraps a trap that ends the retirement loop instead of
// entering the trap vector: a Halt (stop flag set, HTIF write, EBREAK) or
// the MaxSteps guard. Fetch and execute faults enter the trap vector.
type ErrUnrecoverable struct{ Trap *trap.Trap }

func (e *ErrUnrecoverable) Error() string {
	return fmt.Sprintf("unrecoverable: %s", e.Trap.Error())
}

// MaxStepsReason tags the trap Tick raises when MaxSteps is exceeded, so
// callers (the CLI's exit-code logic) can distinguish a runaway-guest
// guard trip from a genuine unhandled fault without string-matching an
// inline literal.
const MaxStepsReason = "max step count exceeded"

// Tick performs exactly one of: retire one instruction, take one pending
// trap, or report Halt (spec.md §4.3.1).
func (h *Hart) Tick() error {
	if h.Stop {
		return &ErrUnrecoverable{Trap: trap.HaltTrap()}
	}
	if h.MaxSteps != 0 && h.steps >= h.MaxSteps {
		return &ErrUnrecoverable{Trap: &trap.Trap{Reason: MaxStepsReason}}
	}

	if t := h.pollInterrupts(); t != nil {
		h.enterTrap(t, h.PC)
		return nil
	}

	in, size, t := h.fetch()
	if t != nil {
		if t.Halt {
			h.Stop = true
			return &ErrUnrecoverable{Trap: t}
		}
		h.enterTrap(t, h.PC)
		return nil
	}

	pc := h.PC
	h.PC += uint64(size)
	if t := h.execute(in, pc); t != nil {
		if t.Halt {
			h.Stop = true
			return &ErrUnrecoverable{Trap: t}
		}
		h.enterTrap(t, pc)
		return nil
	}

	h.steps++
	h.CSR.RawSet(csr.Minstret, h.CSR.RawGet(csr.Minstret)+1)
	h.CSR.RawSet(csr.Mcycle, h.CSR.RawGet(csr.Mcycle)+cyclesPerInstruction)
	return nil
}

// fetch reads one instruction parcel at PC (spec.md §4.3.1 step 3).
func (h *Hart) fetch() (*isa.Instruction, int, *trap.Trap) {
	if h.PC&0x1 != 0 {
		return nil, 0, trap.InstrMisaligned(h.PC)
	}
	lo, t := h.Bus.ReadHalf(h.PC)
	if t != nil {
		return nil, 0, t
	}
	if lo&0x3 != 0x3 {
		in, err := isa.DecodeRVC(lo)
		if err != nil {
			return nil, 0, trap.IllegalOpcode(uint64(lo), err.Error())
		}
		return in, 2, nil
	}
	word, t := h.Bus.ReadWord(h.PC)
	if t != nil {
		return nil, 0, t
	}
	in, err := isa.Decode32(h.PC, word)
	if err != nil {
		return nil, 0, trap.IllegalOpcode(uint64(word), err.Error())
	}
	return in, 4, nil
}

// pollInterrupts composes mip_effective and picks the highest-priority
// pending, enabled interrupt (spec.md §4.8).
func (h *Hart) pollInterrupts() *trap.Trap {
	mstatus := h.CSR.RawGet(csr.Mstatus)
	if mstatus&csr.MstatusMIE == 0 && h.Priv == csr.PrivMachine {
		return nil
	}

	mip := h.CSR.RawGet(csr.Mip)
	if h.Timer != nil {
		if h.Timer.MSIPPending() {
			mip |= csr.BitMSI
		}
		if h.Timer.MTIPPending() {
			mip |= csr.BitMTI
		}
	}
	if h.External != nil && h.External.Pending(h.extCtx) {
		mip |= csr.BitMEI
	}

	mie := h.CSR.RawGet(csr.Mie)
	pending := mip & mie
	if pending == 0 {
		return nil
	}

	// Priority order: MEI > MSI > MTI > SEI > SSI > STI > UEI > USI > UTI.
	order := []uint64{
		trap.IntMEI, trap.IntMSI, trap.IntMTI,
		trap.IntSEI, trap.IntSSI, trap.IntSTI,
		trap.IntUEI, trap.IntUSI, trap.IntUTI,
	}
	bits := []uint64{
		csr.BitMEI, csr.BitMSI, csr.BitMTI,
		csr.BitSEI, csr.BitSSI, csr.BitSTI,
		csr.BitUEI, csr.BitUSI, csr.BitUTI,
	}
	for i, bit := range bits {
		if pending&bit != 0 {
			return trap.Interrupt(order[i])
		}
	}
	return nil
}

// delegated reports whether cause (as would appear in mcause, without
// the interrupt bit) is delegated to supervisor mode via medeleg/mideleg
// and the hart isn't already in machine mode. ECALL-from-S is never
// delegated so the SBI environment (which runs logically in M-mode) can
// always intercept it, mirroring how real firmware configures delegation
// (see DESIGN.md).
func (h *Hart) delegated(t *trap.Trap) bool {
	if h.Priv == csr.PrivMachine {
		return false
	}
	if !t.IsInterrupt && t.Cause == trap.CauseECallFromS {
		return false
	}
	deleg := h.CSR.RawGet(csr.Mideleg)
	if !t.IsInterrupt {
		deleg = h.CSR.RawGet(csr.Medeleg)
	}
	return deleg&(1<<t.Cause) != 0
}

// enterTrap implements trap entry (spec.md §4.3.3), routing to the
// supervisor vector when delegated and to the machine vector otherwise.
func (h *Hart) enterTrap(t *trap.Trap, faultPC uint64) {
	if h.delegated(t) {
		h.enterSupervisorTrap(t, faultPC)
		return
	}

	h.log.Debug("trap entry", "cause", t.MCause(), "interrupt", t.IsInterrupt, "pc", faultPC, "priv", h.Priv)

	h.CSR.RawSet(csr.Mepc, faultPC)
	h.CSR.RawSet(csr.Mcause, t.MCause())
	h.CSR.RawSet(csr.Mtval, t.TVal)

	mstatus := h.CSR.RawGet(csr.Mstatus)
	mie := mstatus&csr.MstatusMIE != 0
	mstatus &^= csr.MstatusMPIE
	if mie {
		mstatus |= csr.MstatusMPIE
	}
	mstatus &^= csr.MstatusMIE
	mstatus &^= csr.MstatusMPPMask
	mstatus |= (h.Priv << csr.MstatusMPPShift) & csr.MstatusMPPMask
	h.CSR.RawSet(csr.Mstatus, mstatus)

	h.Priv = csr.PrivMachine
	mtvec := csr.DecodeMtvec(h.CSR.RawGet(csr.Mtvec))
	if mtvec.Vectored && t.IsInterrupt {
		h.PC = mtvec.Base + 4*t.Cause
	} else {
		h.PC = mtvec.Base
	}
}

func (h *Hart) enterSupervisorTrap(t *trap.Trap, faultPC uint64) {
	h.log.Debug("trap entry (delegated)", "cause", t.MCause(), "interrupt", t.IsInterrupt, "pc", faultPC, "priv", h.Priv)

	h.CSR.RawSet(csr.Sepc, faultPC)
	h.CSR.RawSet(csr.Scause, t.MCause())
	h.CSR.RawSet(csr.Stval, t.TVal)

	mstatus := h.CSR.RawGet(csr.Mstatus)
	sie := mstatus&csr.MstatusSIE != 0
	mstatus &^= csr.MstatusSPIE
	if sie {
		mstatus |= csr.MstatusSPIE
	}
	mstatus &^= csr.MstatusSIE
	mstatus &^= csr.MstatusSPP
	if h.Priv == csr.PrivSupervisor {
		mstatus |= csr.MstatusSPP
	}
	h.CSR.RawSet(csr.Mstatus, mstatus)

	h.Priv = csr.PrivSupervisor
	stvec := csr.DecodeMtvec(h.CSR.RawGet(csr.Stvec))
	if stvec.Vectored && t.IsInterrupt {
		h.PC = stvec.Base + 4*t.Cause
	} else {
		h.PC = stvec.Base
	}
}

// mret reverses machine trap entry (spec.md §4.3.3).
func (h *Hart) mret() {
	mstatus := h.CSR.RawGet(csr.Mstatus)
	mpie := mstatus&csr.MstatusMPIE != 0
	mpp := (mstatus & csr.MstatusMPPMask) >> csr.MstatusMPPShift

	mstatus &^= csr.MstatusMIE
	if mpie {
		mstatus |= csr.MstatusMIE
	}
	mstatus |= csr.MstatusMPIE
	mstatus &^= csr.MstatusMPPMask
	h.CSR.RawSet(csr.Mstatus, mstatus)

	h.Priv = mpp
	h.PC = h.CSR.RawGet(csr.Mepc)
}

// sret reverses supervisor trap entry, symmetric against SSTATUS.
func (h *Hart) sret() {
	mstatus := h.CSR.RawGet(csr.Mstatus)
	spie := mstatus&csr.MstatusSPIE != 0
	spp := mstatus&csr.MstatusSPP != 0

	mstatus &^= csr.MstatusSIE
	if spie {
		mstatus |= csr.MstatusSIE
	}
	mstatus |= csr.MstatusSPIE
	mstatus &^= csr.MstatusSPP
	h.CSR.RawSet(csr.Mstatus, mstatus)

	if spp {
		h.Priv = csr.PrivSupervisor
	} else {
		h.Priv = csr.PrivUser
	}
	h.PC = h.CSR.RawGet(csr.Sepc)
}
