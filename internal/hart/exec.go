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

import (
	"math/bits"

	"rv64emu/internal/isa"
	"rv64emu/internal/sbi"
	"rv64emu/internal/trap"
)

// execute runs one decoded instruction. pc is the address the
// instruction was fetched from (its *original*, pre-advance PC);
// branch/jump targets and AUIPC are always computed from pc, never from
// h.PC, which the caller has already advanced past the parcel
// (spec.md §4.3.2).
func (h *Hart) execute(in *isa.Instruction, pc uint64) *trap.Trap {
	imm := uint64(in.Imm)

	switch in.Op {
	case isa.OpLUI:
		h.store(in.RD, imm)
	case isa.OpAUIPC:
		h.store(in.RD, pc+imm)

	case isa.OpJAL:
		h.store(in.RD, pc+uint64(in.Width))
		h.PC = pc + imm
		if h.PC&0x1 != 0 {
			return trap.InstrMisaligned(h.PC)
		}
	case isa.OpJALR:
		target := (h.Reg[in.RS1] + imm) &^ 1
		h.store(in.RD, pc+uint64(in.Width))
		h.PC = target
		if h.PC&0x1 != 0 {
			return trap.InstrMisaligned(h.PC)
		}

	case isa.OpBEQ:
		if h.Reg[in.RS1] == h.Reg[in.RS2] {
			h.PC = pc + imm
		}
	case isa.OpBNE:
		if h.Reg[in.RS1] != h.Reg[in.RS2] {
			h.PC = pc + imm
		}
	case isa.OpBLT:
		if int64(h.Reg[in.RS1]) < int64(h.Reg[in.RS2]) {
			h.PC = pc + imm
		}
	case isa.OpBGE:
		if int64(h.Reg[in.RS1]) >= int64(h.Reg[in.RS2]) {
			h.PC = pc + imm
		}
	case isa.OpBLTU:
		if h.Reg[in.RS1] < h.Reg[in.RS2] {
			h.PC = pc + imm
		}
	case isa.OpBGEU:
		if h.Reg[in.RS1] >= h.Reg[in.RS2] {
			h.PC = pc + imm
		}

	case isa.OpLB, isa.OpLH, isa.OpLW, isa.OpLBU, isa.OpLHU, isa.OpLWU, isa.OpLD:
		return h.execLoad(in, imm)
	case isa.OpSB, isa.OpSH, isa.OpSW, isa.OpSD:
		return h.execStore(in, imm)

	case isa.OpADDI:
		h.store(in.RD, h.Reg[in.RS1]+imm)
	case isa.OpSLTI:
		h.store(in.RD, b2u(int64(h.Reg[in.RS1]) < in.Imm))
	case isa.OpSLTIU:
		h.store(in.RD, b2u(h.Reg[in.RS1] < imm))
	case isa.OpXORI:
		h.store(in.RD, h.Reg[in.RS1]^imm)
	case isa.OpORI:
		h.store(in.RD, h.Reg[in.RS1]|imm)
	case isa.OpANDI:
		h.store(in.RD, h.Reg[in.RS1]&imm)
	case isa.OpSLLI:
		h.store(in.RD, h.Reg[in.RS1]<<(imm&0x3f))
	case isa.OpSRLI:
		h.store(in.RD, h.Reg[in.RS1]>>(imm&0x3f))
	case isa.OpSRAI:
		h.store(in.RD, uint64(int64(h.Reg[in.RS1])>>(imm&0x3f)))

	case isa.OpADD:
		h.store(in.RD, h.Reg[in.RS1]+h.Reg[in.RS2])
	case isa.OpSUB:
		h.store(in.RD, h.Reg[in.RS1]-h.Reg[in.RS2])
	case isa.OpSLL:
		h.store(in.RD, h.Reg[in.RS1]<<(h.Reg[in.RS2]&0x3f))
	case isa.OpSLT:
		h.store(in.RD, b2u(int64(h.Reg[in.RS1]) < int64(h.Reg[in.RS2])))
	case isa.OpSLTU:
		h.store(in.RD, b2u(h.Reg[in.RS1] < h.Reg[in.RS2]))
	case isa.OpXOR:
		h.store(in.RD, h.Reg[in.RS1]^h.Reg[in.RS2])
	case isa.OpSRL:
		h.store(in.RD, h.Reg[in.RS1]>>(h.Reg[in.RS2]&0x3f))
	case isa.OpSRA:
		h.store(in.RD, uint64(int64(h.Reg[in.RS1])>>(h.Reg[in.RS2]&0x3f)))
	case isa.OpOR:
		h.store(in.RD, h.Reg[in.RS1]|h.Reg[in.RS2])
	case isa.OpAND:
		h.store(in.RD, h.Reg[in.RS1]&h.Reg[in.RS2])

	case isa.OpFENCE, isa.OpFENCEI, isa.OpSFENCE_VMA:
		// Single-hart, single-address-space core: every ordering fence is a
		// no-op; there's nothing else to order against.

	case isa.OpECALL:
		return h.execECALL()
	case isa.OpEBREAK:
		return trap.HaltTrap()

	case isa.OpCSRRW, isa.OpCSRRS, isa.OpCSRRC, isa.OpCSRRWI, isa.OpCSRRSI, isa.OpCSRRCI:
		return h.execCSR(in)

	case isa.OpSLLIW:
		h.store(in.RD, signExtend32(uint32(h.Reg[in.RS1])<<(imm&0x1f)))
	case isa.OpSRLIW:
		h.store(in.RD, signExtend32(uint32(h.Reg[in.RS1])>>(imm&0x1f)))
	case isa.OpSRAIW:
		h.store(in.RD, uint64(int64(int32(uint32(h.Reg[in.RS1]))>>(imm&0x1f))))
	case isa.OpADDIW:
		h.store(in.RD, signExtend32(uint32(h.Reg[in.RS1]+imm)))
	case isa.OpADDW:
		h.store(in.RD, signExtend32(uint32(h.Reg[in.RS1]+h.Reg[in.RS2])))
	case isa.OpSUBW:
		h.store(in.RD, signExtend32(uint32(h.Reg[in.RS1]-h.Reg[in.RS2])))
	case isa.OpSLLW:
		h.store(in.RD, signExtend32(uint32(h.Reg[in.RS1])<<(h.Reg[in.RS2]&0x1f)))
	case isa.OpSRLW:
		h.store(in.RD, signExtend32(uint32(h.Reg[in.RS1])>>(h.Reg[in.RS2]&0x1f)))
	case isa.OpSRAW:
		h.store(in.RD, uint64(int64(int32(uint32(h.Reg[in.RS1]))>>(h.Reg[in.RS2]&0x1f))))

	case isa.OpMUL:
		h.store(in.RD, h.Reg[in.RS1]*h.Reg[in.RS2])
	case isa.OpMULH:
		a, b := int64(h.Reg[in.RS1]), int64(h.Reg[in.RS2])
		hi, lo := bits.Mul64(absU(a), absU(b))
		if (a < 0) != (b < 0) {
			lo, borrow := bits.Sub64(0, lo, 0)
			hi, _ = bits.Sub64(0, hi, borrow)
			_ = lo
		}
		h.store(in.RD, hi)
	case isa.OpMULHU:
		hi, _ := bits.Mul64(h.Reg[in.RS1], h.Reg[in.RS2])
		h.store(in.RD, hi)
	case isa.OpMULHSU:
		// uint64(a) as an unsigned multiplicand already encodes a's sign
		// via wraparound (uint64(a) == a+2^64 for a<0); the high word only
		// needs correcting by subtracting b once for that wraparound.
		a := int64(h.Reg[in.RS1])
		hi, _ := bits.Mul64(h.Reg[in.RS1], h.Reg[in.RS2])
		if a < 0 {
			hi -= h.Reg[in.RS2]
		}
		h.store(in.RD, hi)
	case isa.OpDIV:
		a, b := int64(h.Reg[in.RS1]), int64(h.Reg[in.RS2])
		switch {
		case b == 0:
			h.store(in.RD, ^uint64(0))
		case a == minInt64 && b == -1:
			h.store(in.RD, uint64(a))
		default:
			h.store(in.RD, uint64(a/b))
		}
	case isa.OpDIVU:
		if h.Reg[in.RS2] == 0 {
			h.store(in.RD, ^uint64(0))
		} else {
			h.store(in.RD, h.Reg[in.RS1]/h.Reg[in.RS2])
		}
	case isa.OpREM:
		a, b := int64(h.Reg[in.RS1]), int64(h.Reg[in.RS2])
		switch {
		case b == 0:
			h.store(in.RD, uint64(a))
		case a == minInt64 && b == -1:
			h.store(in.RD, 0)
		default:
			h.store(in.RD, uint64(a%b))
		}
	case isa.OpREMU:
		if h.Reg[in.RS2] == 0 {
			h.store(in.RD, h.Reg[in.RS1])
		} else {
			h.store(in.RD, h.Reg[in.RS1]%h.Reg[in.RS2])
		}
	case isa.OpMULW:
		h.store(in.RD, signExtend32(uint32(h.Reg[in.RS1])*uint32(h.Reg[in.RS2])))
	case isa.OpDIVW:
		a, b := int32(uint32(h.Reg[in.RS1])), int32(uint32(h.Reg[in.RS2]))
		switch {
		case b == 0:
			h.store(in.RD, ^uint64(0))
		case a == minInt32 && b == -1:
			h.store(in.RD, signExtend32(uint32(a)))
		default:
			h.store(in.RD, signExtend32(uint32(a/b)))
		}
	case isa.OpDIVUW:
		a, b := uint32(h.Reg[in.RS1]), uint32(h.Reg[in.RS2])
		if b == 0 {
			h.store(in.RD, ^uint64(0))
		} else {
			h.store(in.RD, signExtend32(a/b))
		}
	case isa.OpREMW:
		a, b := int32(uint32(h.Reg[in.RS1])), int32(uint32(h.Reg[in.RS2]))
		switch {
		case b == 0:
			h.store(in.RD, signExtend32(uint32(a)))
		case a == minInt32 && b == -1:
			h.store(in.RD, 0)
		default:
			h.store(in.RD, signExtend32(uint32(a%b)))
		}
	case isa.OpREMUW:
		a, b := uint32(h.Reg[in.RS1]), uint32(h.Reg[in.RS2])
		if b == 0 {
			h.store(in.RD, signExtend32(a))
		} else {
			h.store(in.RD, signExtend32(a%b))
		}

	case isa.OpLR, isa.OpSC, isa.OpAMOSWAP, isa.OpAMOADD, isa.OpAMOAND, isa.OpAMOOR,
		isa.OpAMOXOR, isa.OpAMOMAX, isa.OpAMOMIN, isa.OpAMOMAXU, isa.OpAMOMINU:
		return h.execAMO(in)

	case isa.OpMRET:
		h.mret()
	case isa.OpSRET:
		h.sret()
	case isa.OpWFI:
		// Modeled as a no-op: the retirement loop already polls interrupts
		// every tick, so there's no separate idle state to enter.

	default:
		return trap.IllegalOpcode(in.Raw, "unimplemented instruction")
	}
	return nil
}

func (h *Hart) execLoad(in *isa.Instruction, imm uint64) *trap.Trap {
	addr := h.Reg[in.RS1] + imm
	switch in.Op {
	case isa.OpLB:
		v, t := h.Bus.ReadByte(addr)
		if t != nil {
			return t
		}
		h.store(in.RD, uint64(int64(int8(v))))
	case isa.OpLBU:
		v, t := h.Bus.ReadByte(addr)
		if t != nil {
			return t
		}
		h.store(in.RD, uint64(v))
	case isa.OpLH:
		v, t := h.Bus.ReadHalf(addr)
		if t != nil {
			return t
		}
		h.store(in.RD, uint64(int64(int16(v))))
	case isa.OpLHU:
		v, t := h.Bus.ReadHalf(addr)
		if t != nil {
			return t
		}
		h.store(in.RD, uint64(v))
	case isa.OpLW:
		v, t := h.Bus.ReadWord(addr)
		if t != nil {
			return t
		}
		h.store(in.RD, uint64(int64(int32(v))))
	case isa.OpLWU:
		v, t := h.Bus.ReadWord(addr)
		if t != nil {
			return t
		}
		h.store(in.RD, uint64(v))
	case isa.OpLD:
		v, t := h.Bus.ReadDouble(addr)
		if t != nil {
			return t
		}
		h.store(in.RD, v)
	}
	return nil
}

func (h *Hart) execStore(in *isa.Instruction, imm uint64) *trap.Trap {
	addr := h.Reg[in.RS1] + imm
	h.reservationSet = false
	switch in.Op {
	case isa.OpSB:
		return h.Bus.WriteByte(addr, uint8(h.Reg[in.RS2]))
	case isa.OpSH:
		return h.Bus.WriteHalf(addr, uint16(h.Reg[in.RS2]))
	case isa.OpSW:
		return h.Bus.WriteWord(addr, uint32(h.Reg[in.RS2]))
	case isa.OpSD:
		return h.Bus.WriteDouble(addr, h.Reg[in.RS2])
	}
	return nil
}

// execCSR implements the Zicsr instructions, dispatching through
// csr.File's atomic combinators so rd=x0/rs1=x0 suppress side effects
// per spec.md §4.2.
func (h *Hart) execCSR(in *isa.Instruction) *trap.Trap {
	num := uint64(in.Imm) & 0xfff
	hasRD := in.RD != 0
	var old uint64
	switch in.Op {
	case isa.OpCSRRW:
		old = h.CSR.CSRRW(num, h.Reg[in.RS1], hasRD)
	case isa.OpCSRRS:
		old = h.CSR.CSRRS(num, h.Reg[in.RS1], in.RS1 != 0)
	case isa.OpCSRRC:
		old = h.CSR.CSRRC(num, h.Reg[in.RS1], in.RS1 != 0)
	case isa.OpCSRRWI:
		old = h.CSR.CSRRW(num, in.RS1, hasRD)
	case isa.OpCSRRSI:
		old = h.CSR.CSRRS(num, in.RS1, in.RS1 != 0)
	case isa.OpCSRRCI:
		old = h.CSR.CSRRC(num, in.RS1, in.RS1 != 0)
	}
	h.store(in.RD, old)
	return nil
}

// execECALL dispatches a supervisor (or, rarely, machine-mode) binary
// interface call to the sbi package (spec.md §4.7) rather than the
// Linux-syscall convention the teacher's ecallOrBreak implemented; SBI
// calls never reach the guest's own trap handler, so this never raises
// a trap of its own.
func (h *Hart) execECALL() *trap.Trap {
	ret := sbi.Call(sbi.Args{
		EID: h.Reg[RegA7],
		FID: h.Reg[RegA6],
		A: [6]uint64{
			h.Reg[10], h.Reg[11], h.Reg[12], h.Reg[13], h.Reg[14], h.Reg[15],
		},
	}, h)
	h.Reg[RegA0] = ret.Error
	h.Reg[RegA1] = ret.Value
	if ret.Shutdown {
		h.Stop = true
	}
	return nil
}

// execAMO implements the A extension: LR/SC and the AMO* read-modify-
// write primitives (spec.md §4.3.2; absent from the teacher, which
// predates the A extension entirely). Single-hart execution makes the
// reservation set trivial: it's valid from the LR until any SC (success
// or failure) or any store this hart performs (execStore clears it).
func (h *Hart) execAMO(in *isa.Instruction) *trap.Trap {
	addr := h.Reg[in.RS1]
	is64 := in.Funct3 == 0x3

	switch in.Op {
	case isa.OpLR:
		h.reservation, h.reservationSet = addr, true
		if is64 {
			v, t := h.Bus.ReadDouble(addr)
			if t != nil {
				return t
			}
			h.store(in.RD, v)
		} else {
			v, t := h.Bus.ReadWord(addr)
			if t != nil {
				return t
			}
			h.store(in.RD, uint64(int64(int32(v))))
		}
		return nil
	case isa.OpSC:
		if !h.reservationSet || h.reservation != addr {
			h.reservationSet = false
			h.store(in.RD, 1) // failure
			return nil
		}
		h.reservationSet = false
		var t *trap.Trap
		if is64 {
			t = h.Bus.WriteDouble(addr, h.Reg[in.RS2])
		} else {
			t = h.Bus.WriteWord(addr, uint32(h.Reg[in.RS2]))
		}
		if t != nil {
			return t
		}
		h.store(in.RD, 0) // success
		return nil
	}

	h.reservationSet = false
	if is64 {
		cur, t := h.Bus.ReadDouble(addr)
		if t != nil {
			return t
		}
		next := amo64(in.Op, cur, h.Reg[in.RS2])
		if t := h.Bus.WriteDouble(addr, next); t != nil {
			return t
		}
		h.store(in.RD, cur)
		return nil
	}
	cur, t := h.Bus.ReadWord(addr)
	if t != nil {
		return t
	}
	next := uint32(amo64(in.Op, uint64(int64(int32(cur))), h.Reg[in.RS2]))
	if t := h.Bus.WriteWord(addr, next); t != nil {
		return t
	}
	h.store(in.RD, uint64(int64(int32(cur))))
	return nil
}

func amo64(op isa.Op, cur, rs2 uint64) uint64 {
	switch op {
	case isa.OpAMOSWAP:
		return rs2
	case isa.OpAMOADD:
		return cur + rs2
	case isa.OpAMOAND:
		return cur & rs2
	case isa.OpAMOOR:
		return cur | rs2
	case isa.OpAMOXOR:
		return cur ^ rs2
	case isa.OpAMOMAX:
		if int64(cur) > int64(rs2) {
			return cur
		}
		return rs2
	case isa.OpAMOMIN:
		if int64(cur) < int64(rs2) {
			return cur
		}
		return rs2
	case isa.OpAMOMAXU:
		if cur > rs2 {
			return cur
		}
		return rs2
	case isa.OpAMOMINU:
		if cur < rs2 {
			return cur
		}
		return rs2
	}
	return cur
}

const (
	minInt64 = int64(-1) << 63
	minInt32 = int32(-1) << 31
)

func b2u(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

func signExtend32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}

// absU returns the magnitude of a signed 64-bit value as an unsigned
// 64-bit value, without the INT64_MIN negation overflow the teacher's
// mulh implementation has (negating math.MinInt64 overflows int64).
func absU(v int64) uint64 {
	if v < 0 {
		return uint64(-(v + 1)) + 1
	}
	return uint64(v)
}

