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

package isa

import "rv64emu/internal/sign"

// Register numbers; riscv-spec-v2.2.pdf; Table 20.1; page 109.
const (
	regZero = 0
	regRA   = 1
	regSP   = 2
)

// rvcRegOffset maps a 3-bit RVC register number onto the 5-bit register
// space (RVC's register operands are restricted to x8-x15).
const rvcRegOffset = 8

// DecodeRVC decodes a single compressed (RVC) instruction into the
// equivalent 32-bit-format record, as spec.md §4.1 enumerates.
func DecodeRVC(in uint16) (*Instruction, error) {
	if in == 0 {
		return nil, &DecodingError{Parcel: uint64(in), Width: 2, Reason: "all-zero parcel is illegal"}
	}

	switch in>>11&0x1c | in&0x3 {
	case 0x00: // C.ADDI4SPN (RES, nzuimm=0) -> ADDI rd', x2, nzuimm
		imm, r := decodeCIW(in)
		imm = imm&0xc0>>2 | imm&0x3c<<4 | imm&0x2<<1 | imm&0x1<<3
		if imm == 0 {
			return nil, &DecodingError{Parcel: uint64(in), Width: 2, Reason: "C.ADDI4SPN with nzuimm=0 is reserved"}
		}
		return iInstr(OpADDI, r, regSP, int64(imm)), nil
	case 0x04: // C.FLD / C.LQ: floating point, not implemented (Non-goal)
		return nil, &DecodingError{Parcel: uint64(in), Width: 2, Reason: "C.FLD requires the F extension, which is out of scope"}
	case 0x08: // C.LW -> LW
		imm, r1, r2 := decodeCL(in)
		imm = (imm<<5 | imm) & 0x3e << 1
		return iInstrW(OpLW, r2, r1, int64(imm)), nil
	case 0x0C: // C.LD (RV64) -> LD
		imm, r1, r2 := decodeCL(in)
		imm = (imm<<6 | imm<<1) & 0xf8
		return iInstrW(OpLD, r2, r1, int64(imm)), nil
	case 0x10: // reserved
		return nil, &DecodingError{Parcel: uint64(in), Width: 2, Reason: "reserved encoding"}
	case 0x14: // C.FSD / C.SQ: floating point, out of scope
		return nil, &DecodingError{Parcel: uint64(in), Width: 2, Reason: "C.FSD requires the F extension, which is out of scope"}
	case 0x18: // C.SW -> SW
		imm, r1, r2 := decodeCS(in)
		imm = (imm<<5 | imm) << 1 & 0x7c
		return sInstrW(OpSW, r1, r2, int64(imm)), nil
	case 0x1C: // C.SD (RV64) -> SD
		imm, r1, r2 := decodeCS(in)
		imm = (imm<<5 | imm) << 1 & 0xf8
		return sInstrW(OpSD, r1, r2, int64(imm)), nil
	case 0x01: // C.NOP; C.ADDI (HINT, nzimm=0) -> ADDI
		imm, r := decodeCI(in)
		return iInstr(OpADDI, r, r, int64(sign.Extend(imm, 5))), nil
	case 0x05: // C.ADDIW (RV64; RES, rd=0) -> ADDIW
		imm, r := decodeCI(in)
		return iInstr(OpADDIW, r, r, int64(sign.Extend(imm, 5))), nil
	case 0x09: // C.LI (HINT, rd=0) -> ADDI rd, x0, imm
		imm, r := decodeCI(in)
		return iInstr(OpADDI, r, regZero, int64(sign.Extend(imm, 5))), nil
	case 0x0D: // C.ADDI16SP (rd=2) / C.LUI (rd!=2)
		imm, r := decodeCI(in)
		if r != regSP {
			return uInstr(OpLUI, r, int64(sign.Extend(imm<<12, 17))), nil
		}
		nz := imm&0x20<<4 | imm&0x10 | imm&0x8<<3 | imm&0x6<<6 | imm&0x1<<5
		return iInstr(OpADDI, regSP, regSP, int64(sign.Extend(nz, 9))), nil
	case 0x11:
		switch in >> 10 & 0x3 {
		case 0x00: // C.SRLI
			imm, r := decodeShiftCB(in)
			return iInstrW(OpSRLI, r, r, int64(imm)), nil
		case 0x01: // C.SRAI
			imm, r := decodeShiftCB(in)
			return iInstrW(OpSRAI, r, r, int64(imm)), nil
		case 0x02: // C.ANDI
			imm, r := decodeShiftCB(in)
			return iInstr(OpANDI, r, r, int64(sign.Extend(imm, 5))), nil
		}
		_, r1, r2 := decodeCS(in)
		switch (in >> 8 & 0x1c) | (in >> 5 & 0x3) {
		case 0xc: // C.SUB
			return rInstr(OpSUB, r1, r1, r2), nil
		case 0xd: // C.XOR
			return rInstr(OpXOR, r1, r1, r2), nil
		case 0xe: // C.OR
			return rInstr(OpOR, r1, r1, r2), nil
		case 0xf: // C.AND
			return rInstr(OpAND, r1, r1, r2), nil
		case 0x1c: // C.SUBW
			return rInstr(OpSUBW, r1, r1, r2), nil
		case 0x1d: // C.ADDW
			return rInstr(OpADDW, r1, r1, r2), nil
		}
		return nil, &DecodingError{Parcel: uint64(in), Width: 2, Reason: "reserved C.* arithmetic encoding"}
	case 0x15: // C.J -> JAL x0, offset
		imm := decodeCJ(in)
		imm = imm&0x200>>5 | imm&0x40<<4 | imm&0x5a0<<1 | imm&0x10<<3 | imm&0xe | imm&1<<5
		return jInstr(OpJAL, regZero, int64(sign.Extend(imm, 11))), nil
	case 0x19: // C.BEQZ -> BEQ rs1, x0, offset
		imm, r := decodeCB(in)
		imm = imm&0x80<<1 | imm&0x60>>2 | imm&0x18<<3 | imm&0x6 | imm&0x1<<5
		return bInstr(OpBEQ, r, regZero, int64(sign.Extend(imm, 8))), nil
	case 0x1D: // C.BNEZ -> BNE rs1, x0, offset
		imm, r := decodeCB(in)
		imm = imm&0x80<<1 | imm&0x60>>2 | imm&0x18<<3 | imm&0x6 | imm&0x1<<5
		return bInstr(OpBNE, r, regZero, int64(sign.Extend(imm, 8))), nil
	case 0x02: // C.SLLI
		imm, r := decodeCI(in)
		return iInstrW(OpSLLI, r, r, int64(imm)), nil
	case 0x06: // C.FLDSP / C.LQSP: out of scope
		return nil, &DecodingError{Parcel: uint64(in), Width: 2, Reason: "C.FLDSP requires the F extension, which is out of scope"}
	case 0x0A: // C.LWSP (RES, rd=0) -> LW rd, offset(sp)
		imm, r := decodeCI(in)
		imm = (imm<<6 | imm) & 0xfc
		if r == 0 {
			return nil, &DecodingError{Parcel: uint64(in), Width: 2, Reason: "C.LWSP with rd=0 is reserved"}
		}
		return iInstrW(OpLW, r, regSP, int64(imm)), nil
	case 0x0E: // C.LDSP (RV64; RES, rd=0) -> LD rd, offset(sp)
		imm, r := decodeCI(in)
		imm = (imm<<6 | imm) & 0x1f8
		if r == 0 {
			return nil, &DecodingError{Parcel: uint64(in), Width: 2, Reason: "C.LDSP with rd=0 is reserved"}
		}
		return iInstrW(OpLD, r, regSP, int64(imm)), nil
	case 0x12:
		r1, r2 := decodeCR(in)
		b := in & 0x1000
		switch {
		case b == 0 && r2 == 0: // C.JR -> JALR x0, 0(r1)
			if r1 == 0 {
				return nil, &DecodingError{Parcel: uint64(in), Width: 2, Reason: "C.JR with rs1=0 is reserved"}
			}
			return iInstrW(OpJALR, regZero, r1, 0), nil
		case b == 0: // C.MV -> ADD rd, x0, rs2
			return rInstr(OpADD, r1, regZero, r2), nil
		case b == 0x1000 && r1 == 0 && r2 == 0: // C.EBREAK
			return &Instruction{Op: OpEBREAK, Format: FormatI, Width: 2}, nil
		case b == 0x1000 && r2 == 0: // C.JALR -> JALR x1, 0(r1)
			return iInstrW(OpJALR, regRA, r1, 0), nil
		default: // C.ADD -> ADD rd, rd, rs2
			return rInstr(OpADD, r1, r1, r2), nil
		}
	case 0x16: // C.FSDSP / C.SQSP: out of scope
		return nil, &DecodingError{Parcel: uint64(in), Width: 2, Reason: "C.FSDSP requires the F extension, which is out of scope"}
	case 0x1A: // C.SWSP -> SW rs2, offset(sp)
		imm, r := decodeCSS(in)
		imm = (imm<<6 | imm) & 0xfc
		return sInstrW(OpSW, regSP, r, int64(imm)), nil
	case 0x1E: // C.SDSP (RV64) -> SD rs2, offset(sp)
		imm, r := decodeCSS(in)
		imm = (imm<<6 | imm) & 0x1f8
		return sInstrW(OpSD, regSP, r, int64(imm)), nil
	}

	return nil, &DecodingError{Parcel: uint64(in), Width: 2, Reason: "unrecognized RVC encoding"}
}

func decodeCR(in uint16) (r1, r2 uint64) {
	return uint64(in >> 7 & 0x1f), uint64(in >> 2 & 0x1f)
}

func decodeCI(in uint16) (imm, r uint64) {
	return uint64(in>>7&0x20 | in>>2&0x1f), uint64(in >> 7 & 0x1f)
}

func decodeCSS(in uint16) (imm, r uint64) {
	return uint64(in >> 7 & 0x3f), uint64(in >> 2 & 0x1f)
}

func decodeCIW(in uint16) (imm, r uint64) {
	return uint64(in >> 5 & 0xff), uint64(in>>2&0x7) + rvcRegOffset
}

func decodeCL(in uint16) (imm, r1, r2 uint64) {
	return uint64(in>>8&0x1c | in>>5&0x3), uint64(in>>7&0x7) + rvcRegOffset, uint64(in>>2&0x7) + rvcRegOffset
}

func decodeCS(in uint16) (imm, r1, r2 uint64) {
	return uint64(in>>8&0x1c | in>>5&0x3), uint64(in>>7&0x7) + rvcRegOffset, uint64(in>>2&0x7) + rvcRegOffset
}

func decodeCB(in uint16) (imm, r uint64) {
	return uint64(in>>5&0xe0 | in>>2&0x1f), uint64(in>>7&0x7) + rvcRegOffset
}

// decodeShiftCB decodes the CB specialization used by shift-immediate RVC ops.
func decodeShiftCB(in uint16) (shamt, r uint64) {
	return uint64(in&0x1000>>7 | in>>2&0x1f), uint64(in>>7&0x7) + rvcRegOffset
}

func decodeCJ(in uint16) (offset uint64) {
	return uint64((in >> 2) & 0x7ff)
}

func iInstr(op Op, rd, rs1 uint64, imm int64) *Instruction {
	return &Instruction{Op: op, Format: FormatI, Width: 2, RD: rd, RS1: rs1, Imm: imm}
}

// iInstrW builds the same Instruction as iInstr; the separate name marks
// call sites whose immediate is already unsigned (shift amounts, scaled
// load offsets). Neither helper sign-extends.
func iInstrW(op Op, rd, rs1 uint64, imm int64) *Instruction {
	return &Instruction{Op: op, Format: FormatI, Width: 2, RD: rd, RS1: rs1, Imm: imm}
}

func rInstr(op Op, rd, rs1, rs2 uint64) *Instruction {
	return &Instruction{Op: op, Format: FormatR, Width: 2, RD: rd, RS1: rs1, RS2: rs2}
}

func sInstrW(op Op, rs1, rs2 uint64, imm int64) *Instruction {
	return &Instruction{Op: op, Format: FormatS, Width: 2, RS1: rs1, RS2: rs2, Imm: imm}
}

func bInstr(op Op, rs1, rs2 uint64, imm int64) *Instruction {
	return &Instruction{Op: op, Format: FormatB, Width: 2, RS1: rs1, RS2: rs2, Imm: imm}
}

func uInstr(op Op, rd uint64, imm int64) *Instruction {
	return &Instruction{Op: op, Format: FormatU, Width: 2, RD: rd, Imm: imm}
}

func jInstr(op Op, rd uint64, imm int64) *Instruction {
	return &Instruction{Op: op, Format: FormatJ, Width: 2, RD: rd, Imm: imm}
}
