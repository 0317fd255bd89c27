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

// baseOpcode is bits 6:2 of a 32-bit parcel; it selects the instruction
// format. riscv-spec-v2.2; Page 103; Table 19.1.
type baseOpcode uint

const (
	boLoad    = baseOpcode(0x00) // i-type
	boMiscMem = baseOpcode(0x03) // i-type
	boOpImm   = baseOpcode(0x04) // i-type
	boAUIPC   = baseOpcode(0x05) // u-type
	boOpImm32 = baseOpcode(0x06) // i-type
	boStore   = baseOpcode(0x08) // s-type
	boAMO     = baseOpcode(0x0b) // r-type
	boOp      = baseOpcode(0x0c) // r-type
	boLUI     = baseOpcode(0x0d) // u-type
	boOp32    = baseOpcode(0x0e) // r-type
	boBranch  = baseOpcode(0x18) // b-type
	boJALR    = baseOpcode(0x19) // i-type
	boJAL     = baseOpcode(0x1b) // j-type
	boSystem  = baseOpcode(0x1c) // i-type
)

// Decode32 decodes a 32-bit standard-format parcel into an Instruction.
// A parcel whose low two bits are not 11 is rejected. pc is unused: it
// does not affect the decode and does not appear in errors.
func Decode32(pc uint64, in uint32) (*Instruction, error) {
	u := uint64(in)
	if u&0x3 != 0x3 {
		return nil, &DecodingError{Parcel: u, Width: 4, Reason: "low two bits are not 11: not a 32-bit encoding"}
	}
	out := &Instruction{Width: 4, Raw: u}
	out.RS1 = u >> 15 & 0x1f
	out.RS2 = u >> 20 & 0x1f
	out.RD = u >> 7 & 0x1f
	out.Funct3 = u >> 12 & 0x7

	bop := baseOpcode(u >> 2 & 0x1f)
	switch bop {
	case boAUIPC, boLUI:
		out.Format = FormatU
		imm := u & 0xFFFFF000
		out.Imm = int64(sign.Extend(imm, 31))
		if bop == boLUI {
			out.Op = OpLUI
		} else {
			out.Op = OpAUIPC
		}
		return out, nil
	case boJAL:
		out.Format = FormatJ
		imm := u>>11&0x100000 | u&0xff000 | u>>9&0x800 | u>>20&0x7fe
		out.Imm = int64(sign.Extend(imm, 20))
		out.Op = OpJAL
		return out, nil
	case boAMO:
		out.Format = FormatR
		out.Funct7 = u >> 25 & 0x7f
		out.AQ = u&0x4 != 0
		out.RL = u&0x2 != 0
		op, err := decodeAMO(out.Funct7>>2, out.Funct3)
		if err != nil {
			return nil, &DecodingError{Parcel: u, Width: 4, Reason: err.Error()}
		}
		out.Op = op
		return out, nil
	case boOp, boOp32:
		out.Format = FormatR
		out.Funct7 = u >> 25 & 0x7f
		op, err := decodeR(bop, out.Funct3, out.Funct7)
		if err != nil {
			return nil, &DecodingError{Parcel: u, Width: 4, Reason: err.Error()}
		}
		out.Op = op
		return out, nil
	case boLoad, boMiscMem, boOpImm, boOpImm32, boJALR, boSystem:
		out.Format = FormatI
		imm := u >> 20 & 0xfff
		out.Imm = int64(sign.Extend(imm, 11))
		op, err := decodeI(bop, out.Funct3, u)
		if err != nil {
			return nil, &DecodingError{Parcel: u, Width: 4, Reason: err.Error()}
		}
		out.Op = op
		if isShiftImm(bop, out.Funct3) {
			// SLLI/SRLI/SRAI/SLLIW/SRLIW/SRAIW encode the shift amount and a
			// discriminating funct7-like field in the immediate.
			out.Funct7 = u >> 25 & 0x7f
		}
		return out, nil
	case boStore:
		out.Format = FormatS
		imm := u>>20&0xFE0 | u>>7&0x1f
		out.Imm = int64(sign.Extend(imm, 11))
		op, err := decodeS(out.Funct3)
		if err != nil {
			return nil, &DecodingError{Parcel: u, Width: 4, Reason: err.Error()}
		}
		out.Op = op
		return out, nil
	case boBranch:
		out.Format = FormatB
		imm := u>>19&0x1000 | u<<4&0x800 | u>>20&0x7e0 | u>>7&0x1e
		out.Imm = int64(sign.Extend(imm, 12))
		op, err := decodeB(out.Funct3)
		if err != nil {
			return nil, &DecodingError{Parcel: u, Width: 4, Reason: err.Error()}
		}
		out.Op = op
		return out, nil
	default:
		return nil, &DecodingError{Parcel: u, Width: 4, Reason: "unrecognized base opcode"}
	}
}

func decodeR(bop baseOpcode, funct3, funct7 uint64) (Op, error) {
	is32 := bop == boOp32
	switch funct7 {
	case 0x00:
		switch funct3 {
		case 0x0:
			if is32 {
				return OpADDW, nil
			}
			return OpADD, nil
		case 0x1:
			if is32 {
				return OpSLLW, nil
			}
			return OpSLL, nil
		case 0x2:
			return OpSLT, nil
		case 0x3:
			return OpSLTU, nil
		case 0x4:
			return OpXOR, nil
		case 0x5:
			if is32 {
				return OpSRLW, nil
			}
			return OpSRL, nil
		case 0x6:
			return OpOR, nil
		case 0x7:
			return OpAND, nil
		}
	case 0x20:
		switch funct3 {
		case 0x0:
			if is32 {
				return OpSUBW, nil
			}
			return OpSUB, nil
		case 0x5:
			if is32 {
				return OpSRAW, nil
			}
			return OpSRA, nil
		}
	case 0x01: // M extension
		switch funct3 {
		case 0x0:
			if is32 {
				return OpMULW, nil
			}
			return OpMUL, nil
		case 0x1:
			return OpMULH, nil
		case 0x2:
			return OpMULHSU, nil
		case 0x3:
			return OpMULHU, nil
		case 0x4:
			if is32 {
				return OpDIVW, nil
			}
			return OpDIV, nil
		case 0x5:
			if is32 {
				return OpDIVUW, nil
			}
			return OpDIVU, nil
		case 0x6:
			if is32 {
				return OpREMW, nil
			}
			return OpREM, nil
		case 0x7:
			if is32 {
				return OpREMUW, nil
			}
			return OpREMU, nil
		}
	}
	return OpInvalid, errReserved
}

func decodeAMO(funct5, funct3 uint64) (Op, error) {
	if funct3 != 0x2 && funct3 != 0x3 { // .W and .D only
		return OpInvalid, errReserved
	}
	switch funct5 {
	case 0x00:
		return OpAMOADD, nil
	case 0x01:
		return OpAMOSWAP, nil
	case 0x02:
		return OpLR, nil
	case 0x03:
		return OpSC, nil
	case 0x04:
		return OpAMOXOR, nil
	case 0x08:
		return OpAMOOR, nil
	case 0x0c:
		return OpAMOAND, nil
	case 0x10:
		return OpAMOMIN, nil
	case 0x14:
		return OpAMOMAX, nil
	case 0x18:
		return OpAMOMINU, nil
	case 0x1c:
		return OpAMOMAXU, nil
	}
	return OpInvalid, errReserved
}

func decodeI(bop baseOpcode, funct3 uint64, raw uint64) (Op, error) {
	switch bop {
	case boLoad:
		switch funct3 {
		case 0x0:
			return OpLB, nil
		case 0x1:
			return OpLH, nil
		case 0x2:
			return OpLW, nil
		case 0x3:
			return OpLD, nil
		case 0x4:
			return OpLBU, nil
		case 0x5:
			return OpLHU, nil
		case 0x6:
			return OpLWU, nil
		}
	case boMiscMem:
		switch funct3 {
		case 0x0:
			return OpFENCE, nil
		case 0x1:
			return OpFENCEI, nil
		}
	case boOpImm:
		switch funct3 {
		case 0x0:
			return OpADDI, nil
		case 0x1:
			return OpSLLI, nil
		case 0x2:
			return OpSLTI, nil
		case 0x3:
			return OpSLTIU, nil
		case 0x4:
			return OpXORI, nil
		case 0x5:
			if raw>>30&0x1 != 0 {
				return OpSRAI, nil
			}
			return OpSRLI, nil
		case 0x6:
			return OpORI, nil
		case 0x7:
			return OpANDI, nil
		}
	case boOpImm32:
		switch funct3 {
		case 0x0:
			return OpADDIW, nil
		case 0x1:
			return OpSLLIW, nil
		case 0x5:
			if raw>>30&0x1 != 0 {
				return OpSRAIW, nil
			}
			return OpSRLIW, nil
		}
	case boJALR:
		if funct3 == 0 {
			return OpJALR, nil
		}
	case boSystem:
		switch funct3 {
		case 0x0:
			return decodeSystem(raw)
		case 0x1:
			return OpCSRRW, nil
		case 0x2:
			return OpCSRRS, nil
		case 0x3:
			return OpCSRRC, nil
		case 0x5:
			return OpCSRRWI, nil
		case 0x6:
			return OpCSRRSI, nil
		case 0x7:
			return OpCSRRCI, nil
		}
	}
	return OpInvalid, errReserved
}

func decodeSystem(raw uint64) (Op, error) {
	imm := raw >> 20 & 0xfff
	switch imm {
	case 0x000:
		return OpECALL, nil
	case 0x001:
		return OpEBREAK, nil
	case 0x102:
		return OpSRET, nil
	case 0x302:
		return OpMRET, nil
	case 0x105:
		return OpWFI, nil
	}
	if imm>>5 == 0x09 { // SFENCE.VMA: funct7=0001001
		return OpSFENCE_VMA, nil
	}
	return OpInvalid, errReserved
}

func decodeS(funct3 uint64) (Op, error) {
	switch funct3 {
	case 0x0:
		return OpSB, nil
	case 0x1:
		return OpSH, nil
	case 0x2:
		return OpSW, nil
	case 0x3:
		return OpSD, nil
	}
	return OpInvalid, errReserved
}

func decodeB(funct3 uint64) (Op, error) {
	switch funct3 {
	case 0x0:
		return OpBEQ, nil
	case 0x1:
		return OpBNE, nil
	case 0x4:
		return OpBLT, nil
	case 0x5:
		return OpBGE, nil
	case 0x6:
		return OpBLTU, nil
	case 0x7:
		return OpBGEU, nil
	}
	return OpInvalid, errReserved
}

func isShiftImm(bop baseOpcode, funct3 uint64) bool {
	switch bop {
	case boOpImm:
		return funct3 == 0x1 || funct3 == 0x5
	case boOpImm32:
		return funct3 == 0x1 || funct3 == 0x5
	}
	return false
}

var errReserved = errReservedType{}

type errReservedType struct{}

func (errReservedType) Error() string { return "funct field is reserved" }
