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

// Package isa decodes RISC-V RV64GC parcels (16-bit RVC and 32-bit
// standard encodings) into a typed Instruction record. Decoding is pure:
// it consumes only the parcel bytes and never touches hart or bus state.
package isa

import "fmt"

// Format is the base RISC-V instruction format the encoding belongs to.
// riscv-spec-v2.2; Chapter 2.
type Format int

const (
	FormatR Format = iota
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
)

func (f Format) String() string {
	switch f {
	case FormatR:
		return "R"
	case FormatI:
		return "I"
	case FormatS:
		return "S"
	case FormatB:
		return "B"
	case FormatU:
		return "U"
	case FormatJ:
		return "J"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Op names every concrete instruction this decoder recognizes. It is the
// decode-time-resolved tag the hart's executors switch on.
type Op int

const (
	OpInvalid Op = iota

	// RV32I
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpFENCE
	OpFENCEI
	OpECALL
	OpEBREAK
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	// RV64I (in addition to RV32I)
	OpLWU
	OpLD
	OpSD
	OpSLLIW
	OpSRLIW
	OpSRAIW
	OpADDIW
	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW

	// M: integer multiply/divide
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
	OpMULW
	OpDIVW
	OpDIVUW
	OpREMW
	OpREMUW

	// A: atomics (.W and .D share the Op; Funct3 distinguishes them)
	OpLR
	OpSC
	OpAMOSWAP
	OpAMOADD
	OpAMOAND
	OpAMOOR
	OpAMOXOR
	OpAMOMAX
	OpAMOMIN
	OpAMOMAXU
	OpAMOMINU

	// Privileged / Zicsr environment
	OpMRET
	OpSRET
	OpWFI
	OpSFENCE_VMA
)

// Instruction is the decoded, typed record for one parcel. It is transient:
// the hart never stores one across ticks.
type Instruction struct {
	Op     Op
	Format Format
	Width  int // parcel width in bytes: 2 (RVC) or 4 (standard)

	RD, RS1, RS2 uint64
	Funct3       uint64
	Funct7       uint64

	Imm int64 // sign-extended to the instruction's natural width

	AQ, RL bool // atomics: acquire/release bits, accepted and ignored

	Raw uint64 // the encoded parcel, kept for diagnostics and tval
}

// DecodingError reports that a parcel could not be recognized as any
// supported encoding.
type DecodingError struct {
	Parcel uint64
	Width  int
	Reason string
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("can't decode %d-byte parcel %#x: %s", e.Width, e.Parcel, e.Reason)
}
