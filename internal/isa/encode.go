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

// opEncodings gives the (opcode, funct3, funct7) triple used to encode each
// standard 32-bit Op, to support the round-trip invariant in spec.md §8.
// Only Ops reachable from the standard (non-RVC) 32-bit encodings appear
// here; it's the inverse of decodeR/decodeI/decodeS/decodeB.
var opEncodings = map[Op]struct {
	opcode, funct3, funct7 uint64
}{
	OpLUI:     {0x0D, 0, 0},
	OpAUIPC:   {0x05, 0, 0},
	OpJAL:     {0x1B, 0, 0},
	OpJALR:    {0x19, 0x0, 0},
	OpBEQ:     {0x18, 0x0, 0},
	OpBNE:     {0x18, 0x1, 0},
	OpBLT:     {0x18, 0x4, 0},
	OpBGE:     {0x18, 0x5, 0},
	OpBLTU:    {0x18, 0x6, 0},
	OpBGEU:    {0x18, 0x7, 0},
	OpLB:      {0x00, 0x0, 0},
	OpLH:      {0x00, 0x1, 0},
	OpLW:      {0x00, 0x2, 0},
	OpLD:      {0x00, 0x3, 0},
	OpLBU:     {0x00, 0x4, 0},
	OpLHU:     {0x00, 0x5, 0},
	OpLWU:     {0x00, 0x6, 0},
	OpSB:      {0x08, 0x0, 0},
	OpSH:      {0x08, 0x1, 0},
	OpSW:      {0x08, 0x2, 0},
	OpSD:      {0x08, 0x3, 0},
	OpADDI:    {0x04, 0x0, 0},
	OpSLTI:    {0x04, 0x2, 0},
	OpSLTIU:   {0x04, 0x3, 0},
	OpXORI:    {0x04, 0x4, 0},
	OpORI:     {0x04, 0x6, 0},
	OpANDI:    {0x04, 0x7, 0},
	OpSLLI:    {0x04, 0x1, 0x00},
	OpSRLI:    {0x04, 0x5, 0x00},
	OpSRAI:    {0x04, 0x5, 0x20},
	OpADD:     {0x0C, 0x0, 0x00},
	OpSUB:     {0x0C, 0x0, 0x20},
	OpSLL:     {0x0C, 0x1, 0x00},
	OpSLT:     {0x0C, 0x2, 0x00},
	OpSLTU:    {0x0C, 0x3, 0x00},
	OpXOR:     {0x0C, 0x4, 0x00},
	OpSRL:     {0x0C, 0x5, 0x00},
	OpSRA:     {0x0C, 0x5, 0x20},
	OpOR:      {0x0C, 0x6, 0x00},
	OpAND:     {0x0C, 0x7, 0x00},
	OpFENCE:   {0x03, 0x0, 0},
	OpFENCEI:  {0x03, 0x1, 0},
	OpECALL:   {0x1C, 0x0, 0},
	OpCSRRW:   {0x1C, 0x1, 0},
	OpCSRRS:   {0x1C, 0x2, 0},
	OpCSRRC:   {0x1C, 0x3, 0},
	OpCSRRWI:  {0x1C, 0x5, 0},
	OpCSRRSI:  {0x1C, 0x6, 0},
	OpCSRRCI:  {0x1C, 0x7, 0},
	OpADDIW:   {0x06, 0x0, 0},
	OpSLLIW:   {0x06, 0x1, 0x00},
	OpSRLIW:   {0x06, 0x5, 0x00},
	OpSRAIW:   {0x06, 0x5, 0x20},
	OpADDW:    {0x0E, 0x0, 0x00},
	OpSUBW:    {0x0E, 0x0, 0x20},
	OpSLLW:    {0x0E, 0x1, 0x00},
	OpSRLW:    {0x0E, 0x5, 0x00},
	OpSRAW:    {0x0E, 0x5, 0x20},
	OpMUL:     {0x0C, 0x0, 0x01},
	OpMULH:    {0x0C, 0x1, 0x01},
	OpMULHSU:  {0x0C, 0x2, 0x01},
	OpMULHU:   {0x0C, 0x3, 0x01},
	OpDIV:     {0x0C, 0x4, 0x01},
	OpDIVU:    {0x0C, 0x5, 0x01},
	OpREM:     {0x0C, 0x6, 0x01},
	OpREMU:    {0x0C, 0x7, 0x01},
	OpMULW:    {0x0E, 0x0, 0x01},
	OpDIVW:    {0x0E, 0x4, 0x01},
	OpDIVUW:   {0x0E, 0x5, 0x01},
	OpREMW:    {0x0E, 0x6, 0x01},
	OpREMUW:   {0x0E, 0x7, 0x01},
}

// Encode32 re-encodes a standard-format (non-RVC) Instruction back into its
// 32-bit parcel. It supports exactly the Ops opEncodings lists; atomics and
// EBREAK/MRET/SRET/WFI/SFENCE.VMA (which need extra immediate-field bits
// beyond funct7) are not round-tripped by this helper.
func Encode32(in *Instruction) (uint32, bool) {
	enc, ok := opEncodings[in.Op]
	if !ok {
		return 0, false
	}
	u := enc.opcode<<2 | 0x3
	u |= in.RD << 7
	u |= enc.funct3 << 12
	switch in.Format {
	case FormatU:
		u |= uint64(in.Imm) & 0xFFFFF000
	case FormatJ:
		imm := uint64(in.Imm)
		u |= imm&0x100000<<11 | imm&0xff000 | imm&0x800<<9 | imm&0x7fe<<20
	case FormatI:
		u |= in.RS1 << 15
		if in.Op == OpSLLI || in.Op == OpSRLI || in.Op == OpSRAI {
			u |= (uint64(in.Imm) & 0x3f) << 20
			u |= enc.funct7 << 25
		} else if in.Op == OpSLLIW || in.Op == OpSRLIW || in.Op == OpSRAIW {
			u |= (uint64(in.Imm) & 0x1f) << 20
			u |= enc.funct7 << 25
		} else {
			u |= (uint64(in.Imm) & 0xfff) << 20
		}
	case FormatS:
		u |= in.RS1 << 15
		u |= in.RS2 << 20
		imm := uint64(in.Imm)
		u |= imm&0x1f<<7 | imm&0xfe0<<20
	case FormatB:
		u |= in.RS1 << 15
		u |= in.RS2 << 20
		imm := uint64(in.Imm)
		u |= imm&0x1000<<19 | imm&0x7e0<<20 | imm&0x1e<<7 | imm&0x800>>4
	case FormatR:
		u |= in.RS1 << 15
		u |= in.RS2 << 20
		u |= enc.funct7 << 25
	}
	return uint32(u), true
}
