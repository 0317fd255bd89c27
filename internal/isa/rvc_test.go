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

import "testing"

func TestDecodeRVCDisambiguation(t *testing.T) {
	for _, tt := range []struct {
		desc string
		in   uint16
		op   Op
		rd   uint64
		rs1  uint64
		rs2  uint64
		imm  int64
	}{
		// rd field == x2 selects C.ADDI16SP; any other rd selects C.LUI.
		{desc: "C.ADDI16SP (rd=x2)", in: 0x6101, op: OpADDI, rd: regSP, rs1: regSP, imm: 0},
		{desc: "C.LUI (rd=x3)", in: 0x6181, op: OpLUI, rd: 3, imm: 0},

		// rs2==0 selects C.JR (rs1 as a jump target); rs2!=0 selects C.MV.
		{desc: "C.JR", in: 0x8f82, op: OpJALR, rd: regZero, rs1: 0x1f, imm: 0},
		{desc: "C.MV", in: 0x8AAA, op: OpADD, rd: 0x15, rs1: regZero, rs2: 0xa},

		// bit 12 set distinguishes the C.EBREAK/C.JALR/C.ADD trio from C.JR/C.MV.
		{desc: "C.EBREAK", in: 0x9002, op: OpEBREAK},
		{desc: "C.JALR", in: 0x9f82, op: OpJALR, rd: regRA, rs1: 0x1f, imm: 0},
		{desc: "C.ADD", in: 0x9AAA, op: OpADD, rd: 0x15, rs1: 0x15, rs2: 0xa},
	} {
		t.Run(tt.desc, func(t *testing.T) {
			in, err := DecodeRVC(tt.in)
			if err != nil {
				t.Fatalf("DecodeRVC(%#04x): %v", tt.in, err)
			}
			if in.Op != tt.op {
				t.Fatalf("Op = %v, want %v", in.Op, tt.op)
			}
			if in.RD != tt.rd || in.RS1 != tt.rs1 || in.RS2 != tt.rs2 {
				t.Fatalf("RD=%d RS1=%d RS2=%d, want RD=%d RS1=%d RS2=%d", in.RD, in.RS1, in.RS2, tt.rd, tt.rs1, tt.rs2)
			}
			if tt.op != OpEBREAK && in.Imm != tt.imm {
				t.Fatalf("Imm = %d, want %d", in.Imm, tt.imm)
			}
		})
	}
}

func TestDecodeRVCReservedEncodings(t *testing.T) {
	for _, tt := range []struct {
		desc string
		in   uint16
	}{
		{desc: "all-zero parcel", in: 0x0000},
		{desc: "C.FLD (F extension, out of scope)", in: 0x2000},
		{desc: "C.FSD (F extension, out of scope)", in: 0xA000},
		{desc: "reserved quadrant-0 encoding", in: 0x8000},
		{desc: "C.ADDI4SPN with nzuimm=0", in: 0x0004},
		{desc: "C.JR with rs1=0", in: 0x8002},
	} {
		t.Run(tt.desc, func(t *testing.T) {
			if _, err := DecodeRVC(tt.in); err == nil {
				t.Fatalf("DecodeRVC(%#04x) should be rejected as a reserved/unsupported encoding", tt.in)
			}
		})
	}
}
