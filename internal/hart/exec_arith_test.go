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

import "testing"

// rType encodes an R-type instruction word: opcode 0x33 (OP, 64-bit
// width) or 0x3B (OP-32, W-suffixed ops); rd=x3, rs1=x1, rs2=x2.
func rType(opcode, funct3, funct7 uint32) uint32 {
	const rd, rs1, rs2 = 3, 1, 2
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

const (
	opOP   = 0x33
	opOP32 = 0x3B
)

// TestMExtension exercises MUL/MULH/MULHSU/MULHU/DIV/DIVU/REM/REMU and
// their W-suffixed counterparts, focused on the edge cases a bare
// happy-path test wouldn't catch: the MULH/MULHSU two's-complement
// correction, divide-by-zero, and the INT64_MIN/-1 (INT32_MIN/-1 for the
// W forms) overflow case each of DIV/REM special-cases rather than
// letting a native division trap.
func TestMExtension(t *testing.T) {
	tests := []struct {
		desc   string
		funct3 uint32
		w      bool // OP-32 opcode, W-suffixed op
		a, b   uint64
		want   uint64
	}{
		{desc: "mul", funct3: 0x0, a: 6, b: 7, want: 42},
		{desc: "mulh both negative cancels to zero high word", funct3: 0x1, a: ^uint64(0), b: ^uint64(0), want: 0},
		{desc: "mulh negative times positive overflow", funct3: 0x1, a: uint64(1) << 63 /* MinInt64 */, b: 2, want: ^uint64(0) /* -1 */},
		{desc: "mulhu unsigned high word", funct3: 0x3, a: ^uint64(0), b: 2, want: 1},
		{desc: "mulhsu signed*unsigned", funct3: 0x2, a: ^uint64(0) /* -1 */, b: 5, want: ^uint64(0) /* -1 */},
		{desc: "div by zero", funct3: 0x4, a: 7, b: 0, want: ^uint64(0)},
		{desc: "div overflow MinInt64/-1", funct3: 0x4, a: uint64(1) << 63, b: ^uint64(0), want: uint64(1) << 63},
		{desc: "divu by zero", funct3: 0x5, a: 7, b: 0, want: ^uint64(0)},
		{desc: "rem by zero returns dividend", funct3: 0x6, a: 7, b: 0, want: 7},
		{desc: "rem overflow MinInt64/-1 is zero", funct3: 0x6, a: uint64(1) << 63, b: ^uint64(0), want: 0},
		{desc: "remu by zero returns dividend", funct3: 0x7, a: 7, b: 0, want: 7},
		{desc: "mulw truncates and sign-extends", funct3: 0x0, w: true, a: 0x100000001, b: 3, want: 3},
		{desc: "divw overflow MinInt32/-1", funct3: 0x4, w: true, a: 0xFFFF_FFFF_8000_0000, b: 0xFFFF_FFFF_FFFF_FFFF, want: 0xFFFF_FFFF_8000_0000},
		{desc: "remw overflow MinInt32/-1 is zero", funct3: 0x6, w: true, a: 0xFFFF_FFFF_8000_0000, b: 0xFFFF_FFFF_FFFF_FFFF, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			h, b := newTestHart(t)
			opcode := uint32(opOP)
			if tc.w {
				opcode = opOP32
			}
			putWord(t, b, ramBase, rType(opcode, tc.funct3, 0x01))
			h.Reg[1] = tc.a
			h.Reg[2] = tc.b
			if err := h.Tick(); err != nil {
				t.Fatalf("Tick: %v", err)
			}
			if h.Reg[3] != tc.want {
				t.Fatalf("x3 = %#x, want %#x", h.Reg[3], tc.want)
			}
		})
	}
}

// TestShiftAmountTruncation covers the "discard high shift bits"
// behavior: register-register shifts mask the shift amount to the
// register width (&0x3f for SLL/SRL/SRA, &0x1f for the W forms), so a
// shift-amount register carrying extra high bits must behave as if only
// the low bits were set.
func TestShiftAmountTruncation(t *testing.T) {
	tests := []struct {
		desc   string
		funct3 uint32
		funct7 uint32
		w      bool
		a      uint64
		shamt  uint64 // raw rs2 value, with extra high bits set
		want   uint64
	}{
		{desc: "sll discards bits above 0x3f", funct3: 0x1, funct7: 0x00, a: 1, shamt: 0xfc0 | 0x3f, want: 1 << 63},
		{desc: "srl discards bits above 0x3f", funct3: 0x5, funct7: 0x00, a: 1 << 63, shamt: 0xfc0 | 0x3f, want: 1},
		{desc: "sra discards bits above 0x3f", funct3: 0x5, funct7: 0x20, a: 0x8000_0000_0000_0000, shamt: 0xfc0 | 0x3f, want: 0xFFFF_FFFF_FFFF_FFFF},
		{desc: "sllw discards bits above 0x1f", funct3: 0x1, funct7: 0x00, w: true, a: 1, shamt: 0xffffffe0 | 0x1f, want: 0xFFFF_FFFF_8000_0000},
		{desc: "srlw discards bits above 0x1f", funct3: 0x5, funct7: 0x00, w: true, a: 0x8000_0000, shamt: 0xffffffe0 | 0x1f, want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			h, b := newTestHart(t)
			opcode := uint32(opOP)
			if tc.w {
				opcode = opOP32
			}
			putWord(t, b, ramBase, rType(opcode, tc.funct3, tc.funct7))
			h.Reg[1] = tc.a
			h.Reg[2] = tc.shamt
			if err := h.Tick(); err != nil {
				t.Fatalf("Tick: %v", err)
			}
			if h.Reg[3] != tc.want {
				t.Fatalf("x3 = %#x, want %#x", h.Reg[3], tc.want)
			}
		})
	}
}
