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

func TestDecode32ADDI(t *testing.T) {
	tests := []struct {
		name string
		word uint32
		rd   uint64
		rs1  uint64
		imm  int64
	}{
		{"ADDI x2, x1, 2000", 0x7d008113, 2, 1, 2000},
		{"ADDI x3, x3, -1000", 0xc1818193, 3, 3, -1000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in, err := Decode32(0, tc.word)
			if err != nil {
				t.Fatalf("Decode32(%#x): %v", tc.word, err)
			}
			if in.Op != OpADDI {
				t.Fatalf("Op = %v, want OpADDI", in.Op)
			}
			if in.RD != tc.rd || in.RS1 != tc.rs1 {
				t.Fatalf("RD=%d RS1=%d, want RD=%d RS1=%d", in.RD, in.RS1, tc.rd, tc.rs1)
			}
			if in.Imm != tc.imm {
				t.Fatalf("Imm = %d, want %d", in.Imm, tc.imm)
			}
		})
	}
}

func TestDecode32JAL(t *testing.T) {
	// JAL x1, +4 at PC 0x1000 (spec.md §8 scenario 2).
	in, err := Decode32(0x1000, 0x004000ef)
	if err != nil {
		t.Fatalf("Decode32: %v", err)
	}
	if in.Op != OpJAL {
		t.Fatalf("Op = %v, want OpJAL", in.Op)
	}
	if in.RD != 1 {
		t.Fatalf("RD = %d, want 1", in.RD)
	}
	if in.Imm != 4 {
		t.Fatalf("Imm = %d, want 4", in.Imm)
	}
}

func TestDecode32IllegalOpcode(t *testing.T) {
	if _, err := Decode32(0, 0x00000000); err == nil {
		t.Fatal("Decode32(0x00000000) should fail: all-zero word is not a legal instruction")
	}
}

func TestDecode32RoundTrip(t *testing.T) {
	words := []uint32{
		0x7d008113, // ADDI x2, x1, 2000
		0x004000ef, // JAL x1, +4
		0x00c58533, // ADD x10, x11, x12
		0x00000013, // ADDI x0, x0, 0 (NOP)
	}
	for _, w := range words {
		in, err := Decode32(0, w)
		if err != nil {
			t.Fatalf("Decode32(%#x): %v", w, err)
		}
		got, ok := Encode32(in)
		if !ok {
			t.Fatalf("Encode32 could not re-encode %#x (op %v)", w, in.Op)
		}
		if got != w {
			t.Fatalf("round trip mismatch: decode(%#x) -> encode -> %#x", w, got)
		}
	}
}

func TestParcelWidthSelection(t *testing.T) {
	// Low two bits 11 => 32-bit standard encoding.
	if w := uint32(0x7d008113); w&0x3 != 0x3 {
		t.Fatal("test fixture is not a 32-bit encoding")
	}
	// Low two bits != 11 => 16-bit RVC encoding (e.g. C.ADDI has op=01).
	if w := uint16(0x0001); w&0x3 == 0x3 {
		t.Fatal("test fixture is not a compressed encoding")
	}
}
