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

// ParcelWidth reports the width, in bytes, of the instruction whose first
// halfword is lo. Per riscv-spec-v2.2 Figure 1.1: the low two bits select
// 16-bit (anything but 0b11) vs 32-bit (0b11) parcels; this core doesn't
// support the 48-bit+ extended-width encodings.
func ParcelWidth(lo uint16) int {
	if lo&0x3 != 0x3 {
		return 2
	}
	return 4
}

// Decode decodes one instruction starting at pc. lo is the first halfword;
// hi is the second halfword, used only when ParcelWidth(lo) == 4.
func Decode(pc uint64, lo, hi uint16) (*Instruction, error) {
	if ParcelWidth(lo) == 2 {
		in, err := DecodeRVC(lo)
		if err != nil {
			return nil, err
		}
		in.Raw = uint64(lo)
		return in, nil
	}
	raw := uint32(lo) | uint32(hi)<<16
	in, err := Decode32(pc, raw)
	if err != nil {
		return nil, err
	}
	return in, nil
}
