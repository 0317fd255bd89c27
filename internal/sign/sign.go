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

// Package sign holds the bit-level sign-extension helper shared by the
// instruction decoder and the RV64 executors.
package sign

import "math"

// Extend treats v as a two's-complement number whose most significant bit
// is bit (counting from 0) and extends it to a full 64-bit uint64.
func Extend(v uint64, bit int) uint64 {
	b := bits[bit]
	if v&b.signBit != 0 {
		return v | b.ones
	}
	return v
}

var bits [64]struct {
	signBit uint64
	ones    uint64
}

func init() {
	b := uint64(1)
	ones := uint64(math.MaxUint64)
	for i := 0; i < len(bits); i++ {
		bits[i].signBit = b
		bits[i].ones = ones
		b <<= 1
		ones <<= 1
	}
}
