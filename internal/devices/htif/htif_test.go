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

package htif_test

import (
	"testing"

	"rv64emu/internal/devices/htif"
)

func TestWriteHalts(t *testing.T) {
	h := htif.New()
	tr := h.WriteDouble(0, 1)
	if tr == nil || !tr.Halt {
		t.Fatal("any write to HTIF should produce a Halt trap")
	}
	if h.LastValue != 1 {
		t.Fatalf("LastValue = %d, want 1", h.LastValue)
	}
}

func TestReadIsMemoryFault(t *testing.T) {
	h := htif.New()
	if _, tr := h.ReadByte(0); tr == nil || tr.Halt {
		t.Fatal("reads from HTIF should be a memory fault, not a halt")
	}
}
