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

package sbi_test

import (
	"testing"

	"rv64emu/internal/sbi"
)

type fakeResettable struct{ resetCount int }

func (f *fakeResettable) Reset() { f.resetCount++ }

func TestLegacyShutdown(t *testing.T) {
	h := &fakeResettable{}
	res := sbi.Call(sbi.Args{EID: 0x08}, h)
	if !res.Shutdown {
		t.Fatal("legacy shutdown should set Shutdown")
	}
}

func TestModernSystemResetShutdown(t *testing.T) {
	h := &fakeResettable{}
	res := sbi.Call(sbi.Args{EID: 0x53525354, FID: 0, A: [6]uint64{0}}, h)
	if !res.Shutdown {
		t.Fatal("system_reset(type=shutdown) should set Shutdown")
	}
	if h.resetCount != 0 {
		t.Fatal("shutdown should not call Reset")
	}
}

func TestModernSystemResetReboot(t *testing.T) {
	h := &fakeResettable{}
	for _, rtype := range []uint64{1, 2} {
		res := sbi.Call(sbi.Args{EID: 0x53525354, FID: 0, A: [6]uint64{rtype}}, h)
		if res.Shutdown {
			t.Fatalf("reset type %d should not shut down", rtype)
		}
	}
	if h.resetCount != 2 {
		t.Fatalf("Reset called %d times, want 2", h.resetCount)
	}
}

func TestBaseSpecVersion(t *testing.T) {
	h := &fakeResettable{}
	res := sbi.Call(sbi.Args{EID: 0x10, FID: 0x0}, h)
	if res.Value != 1<<24 {
		t.Fatalf("get_spec_version = %#x, want %#x", res.Value, uint64(1<<24))
	}
}

func TestProbeExtension(t *testing.T) {
	h := &fakeResettable{}
	res := sbi.Call(sbi.Args{EID: 0x10, FID: 0x3, A: [6]uint64{0x53525354}}, h)
	if res.Value != 1 {
		t.Fatalf("probe_extension(SRST) = %d, want 1", res.Value)
	}
	res = sbi.Call(sbi.Args{EID: 0x10, FID: 0x3, A: [6]uint64{0x09090909}}, h)
	if res.Value != 0 {
		t.Fatalf("probe_extension(unknown) = %d, want 0", res.Value)
	}
}

func TestUnsupportedExtensionReturnsNotSupported(t *testing.T) {
	h := &fakeResettable{}
	res := sbi.Call(sbi.Args{EID: 0x7FFFFFFF, FID: 0}, h)
	if res.Error != ^uint64(0)-1 {
		t.Fatalf("unsupported EID error = %#x, want -2", res.Error)
	}
}
