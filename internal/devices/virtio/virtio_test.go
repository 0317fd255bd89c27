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

package virtio_test

import (
	"os"
	"path/filepath"
	"testing"

	"rv64emu/internal/bus"
	"rv64emu/internal/devices/ram"
	"rv64emu/internal/devices/virtio"
)

const (
	ramBase    = 0x8000_0000
	descBase   = ramBase + 0x1000
	availBase  = ramBase + 0x2000
	usedBase   = ramBase + 0x3000
	hdrBase    = ramBase + 0x4000
	dataBase   = ramBase + 0x5000
	statusBase = ramBase + 0x6000
)

// TestVirtIOBlockRead mirrors spec.md §8 scenario 6: with a disk image
// whose sector 0 begins "Hello", post a (header IN, data WRITE len=5,
// status WRITE len=1) descriptor chain and notify the queue.
func TestVirtIOBlockRead(t *testing.T) {
	diskPath := filepath.Join(t.TempDir(), "disk.img")
	disk := make([]byte, 512)
	copy(disk, "Hello")
	if err := os.WriteFile(diskPath, disk, 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(diskPath, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	b := bus.New()
	b.Map("ram", ramBase, ramBase+1<<20, ram.New(1<<20))

	blk := virtio.New(f, int64(len(disk)), b, nil)
	interruptRaised := false
	blk.RaiseInterrupt = func() { interruptRaised = true }

	// Select queue 0, size 3 (header, data, status descriptors), mark ready.
	blk.WriteWord(virtio.RegQueueSel, 0)
	blk.WriteWord(virtio.RegQueueSize, 3)
	blk.WriteWord(virtio.RegQueueDescLow, descBase)
	blk.WriteWord(virtio.RegQueueDriverLow, availBase)
	blk.WriteWord(virtio.RegQueueDeviceLow, usedBase)
	blk.WriteWord(virtio.RegQueueReady, 1)

	// Descriptor 0: block request header, read-only, chained to descriptor 1.
	writeDesc(b, descBase, 0, hdrBase, 16, 1 /*NEXT*/, 1)
	// Header: type=IN(0), reserved, sector=0.
	b.WriteWord(hdrBase, 0)
	b.WriteDouble(hdrBase+8, 0)

	// Descriptor 1: data buffer, device-written (WRITE flag), chained to 2.
	writeDesc(b, descBase, 1, dataBase, 5, 1|2 /*NEXT|WRITE*/, 2)

	// Descriptor 2: status buffer, device-written, end of chain.
	writeDesc(b, descBase, 2, statusBase, 1, 2 /*WRITE*/, 0)

	// Avail ring: idx field at +2, ring entries at +4.
	b.WriteHalf(availBase+4, 0) // ring[0] = head descriptor 0
	b.WriteHalf(availBase+2, 1) // idx = 1 (one new entry posted)

	// Used ring idx starts at 0.
	b.WriteHalf(usedBase+2, 0)

	blk.WriteWord(virtio.RegQueueNotify, 0)

	got := make([]byte, 5)
	for i := range got {
		v, tr := b.ReadByte(dataBase + uint64(i))
		if tr != nil {
			t.Fatalf("reading guest buffer byte %d: %v", i, tr)
		}
		got[i] = v
	}
	if string(got) != "Hello" {
		t.Fatalf("guest buffer = %q, want %q", got, "Hello")
	}

	statusByte, tr := b.ReadByte(statusBase)
	if tr != nil {
		t.Fatalf("reading status byte: %v", tr)
	}
	if statusByte != 0 {
		t.Fatalf("status byte = %d, want 0", statusByte)
	}

	usedIdx, tr := b.ReadHalf(usedBase + 2)
	if tr != nil {
		t.Fatalf("reading used.idx: %v", tr)
	}
	if usedIdx != 1 {
		t.Fatalf("used.idx = %d, want 1", usedIdx)
	}

	if !interruptRaised {
		t.Fatal("RaiseInterrupt should be called once the request completes")
	}
}

func writeDesc(b *bus.Bus, table uint64, idx uint16, addr uint64, length uint32, flags uint16, next uint16) {
	base := table + uint64(idx)*16
	b.WriteDouble(base, addr)
	b.WriteWord(base+8, length)
	b.WriteHalf(base+12, flags)
	b.WriteHalf(base+14, next)
}
