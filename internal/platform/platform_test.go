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

package platform_test

import (
	"os"
	"path/filepath"
	"testing"

	"rv64emu/internal/platform"
)

func TestDefaultMatchesLinuxLayout(t *testing.T) {
	m := platform.Default()
	if m.RAMBase != 0x8000_0000 {
		t.Fatalf("RAMBase = %#x, want 0x80000000", m.RAMBase)
	}
	if m.RAMSize < 128<<20 {
		t.Fatalf("RAMSize = %d, want >= 128 MiB", m.RAMSize)
	}
}

func TestLoadOverlayMissingFileIsNotError(t *testing.T) {
	m := platform.Default()
	if err := platform.LoadOverlay(filepath.Join(t.TempDir(), "missing.yaml"), &m); err != nil {
		t.Fatalf("LoadOverlay(missing file): %v", err)
	}
}

func TestLoadOverlayPartialMerge(t *testing.T) {
	m := platform.Default()
	orig := m.UARTBase
	path := filepath.Join(t.TempDir(), "overlay.yaml")
	if err := os.WriteFile(path, []byte("ram_size: 67108864\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := platform.LoadOverlay(path, &m); err != nil {
		t.Fatalf("LoadOverlay: %v", err)
	}
	if m.RAMSize != 67108864 {
		t.Fatalf("RAMSize = %d, want 67108864", m.RAMSize)
	}
	if m.UARTBase != orig {
		t.Fatalf("UARTBase changed to %#x despite overlay not setting it", m.UARTBase)
	}
}
