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

// Package platform holds the memory map a Linux-capable machine is
// wired up with (spec.md §6) and an optional YAML overlay so a
// deployment can relocate regions without a rebuild, the way
// tinyrange-cc's site-config.yml overlays deployment settings onto
// built-in defaults.
package platform

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Map is the address layout the default machine wires devices at.
// Values are defaults; LoadOverlay can replace any of them.
type Map struct {
	ROMBase    uint64 `yaml:"rom_base"`
	ROMSize    uint64 `yaml:"rom_size"`
	DTBBase    uint64 `yaml:"dtb_base"`
	CLINTBase  uint64 `yaml:"clint_base"`
	CLINTSize  uint64 `yaml:"clint_size"`
	PLICBase   uint64 `yaml:"plic_base"`
	PLICSize   uint64 `yaml:"plic_size"`
	UARTBase   uint64 `yaml:"uart_base"`
	UARTSize   uint64 `yaml:"uart_size"`
	VirtIOBase uint64 `yaml:"virtio_base"`
	VirtIOSize uint64 `yaml:"virtio_size"`
	RAMBase    uint64 `yaml:"ram_base"`
	RAMSize    uint64 `yaml:"ram_size"`

	UARTIRQ   uint32 `yaml:"uart_irq"`
	VirtIOIRQ uint32 `yaml:"virtio_irq"`
}

// Default returns the typical Linux layout spec.md §6 enumerates.
func Default() Map {
	return Map{
		ROMBase:    0x0000_1000,
		ROMSize:    0x0000_F000,
		DTBBase:    0x0000_8000,
		CLINTBase:  0x0200_0000,
		CLINTSize:  0x0001_0000,
		PLICBase:   0x0C00_0000,
		PLICSize:   0x0060_0000,
		UARTBase:   0x1000_0000,
		UARTSize:   0x100,
		VirtIOBase: 0x1000_1000,
		VirtIOSize: 0x1000,
		RAMBase:    0x8000_0000,
		RAMSize:    128 << 20,
		UARTIRQ:    10,
		VirtIOIRQ:  1,
	}
}

// LoadOverlay reads a YAML file and merges any fields it sets onto m,
// leaving fields the file omits at their current (default) value. A
// missing file is not an error: callers only need this for deployments
// that relocate a region.
func LoadOverlay(path string, m *Map) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("platform: reading overlay %s: %w", path, err)
	}

	overlay := struct {
		ROMBase    *uint64 `yaml:"rom_base"`
		ROMSize    *uint64 `yaml:"rom_size"`
		DTBBase    *uint64 `yaml:"dtb_base"`
		CLINTBase  *uint64 `yaml:"clint_base"`
		CLINTSize  *uint64 `yaml:"clint_size"`
		PLICBase   *uint64 `yaml:"plic_base"`
		PLICSize   *uint64 `yaml:"plic_size"`
		UARTBase   *uint64 `yaml:"uart_base"`
		UARTSize   *uint64 `yaml:"uart_size"`
		VirtIOBase *uint64 `yaml:"virtio_base"`
		VirtIOSize *uint64 `yaml:"virtio_size"`
		RAMBase    *uint64 `yaml:"ram_base"`
		RAMSize    *uint64 `yaml:"ram_size"`
		UARTIRQ    *uint32 `yaml:"uart_irq"`
		VirtIOIRQ  *uint32 `yaml:"virtio_irq"`
	}{}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("platform: parsing overlay %s: %w", path, err)
	}

	apply(&m.ROMBase, overlay.ROMBase)
	apply(&m.ROMSize, overlay.ROMSize)
	apply(&m.DTBBase, overlay.DTBBase)
	apply(&m.CLINTBase, overlay.CLINTBase)
	apply(&m.CLINTSize, overlay.CLINTSize)
	apply(&m.PLICBase, overlay.PLICBase)
	apply(&m.PLICSize, overlay.PLICSize)
	apply(&m.UARTBase, overlay.UARTBase)
	apply(&m.UARTSize, overlay.UARTSize)
	apply(&m.VirtIOBase, overlay.VirtIOBase)
	apply(&m.VirtIOSize, overlay.VirtIOSize)
	apply(&m.RAMBase, overlay.RAMBase)
	apply(&m.RAMSize, overlay.RAMSize)
	apply(&m.UARTIRQ, overlay.UARTIRQ)
	apply(&m.VirtIOIRQ, overlay.VirtIOIRQ)
	return nil
}

func apply[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
