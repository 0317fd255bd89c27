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

// rvemu boots an ELF image on the RV64GC core: <rvemu> <elf-image>
// [<disk-image>]. Grounded on the teacher's flag-driven main.go and on
// original_source's bin/archtest.go-equivalent ELF/signature loader,
// rebuilt around cobra/pflag the way oisee-z80-optimizer's cmd/z80opt
// wires its root command.
package main

import (
	"debug/elf"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"rv64emu/internal/bus"
	"rv64emu/internal/debug"
	"rv64emu/internal/devices/clint"
	"rv64emu/internal/devices/htif"
	"rv64emu/internal/devices/plic"
	"rv64emu/internal/devices/ram"
	"rv64emu/internal/devices/rom"
	"rv64emu/internal/devices/uart"
	"rv64emu/internal/devices/virtio"
	"rv64emu/internal/hart"
	"rv64emu/internal/platform"
)

const (
	exitShutdown   = 0
	exitStepsGuard = 1
	exitFault      = 2
)

func main() {
	var (
		maxSteps     uint64
		dtbPath      string
		platformYAML string
		sigFile      string
		noConsole    bool
	)

	root := &cobra.Command{
		Use:   "rvemu <elf-image> [<disk-image>]",
		Short: "RV64GC system emulator: boots an ELF image far enough to run a supervisor-mode OS",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			elfPath := args[0]
			diskPath := ""
			if len(args) == 2 {
				diskPath = args[1]
			}
			return run(elfPath, diskPath, runConfig{
				maxSteps:     maxSteps,
				dtbPath:      dtbPath,
				platformYAML: platformYAML,
				sigFile:      sigFile,
				noConsole:    noConsole,
			})
		},
	}

	root.Flags().Uint64Var(&maxSteps, "max-steps", 0, "abort after this many retirements (0 = unbounded)")
	root.Flags().StringVar(&dtbPath, "dtb", "", "path to a device tree blob to place at the platform's DTB address")
	root.Flags().StringVar(&platformYAML, "platform", "", "path to a YAML memory-map overlay")
	root.Flags().StringVar(&sigFile, "signature", "", "write the begin_signature..end_signature byte range here (architectural compliance tests)")
	root.Flags().BoolVar(&noConsole, "no-console", false, "don't put the terminal in raw mode / attach stdin to the UART")

	if err := root.Execute(); err != nil {
		os.Exit(exitFault)
	}
}

type runConfig struct {
	maxSteps     uint64
	dtbPath      string
	platformYAML string
	sigFile      string
	noConsole    bool
}

func run(elfPath, diskPath string, cfg runConfig) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	m := platform.Default()
	if cfg.platformYAML != "" {
		if err := platform.LoadOverlay(cfg.platformYAML, &m); err != nil {
			return err
		}
	}

	b := bus.New()

	romDev := rom.New(nil, int(m.ROMSize))
	b.Map("rom", m.ROMBase, m.ROMBase+m.ROMSize, romDev)

	ramDev := ram.New(int(m.RAMSize))
	b.Map("ram", m.RAMBase, m.RAMBase+m.RAMSize, ramDev)

	cl := clint.New()
	b.Map("clint", m.CLINTBase, m.CLINTBase+m.CLINTSize, cl)

	pl := plic.New()
	b.Map("plic", m.PLICBase, m.PLICBase+m.PLICSize, pl)

	con := uart.New(os.Stdout)
	con.Notify = func() { pl.RaiseEdge(m.UARTIRQ) }
	b.Map("uart", m.UARTBase, m.UARTBase+m.UARTSize, con)

	htifDev := htif.New()
	b.Map("htif", 0x0010_0000, 0x0010_1000, htifDev)

	h := hart.New(b, m.ROMBase)
	hart.SetInterruptSources(h, cl, pl, plic.ContextM)

	if diskPath != "" {
		f, err := os.OpenFile(diskPath, os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("opening disk image: %w", err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}
		blk := virtio.New(f, info.Size(), b, log)
		blk.RaiseInterrupt = func() { pl.RaiseEdge(m.VirtIOIRQ) }
		b.Map("virtio-blk", m.VirtIOBase, m.VirtIOBase+m.VirtIOSize, blk)
	}

	if !cfg.noConsole {
		console, err := uart.AttachConsole(con, int(os.Stdin.Fd()))
		if err != nil {
			log.Warn("couldn't attach console", "error", err)
		} else {
			defer console.Restore()
		}
	}

	entry, err := loadELF(b, elfPath)
	if err != nil {
		return fmt.Errorf("loading ELF: %w", err)
	}
	h.ResetPC = entry
	h.PC = entry

	if cfg.dtbPath != "" {
		blob, err := os.ReadFile(cfg.dtbPath)
		if err != nil {
			return fmt.Errorf("reading DTB: %w", err)
		}
		if err := b.LoadBytes(m.DTBBase, blob); err != nil {
			return fmt.Errorf("loading DTB: %w", err)
		}
		h.Reg[11] = m.DTBBase // a1 carries the DTB pointer per the SBI boot convention
	}

	h.MaxSteps = cfg.maxSteps
	var sess *debug.Session
	runErr := h.Run(sess)

	if cfg.sigFile != "" {
		if err := writeSignature(b, elfPath, cfg.sigFile); err != nil {
			log.Warn("signature dump failed", "error", err)
		}
	}

	var guard *hart.ErrUnrecoverable
	switch {
	case h.Stop:
		os.Exit(exitShutdown)
	case errors.As(runErr, &guard) && guard.Trap.Reason == hart.MaxStepsReason:
		os.Exit(exitStepsGuard)
	default:
		log.Error("halted on unhandled fault", "error", runErr, "pc", fmt.Sprintf("%#x", h.PC))
		os.Exit(exitFault)
	}
	return nil
}

func loadELF(b *bus.Bus, path string) (entry uint64, err error) {
	f, err := elf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	for _, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Size == 0 {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return 0, fmt.Errorf("reading section %s: %w", s.Name, err)
		}
		if s.Type == elf.SHT_NOBITS {
			continue // .bss: backing RAM is already zeroed
		}
		if err := b.LoadBytes(s.Addr, data); err != nil {
			return 0, fmt.Errorf("loading section %s at %#x: %w", s.Name, s.Addr, err)
		}
	}
	return f.Entry, nil
}

// writeSignature dumps bytes from begin_signature to end_signature
// (architectural test convention) as 8 hex digits per 32-bit word, one
// per line (spec.md §6).
func writeSignature(b *bus.Bus, elfPath, sigPath string) error {
	f, err := elf.Open(elfPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var begin, end uint64
	syms, err := f.Symbols()
	if err != nil {
		return err
	}
	for _, s := range syms {
		switch s.Name {
		case "begin_signature":
			begin = s.Value
		case "end_signature":
			end = s.Value
		}
	}
	if begin == 0 || end < begin {
		return fmt.Errorf("begin_signature/end_signature not found")
	}

	out, err := os.Create(sigPath)
	if err != nil {
		return err
	}
	defer out.Close()

	for addr := begin; addr+4 <= end; addr += 4 {
		w, t := b.ReadWord(addr)
		if t != nil {
			return fmt.Errorf("reading signature word at %#x: %s", addr, t.Error())
		}
		fmt.Fprintf(out, "%08x\n", w)
	}
	return nil
}
