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

// Package uart implements an 8250/16550-compatible serial port
// (spec.md §4.6.4): the console a booted Linux kernel talks to. Grounded
// on original_source's src/uart8250.rs and src/uart.rs, generalized from
// "always report no data waiting" to an actual RX FIFO fed by a reader
// goroutine, since a real console needs to accept keyboard input.
package uart

import (
	"bufio"
	"io"
	"sync"

	"rv64emu/internal/trap"
)

// Device-local register offsets (spec.md §4.6.4).
const (
	RegRX  = 0 // read: receiver buffer: write: transmit holding register
	RegIER = 1 // interrupt enable register
	RegFCR = 2 // FIFO control register (write); interrupt ID register (read)
	RegLCR = 3 // line control register
	RegMCR = 4 // modem control register
	RegLSR = 5 // line status register
	RegMSR = 6 // modem status register
	RegSCR = 7 // scratch register
)

// Line Status Register bits.
const (
	lsrDataReady       = 1 << 0
	lsrTxHoldingEmpty  = 1 << 5
	lsrTxEmpty         = 1 << 6
)

// UART is a single 8250/16550 serial port. out is where transmitted bytes
// go (normally stdout); AttachReader starts a background goroutine that
// fills the receive FIFO from a reader.
type UART struct {
	mu  sync.Mutex
	rx  []byte
	ier uint8
	lcr uint8
	mcr uint8

	out io.Writer

	// Notify, if set, is called after a byte is pushed into rx so the
	// platform can raise the UART's PLIC source (spec.md §4.6.3).
	Notify func()
}

// New returns a UART that writes transmitted bytes to out.
func New(out io.Writer) *UART {
	return &UART{out: out}
}

// AttachReader starts a goroutine that copies bytes from r into the
// receive FIFO one at a time until r returns an error (typically EOF on
// process exit). Intended to be fed a raw-mode stdin (see
// golang.org/x/term) so keystrokes arrive unbuffered and unechoed, the
// way a real serial console would.
func (u *UART) AttachReader(r io.Reader) {
	go func() {
		br := bufio.NewReader(r)
		for {
			b, err := br.ReadByte()
			if err != nil {
				return
			}
			u.Push(b)
		}
	}()
}

// Push enqueues a byte into the receive FIFO, as if it had arrived on the
// wire, and notifies the platform an interrupt may be pending.
func (u *UART) Push(b byte) {
	u.mu.Lock()
	u.rx = append(u.rx, b)
	notify := u.Notify
	u.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// Pending reports whether the receive FIFO is non-empty and RX
// interrupts are enabled, for the platform's interrupt-arbitration pass.
func (u *UART) Pending() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.rx) > 0 && u.ier&0x1 != 0
}

func (u *UART) ReadByte(addr uint64) (uint8, *trap.Trap) {
	u.mu.Lock()
	defer u.mu.Unlock()
	switch addr {
	case RegRX:
		if len(u.rx) == 0 {
			return 0, nil
		}
		b := u.rx[0]
		u.rx = u.rx[1:]
		return b, nil
	case RegIER:
		return u.ier, nil
	case RegLCR:
		return u.lcr, nil
	case RegMCR:
		return u.mcr, nil
	case RegLSR:
		lsr := uint8(lsrTxHoldingEmpty | lsrTxEmpty)
		if len(u.rx) > 0 {
			lsr |= lsrDataReady
		}
		return lsr, nil
	default:
		return 0, nil
	}
}

func (u *UART) WriteByte(addr uint64, v uint8) *trap.Trap {
	switch addr {
	case RegRX:
		if u.out != nil {
			u.out.Write([]byte{v})
		}
	case RegIER:
		u.mu.Lock()
		u.ier = v
		u.mu.Unlock()
	case RegLCR:
		u.mu.Lock()
		u.lcr = v
		u.mu.Unlock()
	case RegMCR:
		u.mu.Lock()
		u.mcr = v
		u.mu.Unlock()
	}
	return nil
}

// Only byte-wide accesses are architecturally meaningful for a 16550; the
// wider widths decompose into individual byte accesses so a driver that
// happens to use lhu/lwu against the UART still reads something sane.
func (u *UART) ReadHalf(addr uint64) (uint16, *trap.Trap) {
	lo, t := u.ReadByte(addr)
	if t != nil {
		return 0, t
	}
	hi, t := u.ReadByte(addr + 1)
	if t != nil {
		return 0, t
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

func (u *UART) ReadWord(addr uint64) (uint32, *trap.Trap) {
	lo, t := u.ReadHalf(addr)
	if t != nil {
		return 0, t
	}
	hi, t := u.ReadHalf(addr + 2)
	if t != nil {
		return 0, t
	}
	return uint32(lo) | uint32(hi)<<16, nil
}

func (u *UART) ReadDouble(addr uint64) (uint64, *trap.Trap) {
	lo, t := u.ReadWord(addr)
	if t != nil {
		return 0, t
	}
	hi, t := u.ReadWord(addr + 4)
	if t != nil {
		return 0, t
	}
	return uint64(lo) | uint64(hi)<<32, nil
}

func (u *UART) WriteHalf(addr uint64, v uint16) *trap.Trap {
	if t := u.WriteByte(addr, uint8(v)); t != nil {
		return t
	}
	return u.WriteByte(addr+1, uint8(v>>8))
}

func (u *UART) WriteWord(addr uint64, v uint32) *trap.Trap {
	if t := u.WriteHalf(addr, uint16(v)); t != nil {
		return t
	}
	return u.WriteHalf(addr+2, uint16(v>>16))
}

func (u *UART) WriteDouble(addr uint64, v uint64) *trap.Trap {
	if t := u.WriteWord(addr, uint32(v)); t != nil {
		return t
	}
	return u.WriteWord(addr+4, uint32(v>>32))
}
