// Package trap defines the taxonomy of control-transfer conditions that
// the bus, the instruction decoder, and the hart's executors can raise.
// A Trap is distinct from a host-level Go error: it is resolved by
// entering the trap vector (§4.3.3), except a Halt trap, which ends the
// hart's retirement loop.
package trap

import "fmt"

// Cause codes; riscv-privileged-v1.10, Table 3.6.
const (
	CauseInstrMisaligned  = 0
	CauseInstrAccessFault = 1
	CauseIllegalInstr     = 2
	CauseBreakpoint       = 3
	CauseLoadMisaligned   = 4
	CauseLoadAccessFault  = 5
	CauseStoreMisaligned  = 6
	CauseStoreAccessFault = 7
	CauseECallFromU       = 8
	CauseECallFromS       = 9
	CauseECallFromM       = 11
)

// Interrupt cause codes (low bits of mcause when the interrupt bit is set).
const (
	IntUSI = 0
	IntSSI = 1
	IntMSI = 3
	IntUTI = 4
	IntSTI = 5
	IntMTI = 7
	IntUEI = 8
	IntSEI = 9
	IntMEI = 11
)

// InterruptBit is the high bit of mcause marking an interrupt as opposed to
// an exception (RV64: bit 63).
const InterruptBit = uint64(1) << 63

// Trap is a tagged exception or interrupt condition. It carries everything
// trap entry (§4.3.3) needs to populate mcause/mtval.
type Trap struct {
	Cause       uint64 // exception or interrupt cause code, without InterruptBit
	TVal        uint64 // mtval: faulting address, illegal instruction bits, or 0
	IsInterrupt bool
	Halt        bool   // clean shutdown: the retirement loop exits without a trap
	Reason      string // diagnostic text for Unimplemented/IllegalOpcode
}

func (t *Trap) Error() string {
	if t.Halt {
		return "halt"
	}
	if t.Reason != "" {
		return fmt.Sprintf("trap cause=%#x tval=%#x: %s", t.Cause, t.TVal, t.Reason)
	}
	return fmt.Sprintf("trap cause=%#x tval=%#x", t.Cause, t.TVal)
}

// MCause returns the value to write into mcause: the cause code with the
// interrupt bit set if this is an interrupt.
func (t *Trap) MCause() uint64 {
	if t.IsInterrupt {
		return InterruptBit | t.Cause
	}
	return t.Cause
}

// Exception constructs a non-interrupt trap.
func Exception(cause, tval uint64) *Trap {
	return &Trap{Cause: cause, TVal: tval}
}

// Interrupt constructs an interrupt trap.
func Interrupt(cause uint64) *Trap {
	return &Trap{Cause: cause, IsInterrupt: true}
}

// MemoryFault is a load/store to a mapped-but-invalid device offset.
func MemoryFault(store bool, addr uint64) *Trap {
	if store {
		return Exception(CauseStoreAccessFault, addr)
	}
	return Exception(CauseLoadAccessFault, addr)
}

// Unmapped is a load/store to an address no device covers.
func Unmapped(store bool, addr uint64) *Trap {
	return MemoryFault(store, addr)
}

// Unaligned is an MMIO access that didn't respect the device's natural
// alignment requirement.
func Unaligned(store bool, addr uint64) *Trap {
	if store {
		return Exception(CauseStoreMisaligned, addr)
	}
	return Exception(CauseLoadMisaligned, addr)
}

// IllegalOpcode is a decoder success followed by semantic rejection (e.g. a
// reserved funct3/funct7 combination, or an instruction this core doesn't
// implement).
func IllegalOpcode(ins uint64, reason string) *Trap {
	return &Trap{Cause: CauseIllegalInstr, TVal: ins, Reason: reason}
}

// InstrMisaligned is raised when PC isn't 2-byte aligned (or a 4-byte fetch
// needs a 2-byte-only aligned address and doesn't legally straddle it).
func InstrMisaligned(pc uint64) *Trap {
	return Exception(CauseInstrMisaligned, pc)
}

// HaltTrap is a clean shutdown, raised by EBREAK or an HTIF tohost write.
// SBI shutdown sets the hart's stop flag directly; SBI reboot resets it.
func HaltTrap() *Trap {
	return &Trap{Halt: true}
}
