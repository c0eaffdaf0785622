// Package capability replaces the original library's RTTI-based
// dynamic_cast cascade with Go interfaces queried through type
// assertions: a jtag.Device that also happens to implement Programmable,
// Debugger, SerialNumbered, or Lockable gets that behavior printed, in a
// fixed order, without any of them needing to share a common base class
// beyond jtag.Device itself.
package capability

import (
	"fmt"
	"io"

	"github.com/jtagctl/jtaghal/pkg/jtag"
	"github.com/jtagctl/jtaghal/pkg/uncertain"
)

// Programmable devices can report whether they currently hold firmware.
type Programmable interface {
	IsProgrammed() (bool, error)
}

// FPGA devices are reprogrammed on every power cycle and only report a
// meaningful VID/PID pair while unprogrammed (bitstream loading itself
// is out of scope for this module).
type FPGA interface {
	Programmable
	FPGAVidPid() (vid, pid uint32, ok bool)
}

// CPLD devices retain their configuration across power cycles.
type CPLD interface {
	Programmable
}

// Debugger devices expose a live CPU core that can be halted and
// inspected.
type Debugger interface {
	CoreDescription() string
}

// SerialNumbered devices can report a unique serial number. Some parts
// can only do this after a reset, in which case ReadingSerialRequiresReset
// reports true and PrintInfo skips the read on an already-programmed
// part to avoid an unwanted reset of running firmware.
type SerialNumbered interface {
	ReadingSerialRequiresReset() bool
	SerialNumber() (string, error)
}

// Lockable devices can report and change read/write protection state.
type Lockable interface {
	IsDeviceReadLocked() (uncertain.Boolean, error)
}

// PrintInfo writes a human-readable summary of dev to w, probing each
// capability facet in a fixed order: programmable (FPGA, then CPLD),
// debugger, serial-numbered, then lockable. This mirrors the original
// PrintInfo's dynamic_cast cascade order.
func PrintInfo(w io.Writer, dev jtag.Device) {
	fmt.Fprintf(w, "%s\n", dev.Description())

	if fpga, ok := dev.(FPGA); ok {
		programmed, err := fpga.IsProgrammed()
		if err != nil {
			fmt.Fprintf(w, "  programmed: unknown (%v)\n", err)
		} else {
			fmt.Fprintf(w, "  programmed: %v\n", programmed)
			if !programmed {
				if vid, pid, ok := fpga.FPGAVidPid(); ok {
					fmt.Fprintf(w, "  fpga vid/pid: %#04x/%#04x\n", vid, pid)
				}
			}
		}
	} else if cpld, ok := dev.(CPLD); ok {
		programmed, err := cpld.IsProgrammed()
		if err != nil {
			fmt.Fprintf(w, "  programmed: unknown (%v)\n", err)
		} else {
			fmt.Fprintf(w, "  programmed: %v\n", programmed)
		}
	}

	var programmedForSerialSkip *bool
	if p, ok := dev.(Programmable); ok {
		v, err := p.IsProgrammed()
		if err == nil {
			programmedForSerialSkip = &v
		}
	}

	if dbg, ok := dev.(Debugger); ok {
		fmt.Fprintf(w, "  core: %s\n", dbg.CoreDescription())
	}

	if sn, ok := dev.(SerialNumbered); ok {
		skip := sn.ReadingSerialRequiresReset() && programmedForSerialSkip != nil && *programmedForSerialSkip
		if skip {
			fmt.Fprintf(w, "  serial: skipped (reading would reset a programmed part)\n")
		} else if serial, err := sn.SerialNumber(); err != nil {
			fmt.Fprintf(w, "  serial: unknown (%v)\n", err)
		} else {
			fmt.Fprintf(w, "  serial: %s\n", serial)
		}
	}

	if lk, ok := dev.(Lockable); ok {
		locked, err := lk.IsDeviceReadLocked()
		if err != nil {
			fmt.Fprintf(w, "  read lock: unknown (%v)\n", err)
		} else {
			fmt.Fprintf(w, "  read lock: %v (%s)\n", locked.Value(), locked.Certainty())
		}
	}
}
