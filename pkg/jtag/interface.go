package jtag

import "errors"

// ErrIRTooWide is returned when a caller asks SetIR to shift more bits
// than a single instruction register word can hold.
var ErrIRTooWide = errors.New("jtag: instruction register shifts are limited to 32 bits")

// Interface is the per-device contract a vendor driver programs against.
// It operates at the granularity of one TAP in a chain: callers address a
// specific chain position and the implementation is responsible for
// padding every other TAP in the chain with BYPASS while the addressed
// TAP's IR or DR is shifted.
type Interface interface {
	// SetIR shifts a new instruction into tap's instruction register
	// without capturing the previous contents. Implementations may
	// suppress the physical shift if the cached IR already matches.
	SetIR(tap int, data []byte, nbits int) error

	// SetIRDeferred behaves like SetIR but permits the implementation to
	// batch the shift with a later operation instead of committing it
	// immediately. Cache suppression only applies when nbits is below
	// the full 32-bit IR width and the requested bytes exactly match the
	// cached value.
	SetIRDeferred(tap int, data []byte, nbits int) error

	// SetIRWithCapture behaves like SetIR but always performs a physical
	// shift and returns the captured value, bypassing the IR cache.
	SetIRWithCapture(tap int, data []byte, nbits int) ([]byte, error)

	// ScanDR shifts data into tap's data register and returns the
	// captured output immediately.
	ScanDR(tap int, data []byte, nbits int) ([]byte, error)

	// ScanDRDeferred behaves like ScanDR but the result is not required
	// to be valid until Commit is called.
	ScanDRDeferred(tap int, data []byte, nbits int) ([]byte, error)

	// IsSplitScanSupported reports whether the underlying transport can
	// perform a DR shift as a separate write phase followed later by a
	// separate read phase.
	IsSplitScanSupported() bool

	// ScanDRSplitWrite begins a split DR scan, writing data without
	// waiting for or capturing TDO.
	ScanDRSplitWrite(tap int, data []byte, nbits int) error

	// ScanDRSplitRead completes a split DR scan started by
	// ScanDRSplitWrite and returns the captured data.
	ScanDRSplitRead(tap int, nbits int) ([]byte, error)

	// ShiftData moves the TAP into Shift-DR (if not already there),
	// shifts nbits, and leaves the TAP in Shift-DR or Exit1-DR depending
	// on exitShift.
	ShiftData(tap int, data []byte, nbits int, exitShift bool) ([]byte, error)

	// SendDummyClocks clocks TCK the given number of times with TDI and
	// TMS held low, used to let slow peripherals settle.
	SendDummyClocks(count int) error

	// SendDummyClocksDeferred behaves like SendDummyClocks but may be
	// batched with the next committed operation.
	SendDummyClocksDeferred(count int) error

	// EnterShiftDR drives the TAP controller into Shift-DR and leaves it
	// there without shifting any bits.
	EnterShiftDR(tap int) error

	// ResetToIdle drives the TAP controller through Test-Logic-Reset and
	// back to Run-Test/Idle.
	ResetToIdle() error

	// Commit flushes any operations queued by a Deferred call.
	Commit() error

	// GetDevice returns the device sitting at the given chain position,
	// or nil if that position hasn't been probed or is out of range.
	GetDevice(tap int) Device
}

// Device is implemented by every vendor driver instantiated from an
// IDCODE. It deliberately mirrors the original RTTI-based base class with
// a narrow Go interface; richer behavior is exposed through capability
// facets (see pkg/capability) rather than a deep inheritance hierarchy.
type Device interface {
	// IDCode returns the raw IDCODE this device was created from.
	IDCode() uint32

	// IRLength returns the width in bits of this TAP's instruction
	// register.
	IRLength() int

	// ChainPosition returns this device's index in the scan chain.
	ChainPosition() int

	// Description returns a short human-readable identification string,
	// e.g. "STM32F407VG (Cortex-M4)".
	Description() string
}
