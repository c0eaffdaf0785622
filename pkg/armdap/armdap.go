// Package armdap defines the narrow consumer contract vendor drivers use
// to talk to a target through an ARM Debug Access Port, and a fake
// implementation for testing drivers without real silicon.
package armdap

import (
	"errors"
	"fmt"
)

// ErrTransportFault is returned when a read or write could not complete,
// standing in for the physical-layer exceptions the original debug
// tooling threw. Callers that treat a fault during a lock probe as
// informative rather than fatal should check for this with errors.Is.
var ErrTransportFault = errors.New("armdap: transport fault")

// DebugPort is the minimal access-port contract a flash controller
// driver needs: word-aligned memory reads and writes through the AP's
// memory window.
type DebugPort interface {
	ReadMemory(addr uint32) (uint32, error)
	WriteMemory(addr, value uint32) error
}

// CPUTarget extends DebugPort with the halt/resume/reset control a
// driver needs to quiesce the core before touching flash and to get it
// running again afterward.
type CPUTarget interface {
	DebugPort
	Halt() error
	Resume() error
	Reset() error
}

// FakeDebugPort is an in-memory DebugPort double. FaultAddrs marks
// addresses that should fail as though a real transport read or write
// had faulted, letting tests exercise a driver's TransportFaultDuringProbe
// classification without real hardware.
type FakeDebugPort struct {
	Memory     map[uint32]uint32
	FaultAddrs map[uint32]bool
}

// NewFakeDebugPort constructs an empty FakeDebugPort; reads of
// unpopulated addresses return 0.
func NewFakeDebugPort() *FakeDebugPort {
	return &FakeDebugPort{
		Memory:     map[uint32]uint32{},
		FaultAddrs: map[uint32]bool{},
	}
}

func (f *FakeDebugPort) ReadMemory(addr uint32) (uint32, error) {
	if f.FaultAddrs[addr] {
		return 0, fmt.Errorf("%w: read %#08x", ErrTransportFault, addr)
	}
	return f.Memory[addr], nil
}

func (f *FakeDebugPort) WriteMemory(addr, value uint32) error {
	if f.FaultAddrs[addr] {
		return fmt.Errorf("%w: write %#08x", ErrTransportFault, addr)
	}
	f.Memory[addr] = value
	return nil
}

// FakeCortexM adds Halt/Resume/Reset bookkeeping on top of FakeDebugPort
// so tests can assert a driver halted the core before touching flash.
type FakeCortexM struct {
	*FakeDebugPort
	Halted      bool
	ResetCount  int
	ResumeCount int
}

func NewFakeCortexM() *FakeCortexM {
	return &FakeCortexM{FakeDebugPort: NewFakeDebugPort()}
}

func (f *FakeCortexM) Halt() error {
	f.Halted = true
	return nil
}

func (f *FakeCortexM) Resume() error {
	f.Halted = false
	f.ResumeCount++
	return nil
}

func (f *FakeCortexM) Reset() error {
	f.ResetCount++
	f.Halted = false
	return nil
}
