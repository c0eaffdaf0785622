package stm32

import (
	"testing"

	"github.com/jtagctl/jtaghal/pkg/armdap"
	"github.com/jtagctl/jtaghal/pkg/idcode"
)

func testID(partNumber uint16) idcode.IDCode {
	return idcode.IDCode{
		Raw:              0x10006411,
		PartNumber:       partNumber,
		ManufacturerCode: idcode.VendorSTMicro,
		HasIDCode:        true,
	}
}

func TestNewDeviceRejectsPositionZero(t *testing.T) {
	if _, err := NewDevice(testID(0x410), armdap.NewFakeCortexM(), 0); err == nil {
		t.Fatalf("expected error for chain position 0")
	}
}

func TestProbeLocksUnlocked(t *testing.T) {
	cpu := armdap.NewFakeCortexM()
	dev, err := NewDevice(testID(0x410), cpu, 1)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	cpu.Memory[dev.flashReg(regOPTCR)] = 0x0000AAFF

	level, err := dev.ProbeLocksNondestructive()
	if err != nil {
		t.Fatalf("ProbeLocksNondestructive: %v", err)
	}
	if level != ProtectionUnlocked {
		t.Fatalf("level = %v, want Unlocked", level)
	}
}

func TestProbeLocksLevel2(t *testing.T) {
	cpu := armdap.NewFakeCortexM()
	dev, err := NewDevice(testID(0x410), cpu, 1)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	cpu.Memory[dev.flashReg(regOPTCR)] = 0x0000CCFF

	level, err := dev.ProbeLocksNondestructive()
	if err != nil {
		t.Fatalf("ProbeLocksNondestructive: %v", err)
	}
	if level != ProtectionLevel2 {
		t.Fatalf("level = %v, want Level2", level)
	}
	locked, err := dev.IsDeviceReadLocked()
	if err != nil {
		t.Fatalf("IsDeviceReadLocked: %v", err)
	}
	if !locked.Value() || locked.Certainty() != 3 {
		t.Fatalf("IsDeviceReadLocked = %v, want certain true", locked)
	}
}

func TestProbeLocksTransportFault(t *testing.T) {
	cpu := armdap.NewFakeCortexM()
	dev, err := NewDevice(testID(0x410), cpu, 1)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	cpu.FaultAddrs[dev.flashReg(regOPTCR)] = true

	locked, err := dev.IsDeviceReadLocked()
	if err != nil {
		t.Fatalf("IsDeviceReadLocked should downgrade transport fault, got err: %v", err)
	}
	if locked.Certainty() == 3 {
		t.Fatalf("expected a non-certain answer after a transport fault")
	}
}

func TestPostInitProbesQuiet(t *testing.T) {
	cpu := armdap.NewFakeCortexM()
	dev, err := NewDevice(testID(0x410), cpu, 1)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	if err := dev.PostInitProbes(true); err != nil {
		t.Fatalf("PostInitProbes(quiet): %v", err)
	}
	if dev.protectionLevel != ProtectionQuietUnprobed {
		t.Fatalf("expected quiet unprobed level, got %v", dev.protectionLevel)
	}
}

func TestUnlockFlashVerifiesLockCleared(t *testing.T) {
	cpu := armdap.NewFakeCortexM()
	dev, err := NewDevice(testID(0x410), cpu, 1)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	if err := dev.UnlockFlash(); err != nil {
		t.Fatalf("UnlockFlash: %v", err)
	}
	if cpu.Memory[dev.flashReg(regKEYR)] != keyKey2 {
		t.Fatalf("expected second unlock key written last")
	}
}

func TestEraseMassEraseValue(t *testing.T) {
	cpu := armdap.NewFakeCortexM()
	dev, err := NewDevice(testID(0x410), cpu, 1)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	if err := dev.Erase(); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if cpu.Memory[dev.flashReg(regCR)] != crMassErase {
		t.Fatalf("CR = %#x, want mass erase value %#x", cpu.Memory[dev.flashReg(regCR)], crMassErase)
	}
}

func TestProgramSkipsErasedWords(t *testing.T) {
	cpu := armdap.NewFakeCortexM()
	cpu.Memory[0x08000000] = 0xFFFFFFFF
	dev, err := NewDevice(testID(0x410), cpu, 1)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	words := []uint32{0x11111111, 0xFFFFFFFF, 0x22222222}
	if err := dev.Program(words); err != nil {
		t.Fatalf("Program: %v", err)
	}
	if cpu.Memory[0x08000000] != 0x11111111 {
		t.Fatalf("word 0 not programmed")
	}
	if _, wrote := cpu.Memory[0x08000004]; wrote && cpu.Memory[0x08000004] != 0 {
		t.Fatalf("erased word should have been skipped, not rewritten")
	}
	if cpu.Memory[0x08000008] != 0x22222222 {
		t.Fatalf("word 2 not programmed")
	}
	if cpu.ResetCount == 0 || cpu.ResumeCount == 0 {
		t.Fatalf("expected Program to reset and resume the core when done")
	}
}

func TestProgramHaltsCoreFirst(t *testing.T) {
	cpu := armdap.NewFakeCortexM()
	dev, err := NewDevice(testID(0x410), cpu, 1)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	// Fault the unlock key register so Program fails before it ever
	// reaches Resume/Reset, leaving Halted observable.
	cpu.FaultAddrs[dev.flashReg(regKEYR)] = true

	if err := dev.Program([]uint32{0x11111111}); err == nil {
		t.Fatalf("expected Program to fail on the faulted unlock write")
	}
	if !cpu.Halted {
		t.Fatalf("expected Program to halt the core before touching flash")
	}
}
