// Package stm32 implements lock probing and flash programming for
// STM32 parts reached through an ARM Debug Access Port, using the same
// register offsets and key sequences as the original flash controller
// driver this module was modeled on.
package stm32

import (
	"errors"
	"fmt"
	"time"

	"github.com/jtagctl/jtaghal/internal/xlog"
	"github.com/jtagctl/jtaghal/pkg/armdap"
	"github.com/jtagctl/jtaghal/pkg/idcode"
	"github.com/jtagctl/jtaghal/pkg/idcode/deviceinfo"
	"github.com/jtagctl/jtaghal/pkg/uncertain"
)

// Flash SFR offsets, relative to a part's flashSfrBase.
const (
	regACR     = 0x00
	regKEYR    = 0x04
	regOPTKEYR = 0x08
	regSR      = 0x0C
	regCR      = 0x10
	regOPTCR   = 0x14
)

const (
	optkeyKey1 = 0x08192A3B
	optkeyKey2 = 0x4C5D6E7F
	keyKey1    = 0x45670123
	keyKey2    = 0xCDEF89AB

	srBusyBit = 1 << 16

	crMassErase = 0x10204
	crPGBit     = 1 << 0
	crOptStrt   = 1 << 1
)

// ProtectionLevel classifies readback protection as reported by
// FLASH_OPTCR.RDP.
type ProtectionLevel int

const (
	// ProtectionUnlocked means the part can be read and programmed
	// freely (RDP == 0xAA).
	ProtectionUnlocked ProtectionLevel = 0
	// ProtectionLevel1 means debug access to flash is blocked until the
	// option bytes are reprogrammed, which mass-erases the part.
	ProtectionLevel1 ProtectionLevel = 1
	// ProtectionLevel2 means debug access is permanently disabled
	// (RDP == 0xCC); there is no way back from this level.
	ProtectionLevel2 ProtectionLevel = 2
	// ProtectionQuietUnprobed means PostInitProbes(quiet=true) was used
	// and no lock probe was actually performed.
	ProtectionQuietUnprobed ProtectionLevel = 3
)

// ErrTransportFaultDuringProbe wraps a DebugPort failure encountered
// while probing lock state. Unlike other errors, a caller that treats a
// lock probe as best-effort can downgrade this to an uncertain answer
// instead of aborting.
var ErrTransportFaultDuringProbe = errors.New("stm32: transport fault during lock probe")

// partInit describes the flash-controller-specific constants pkg/idcode/
// deviceinfo's descriptive table doesn't carry (SFR bases, RAM size):
// Device.info (looked up from that table) supplies the human-readable
// name and core string used in Description/CoreDescription.
type partInit struct {
	ramKB         int
	flashSfrBase  uint32
	uniqueIDBase  uint32
	flashSizeBase uint32
}

var partTable = map[uint16]partInit{
	0x410: {ramKB: 20, flashSfrBase: 0x40022000, uniqueIDBase: 0x1FFFF7E8, flashSizeBase: 0x1FFFF7E0},  // STM32F103
	0x431: {ramKB: 128, flashSfrBase: 0x40023C00, uniqueIDBase: 0x1FFF7A10, flashSizeBase: 0x1FFF7A22}, // STM32F411
	0x449: {ramKB: 320, flashSfrBase: 0x40023C00, uniqueIDBase: 0x1FF0F420, flashSizeBase: 0x1FF0F442}, // STM32F7x7
}

// Device drives flash operations on an STM32 part through an ARM Debug
// Access Port.
type Device struct {
	dap armdap.CPUTarget
	pos int

	idcode uint32
	init   partInit
	info   deviceinfo.DeviceInfo

	flashMemoryBase uint32
	sramMemoryBase  uint32

	locksProbed     bool
	protectionLevel ProtectionLevel
}

// NewDevice constructs a Device for the part identified by id.PartNumber.
// STM32 parts must occupy chain position > 0 in this driver's model: the
// original library guarded against position 0 because the boundary-scan
// TAP always precedes the core's debug TAP on every supported part, and
// a driver bound to position 0 would be talking to the wrong silicon
// block.
func NewDevice(id idcode.IDCode, dap armdap.CPUTarget, pos int) (*Device, error) {
	if pos == 0 {
		return nil, fmt.Errorf("stm32: device cannot occupy chain position 0")
	}
	init, ok := partTable[id.PartNumber]
	if !ok {
		return nil, fmt.Errorf("stm32: unrecognized STM32 part number %#04x", id.PartNumber)
	}
	return &Device{
		dap:             dap,
		pos:             pos,
		idcode:          id.Raw,
		init:            init,
		info:            deviceinfo.Lookup(id.Raw),
		flashMemoryBase: 0x08000000,
		sramMemoryBase:  0x20000000,
	}, nil
}

func (d *Device) IDCode() uint32     { return d.idcode }
func (d *Device) IRLength() int      { return 4 }
func (d *Device) ChainPosition() int { return d.pos }
func (d *Device) Description() string {
	name := d.info.Name
	if name == "" {
		name = "STM32 device"
	}
	return fmt.Sprintf("%s (idcode=%#08x, %dKB SRAM)", name, d.idcode, d.init.ramKB)
}

func (d *Device) flashReg(offset uint32) uint32 { return d.init.flashSfrBase + offset }

// PostInitProbes runs the lock probe unless quiet is set, in which case
// the protection level is reported as unknown rather than risking a read
// against a part that might be in a state where probing itself is
// disruptive.
func (d *Device) PostInitProbes(quiet bool) error {
	if quiet {
		d.protectionLevel = ProtectionQuietUnprobed
		d.locksProbed = true
		return nil
	}
	_, err := d.ProbeLocksNondestructive()
	return err
}

// ProbeLocksNondestructive reads FLASH_OPTCR.RDP and classifies the
// protection level. The result is cached: repeated calls only read
// hardware once.
func (d *Device) ProbeLocksNondestructive() (ProtectionLevel, error) {
	if d.locksProbed {
		return d.protectionLevel, nil
	}

	optcr, err := d.dap.ReadMemory(d.flashReg(regOPTCR))
	if err != nil {
		xlog.Warning("stm32: transport fault reading OPTCR, treating lock state as level 1 (unknown): %v", err)
		d.protectionLevel = ProtectionLevel1
		d.locksProbed = true
		return d.protectionLevel, fmt.Errorf("%w: %v", ErrTransportFaultDuringProbe, err)
	}

	rdp := byte(optcr >> 8)
	switch {
	case optcr == 0xFFFFFFFF:
		d.protectionLevel = ProtectionUnlocked
	case rdp == 0xAA:
		d.protectionLevel = ProtectionUnlocked
	case rdp == 0xCC:
		d.protectionLevel = ProtectionLevel2
	default:
		d.protectionLevel = ProtectionLevel1
	}
	d.locksProbed = true
	return d.protectionLevel, nil
}

// ProbeLocksDestructive currently delegates to the nondestructive probe:
// the original driver never implemented a destructive lock test either,
// and this module carries that gap forward rather than inventing one.
func (d *Device) ProbeLocksDestructive() (ProtectionLevel, error) {
	return d.ProbeLocksNondestructive()
}

// IsDeviceReadLocked maps the probed protection level to an uncertain
// boolean the way the original driver did: level 2 is certain, level 0
// is certain, a quiet/unprobed read is useless, and level 1 is reported
// as very likely locked since RDP level 1 still permits some bus-level
// access this driver doesn't fully characterize.
func (d *Device) IsDeviceReadLocked() (uncertain.Boolean, error) {
	level, err := d.ProbeLocksNondestructive()
	if err != nil && !errors.Is(err, ErrTransportFaultDuringProbe) {
		return uncertain.Boolean{}, err
	}
	switch level {
	case ProtectionLevel2:
		return uncertain.New(true, uncertain.Certain), nil
	case ProtectionUnlocked:
		return uncertain.New(false, uncertain.Certain), nil
	case ProtectionQuietUnprobed:
		return uncertain.New(true, uncertain.Useless), nil
	default:
		return uncertain.New(true, uncertain.VeryLikely), nil
	}
}

// UnlockFlashOptions shifts the option-byte unlock key sequence into
// FLASH_OPTKEYR and verifies the option register is no longer locked.
func (d *Device) UnlockFlashOptions() error {
	if err := d.dap.WriteMemory(d.flashReg(regOPTKEYR), optkeyKey1); err != nil {
		return err
	}
	if err := d.dap.WriteMemory(d.flashReg(regOPTKEYR), optkeyKey2); err != nil {
		return err
	}
	cr, err := d.dap.ReadMemory(d.flashReg(regCR))
	if err != nil {
		return err
	}
	if cr&(1<<30) != 0 { // OPTLOCK
		return fmt.Errorf("stm32: option bytes still locked after unlock sequence")
	}
	return nil
}

// UnlockFlash shifts the main flash unlock key sequence into FLASH_KEYR
// and verifies flash is no longer locked.
func (d *Device) UnlockFlash() error {
	if err := d.dap.WriteMemory(d.flashReg(regKEYR), keyKey1); err != nil {
		return err
	}
	if err := d.dap.WriteMemory(d.flashReg(regKEYR), keyKey2); err != nil {
		return err
	}
	cr, err := d.dap.ReadMemory(d.flashReg(regCR))
	if err != nil {
		return err
	}
	if cr&(1<<31) != 0 { // LOCK
		return fmt.Errorf("stm32: flash still locked after unlock sequence")
	}
	return nil
}

// SetReadLock patches FLASH_OPTCR's RDP byte to the given protection
// level and triggers an option-byte program cycle.
func (d *Device) SetReadLock(level ProtectionLevel) error {
	if err := d.UnlockFlashOptions(); err != nil {
		return err
	}
	optcr, err := d.dap.ReadMemory(d.flashReg(regOPTCR))
	if err != nil {
		return err
	}
	var rdp byte
	switch level {
	case ProtectionUnlocked:
		rdp = 0xAA
	case ProtectionLevel2:
		rdp = 0xCC
	default:
		rdp = 0x55
	}
	optcr = (optcr &^ 0xFF00) | uint32(rdp)<<8
	if err := d.dap.WriteMemory(d.flashReg(regOPTCR), optcr|crOptStrt); err != nil {
		return err
	}
	d.locksProbed = false
	return d.PollUntilFlashNotBusy()
}

// ClearReadLock requests a return to ProtectionUnlocked.
func (d *Device) ClearReadLock() error {
	return d.SetReadLock(ProtectionUnlocked)
}

// PollUntilFlashNotBusy polls FLASH_SR.BSY with exponential backoff,
// starting at a 100 microsecond interval and multiplying by ten on every
// retry, matching the original driver's busy-wait.
func (d *Device) PollUntilFlashNotBusy() error {
	interval := 100 * time.Microsecond
	for attempt := 0; attempt < 8; attempt++ {
		sr, err := d.dap.ReadMemory(d.flashReg(regSR))
		if err != nil {
			return err
		}
		if sr&srBusyBit == 0 {
			return nil
		}
		time.Sleep(interval)
		interval *= 10
	}
	return fmt.Errorf("stm32: flash busy timeout")
}

// Erase performs a mass erase by writing the documented CR value and
// polling for completion.
func (d *Device) Erase() error {
	if err := d.UnlockFlash(); err != nil {
		return err
	}
	if err := d.dap.WriteMemory(d.flashReg(regCR), crMassErase); err != nil {
		return err
	}
	return d.PollUntilFlashNotBusy()
}

// BlankCheck quick-exits after checking the vector table: a full blank
// check of the part is expensive and the original driver only bothered
// with it as a precondition for Program, not as a general-purpose query.
func (d *Device) BlankCheck() (bool, error) {
	v, err := d.dap.ReadMemory(d.flashMemoryBase)
	if err != nil {
		return false, err
	}
	return v == 0xFFFFFFFF, nil
}

// Reset delegates to the underlying CPU target, matching the original
// driver's forwarding behavior.
func (d *Device) Reset() error {
	return d.dap.Reset()
}

// IsProgrammed satisfies capability.Programmable: a part is considered
// programmed when its reset vector doesn't read as erased flash.
func (d *Device) IsProgrammed() (bool, error) {
	blank, err := d.BlankCheck()
	if err != nil {
		return false, err
	}
	return !blank, nil
}

// CoreDescription satisfies capability.Debugger.
func (d *Device) CoreDescription() string {
	core := d.info.ARMCore
	if core == "" {
		core = "ARM core"
	}
	return fmt.Sprintf("%s behind DAP, %dKB SRAM at %#08x", core, d.init.ramKB, d.sramMemoryBase)
}

// ReadingSerialRequiresReset satisfies capability.SerialNumbered. The
// 96-bit unique ID lives in a region readable over the DAP without
// halting or resetting the core on every part this driver supports.
func (d *Device) ReadingSerialRequiresReset() bool { return false }

// SerialNumber reads the 96-bit factory unique ID and formats it as hex.
func (d *Device) SerialNumber() (string, error) {
	var words [3]uint32
	for i := range words {
		v, err := d.dap.ReadMemory(d.init.uniqueIDBase + uint32(i*4))
		if err != nil {
			return "", err
		}
		words[i] = v
	}
	return fmt.Sprintf("%08X%08X%08X", words[0], words[1], words[2]), nil
}

// Program halts the CPU, then writes a firmware image word by word
// starting at the flash base address. If the vector table isn't blank,
// it erases first. Words equal to 0xFFFFFFFF are skipped since erased
// flash already reads that way.
func (d *Device) Program(words []uint32) error {
	if err := d.dap.Halt(); err != nil {
		return fmt.Errorf("stm32: halt before program: %w", err)
	}
	blank, err := d.BlankCheck()
	if err != nil {
		return err
	}
	if !blank {
		if err := d.Erase(); err != nil {
			return fmt.Errorf("stm32: auto-erase before program: %w", err)
		}
	}
	if err := d.UnlockFlash(); err != nil {
		return err
	}

	for i, word := range words {
		if word == 0xFFFFFFFF {
			continue
		}
		cr, err := d.dap.ReadMemory(d.flashReg(regCR))
		if err != nil {
			return err
		}
		cr = (cr &^ (0x3 << 8)) | (0x2 << 8) // program size = word
		cr |= crPGBit
		if err := d.dap.WriteMemory(d.flashReg(regCR), cr); err != nil {
			return err
		}
		addr := d.flashMemoryBase + uint32(i*4)
		if err := d.dap.WriteMemory(addr, word); err != nil {
			return err
		}
		if err := d.PollUntilFlashNotBusy(); err != nil {
			return fmt.Errorf("stm32: program word %d at %#08x: %w", i, addr, err)
		}
		cr &^= crPGBit
		if err := d.dap.WriteMemory(d.flashReg(regCR), cr); err != nil {
			return err
		}
	}

	if err := d.dap.Reset(); err != nil {
		return err
	}
	return d.dap.Resume()
}
