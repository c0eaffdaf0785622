package pic32

// EJTAG/MTAP instruction register opcodes. PIC32 parts expose a single
// physical TAP that is addressed through two logical instruction sets:
// the Microchip MTAP commands used to assert/release reset and trigger a
// mass erase, and the standard EJTAG instructions used once the core's
// debug unit is reachable.
const (
	InstMTAPSWMchp  = 0x04
	InstMTAPSWEjtag = 0x05
	InstMTAPCommand = 0x07

	InstImpCode    = 0x03
	InstAddress    = 0x08
	InstData       = 0x09
	InstControl    = 0x0A
	InstDebugBoot  = 0x0C
	InstFastData   = 0x0E // unused by this driver; present for protocol completeness
)

// MTAP_COMMAND data register opcodes, shifted through INST_MTAP_COMMAND.
const (
	MchpStatus      = 0x00
	MchpAssertRst   = 0xD1
	MchpDeAssertRst = 0xD0
	MchpErase       = 0xFC
	MchpFlashEnable = 0xFE
)

// mtapIRLength is the width of the MTAP/EJTAG shared instruction
// register on every PIC32 part this driver supports.
const mtapIRLength = 5

// EjtagControlRegister decodes the bitfields of the EJTAG Control
// register (the 32-bit value shifted through INST_CONTROL). Bit
// positions follow the MIPS EJTAG 2.6 specification's ECR layout
// directly rather than any particular struct's field order.
type EjtagControlRegister struct {
	ProcAccess    bool // bit 31, PrAcc: processor access pending
	ProcWE        bool // bit 30, PRnW: 1 = processor write
	AccessSize    uint8 // bits 29:28, sz: 0=word 1=halfword 2=byte 3=triple
	ProbeEnable   bool // bit 18, ProbEn
	DebugIRQ      bool // bit 12, Dint: assert a debug interrupt
	DebugVectorPos bool // bit 10, JtagBrk / debug vector select
}

// Encode packs the fields back into a 32-bit control word, leaving every
// other bit zero. This driver never needs to preserve reserved bits
// across a read-modify-write because every control write it issues is
// fully determined by protocol state, not device configuration.
func (r EjtagControlRegister) Encode() uint32 {
	var v uint32
	if r.ProcAccess {
		v |= 1 << 31
	}
	if r.ProcWE {
		v |= 1 << 30
	}
	v |= uint32(r.AccessSize&0x3) << 28
	if r.ProbeEnable {
		v |= 1 << 18
	}
	if r.DebugIRQ {
		v |= 1 << 12
	}
	if r.DebugVectorPos {
		v |= 1 << 10
	}
	return v
}

// DecodeEjtagControlRegister parses a 32-bit control word read back from
// INST_CONTROL.
func DecodeEjtagControlRegister(v uint32) EjtagControlRegister {
	return EjtagControlRegister{
		ProcAccess:     v&(1<<31) != 0,
		ProcWE:         v&(1<<30) != 0,
		AccessSize:     uint8((v >> 28) & 0x3),
		ProbeEnable:    v&(1<<18) != 0,
		DebugIRQ:       v&(1<<12) != 0,
		DebugVectorPos: v&(1<<10) != 0,
	}
}

// AccessSizeWord is the ECR sz encoding for a 32-bit access, the only
// width this driver's serial-execution engine uses.
const AccessSizeWord = 0
