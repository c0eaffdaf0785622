package pic32

// microMIPS opcode halves used to assemble the tiny instruction sequences
// this driver feeds the core one word at a time while it sits in
// EJTAG serial execution mode. Each sequence only ever touches two
// scratch registers (a0/a1 for writes, t0/t1/s3 for reads) so it never
// has to save or restore anything else in the target's register file.
const (
	opLuiA0 = 0x41a4
	opOriA0 = 0x5084
	opLuiA1 = 0x41a5
	opOriA1 = 0x50a5
	opSwA1A0 = 0xf8a4

	opLuiS3 = 0x41b3 // paired with the fixed high half 0xff20 (DMSEG)
	opLuiT0 = 0x41a8
	opOriT0 = 0x5108
	opLwT1T0 = 0xfd28
	opSwT1S3 = 0xf933
	opNopNop = 0x0c000c00

	dmsegBase   = 0xff200000
	dmsegResync = 0xff200200
)

func hi16(v uint32) uint32 { return v >> 16 }
func lo16(v uint32) uint32 { return v & 0xFFFF }

// packPair assembles a microMIPS instruction word as immediate<<16 |
// opcode: the high half carries the 16-bit immediate (address or data
// half), the low half the fixed opcode, matching the word layout the
// original driver builds for each of these instructions (e.g. `lui
// a0,addr_hi` = `(addr&0xffff0000)|0x41a4`).
func packPair(opcode, immediate uint16) uint32 { return uint32(immediate)<<16 | uint32(opcode) }

// SerialExecuteMemoryWrite assembles the microMIPS sequence
//
//	lui  a0, hi16(addr)
//	ori  a0, a0, lo16(addr)
//	lui  a1, hi16(data)
//	ori  a1, a1, lo16(data)
//	sw   a1, 0(a0)
//
// and feeds it through SerialExecuteInstruction one packed word at a
// time, matching the original driver's word-at-a-time debug boot
// execution model.
func (d *Device) SerialExecuteMemoryWrite(addr, data uint32) error {
	words := []uint32{
		packPair(opLuiA0, uint16(hi16(addr))),
		packPair(opOriA0, uint16(lo16(addr))),
		packPair(opLuiA1, uint16(hi16(data))),
		packPair(opOriA1, uint16(lo16(data))),
		packPair(opSwA1A0, 0),
	}
	for _, w := range words {
		if err := d.SerialExecuteInstruction(w, d.consumeFirstSerialExec()); err != nil {
			return err
		}
	}
	return nil
}

// SerialExecuteMemoryRead assembles
//
//	lui  s3, 0xff20
//	lui  t0, hi16(addr)
//	ori  t0, t0, lo16(addr)
//	lw   t1, 0(t0)
//	sw   t1, 0(s3)
//	nop
//	nop
//
// then keeps feeding NOPs until the core issues a write request landing
// in the DMSEG window (0xff20xxxx), which carries the value read from
// addr. A write landing on the fixed resync address 0xff200200 instead
// indicates the core reset unexpectedly mid-sequence.
func (d *Device) SerialExecuteMemoryRead(addr uint32) (uint32, error) {
	words := []uint32{
		packPair(opLuiS3, 0xff20),
		packPair(opLuiT0, uint16(hi16(addr))),
		packPair(opOriT0, uint16(lo16(addr))),
		packPair(opLwT1T0, 0),
		packPair(opSwT1S3, 0),
		opNopNop,
	}
	for _, w := range words {
		if err := d.SerialExecuteInstruction(w, d.consumeFirstSerialExec()); err != nil {
			return 0, err
		}
	}
	return d.waitForDMSEGWrite()
}
