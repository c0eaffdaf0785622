package armdap

import (
	"fmt"
	"time"

	"github.com/jtagctl/jtaghal/pkg/jtag"
)

// ARM DAP JTAG-IR opcodes (IEEE 1149.1-side access to the DP/AP via
// JTAG-DP, as opposed to the SWD wire protocol).
const (
	irAbort = 0x8
	irDPACC = 0xA
	irAPACC = 0xB
	irIDCode = 0xE
	irBypass = 0xF

	irLength = 4

	ackOKFault = 0x2
	ackWait    = 0x1
)

// JTAGBridge implements CPUTarget on top of a raw jtag.Interface,
// speaking the standard ARM DPACC/APACC 35-bit scan protocol: each DR
// scan carries a 3-bit RnW/address header, a 32-bit data payload, and
// returns a 3-bit ACK alongside the previous operation's result.
type JTAGBridge struct {
	iface jtag.Interface
	tap   int

	selectedAP uint8
	bankSel    uint8
}

// NewJTAGBridge binds a JTAGBridge to chain position tap.
func NewJTAGBridge(iface jtag.Interface, tap int) *JTAGBridge {
	return &JTAGBridge{iface: iface, tap: tap}
}

func (b *JTAGBridge) setIR(ir uint32) error {
	buf := []byte{byte(ir)}
	return b.iface.SetIR(b.tap, buf, irLength)
}

// scan35 shifts a 3-bit RnW+A[3:2] header followed by a 32-bit data word
// and returns the 3-bit ACK plus the 32-bit data captured from the
// *previous* transaction, matching JTAG-DP's pipelined access model.
func (b *JTAGBridge) scan35(rnw bool, addr uint8, data uint32) (ack uint8, result uint32, err error) {
	header := ((addr >> 2) & 0x3) << 1
	if rnw {
		header |= 0x1
	}
	word := uint64(header) | uint64(data)<<3
	buf := make([]byte, 5)
	for i := 0; i < 5; i++ {
		buf[i] = byte(word >> (8 * i))
	}
	tdo, err := b.iface.ScanDR(b.tap, buf, 35)
	if err != nil {
		return 0, 0, err
	}
	var out uint64
	for i := 0; i < 5 && i < len(tdo); i++ {
		out |= uint64(tdo[i]) << (8 * i)
	}
	return uint8(out & 0x7), uint32(out >> 3), nil
}

func (b *JTAGBridge) transact(ir uint32, rnw bool, addr uint8, data uint32) (uint32, error) {
	if err := b.setIR(ir); err != nil {
		return 0, err
	}
	for attempt := 0; attempt < 64; attempt++ {
		ack, result, err := b.scan35(rnw, addr, data)
		if err != nil {
			return 0, err
		}
		switch ack {
		case ackOKFault:
			return result, nil
		case ackWait:
			time.Sleep(10 * time.Microsecond)
			continue
		default:
			return 0, fmt.Errorf("%w: unexpected DAP ACK %#x", ErrTransportFault, ack)
		}
	}
	return 0, fmt.Errorf("%w: DAP WAIT retry limit exceeded", ErrTransportFault)
}

// selectAP issues the DPACC SELECT write needed to bank into the
// requested AP/register bank before an APACC transaction, skipping the
// write if it would be redundant.
func (b *JTAGBridge) selectAP(ap, bank uint8) error {
	if b.selectedAP == ap && b.bankSel == bank {
		return nil
	}
	sel := uint32(ap)<<24 | uint32(bank&0xF)<<4
	if _, err := b.transact(irDPACC, false, 0x8, sel); err != nil {
		return err
	}
	b.selectedAP = ap
	b.bankSel = bank
	return nil
}

// ReadMemory performs an AP memory access read through the Memory Access
// Port's DRW register (AP bank 0, address 0xC), issuing the read, then a
// dummy DPACC read to retrieve the pipelined result.
func (b *JTAGBridge) ReadMemory(addr uint32) (uint32, error) {
	if err := b.selectAP(0, 0); err != nil {
		return 0, err
	}
	if _, err := b.transact(irAPACC, false, 0x4, addr); err != nil { // TAR
		return 0, err
	}
	if _, err := b.transact(irAPACC, true, 0xC, 0); err != nil { // DRW read issued
		return 0, err
	}
	return b.transact(irDPACC, true, 0xC, 0) // RDBUFF
}

// WriteMemory performs an AP memory access write through DRW.
func (b *JTAGBridge) WriteMemory(addr, value uint32) error {
	if err := b.selectAP(0, 0); err != nil {
		return err
	}
	if _, err := b.transact(irAPACC, false, 0x4, addr); err != nil { // TAR
		return err
	}
	_, err := b.transact(irAPACC, false, 0xC, value) // DRW
	return err
}

// Halt, Resume and Reset are intentionally not wired to real Cortex-M
// debug registers here: doing that correctly needs DHCSR/DEMCR handling
// this module's flash-programming scope doesn't otherwise exercise, and
// a half-implemented version would be worse than an explicit gap.
func (b *JTAGBridge) Halt() error   { return jtag.ErrNotImplemented }
func (b *JTAGBridge) Resume() error { return jtag.ErrNotImplemented }
func (b *JTAGBridge) Reset() error  { return jtag.ErrNotImplemented }
