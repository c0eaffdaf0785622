package jtag

import (
	"fmt"
	"sync"

	"github.com/jtagctl/jtaghal/pkg/tap"
)

// tapSlot tracks the per-TAP state a ChainController needs to frame
// chain-wide IR/DR scans: how wide that TAP's instruction register is,
// what was last shifted into it, and which Device (if any) occupies it.
type tapSlot struct {
	irLength int
	cachedIR []byte
	device   Device
}

// ChainController implements Interface on top of a physical or simulated
// Adapter, translating per-device SetIR/ScanDR calls into whole-chain
// shifts framed with BYPASS on every other TAP, and using pkg/tap to work
// out the TMS sequence needed to reach and leave Shift-IR/Shift-DR.
//
// IR cache suppression follows the original library: a plain SetIR skips
// the physical shift if the requested bits exactly match what's already
// cached for that TAP, SetIRWithCapture always shifts, and
// SetIRDeferred only participates in cache suppression when the request
// is narrower than a full 32-bit instruction.
type ChainController struct {
	mu      sync.Mutex
	adapter Adapter
	sm      *tap.StateMachine
	slots   []tapSlot

	deferredDirty bool
}

// NewChainController wires a ChainController to the given adapter. Call
// AddTap once per device position before use; a freshly probed chain
// typically adds one slot per IDCODE discovered during a preliminary
// BYPASS/IDCODE scan.
func NewChainController(adapter Adapter) *ChainController {
	return &ChainController{
		adapter: adapter,
		sm:      tap.NewStateMachine(),
	}
}

// AddTap registers a new TAP position with the given instruction register
// width and returns its chain index. The cache is initialized to all-1s
// (BYPASS), matching the original library's cold-start assumption.
func (c *ChainController) AddTap(irLength int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cache := make([]byte, (irLength+7)/8)
	for i := range cache {
		cache[i] = 0xFF
	}
	c.slots = append(c.slots, tapSlot{irLength: irLength, cachedIR: cache})
	return len(c.slots) - 1
}

// BindDevice associates a previously created Device with a chain position
// so GetDevice can return it later.
func (c *ChainController) BindDevice(tapIdx int, dev Device) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tapIdx < 0 || tapIdx >= len(c.slots) {
		return fmt.Errorf("jtag: tap index %d out of range", tapIdx)
	}
	c.slots[tapIdx].device = dev
	return nil
}

func (c *ChainController) GetDevice(tapIdx int) Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tapIdx < 0 || tapIdx >= len(c.slots) {
		return nil
	}
	return c.slots[tapIdx].device
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// buildChainIR constructs the full-chain IR bit vector with data/nbits
// placed at tapIdx and every other TAP's cached instruction elsewhere,
// returning the packed bytes and total bit count. Chain index 0 is
// shifted in first (closest to TDO).
func (c *ChainController) buildChainIR(tapIdx int, data []byte, nbits int) ([]byte, int, error) {
	if tapIdx < 0 || tapIdx >= len(c.slots) {
		return nil, 0, fmt.Errorf("jtag: tap index %d out of range", tapIdx)
	}
	total := 0
	for i, slot := range c.slots {
		if i == tapIdx {
			total += nbits
		} else {
			total += slot.irLength
		}
	}
	out := make([]byte, (total+7)/8)
	pos := 0
	writeBits := func(src []byte, n int) {
		for b := 0; b < n; b++ {
			byteIdx := b / 8
			bitIdx := uint(b % 8)
			if byteIdx < len(src) && src[byteIdx]&(1<<bitIdx) != 0 {
				out[pos/8] |= 1 << uint(pos%8)
			}
			pos++
		}
	}
	for i, slot := range c.slots {
		if i == tapIdx {
			writeBits(data, nbits)
		} else {
			writeBits(slot.cachedIR, slot.irLength)
		}
	}
	return out, total, nil
}

// shiftChain drives the TAP controller into the given shift state, clocks
// bits bits of data through the adapter, and leaves the TAP in
// exitState afterward.
func (c *ChainController) shiftChain(target tap.State, exitState tap.State, data []byte, bits int) ([]byte, error) {
	entrySeq, err := c.sm.GoTo(target)
	if err != nil {
		return nil, err
	}
	if err := c.clockSequence(entrySeq); err != nil {
		return nil, err
	}

	tms := make([]byte, (bits+7)/8)
	if bits > 0 {
		last := bits - 1
		tms[last/8] |= 1 << uint(last%8)
	}
	tdo, err := c.shiftAdapter(target, tms, data, bits)
	if err != nil {
		return nil, err
	}
	c.sm.Clock(true)

	exitSeq, err := c.sm.GoTo(exitState)
	if err != nil {
		return nil, err
	}
	if err := c.clockSequence(exitSeq); err != nil {
		return nil, err
	}
	return tdo, nil
}

func (c *ChainController) shiftAdapter(target tap.State, tms, tdi []byte, bits int) ([]byte, error) {
	if target == tap.StateShiftIR {
		return c.adapter.ShiftIR(tms, tdi, bits)
	}
	return c.adapter.ShiftDR(tms, tdi, bits)
}

func (c *ChainController) clockSequence(seq tap.Sequence) error {
	if len(seq.TMS) == 0 {
		return nil
	}
	tms := make([]byte, (len(seq.TMS)+7)/8)
	tdi := make([]byte, len(tms))
	for i, bit := range seq.TMS {
		if bit {
			tms[i/8] |= 1 << uint(i%8)
		}
	}
	// These transition clocks don't carry a register payload, only TMS
	// framing, so any adapter's ShiftIR/ShiftDR works identically here.
	_, err := c.adapter.ShiftIR(tms, tdi, len(seq.TMS))
	return err
}

func (c *ChainController) SetIR(tapIdx int, data []byte, nbits int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if nbits > 32 {
		return ErrIRTooWide
	}
	if tapIdx < 0 || tapIdx >= len(c.slots) {
		return fmt.Errorf("jtag: tap index %d out of range", tapIdx)
	}
	needed := (nbits + 7) / 8
	if bytesEqual(c.slots[tapIdx].cachedIR[:min(needed, len(c.slots[tapIdx].cachedIR))], data[:min(needed, len(data))]) &&
		len(c.slots[tapIdx].cachedIR) == needed {
		return nil
	}
	return c.setIR(tapIdx, data, nbits)
}

func (c *ChainController) SetIRDeferred(tapIdx int, data []byte, nbits int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if nbits > 32 {
		return ErrIRTooWide
	}
	if tapIdx < 0 || tapIdx >= len(c.slots) {
		return fmt.Errorf("jtag: tap index %d out of range", tapIdx)
	}
	needed := (nbits + 7) / 8
	if nbits < 32 && len(c.slots[tapIdx].cachedIR) == needed &&
		bytesEqual(c.slots[tapIdx].cachedIR, data[:min(needed, len(data))]) {
		return nil
	}
	c.deferredDirty = true
	return c.setIR(tapIdx, data, nbits)
}

func (c *ChainController) SetIRWithCapture(tapIdx int, data []byte, nbits int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if nbits > 32 {
		return nil, ErrIRTooWide
	}
	full, total, err := c.buildChainIR(tapIdx, data, nbits)
	if err != nil {
		return nil, err
	}
	tdo, err := c.shiftChain(tap.StateShiftIR, tap.StateRunTestIdle, full, total)
	if err != nil {
		return nil, err
	}
	c.updateCache(tapIdx, data, nbits)
	return extractBits(tdo, c.offsetOf(tapIdx), nbits), nil
}

// setIR performs the unconditional shift used by SetIR/SetIRDeferred once
// the cache check has already decided a physical shift is required.
func (c *ChainController) setIR(tapIdx int, data []byte, nbits int) error {
	full, total, err := c.buildChainIR(tapIdx, data, nbits)
	if err != nil {
		return err
	}
	if _, err := c.shiftChain(tap.StateShiftIR, tap.StateRunTestIdle, full, total); err != nil {
		return err
	}
	c.updateCache(tapIdx, data, nbits)
	return nil
}

func (c *ChainController) updateCache(tapIdx int, data []byte, nbits int) {
	needed := (nbits + 7) / 8
	cache := make([]byte, needed)
	copy(cache, data)
	c.slots[tapIdx].cachedIR = cache
	c.slots[tapIdx].irLength = nbits
}

func (c *ChainController) offsetOf(tapIdx int) int {
	off := 0
	for i := 0; i < tapIdx; i++ {
		off += c.slots[i].irLength
	}
	return off
}

func extractBits(buf []byte, offset, nbits int) []byte {
	out := make([]byte, (nbits+7)/8)
	for b := 0; b < nbits; b++ {
		srcBit := offset + b
		if srcBit/8 < len(buf) && buf[srcBit/8]&(1<<uint(srcBit%8)) != 0 {
			out[b/8] |= 1 << uint(b%8)
		}
	}
	return out
}

func (c *ChainController) ScanDR(tapIdx int, data []byte, nbits int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanDR(tapIdx, data, nbits)
}

func (c *ChainController) scanDR(tapIdx int, data []byte, nbits int) ([]byte, error) {
	if tapIdx < 0 || tapIdx >= len(c.slots) {
		return nil, fmt.Errorf("jtag: tap index %d out of range", tapIdx)
	}
	// Every other TAP in BYPASS contributes exactly one DR bit.
	total := 0
	offset := -1
	for i := range c.slots {
		if i == tapIdx {
			offset = total
			total += nbits
		} else {
			total++
		}
	}
	full := make([]byte, (total+7)/8)
	for b := 0; b < nbits; b++ {
		srcBit := b
		if srcBit/8 < len(data) && data[srcBit/8]&(1<<uint(srcBit%8)) != 0 {
			dst := offset + b
			full[dst/8] |= 1 << uint(dst%8)
		}
	}
	tdo, err := c.shiftChain(tap.StateShiftDR, tap.StateRunTestIdle, full, total)
	if err != nil {
		return nil, err
	}
	return extractBits(tdo, offset, nbits), nil
}

func (c *ChainController) ScanDRDeferred(tapIdx int, data []byte, nbits int) ([]byte, error) {
	return c.ScanDR(tapIdx, data, nbits)
}

func (c *ChainController) IsSplitScanSupported() bool { return false }

func (c *ChainController) ScanDRSplitWrite(tapIdx int, data []byte, nbits int) error {
	return ErrNotImplemented
}

func (c *ChainController) ScanDRSplitRead(tapIdx int, nbits int) ([]byte, error) {
	return nil, ErrNotImplemented
}

func (c *ChainController) ShiftData(tapIdx int, data []byte, nbits int, exitShift bool) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exit := tap.StateShiftDR
	if exitShift {
		exit = tap.StateExit1DR
	}
	return c.shiftChainForTap(tapIdx, data, nbits, exit)
}

func (c *ChainController) shiftChainForTap(tapIdx int, data []byte, nbits int, exit tap.State) ([]byte, error) {
	if tapIdx < 0 || tapIdx >= len(c.slots) {
		return nil, fmt.Errorf("jtag: tap index %d out of range", tapIdx)
	}
	total := 0
	offset := -1
	for i := range c.slots {
		if i == tapIdx {
			offset = total
			total += nbits
		} else {
			total++
		}
	}
	full := make([]byte, (total+7)/8)
	for b := 0; b < nbits; b++ {
		if b/8 < len(data) && data[b/8]&(1<<uint(b%8)) != 0 {
			dst := offset + b
			full[dst/8] |= 1 << uint(dst%8)
		}
	}
	tdo, err := c.shiftChain(tap.StateShiftDR, exit, full, total)
	if err != nil {
		return nil, err
	}
	return extractBits(tdo, offset, nbits), nil
}

func (c *ChainController) SendDummyClocks(count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tms := make([]byte, (count+7)/8)
	tdi := make([]byte, len(tms))
	_, err := c.adapter.ShiftDR(tms, tdi, count)
	return err
}

func (c *ChainController) SendDummyClocksDeferred(count int) error {
	return c.SendDummyClocks(count)
}

func (c *ChainController) EnterShiftDR(tapIdx int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq, err := c.sm.GoTo(tap.StateShiftDR)
	if err != nil {
		return err
	}
	return c.clockSequence(seq)
}

func (c *ChainController) ResetToIdle() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.adapter.ResetTAP(false); err != nil {
		return err
	}
	c.sm = tap.NewStateMachine()
	seq, err := c.sm.GoTo(tap.StateRunTestIdle)
	if err != nil {
		return err
	}
	return c.clockSequence(seq)
}

func (c *ChainController) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deferredDirty = false
	return nil
}
