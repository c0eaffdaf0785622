package pic32

import "github.com/jtagctl/jtaghal/pkg/jtag"

// fakeInterface is a minimal jtag.Interface double for pic32 unit tests.
// It records the last IR selected so ScanDR responses can be chosen by
// what instruction is currently active, which is the only state these
// tests need: PIC32's MTAP/EJTAG protocol is defined entirely in terms
// of which instruction is selected before each data register scan.
type fakeInterface struct {
	currentIR  uint32
	drResponse map[uint32][]byte
	scanCount  int
}

func newFakeInterface() *fakeInterface {
	return &fakeInterface{drResponse: map[uint32][]byte{}}
}

func bitsToU32(b []byte, n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		if b[i/8]&(1<<uint(i%8)) != 0 {
			v |= 1 << uint(i)
		}
	}
	return v
}

func (f *fakeInterface) SetIR(tap int, data []byte, nbits int) error {
	f.currentIR = bitsToU32(data, nbits)
	return nil
}
func (f *fakeInterface) SetIRDeferred(tap int, data []byte, nbits int) error {
	return f.SetIR(tap, data, nbits)
}
func (f *fakeInterface) SetIRWithCapture(tap int, data []byte, nbits int) ([]byte, error) {
	old := f.currentIR
	f.currentIR = bitsToU32(data, nbits)
	return u32Bytes(old), nil
}
func (f *fakeInterface) ScanDR(tap int, data []byte, nbits int) ([]byte, error) {
	f.scanCount++
	if resp, ok := f.drResponse[f.currentIR]; ok {
		return resp, nil
	}
	return make([]byte, (nbits+7)/8), nil
}
func (f *fakeInterface) ScanDRDeferred(tap int, data []byte, nbits int) ([]byte, error) {
	return f.ScanDR(tap, data, nbits)
}
func (f *fakeInterface) IsSplitScanSupported() bool { return false }
func (f *fakeInterface) ScanDRSplitWrite(tap int, data []byte, nbits int) error {
	return jtag.ErrNotImplemented
}
func (f *fakeInterface) ScanDRSplitRead(tap int, nbits int) ([]byte, error) {
	return nil, jtag.ErrNotImplemented
}
func (f *fakeInterface) ShiftData(tap int, data []byte, nbits int, exitShift bool) ([]byte, error) {
	return f.ScanDR(tap, data, nbits)
}
func (f *fakeInterface) SendDummyClocks(count int) error         { return nil }
func (f *fakeInterface) SendDummyClocksDeferred(count int) error { return nil }
func (f *fakeInterface) EnterShiftDR(tap int) error              { return nil }
func (f *fakeInterface) ResetToIdle() error                      { return nil }
func (f *fakeInterface) Commit() error                           { return nil }
func (f *fakeInterface) GetDevice(tap int) jtag.Device           { return nil }
