package jtag

import (
	"bytes"
	"fmt"
)

// TranscriptOp records one expected call against a TranscriptInterface,
// keyed on the operation name rather than the low-level bit framing a
// ChainController would produce, so vendor-driver tests can be written in
// terms of the same SetIR/ScanDR calls the driver itself issues.
type TranscriptOp struct {
	Op     string // "SetIR", "ScanDR", "ResetToIdle", ...
	Tap    int
	Data   []byte
	NBits  int
	Result []byte // TDO to return for ops that capture data
	Err    error  // error to return instead of Result
}

// TranscriptInterface is a scriptable Interface implementation for
// vendor-driver unit tests: it plays back a fixed sequence of expected
// operations and fails as soon as the driver under test diverges from the
// script, generalizing the teacher's SimAdapter/ShiftHook pattern from
// raw TMS/TDI shifts to the device-level operations vendor code actually
// issues.
type TranscriptInterface struct {
	ops      []TranscriptOp
	pos      int
	devices  map[int]Device
	mismatch error
}

// NewTranscriptInterface constructs a mock that will play back ops in
// order.
func NewTranscriptInterface(ops []TranscriptOp) *TranscriptInterface {
	return &TranscriptInterface{ops: ops, devices: map[int]Device{}}
}

// BindDevice registers the Device GetDevice should return for a tap
// index, mirroring ChainController.BindDevice.
func (t *TranscriptInterface) BindDevice(tapIdx int, dev Device) {
	t.devices[tapIdx] = dev
}

// Done reports whether every scripted op was consumed.
func (t *TranscriptInterface) Done() error {
	if t.mismatch != nil {
		return t.mismatch
	}
	if t.pos != len(t.ops) {
		return fmt.Errorf("jtag: transcript has %d unplayed ops", len(t.ops)-t.pos)
	}
	return nil
}

func (t *TranscriptInterface) next(op string, tap int, data []byte, nbits int) (TranscriptOp, error) {
	if t.mismatch != nil {
		return TranscriptOp{}, t.mismatch
	}
	if t.pos >= len(t.ops) {
		t.mismatch = fmt.Errorf("jtag: unexpected %s call on tap %d after transcript exhausted", op, tap)
		return TranscriptOp{}, t.mismatch
	}
	want := t.ops[t.pos]
	t.pos++
	if want.Op != op || want.Tap != tap || want.NBits != nbits || (data != nil && !bytes.Equal(trimTo(want.Data, nbits), trimTo(data, nbits))) {
		t.mismatch = fmt.Errorf("jtag: transcript mismatch at step %d: want %s(tap=%d,nbits=%d,data=%x) got %s(tap=%d,nbits=%d,data=%x)",
			t.pos-1, want.Op, want.Tap, want.NBits, want.Data, op, tap, nbits, data)
		return TranscriptOp{}, t.mismatch
	}
	return want, nil
}

func trimTo(b []byte, nbits int) []byte {
	n := (nbits + 7) / 8
	if n > len(b) {
		return b
	}
	return b[:n]
}

func (t *TranscriptInterface) SetIR(tapIdx int, data []byte, nbits int) error {
	want, err := t.next("SetIR", tapIdx, data, nbits)
	if err != nil {
		return err
	}
	return want.Err
}

func (t *TranscriptInterface) SetIRDeferred(tapIdx int, data []byte, nbits int) error {
	want, err := t.next("SetIRDeferred", tapIdx, data, nbits)
	if err != nil {
		return err
	}
	return want.Err
}

func (t *TranscriptInterface) SetIRWithCapture(tapIdx int, data []byte, nbits int) ([]byte, error) {
	want, err := t.next("SetIRWithCapture", tapIdx, data, nbits)
	if err != nil {
		return nil, err
	}
	return want.Result, want.Err
}

func (t *TranscriptInterface) ScanDR(tapIdx int, data []byte, nbits int) ([]byte, error) {
	want, err := t.next("ScanDR", tapIdx, data, nbits)
	if err != nil {
		return nil, err
	}
	return want.Result, want.Err
}

func (t *TranscriptInterface) ScanDRDeferred(tapIdx int, data []byte, nbits int) ([]byte, error) {
	want, err := t.next("ScanDRDeferred", tapIdx, data, nbits)
	if err != nil {
		return nil, err
	}
	return want.Result, want.Err
}

func (t *TranscriptInterface) IsSplitScanSupported() bool { return false }

func (t *TranscriptInterface) ScanDRSplitWrite(tapIdx int, data []byte, nbits int) error {
	want, err := t.next("ScanDRSplitWrite", tapIdx, data, nbits)
	if err != nil {
		return err
	}
	return want.Err
}

func (t *TranscriptInterface) ScanDRSplitRead(tapIdx int, nbits int) ([]byte, error) {
	want, err := t.next("ScanDRSplitRead", tapIdx, nil, nbits)
	if err != nil {
		return nil, err
	}
	return want.Result, want.Err
}

func (t *TranscriptInterface) ShiftData(tapIdx int, data []byte, nbits int, exitShift bool) ([]byte, error) {
	op := "ShiftData"
	if exitShift {
		op = "ShiftDataHold"
	}
	want, err := t.next(op, tapIdx, data, nbits)
	if err != nil {
		return nil, err
	}
	return want.Result, want.Err
}

func (t *TranscriptInterface) SendDummyClocks(count int) error {
	want, err := t.next("SendDummyClocks", 0, nil, count)
	if err != nil {
		return err
	}
	return want.Err
}

func (t *TranscriptInterface) SendDummyClocksDeferred(count int) error {
	want, err := t.next("SendDummyClocksDeferred", 0, nil, count)
	if err != nil {
		return err
	}
	return want.Err
}

func (t *TranscriptInterface) EnterShiftDR(tapIdx int) error {
	want, err := t.next("EnterShiftDR", tapIdx, nil, 0)
	if err != nil {
		return err
	}
	return want.Err
}

func (t *TranscriptInterface) ResetToIdle() error {
	want, err := t.next("ResetToIdle", 0, nil, 0)
	if err != nil {
		return err
	}
	return want.Err
}

func (t *TranscriptInterface) Commit() error {
	want, err := t.next("Commit", 0, nil, 0)
	if err != nil {
		return err
	}
	return want.Err
}

func (t *TranscriptInterface) GetDevice(tapIdx int) Device {
	return t.devices[tapIdx]
}
