package jtag

import (
	"bytes"
	"testing"
)

func TestChainControllerSingleTapSetIRAndScanDR(t *testing.T) {
	sim := NewSimAdapter(AdapterInfo{Name: "sim"})
	cc := NewChainController(sim)
	idx := cc.AddTap(4)

	if err := cc.SetIR(idx, []byte{0x01}, 4); err != nil {
		t.Fatalf("SetIR: %v", err)
	}

	sim.OnShift = func(region ShiftRegion, tms, tdi []byte, bits int) ([]byte, error) {
		if region != ShiftRegionDR {
			return nil, nil
		}
		out := make([]byte, len(tdi))
		copy(out, tdi)
		return out, nil
	}

	tdo, err := cc.ScanDR(idx, []byte{0xAB, 0xCD}, 16)
	if err != nil {
		t.Fatalf("ScanDR: %v", err)
	}
	if !bytes.Equal(tdo, []byte{0xAB, 0xCD}) {
		t.Fatalf("ScanDR roundtrip mismatch: %x", tdo)
	}
}

func TestChainControllerSetIRSuppressesRedundantShift(t *testing.T) {
	sim := NewSimAdapter(AdapterInfo{Name: "sim"})
	cc := NewChainController(sim)
	idx := cc.AddTap(4)

	if err := cc.SetIR(idx, []byte{0x05}, 4); err != nil {
		t.Fatalf("first SetIR: %v", err)
	}
	before := sim.LastShift()
	if err := cc.SetIR(idx, []byte{0x05}, 4); err != nil {
		t.Fatalf("second SetIR: %v", err)
	}
	after := sim.LastShift()
	if before.Bits != after.Bits || !bytes.Equal(before.TDI, after.TDI) {
		t.Fatalf("expected no new shift recorded, got different shift state")
	}
}

func TestChainControllerSetIRTooWideRejected(t *testing.T) {
	sim := NewSimAdapter(AdapterInfo{Name: "sim"})
	cc := NewChainController(sim)
	idx := cc.AddTap(40)
	if err := cc.SetIR(idx, make([]byte, 5), 40); err == nil {
		t.Fatalf("expected ErrIRTooWide")
	}
}
