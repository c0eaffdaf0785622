package pic32

import (
	"testing"

	"github.com/jtagctl/jtaghal/pkg/idcode"
)

func testID(partNumber uint16) idcode.IDCode {
	return idcode.IDCode{
		Raw:              0x04A07053 | uint32(partNumber)<<12,
		PartNumber:       partNumber,
		ManufacturerCode: idcode.VendorMicrochip,
		HasIDCode:        true,
	}
}

func TestNewDeviceLooksUpTable(t *testing.T) {
	id := testID(0x0938)
	dev, err := NewDevice(id, newFakeInterface(), 0)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	if dev.Info().Name != "PIC32MX320F032H" {
		t.Fatalf("unexpected device info: %+v", dev.Info())
	}
}

func TestNewDeviceUnknownPartNumber(t *testing.T) {
	id := testID(0xFFFF)
	if _, err := NewDevice(id, newFakeInterface(), 0); err == nil {
		t.Fatalf("expected error for unknown part number")
	}
}

func TestGetImpCode(t *testing.T) {
	fi := newFakeInterface()
	fi.drResponse[InstImpCode] = u32Bytes(0x04A07053)
	dev, err := NewDevice(testID(0x0938), fi, 0)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	code, err := dev.GetImpCode()
	if err != nil {
		t.Fatalf("GetImpCode: %v", err)
	}
	if code != 0x04A07053 {
		t.Fatalf("GetImpCode = %#08x, want 0x04a07053", code)
	}
}

func TestIsProgrammedDetectsErasedVector(t *testing.T) {
	fi := newFakeInterface()
	fi.drResponse[InstControl] = u32Bytes(EjtagControlRegister{ProcAccess: true}.Encode())
	fi.drResponse[InstAddress] = u32Bytes(0xff200004)
	fi.drResponse[InstData] = u32Bytes(0xFFFFFFFF)
	dev, err := NewDevice(testID(0x0938), fi, 0)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	programmed, err := dev.IsProgrammed()
	if err != nil {
		t.Fatalf("IsProgrammed: %v", err)
	}
	if programmed {
		t.Fatalf("expected erased vector to report not programmed")
	}
}

func TestEjtagControlRegisterRoundTrip(t *testing.T) {
	r := EjtagControlRegister{
		ProcAccess:     true,
		ProcWE:         true,
		AccessSize:     AccessSizeWord,
		ProbeEnable:    true,
		DebugIRQ:       true,
		DebugVectorPos: true,
	}
	got := DecodeEjtagControlRegister(r.Encode())
	if got != r {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
	}
}
