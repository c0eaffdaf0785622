package capability

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/jtagctl/jtaghal/pkg/uncertain"
)

type fakeDevice struct {
	programmed bool
	progErr    error
	locked     uncertain.Boolean
}

func (f *fakeDevice) IDCode() uint32     { return 0x11223344 }
func (f *fakeDevice) IRLength() int      { return 4 }
func (f *fakeDevice) ChainPosition() int { return 0 }
func (f *fakeDevice) Description() string {
	return "fake device"
}
func (f *fakeDevice) IsProgrammed() (bool, error) { return f.programmed, f.progErr }
func (f *fakeDevice) IsDeviceReadLocked() (uncertain.Boolean, error) {
	return f.locked, nil
}

func TestPrintInfoShowsProgrammedAndLockState(t *testing.T) {
	dev := &fakeDevice{programmed: true, locked: uncertain.New(true, uncertain.Certain)}
	var buf bytes.Buffer
	PrintInfo(&buf, dev)
	out := buf.String()
	if !strings.Contains(out, "fake device") {
		t.Fatalf("missing description: %s", out)
	}
	if !strings.Contains(out, "programmed: true") {
		t.Fatalf("missing programmed state: %s", out)
	}
	if !strings.Contains(out, "read lock: true") {
		t.Fatalf("missing lock state: %s", out)
	}
}

func TestPrintInfoReportsProgrammedError(t *testing.T) {
	dev := &fakeDevice{progErr: errors.New("boom")}
	var buf bytes.Buffer
	PrintInfo(&buf, dev)
	if !strings.Contains(buf.String(), "unknown (boom)") {
		t.Fatalf("expected error surfaced: %s", buf.String())
	}
}
