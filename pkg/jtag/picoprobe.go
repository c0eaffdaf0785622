package jtag

import "github.com/jtagctl/jtaghal/internal/xlog"

// NewPicoProbeAdapter is a placeholder for the PicoProbe-backed adapter. It
// currently returns ErrNotImplemented so the UI can detect the lack of hardware
// support while the backend is under construction.
func NewPicoProbeAdapter(path string) (Adapter, error) {
	xlog.Warning("jtag: picoprobe backend for %s is not built yet", path)
	return nil, ErrNotImplemented
}
