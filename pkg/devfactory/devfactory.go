// Package devfactory turns a raw IDCODE shifted out of a JTAG chain into
// a concrete vendor Device, dispatching on the JEP106 manufacturer code
// the same way the original tooling's CreateDevice switch did.
package devfactory

import (
	"fmt"

	"github.com/jtagctl/jtaghal/internal/xlog"
	"github.com/jtagctl/jtaghal/pkg/armdap"
	"github.com/jtagctl/jtaghal/pkg/idcode"
	"github.com/jtagctl/jtaghal/pkg/jtag"
	"github.com/jtagctl/jtaghal/pkg/pic32"
	"github.com/jtagctl/jtaghal/pkg/stm32"
)

// New inspects raw and, for manufacturers this module supports,
// constructs and returns the matching vendor Device bound at chain
// position pos. Unsupported-but-recognized vendors (ARM, Freescale,
// Philips, Xilinx) log a warning and return a nil Device with a nil
// error: an unrecognized device on the chain is not by itself a fatal
// condition, matching the original library's behavior. An error is only
// returned when raw lacks the IDCODE marker bit, when a supported
// vendor's device family can't be identified from the part number, or
// when a device insists on constraints the chain position violates.
func New(raw uint32, iface jtag.Interface, pos int) (jtag.Device, error) {
	id := idcode.ParseIDCode(raw)
	if !id.HasIDCode {
		return nil, fmt.Errorf("devfactory: tap %d has no IDCODE bit set (raw=%#08x)", pos, raw)
	}

	switch id.ManufacturerCode {
	case idcode.VendorARM:
		xlog.Warning("devfactory: tap %d is an ARM debug component (idcode=%#08x); ARM device drivers are out of scope for this module", pos, raw)
		return nil, nil

	case idcode.VendorFreescale:
		xlog.Warning("devfactory: tap %d is an unsupported Freescale device (idcode=%#08x)", pos, raw)
		return nil, nil

	case idcode.VendorMicrochip:
		dev, err := pic32.NewDevice(id, iface, pos)
		if err != nil {
			return nil, fmt.Errorf("devfactory: microchip device at tap %d: %w", pos, err)
		}
		return dev, nil

	case idcode.VendorPhilips:
		xlog.Warning("devfactory: tap %d is an unsupported Philips/NXP device (idcode=%#08x)", pos, raw)
		return nil, nil

	case idcode.VendorSTMicro:
		dap := armdap.NewJTAGBridge(iface, pos)
		dev, err := stm32.NewDevice(id, dap, pos)
		if err != nil {
			return nil, fmt.Errorf("devfactory: stmicro device at tap %d: %w", pos, err)
		}
		return dev, nil

	case idcode.VendorXilinx:
		xlog.Warning("devfactory: tap %d is an unsupported Xilinx device (idcode=%#08x); FPGA bitstream loading is out of scope for this module", pos, raw)
		return nil, nil

	default:
		xlog.Warning("devfactory: tap %d has unrecognized manufacturer code %#03x (idcode=%#08x)", pos, id.ManufacturerCode, raw)
		return nil, nil
	}
}
