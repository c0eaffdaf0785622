package idcode

// Vendor JEP106 codes used for JTAG device dispatch. These are the values
// the original debug tooling switched on when deciding which device driver
// to instantiate for a given IDCODE, and are kept distinct from the
// broader manufacturers table above: that table is for display, this one
// is the contract pkg/devfactory dispatches on.
const (
	VendorARM       uint16 = 0x23B
	VendorFreescale uint16 = 0x01B
	VendorMicrochip uint16 = 0x029
	VendorPhilips   uint16 = 0x015
	VendorSTMicro   uint16 = 0x020
	VendorXilinx    uint16 = 0x049
)
