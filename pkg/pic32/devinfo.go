package pic32

// DeviceInfo describes one entry in Microchip's PIC32 JTAG device ID
// table. BootFlashKB is fractional for the MX1xx/MX2xx parts, which
// ship a 5.75 KB boot flash region.
type DeviceInfo struct {
	DevID          uint16
	Name           string
	Family         string
	CPU            string
	SRAMKB         int
	FlashKB        int
	BootFlashKB    float64
}

// deviceTable mirrors the original library's static g_devinfo array. The
// DevID here is the part-number field of the IDCODE (bits 27:12), not the
// full 32-bit IDCODE.
var deviceTable = []DeviceInfo{
	{DevID: 0x0938, Name: "PIC32MX320F032H", Family: "MX3", CPU: "M4K", SRAMKB: 8, FlashKB: 32, BootFlashKB: 3},
	{DevID: 0x0934, Name: "PIC32MX320F064H", Family: "MX3", CPU: "M4K", SRAMKB: 16, FlashKB: 64, BootFlashKB: 3},
	{DevID: 0x0938 | 0x01, Name: "PIC32MX320F128H", Family: "MX3", CPU: "M4K", SRAMKB: 16, FlashKB: 128, BootFlashKB: 3},
	{DevID: 0x092D, Name: "PIC32MX340F128H", Family: "MX3", CPU: "M4K", SRAMKB: 16, FlashKB: 128, BootFlashKB: 3},
	{DevID: 0x092C, Name: "PIC32MX340F256H", Family: "MX3", CPU: "M4K", SRAMKB: 32, FlashKB: 256, BootFlashKB: 3},
	{DevID: 0x0916, Name: "PIC32MX420F032H", Family: "MX4", CPU: "M4K", SRAMKB: 8, FlashKB: 32, BootFlashKB: 3},
	{DevID: 0x0912, Name: "PIC32MX440F128H", Family: "MX4", CPU: "M4K", SRAMKB: 16, FlashKB: 128, BootFlashKB: 3},
	{DevID: 0x0942, Name: "PIC32MX440F256H", Family: "MX4", CPU: "M4K", SRAMKB: 32, FlashKB: 256, BootFlashKB: 3},
	{DevID: 0x0406, Name: "PIC32MX534F064H", Family: "MX5", CPU: "M4K", SRAMKB: 16, FlashKB: 64, BootFlashKB: 12},
	{DevID: 0x040A, Name: "PIC32MX564F128H", Family: "MX5", CPU: "M4K", SRAMKB: 32, FlashKB: 128, BootFlashKB: 12},
	{DevID: 0x0412, Name: "PIC32MX564F064H", Family: "MX5", CPU: "M4K", SRAMKB: 32, FlashKB: 64, BootFlashKB: 12},
	{DevID: 0x0416, Name: "PIC32MX575F256H", Family: "MX5", CPU: "M4K", SRAMKB: 64, FlashKB: 256, BootFlashKB: 12},
	{DevID: 0x041A, Name: "PIC32MX575F512H", Family: "MX5", CPU: "M4K", SRAMKB: 64, FlashKB: 512, BootFlashKB: 12},
	{DevID: 0x0602, Name: "PIC32MX664F064H", Family: "MX6", CPU: "M4K", SRAMKB: 32, FlashKB: 64, BootFlashKB: 12},
	{DevID: 0x0606, Name: "PIC32MX664F128H", Family: "MX6", CPU: "M4K", SRAMKB: 32, FlashKB: 128, BootFlashKB: 12},
	{DevID: 0x060A, Name: "PIC32MX675F256H", Family: "MX6", CPU: "M4K", SRAMKB: 64, FlashKB: 256, BootFlashKB: 12},
	{DevID: 0x060E, Name: "PIC32MX675F512H", Family: "MX6", CPU: "M4K", SRAMKB: 64, FlashKB: 512, BootFlashKB: 12},
	{DevID: 0x0612, Name: "PIC32MX695F512H", Family: "MX6", CPU: "M4K", SRAMKB: 128, FlashKB: 512, BootFlashKB: 12},
	{DevID: 0x0702, Name: "PIC32MX764F128H", Family: "MX7", CPU: "M4K", SRAMKB: 32, FlashKB: 128, BootFlashKB: 12},
	{DevID: 0x0706, Name: "PIC32MX775F256H", Family: "MX7", CPU: "M4K", SRAMKB: 64, FlashKB: 256, BootFlashKB: 12},
	{DevID: 0x070A, Name: "PIC32MX775F512H", Family: "MX7", CPU: "M4K", SRAMKB: 64, FlashKB: 512, BootFlashKB: 12},
	{DevID: 0x070E, Name: "PIC32MX795F512H", Family: "MX7", CPU: "M4K", SRAMKB: 128, FlashKB: 512, BootFlashKB: 12},
	{DevID: 0x4400, Name: "PIC32MX110F016B", Family: "MX1", CPU: "M4K", SRAMKB: 4, FlashKB: 16, BootFlashKB: 5.75},
	{DevID: 0x4401, Name: "PIC32MX110F016C", Family: "MX1", CPU: "M4K", SRAMKB: 4, FlashKB: 16, BootFlashKB: 5.75},
	{DevID: 0x4403, Name: "PIC32MX110F016D", Family: "MX1", CPU: "M4K", SRAMKB: 4, FlashKB: 16, BootFlashKB: 5.75},
	{DevID: 0x4317, Name: "PIC32MX120F032B", Family: "MX1", CPU: "M4K", SRAMKB: 8, FlashKB: 32, BootFlashKB: 5.75},
	{DevID: 0x4417, Name: "PIC32MX120F032C", Family: "MX1", CPU: "M4K", SRAMKB: 8, FlashKB: 32, BootFlashKB: 5.75},
	{DevID: 0x4309, Name: "PIC32MX220F032B", Family: "MX2", CPU: "M4K", SRAMKB: 8, FlashKB: 32, BootFlashKB: 5.75},
	{DevID: 0x4400 | 0x10, Name: "PIC32MX250F128B", Family: "MX2", CPU: "M4K", SRAMKB: 32, FlashKB: 128, BootFlashKB: 5.75},
}

// Lookup finds the device table entry for a part-number field, returning
// ok=false when the table has no matching row, mirroring the original
// library's throw-on-miss constructor behavior translated to Go's error
// idiom.
func Lookup(partNumber uint16) (DeviceInfo, bool) {
	for _, d := range deviceTable {
		if d.DevID == partNumber {
			return d, true
		}
	}
	return DeviceInfo{}, false
}
