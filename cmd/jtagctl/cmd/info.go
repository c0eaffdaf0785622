package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jtagctl/jtaghal/pkg/capability"
	"github.com/jtagctl/jtaghal/pkg/jtag"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Read the IDCODE of the device on the chain and print what's known about it",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, _, err := identifyDevice(cmd)
		if err != nil {
			return err
		}
		capability.PrintInfo(os.Stdout, dev)
		return nil
	},
}

// readIDCodeAtPosition shifts zero bits through the whole chain's
// default-selected DR and extracts the 32 bits belonging to the TAP at
// pos, assuming every TAP ahead of it also defaults to capturing its own
// 32-bit IDCODE immediately after reset (the standard IEEE 1149.1
// behavior for any IDCODE-bearing TAP, and the shape this driver assumes
// for the TAPs preceding a target device on a multi-TAP chain).
func readIDCodeAtPosition(adapter jtag.Adapter, pos int) (uint32, error) {
	totalBits := (pos + 1) * 32
	totalBytes := (totalBits + 7) / 8
	tms := make([]byte, totalBytes)
	tdi := make([]byte, totalBytes)
	tdo, err := adapter.ShiftDR(tms, tdi, totalBits)
	if err != nil {
		return 0, err
	}
	var v uint32
	bitOff := pos * 32
	for i := 0; i < 32; i++ {
		bit := bitOff + i
		byteIdx := bit / 8
		if byteIdx >= len(tdo) {
			break
		}
		if tdo[byteIdx]&(1<<uint(bit%8)) != 0 {
			v |= 1 << uint(i)
		}
	}
	return v, nil
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
