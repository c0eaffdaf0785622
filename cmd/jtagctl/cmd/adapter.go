package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jtagctl/jtaghal/pkg/jtag"
)

func buildAdapter(cmd *cobra.Command) (jtag.Adapter, error) {
	name, _ := cmd.Flags().GetString("adapter")
	switch name {
	case "", "simulator":
		return jtag.NewSimAdapter(jtag.AdapterInfo{Name: "simulator"}), nil
	case "cmsisdap":
		return jtag.NewCMSISDAPAdapter(jtag.VendorIDRaspberryPi, jtag.ProductIDCMSISDAP)
	case "pico":
		return jtag.NewPicoProbeAdapter("")
	default:
		return nil, fmt.Errorf("unknown adapter backend %q", name)
	}
}
