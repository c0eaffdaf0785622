package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jtagctl/jtaghal/pkg/devfactory"
	"github.com/jtagctl/jtaghal/pkg/jtag"
)

// eraser is satisfied by both pic32.Device and stm32.Device without
// either package needing to depend on the other.
type eraser interface {
	Erase() error
}

func identifyDevice(cmd *cobra.Command) (jtag.Device, *jtag.ChainController, int, error) {
	adapter, err := buildAdapter(cmd)
	if err != nil {
		return nil, nil, 0, err
	}
	if err := adapter.ResetTAP(false); err != nil {
		return nil, nil, 0, fmt.Errorf("reset: %w", err)
	}

	// --chain-position names the target device's real TAP index on a
	// multi-TAP chain (stm32 parts reject position 0: a boundary-scan
	// TAP always precedes the core debug TAP on real silicon). Full
	// chain topology discovery is out of scope for this module, so
	// every preceding TAP is assumed to be a standard 4-bit-IR,
	// IDCODE-bearing TAP (pkg/idcode/deviceinfo's STM32 entries all
	// report IRLength 4 for exactly this boundary-scan TAP); deeper or
	// differently shaped chains aren't auto-detected.
	pos, _ := cmd.Flags().GetInt("chain-position")

	cc := jtag.NewChainController(adapter)
	for i := 0; i < pos; i++ {
		cc.AddTap(4)
	}
	tapIdx := cc.AddTap(5)

	raw, err := readIDCodeAtPosition(adapter, pos)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("read idcode: %w", err)
	}
	dev, err := devfactory.New(raw, cc, tapIdx)
	if err != nil {
		return nil, nil, 0, err
	}
	if dev == nil {
		return nil, nil, 0, fmt.Errorf("idcode %#08x: recognized but unsupported in this build", raw)
	}
	if err := cc.BindDevice(tapIdx, dev); err != nil {
		return nil, nil, 0, err
	}

	switch p := dev.(type) {
	case interface{ PostInitProbes() error }:
		if err := p.PostInitProbes(); err != nil {
			return nil, nil, 0, fmt.Errorf("post-init probe: %w", err)
		}
	case interface{ PostInitProbes(bool) error }:
		if err := p.PostInitProbes(false); err != nil {
			return nil, nil, 0, fmt.Errorf("post-init probe: %w", err)
		}
	}

	return dev, cc, tapIdx, nil
}

var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Mass-erase the device on the chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, _, err := identifyDevice(cmd)
		if err != nil {
			return err
		}
		er, ok := dev.(eraser)
		if !ok {
			return fmt.Errorf("%s does not support erase", dev.Description())
		}
		if err := er.Erase(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "erased %s\n", dev.Description())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eraseCmd)
}
