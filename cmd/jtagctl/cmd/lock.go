package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jtagctl/jtaghal/pkg/stm32"
)

// lock/unlock only make sense against stm32.Device's settable protection
// levels; pic32 parts are locked through the MTAP's own
// assert-reset/erase dance instead, so these two subcommands type-assert
// to the concrete vendor type rather than an interface.

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Enable read protection (level 1) on the STM32 device on the chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, _, err := identifyDevice(cmd)
		if err != nil {
			return err
		}
		d, ok := dev.(*stm32.Device)
		if !ok {
			return fmt.Errorf("%s does not support lock", dev.Description())
		}
		if err := d.SetReadLock(stm32.ProtectionLevel1); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "locked %s\n", dev.Description())
		return nil
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Clear read protection on the STM32 device on the chain (mass-erases the part)",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, _, err := identifyDevice(cmd)
		if err != nil {
			return err
		}
		d, ok := dev.(*stm32.Device)
		if !ok {
			return fmt.Errorf("%s does not support unlock", dev.Description())
		}
		if err := d.ClearReadLock(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "unlocked %s\n", dev.Description())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(unlockCmd)
}
