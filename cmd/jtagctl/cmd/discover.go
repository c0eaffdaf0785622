package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jtagctl/jtaghal/pkg/jtag"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List JTAG-capable USB adapters",
	RunE: func(cmd *cobra.Command, args []string) error {
		interfaces, err := jtag.DiscoverInterfaces(context.Background())
		if err != nil {
			return fmt.Errorf("discover: %w", err)
		}
		for _, iface := range interfaces {
			fmt.Printf("%-10s %s\n", iface.Kind, iface.Label())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
