package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jtagctl/jtaghal/internal/xlog"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "jtagctl",
	Short: "Discover, inspect, and program devices on a JTAG chain",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			xlog.Default.SetMinLevel(xlog.LevelDebug)
		}
	},
}

// Execute runs the CLI; it's the single entry point main calls.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().String("adapter", "simulator", "adapter backend: simulator|cmsisdap|pico")
	rootCmd.PersistentFlags().Int("chain-position", 0, "TAP position of the target device on a multi-device chain")
}
