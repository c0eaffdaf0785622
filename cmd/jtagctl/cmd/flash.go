package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jtagctl/jtaghal/pkg/firmware"
)

// blankChecker is satisfied by stm32.Device; pic32.Device's own blank
// check is unexported since it only runs as the post-erase verification
// inside pic32.Device.Erase.
type blankChecker interface {
	BlankCheck() (bool, error)
}

// wordProgrammer is satisfied by stm32.Device. pic32.Device's Program
// still returns pic32.ErrNotImplemented, matching the gap the original
// driver's own PIC32 debug engine never closed.
type wordProgrammer interface {
	Program(words []uint32) error
}

var programFile string

var programCmd = &cobra.Command{
	Use:   "program",
	Short: "Program a firmware image onto the device on the chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		if programFile == "" {
			return fmt.Errorf("program: --file is required")
		}
		raw, err := os.ReadFile(programFile)
		if err != nil {
			return fmt.Errorf("program: %w", err)
		}
		img := firmware.New(raw)

		dev, _, _, err := identifyDevice(cmd)
		if err != nil {
			return err
		}
		wp, ok := dev.(wordProgrammer)
		if !ok {
			return fmt.Errorf("%s does not support programming", dev.Description())
		}
		words := make([]uint32, img.WordCount())
		for i := range words {
			words[i] = img.Word(i)
		}
		if err := wp.Program(words); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "programmed %d bytes (%d words) onto %s\n", img.OriginalLength(), len(words), dev.Description())
		return nil
	},
}

var blankCheckCmd = &cobra.Command{
	Use:   "blankcheck",
	Short: "Check whether the device on the chain is erased",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _, _, err := identifyDevice(cmd)
		if err != nil {
			return err
		}
		bc, ok := dev.(blankChecker)
		if !ok {
			return fmt.Errorf("%s does not support blank check", dev.Description())
		}
		blank, err := bc.BlankCheck()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: blank=%v\n", dev.Description(), blank)
		return nil
	},
}

func init() {
	programCmd.Flags().StringVar(&programFile, "file", "", "path to the firmware image to program")
	rootCmd.AddCommand(programCmd)
	rootCmd.AddCommand(blankCheckCmd)
}
