// Command jtagctl discovers JTAG adapters and drives the PIC32 and
// STM32 device drivers in this module against whatever chain is
// attached to them.
package main

import (
	"fmt"
	"os"

	"github.com/jtagctl/jtaghal/cmd/jtagctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
