// File: cmd/shmqctl/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// shmqctl is the cooperating-OS-processes demo for shmqueue: serve creates
// a region and drains it, produce attaches and puts, inspect reports
// state. Grounded on sakateka-yanet2's coordinator/cmd/coordinator and
// controlplane/cmd/yncp-director: a single cobra root with zap logging and
// signal-driven shutdown.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "shmqctl",
	Short: "Inspect and exercise a shmqueue shared-memory queue",
}

func main() {
	rootCmd.AddCommand(serveCmd, produceCmd, inspectCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
