// File: cmd/shmqctl/inspect.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/momentics/shmqueue/facade"
	"github.com/spf13/cobra"
)

var inspectFlags struct {
	handleFile string
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print size/empty/full/closed state for an existing queue",
	RunE:  runInspect,
}

func init() {
	f := inspectCmd.Flags()
	f.StringVar(&inspectFlags.handleFile, "handle-file", "", "attachment descriptor written by shmqctl serve (required)")
	inspectCmd.MarkFlagRequired("handle-file")
}

func runInspect(_ *cobra.Command, _ []string) error {
	h, err := readHandleFile(inspectFlags.handleFile)
	if err != nil {
		return err
	}

	q, err := facade.Open(h)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	defer q.Detach()

	empty, err := q.Empty()
	if err != nil {
		return fmt.Errorf("empty: %w", err)
	}
	full, err := q.Full()
	if err != nil {
		return fmt.Errorf("full: %w", err)
	}
	state := q.DumpState()
	state["empty"] = empty
	state["full"] = full

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}
