// File: cmd/shmqctl/handlefile.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Serializes a facade.Handle to and from a JSON sidecar file, the
// mechanism by which shmqctl serve hands an attachment descriptor to a
// separately-spawned shmqctl produce/inspect process — the "process
// spawning" collaborator spec.md §1 leaves external to the queue core.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/momentics/shmqueue/facade"
)

func writeHandleFile(path string, h *facade.Handle) error {
	b, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal handle: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

func readHandleFile(path string) (facade.Handle, error) {
	var h facade.Handle
	b, err := os.ReadFile(path)
	if err != nil {
		return h, fmt.Errorf("read handle file %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &h); err != nil {
		return h, fmt.Errorf("unmarshal handle file %s: %w", path, err)
	}
	return h, nil
}
