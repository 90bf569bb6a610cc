package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"clipforge/internal/config"
)

// readJobPayload loads the JSON payload for run and submit. A file
// argument is read from disk; "-" or no argument reads stdin.
func readJobPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read payload from stdin: %w", err)
		}
		return data, nil
	}
	path, err := config.ExpandPath(args[0])
	if err != nil {
		return nil, fmt.Errorf("resolve payload path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload file: %w", err)
	}
	return data, nil
}
