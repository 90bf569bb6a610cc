package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

const appVersion = "0.1.0"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the clipforge version",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "clipforge %s (%s)\n", appVersion, runtime.Version())
			return nil
		},
	}
}
