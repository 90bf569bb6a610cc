package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var serverFlag string
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Fetch a job's status document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.serverBaseURL(serverFlag)
			if err != nil {
				return err
			}

			payload, code, err := newGatewayClient(base).Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if code == http.StatusNotFound {
				return fmt.Errorf("job %s not found", args[0])
			}
			if code >= 400 {
				return fmt.Errorf("gateway error (HTTP %d): %s", code, gatewayErrorMessage(payload))
			}
			if ctx.jsonMode() {
				return writeJSON(cmd, payload)
			}
			printJobOutcome(cmd.OutOrStdout(), payload)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverFlag, "server", "", "Gateway base URL (defaults to the configured public URL)")
	return cmd
}
