package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var serverFlag string
	cmd := &cobra.Command{
		Use:   "submit [payload.json]",
		Short: "Submit a job to a running gateway",
		Long: "Submit a job payload to a gateway over HTTP.\n" +
			"Reads the payload from the given file, or from stdin when the argument is omitted or \"-\".",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.serverBaseURL(serverFlag)
			if err != nil {
				return err
			}
			body, err := readJobPayload(cmd, args)
			if err != nil {
				return err
			}

			payload, code, err := newGatewayClient(base).Submit(cmd.Context(), body)
			if err != nil {
				return err
			}
			if code >= 400 {
				return fmt.Errorf("gateway rejected job (HTTP %d): %s", code, gatewayErrorMessage(payload))
			}
			if ctx.jsonMode() {
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			if accepted, _ := payload["accepted"].(bool); accepted {
				fmt.Fprintf(out, "Job %s queued\n", stringField(payload, "job_id"))
				if statusURL := stringField(payload, "status_url"); statusURL != "" {
					fmt.Fprintf(out, "Poll %s for progress\n", statusURL)
				}
				return nil
			}
			printJobOutcome(out, payload)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverFlag, "server", "", "Gateway base URL (defaults to the configured public URL)")
	return cmd
}
