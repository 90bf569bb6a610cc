package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipforge/internal/deps"
	"clipforge/internal/preflight"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service and tool readiness",
		Long:  "Run preflight checks against the configured storage backend, queue broker, notification endpoint, and media tools.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			services := preflight.RunAll(cmd.Context(), cfg)
			tools := preflight.CheckTools(cfg)
			healthy := preflight.Healthy(services) && requiredToolsAvailable(tools)

			if ctx.jsonMode() {
				if err := writeJSON(cmd, healthReport(healthy, services, tools)); err != nil {
					return err
				}
				if !healthy {
					return errors.New("one or more health checks failed")
				}
				return nil
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Services", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, result := range services {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Tools", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, tool := range tools {
				fmt.Fprintln(out, toolStatusLine(tool, colorize))
			}

			if !healthy {
				return errors.New("one or more health checks failed")
			}
			return nil
		},
	}
}

func toolStatusLine(tool deps.Status, colorize bool) string {
	if tool.Available {
		message := "Ready"
		if tool.Command != "" {
			message = fmt.Sprintf("Ready (command: %s)", tool.Command)
		}
		return renderStatusLine(tool.Name, statusOK, message, colorize)
	}
	detail := strings.TrimSpace(tool.Detail)
	if detail == "" {
		detail = "not available"
	}
	kind := statusError
	if tool.Optional {
		kind = statusWarn
	}
	return renderStatusLine(tool.Name, kind, detail, colorize)
}

func requiredToolsAvailable(tools []deps.Status) bool {
	for _, tool := range tools {
		if !tool.Available && !tool.Optional {
			return false
		}
	}
	return true
}

func healthReport(healthy bool, services []preflight.Result, tools []deps.Status) map[string]any {
	serviceViews := make([]map[string]any, 0, len(services))
	for _, result := range services {
		serviceViews = append(serviceViews, map[string]any{
			"name":   result.Name,
			"passed": result.Passed,
			"detail": result.Detail,
		})
	}
	toolViews := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		toolViews = append(toolViews, map[string]any{
			"name":      tool.Name,
			"command":   tool.Command,
			"available": tool.Available,
			"optional":  tool.Optional,
			"detail":    tool.Detail,
		})
	}
	return map[string]any{
		"healthy":  healthy,
		"services": serviceViews,
		"tools":    toolViews,
	}
}
