package preflight

import (
	"context"

	"clipforge/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the service and filesystem checks for the given
// config. Binary availability is reported separately by CheckTools.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Scratch directory (always checked)
	results = append(results, CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir))

	// Log directory (when configured)
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	results = append(results, CheckStorage(ctx, cfg))
	results = append(results, CheckQueue(ctx, cfg))
	results = append(results, CheckNotifications(ctx, cfg))

	return results
}

// Healthy reports whether every result passed.
func Healthy(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
