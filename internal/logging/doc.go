// Package logging builds the process-wide slog logger.
//
// Responsibilities:
//   - Construct console or JSON handlers from configuration.
//   - Mirror output to the log directory when one is configured.
//   - Carry job, stage, and correlation fields from context into records.
//
// Components derive their loggers via NewComponentLogger so every record
// carries a component attribute.
package logging
