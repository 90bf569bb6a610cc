// Package jobs defines the core job model shared by the dispatcher, the
// worker, and the operation handlers.
//
// Key responsibilities:
//   - The closed Operation set and its display/progress labels.
//   - Typed per-operation request specs parsed and validated once at
//     admission, replacing loose map payloads at every access site.
//   - Structured error markers plus the Wrap helper that classify failures
//     into retryable (fetch, transform, persistence) and terminal
//     (validation, capability) outcomes.
//
// Use these helpers when wiring new operation logic so error handling and
// retry behaviour stay uniform across the pipeline.
package jobs
