// Package preflight provides readiness checks for the external services
// and filesystem paths the pipeline depends on.
//
// The checks run in two contexts:
//   - The CLI "clipforge health" command runs RunAll plus CheckTools to
//     render a readiness table before an operator starts the gateway.
//   - The gateway health endpoint reuses CheckDirectoryAccess for its
//     scratch directory field.
//
// Service checks are gated by configuration: a disabled feature reports
// as passed so the summary stays green on minimal deployments.
package preflight
