// Package main hosts the clipforge CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the HTTP gateway and the queue
// worker in the foreground, submits jobs to a running gateway, polls
// job status, and offers configuration scaffolding plus a readiness
// report. It centralizes configuration resolution and structured
// logging setup so subcommands can focus on user experience instead of
// wiring.
//
// Keep this package lean: add new functionality by extending the
// internal packages first, then surface it through dedicated commands
// or flags here.
package main
