// Package notifications delivers job lifecycle events via ntfy.
//
// The service publishes to the topic configured in config.toml and
// degrades to a no-op when no topic is set. Event classes (completed,
// failed, worker) can be toggled individually so a noisy queue does not
// have to mean a noisy phone.
package notifications
