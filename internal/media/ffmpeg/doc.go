// Package ffmpeg drives the ffmpeg binary for every transform the
// pipeline performs.
//
// The Client executes argument lists produced by the builder functions
// in this package, parsing progress timestamps from tool output as it
// runs. Command execution sits behind the Executor interface so tests
// substitute a recorder instead of spawning processes.
package ffmpeg
