// Package pipeline executes parsed job requests end to end: fetch the
// sources, run the operation's ffmpeg transform, publish the output,
// and record status transitions along the way.
//
// Remux is the exception. It runs synchronously against the object
// store, writes no status records, and reports a result envelope
// naming the copy path it took.
package pipeline
