// Package status persists job state as JSON documents in the object
// store, one per job under jobs/{id}/status.json.
//
// Every transition goes through Update, which preserves creation time,
// merges metadata, and keeps progress monotone so observers never see
// a job move backwards.
package status
