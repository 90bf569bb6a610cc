// Package storage abstracts the object store that holds job inputs,
// outputs, and status documents.
//
// Two backends exist: an S3 client that works against AWS or any
// S3-compatible endpoint, and a filesystem store for single-host
// deployments. Both issue expiring download links so callers never hand
// out raw bucket paths.
package storage
