// Package fetch resolves job source references to files on local disk.
// Object-store URLs are recognized and served through the store client;
// everything else is downloaded over HTTP with a command-line fallback
// for hosts that refuse the Go client.
package fetch
