package testsupport

import (
	"context"
	"strings"
	"testing"

	"clipforge/internal/config"
	"clipforge/internal/status"
	"clipforge/internal/storage"
)

// MustObjectStore builds the object store named by the config.
func MustObjectStore(t testing.TB, cfg *config.Config) storage.ObjectStore {
	t.Helper()

	store, err := storage.FromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("storage.FromConfig: %v", err)
	}
	return store
}

// MustStatusStore builds a status store over the config's status bucket.
func MustStatusStore(t testing.TB, cfg *config.Config, objects storage.ObjectStore) *status.Store {
	t.Helper()

	bucket := cfg.StatusBucketName()
	if bucket == "" {
		t.Fatalf("config has no status bucket")
	}
	return status.NewStore(objects, bucket)
}

// SeedObject stores content under the given bucket and key.
func SeedObject(t testing.TB, objects storage.ObjectStore, bucket, key, content string) storage.Ref {
	t.Helper()

	ref := storage.Ref{Bucket: bucket, Key: key}
	if err := objects.Put(context.Background(), ref, strings.NewReader(content), storage.ContentTypeFor(key)); err != nil {
		t.Fatalf("seed object %s: %v", ref, err)
	}
	return ref
}
