package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"clipforge/internal/config"
)

// ErrNotExist marks lookups for objects that are not in the store.
var ErrNotExist = errors.New("object does not exist")

// Ref identifies an object by bucket and key.
type Ref struct {
	Bucket string
	Key    string
}

// String renders the reference in s3:// form.
func (r Ref) String() string {
	return "s3://" + r.Bucket + "/" + r.Key
}

// IsZero reports whether the reference is empty.
func (r Ref) IsZero() bool {
	return r.Bucket == "" && r.Key == ""
}

// Base returns the final path element of the key.
func (r Ref) Base() string {
	return path.Base(r.Key)
}

// ParseURL recognizes object store URLs and extracts the bucket and key.
// Supported forms:
//
//	s3://bucket/key
//	https://bucket.s3.amazonaws.com/key
//	https://bucket.s3.<region>.amazonaws.com/key
//	https://s3.amazonaws.com/bucket/key
//	https://s3.<region>.amazonaws.com/bucket/key
//
// The second return value reports whether the URL addressed the object
// store at all.
func ParseURL(raw string) (Ref, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, false
	}

	if after, ok := strings.CutPrefix(raw, "s3://"); ok {
		bucket, key, found := strings.Cut(after, "/")
		if !found || bucket == "" || key == "" {
			return Ref{}, false
		}
		return Ref{Bucket: bucket, Key: key}, true
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return Ref{}, false
	}
	host := strings.ToLower(parsed.Host)
	key := strings.TrimPrefix(parsed.Path, "/")

	// Virtual-hosted style: bucket.s3[.region].amazonaws.com/key
	if idx := strings.Index(host, ".s3."); idx > 0 && strings.HasSuffix(host, ".amazonaws.com") {
		if key == "" {
			return Ref{}, false
		}
		return Ref{Bucket: host[:idx], Key: key}, true
	}

	// Path style: s3[.region].amazonaws.com/bucket/key
	if host == "s3.amazonaws.com" || (strings.HasPrefix(host, "s3.") && strings.HasSuffix(host, ".amazonaws.com")) {
		bucket, rest, found := strings.Cut(key, "/")
		if !found || bucket == "" || rest == "" {
			return Ref{}, false
		}
		return Ref{Bucket: bucket, Key: rest}, true
	}

	return Ref{}, false
}

// ObjectStore is the persistence surface shared by the pipeline, the
// status store, and the HTTP gateway.
type ObjectStore interface {
	// Put writes the reader's contents to the referenced object.
	Put(ctx context.Context, ref Ref, body io.Reader, contentType string) error
	// Get opens the referenced object for reading.
	Get(ctx context.Context, ref Ref) (io.ReadCloser, error)
	// Download copies the referenced object to a local file.
	Download(ctx context.Context, ref Ref, destPath string) error
	// Upload stores a local file under the referenced object.
	Upload(ctx context.Context, srcPath string, ref Ref, contentType string) error
	// Copy duplicates an object inside the store without a local round trip.
	Copy(ctx context.Context, src, dst Ref) error
	// Exists reports whether the referenced object is present.
	Exists(ctx context.Context, ref Ref) (bool, error)
	// Presign issues a time-limited download URL for the referenced object.
	Presign(ctx context.Context, ref Ref, ttl time.Duration) (string, error)
}

// ArtifactVerifier is implemented by stores whose presigned URLs point
// back at this process and need signature checks at the HTTP layer.
type ArtifactVerifier interface {
	VerifyArtifact(bucket, key string, expires int64, signature string) error
}

// FromConfig builds the object store named by the configuration.
func FromConfig(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendS3:
		return NewS3Store(ctx, cfg)
	case config.StorageBackendLocal:
		return NewLocalStore(cfg)
	default:
		return nil, fmt.Errorf("storage backend: unsupported value %q", cfg.Storage.Backend)
	}
}

// ContentTypeFor guesses a MIME type from the file extension. Unknown
// extensions map to application/octet-stream.
func ContentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".avi":
		return "video/x-msvideo"
	case ".mp3":
		return "audio/mpeg"
	case ".aac":
		return "audio/aac"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
