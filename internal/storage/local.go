package storage

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clipforge/internal/config"
)

// LocalStore keeps objects on the filesystem under root/bucket/key.
// Presigned URLs point at the gateway's /artifacts/ route and carry an
// HMAC signature so links expire the same way S3 links do.
type LocalStore struct {
	root    string
	baseURL string
	secret  []byte
}

// NewLocalStore builds a filesystem store rooted at storage.local_root.
// Without a configured presign secret a random one is generated, which
// invalidates outstanding links on restart.
func NewLocalStore(cfg *config.Config) (*LocalStore, error) {
	root := strings.TrimSpace(cfg.Storage.LocalRoot)
	if root == "" {
		return nil, fmt.Errorf("local store: storage.local_root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("local store: create root: %w", err)
	}

	secret := []byte(cfg.Storage.PresignSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("local store: generate presign secret: %w", err)
		}
	}

	return &LocalStore{
		root:    root,
		baseURL: strings.TrimRight(cfg.Server.PublicBaseURL, "/"),
		secret:  secret,
	}, nil
}

func (l *LocalStore) objectPath(ref Ref) (string, error) {
	if ref.Bucket == "" || ref.Key == "" {
		return "", fmt.Errorf("local store: empty reference")
	}
	full := filepath.Join(l.root, ref.Bucket, filepath.FromSlash(ref.Key))
	full = filepath.Clean(full)
	if !strings.HasPrefix(full, l.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("local store: reference %s escapes the store root", ref)
	}
	return full, nil
}

func (l *LocalStore) Put(ctx context.Context, ref Ref, body io.Reader, contentType string) error {
	dest, err := l.objectPath(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("local store: create object directory: %w", err)
	}

	// Write-then-rename so readers never observe a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".put-*")
	if err != nil {
		return fmt.Errorf("local store: create temp object: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("local store: write object %s: %w", ref, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("local store: close object %s: %w", ref, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("local store: finalize object %s: %w", ref, err)
	}
	return nil
}

func (l *LocalStore) Get(ctx context.Context, ref Ref) (io.ReadCloser, error) {
	src, err := l.objectPath(ref)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("get object %s: %w", ref, ErrNotExist)
		}
		return nil, fmt.Errorf("get object %s: %w", ref, err)
	}
	return file, nil
}

func (l *LocalStore) Download(ctx context.Context, ref Ref, destPath string) error {
	body, err := l.Get(ctx, ref)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, body); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("download object %s: %w", ref, err)
	}
	return nil
}

func (l *LocalStore) Upload(ctx context.Context, srcPath string, ref Ref, contentType string) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open upload file: %w", err)
	}
	defer file.Close()
	return l.Put(ctx, ref, file, contentType)
}

func (l *LocalStore) Copy(ctx context.Context, src, dst Ref) error {
	body, err := l.Get(ctx, src)
	if err != nil {
		return err
	}
	defer body.Close()
	return l.Put(ctx, dst, body, ContentTypeFor(dst.Key))
}

func (l *LocalStore) Exists(ctx context.Context, ref Ref) (bool, error) {
	src, err := l.objectPath(ref)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat object %s: %w", ref, err)
	}
	return true, nil
}

func (l *LocalStore) Presign(ctx context.Context, ref Ref, ttl time.Duration) (string, error) {
	if _, err := l.objectPath(ref); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	expires := time.Now().Add(ttl).Unix()
	signature := l.sign(ref.Bucket, ref.Key, expires)

	link := url.URL{Path: "/artifacts/" + ref.Bucket + "/" + ref.Key}
	query := url.Values{}
	query.Set("exp", strconv.FormatInt(expires, 10))
	query.Set("sig", signature)
	return l.baseURL + link.EscapedPath() + "?" + query.Encode(), nil
}

// VerifyArtifact checks an /artifacts/ link signature and expiry.
func (l *LocalStore) VerifyArtifact(bucket, key string, expires int64, signature string) error {
	if time.Now().Unix() > expires {
		return fmt.Errorf("artifact link expired")
	}
	want := l.sign(bucket, key, expires)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return fmt.Errorf("artifact signature mismatch")
	}
	return nil
}

func (l *LocalStore) sign(bucket, key string, expires int64) string {
	mac := hmac.New(sha256.New, l.secret)
	fmt.Fprintf(mac, "%s/%s\n%d", bucket, key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
